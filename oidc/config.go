// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/hashicorp/msauth/internal/httpclient"
)

// microsoftAuthorityHosts are the Microsoft identity platform hosts which
// are trusted without being listed as known authorities.
var microsoftAuthorityHosts = []string{
	"login.microsoftonline.com",
	"login.microsoft.com",
	"login.windows.net",
	"sts.windows.net",
	"login.chinacloudapi.cn",
	"login.microsoftonline.de",
	"login.microsoftonline.us",
	"login-us.microsoftonline.com",
}

// tenantIndependentSegments are the Microsoft authority tenants which don't
// name a single tenant. Tokens issued through them carry the user's home
// tenant in their issuer.
var tenantIndependentSegments = []string{
	"common",
	"organizations",
	"consumers",
}

// Config represents the configuration for an OIDC public client.
type Config struct {
	// ClientID is the application (client) id
	ClientID string

	// Authority is the URL of the authority, for example
	// https://login.microsoftonline.com/common
	Authority string

	// KnownAuthorities are hosts (optionally with a port) trusted in addition
	// to the Microsoft identity platform hosts.
	KnownAuthorities []string

	// DomainHint is an optional domain_hint for interactive requests.
	DomainHint string

	// RedirectURI is where the provider sends authorization responses. An
	// http loopback URI (http://localhost or http://127.0.0.1 with an
	// optional port) enables popups.
	RedirectURI string

	// ProviderCA is an optional pem-encoded CA cert to use when sending
	// requests to the provider.
	ProviderCA string
}

// NewConfig composes a new config for a public client.
//
// Supported options: WithKnownAuthorities, WithDomainHint, WithProviderCA
func NewConfig(clientID, authority, redirectURI string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:         clientID,
		Authority:        authority,
		KnownAuthorities: opts.withKnownAuthorities,
		DomainHint:       opts.withDomainHint,
		RedirectURI:      redirectURI,
		ProviderCA:       opts.withProviderCA,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate the config. The authority must use https (http is only allowed
// for loopback hosts) and be a Microsoft identity platform host or one of
// the known authorities.
func (c *Config) Validate() error {
	const op = "oidc.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	u, err := c.authorityURL()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !c.trusted(u) {
		return fmt.Errorf("%s: %s is not a known authority: %w", op, u.Host, ErrUntrustedAuthority)
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("%s: redirect uri is empty: %w", op, ErrInvalidRedirectURI)
	}
	r, err := url.Parse(c.RedirectURI)
	if err != nil {
		return fmt.Errorf("%s: unable to parse redirect uri: %w", op, ErrInvalidRedirectURI)
	}
	if !r.IsAbs() || r.Host == "" {
		return fmt.Errorf("%s: redirect uri %q is not absolute: %w", op, c.RedirectURI, ErrInvalidRedirectURI)
	}
	if c.ProviderCA != "" {
		if _, err := httpclient.New(c.ProviderCA); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (c *Config) authorityURL() (*url.URL, error) {
	const op = "oidc.(Config).authorityURL"
	if c.Authority == "" {
		return nil, fmt.Errorf("%s: authority is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.Authority)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse authority: %w", op, ErrInvalidParameter)
	}
	switch {
	case u.Host == "":
		return nil, fmt.Errorf("%s: authority %q has no host: %w", op, c.Authority, ErrInvalidParameter)
	case u.RawQuery != "" || u.Fragment != "":
		return nil, fmt.Errorf("%s: authority must not have a query or fragment: %w", op, ErrInvalidParameter)
	case u.Scheme == "https":
	case u.Scheme == "http" && isLoopback(u.Hostname()):
	default:
		return nil, fmt.Errorf("%s: authority scheme %q is not supported: %w", op, u.Scheme, ErrInvalidParameter)
	}
	return u, nil
}

func (c *Config) trusted(u *url.URL) bool {
	if isMicrosoftHost(u) {
		return true
	}
	for _, k := range c.KnownAuthorities {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == strings.ToLower(u.Host) || k == strings.ToLower(u.Hostname()) {
			return true
		}
	}
	return false
}

// discovery returns the issuer URL used for discovery and, for tenant
// independent Microsoft authorities, the issuer the provider will report.
// An empty reported issuer means the two are the same.
func (c *Config) discovery() (issuer string, reported string, err error) {
	const op = "oidc.(Config).discovery"
	u, err := c.authorityURL()
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	issuer = strings.TrimSuffix(u.String(), "/")
	if !isMicrosoftHost(u) {
		return issuer, "", nil
	}
	if !strings.HasSuffix(issuer, "/v2.0") {
		issuer += "/v2.0"
	}
	if c.tenantIndependent() {
		reported = u.Scheme + "://" + u.Host + "/{tenantid}/v2.0"
	}
	return issuer, reported, nil
}

// tenantIndependent reports whether the authority is a Microsoft authority
// without a specific tenant.
func (c *Config) tenantIndependent() bool {
	u, err := c.authorityURL()
	if err != nil || !isMicrosoftHost(u) {
		return false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	return strutil.StrListContains(tenantIndependentSegments, strings.ToLower(segments[0]))
}

// environment is the authority host recorded on cached accounts.
func (c *Config) environment() string {
	u, err := c.authorityURL()
	if err != nil {
		return ""
	}
	return u.Host
}

func isMicrosoftHost(u *url.URL) bool {
	return strutil.StrListContains(microsoftAuthorityHosts, strings.ToLower(u.Hostname()))
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
