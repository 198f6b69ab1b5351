// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/msauth"
	"github.com/hashicorp/msauth/cache"
	"github.com/hashicorp/msauth/internal/httpclient"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// baseScopes are requested in addition to the caller's scopes.
var baseScopes = []string{oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess}

// PublicClient is an msauth.Session for an OIDC public client. It's safe
// for concurrent use. Call Done when it's no longer needed.
type PublicClient struct {
	config    *Config
	client    *http.Client
	partition string
	issuer    string

	// issuerTemplate is set for tenant independent authorities, whose
	// tokens are issued by the user's home tenant.
	issuerTemplate string

	// provider and endSessionEndpoint are set by the first successful
	// discovery.
	discoveryMu        sync.Mutex
	provider           *oidc.Provider
	endSessionEndpoint string

	cache              cache.Cache
	opener             Opener
	logger             hclog.Logger
	uiLocales          []language.Tag
	expirySkew         time.Duration
	interactionTimeout time.Duration
	now                func() time.Time

	mu   sync.Mutex
	done bool
}

var _ msauth.Session = (*PublicClient)(nil)

// NewPublicClient creates a PublicClient. It doesn't contact the authority:
// its configuration is discovered by the first operation which needs it, so
// Accounts and cached tokens are available offline.
//
// Supported options: WithCache, WithOpener, WithLogger, WithUILocales,
// WithExpirySkew, WithInteractionTimeout, WithNow
func NewPublicClient(_ context.Context, c *Config, opt ...Option) (*PublicClient, error) {
	const op = "oidc.NewPublicClient"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	opts := getClientOpts(opt...)
	client, err := httpclient.New(c.ProviderCA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	issuer, reported, err := c.discovery()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tc := opts.withCache
	if tc == nil {
		tc = cache.NewMemory()
	}
	return &PublicClient{
		config:             c,
		client:             client,
		partition:          cache.Partition(c.ClientID, c.Authority),
		issuer:             issuer,
		issuerTemplate:     reported,
		cache:              tc,
		opener:             opts.withOpener,
		logger:             opts.withLogger.Named("oidc"),
		uiLocales:          opts.withUILocales,
		expirySkew:         opts.withExpirySkew,
		interactionTimeout: opts.withInteractionTimeout,
		now:                opts.withNow,
	}, nil
}

// discover returns the authority's provider, fetching its discovery
// document on first use. A failed discovery is retried by the next call.
func (c *PublicClient) discover(ctx context.Context) (*oidc.Provider, error) {
	const op = "oidc.(PublicClient).discover"
	c.discoveryMu.Lock()
	defer c.discoveryMu.Unlock()
	if c.provider != nil {
		return c.provider, nil
	}

	discoveryCtx := c.httpCtx(ctx)
	if c.issuerTemplate != "" {
		discoveryCtx = oidc.InsecureIssuerURLContext(discoveryCtx, c.issuerTemplate)
	}
	provider, err := oidc.NewProvider(discoveryCtx, c.issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to discover authority %s: %w", op, c.issuer, err)
	}
	var discovered struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&discovered); err != nil {
		return nil, fmt.Errorf("%s: unable to read discovery document: %w", op, err)
	}
	c.provider = provider
	c.endSessionEndpoint = discovered.EndSessionEndpoint
	return provider, nil
}

// Done implements msauth.Session.Done. It releases the client's idle
// connections to the provider and can be called more than once.
func (c *PublicClient) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	c.client.CloseIdleConnections()
}

// Config returns the client's config
func (c *PublicClient) Config() *Config {
	return c.config
}

// Accounts implements msauth.Session.Accounts. Accounts are ordered by home
// account id.
func (c *PublicClient) Accounts(ctx context.Context) ([]msauth.Account, error) {
	const op = "oidc.(PublicClient).Accounts"
	entries, err := c.cache.List(ctx, c.partition)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to list cached accounts: %w", op, err)
	}
	accounts := make([]msauth.Account, 0, len(entries))
	for _, e := range entries {
		accounts = append(accounts, *newAccount(e))
	}
	return accounts, nil
}

// httpCtx returns a context for requests to the provider.
func (c *PublicClient) httpCtx(ctx context.Context) context.Context {
	return httpclient.Context(ctx, c.client)
}

func (c *PublicClient) oauth2Config(ctx context.Context, redirectURI string, scopes []string) (*oauth2.Config, error) {
	provider, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return &oauth2.Config{
		ClientID:    c.config.ClientID,
		RedirectURL: redirectURI,
		Endpoint:    endpoint,
		Scopes:      requestScopes(scopes),
	}, nil
}

// expired reports whether an access token expiring at exp can no longer be
// handed out. A zero expiry never expires.
func (c *PublicClient) expired(exp time.Time) bool {
	if exp.IsZero() {
		return false
	}
	return !exp.After(c.now().Add(c.expirySkew))
}

// requestScopes returns the base scopes followed by the caller's scopes
// without duplicates.
func requestScopes(scopes []string) []string {
	out := make([]string, 0, len(baseScopes)+len(scopes))
	seen := make(map[string]struct{}, cap(out))
	for _, s := range append(append([]string{}, baseScopes...), scopes...) {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// resourceScopes drops the base scopes, which providers don't always
// report as granted.
func resourceScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		switch strings.ToLower(s) {
		case oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess, "email":
			continue
		}
		out = append(out, s)
	}
	return out
}

func newAccount(e *cache.Entry) *msauth.Account {
	return &msauth.Account{
		HomeAccountID:  e.HomeAccountID,
		Environment:    e.Environment,
		TenantID:       e.TenantID,
		Username:       e.Username,
		Name:           e.Name,
		LocalAccountID: e.LocalAccountID,
	}
}

func newTokenResult(e *cache.Entry) *msauth.TokenResult {
	return &msauth.TokenResult{
		AccessToken: e.AccessToken,
		IDToken:     e.IDToken,
		Scopes:      append([]string(nil), e.Scopes...),
		ExpiresOn:   e.ExpiresOn,
		Account:     newAccount(e),
	}
}
