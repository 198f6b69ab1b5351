// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package msauth

import (
	"fmt"
	"strings"
)

// InteractionMethod selects how an interactive token acquisition is
// presented to the user.
type InteractionMethod int

const (
	// Popup opens a separate window (the system browser) and waits for the
	// flow to complete.
	Popup InteractionMethod = iota

	// Redirect navigates away to the provider. The flow completes when the
	// provider redirects back to the redirect URI.
	Redirect
)

// String returns the lower case name of the interaction method
func (m InteractionMethod) String() string {
	switch m {
	case Popup:
		return "popup"
	case Redirect:
		return "redirect"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseInteractionMethod parses the name of an interaction method. The
// comparison is case insensitive.
func ParseInteractionMethod(s string) (InteractionMethod, error) {
	const op = "msauth.ParseInteractionMethod"
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "popup":
		return Popup, nil
	case "redirect":
		return Redirect, nil
	default:
		return 0, fmt.Errorf("%s: %q: %w", op, s, ErrUnsupportedInteraction)
	}
}

// BaseOptions are the authentication parameters shared by login and logout.
type BaseOptions struct {
	// ClientID is the application (client) id registered with the provider.
	// Required.
	ClientID string `mapstructure:"clientId"`

	// Tenant is used to build the authority when AuthorityURL is empty. When
	// both are empty the "common" tenant is used.
	Tenant string `mapstructure:"tenant"`

	// AuthorityURL is an explicit authority and takes precedence over Tenant.
	AuthorityURL string `mapstructure:"authorityUrl"`

	// DomainHint is an optional hint about the tenant or domain the user
	// should use to sign in.
	DomainHint string `mapstructure:"domainHint"`

	// KnownAuthorities is an optional list of authority hosts which are
	// trusted in addition to the Microsoft cloud hosts.
	KnownAuthorities []string `mapstructure:"knownAuthorities"`

	// RedirectURI is optional and defaults to the current URL without its
	// query and fragment.
	RedirectURI string `mapstructure:"redirectUri"`
}

func (o *BaseOptions) validate() error {
	const op = "msauth.(BaseOptions).validate"
	if o == nil {
		return fmt.Errorf("%s: missing options: %w", op, ErrNilParameter)
	}
	if strings.TrimSpace(o.ClientID) == "" {
		return fmt.Errorf("%s: missing client id: %w", op, ErrInvalidParameter)
	}
	return nil
}

// LoginOptions are the parameters for Adapter.Login
type LoginOptions struct {
	BaseOptions `mapstructure:",squash"`

	// Scopes are the permissions requested for the access token. Required.
	Scopes []string `mapstructure:"scopes"`

	// InteractionMethod is the caller's preferred interactive flow.
	InteractionMethod InteractionMethod `mapstructure:"interactionMethod"`
}

func (o *LoginOptions) validate() error {
	const op = "msauth.(LoginOptions).validate"
	if o == nil {
		return fmt.Errorf("%s: missing options: %w", op, ErrNilParameter)
	}
	if err := o.BaseOptions.validate(); err != nil {
		return err
	}
	if len(o.Scopes) == 0 {
		return fmt.Errorf("%s: missing scopes: %w", op, ErrInvalidParameter)
	}
	switch o.InteractionMethod {
	case Popup, Redirect:
	default:
		return fmt.Errorf("%s: %s: %w", op, o.InteractionMethod, ErrUnsupportedInteraction)
	}
	return nil
}

// LogoutOptions are the parameters for Adapter.Logout
type LogoutOptions struct {
	BaseOptions `mapstructure:",squash"`
}

// AuthResult is the normalized result of a successful login.
type AuthResult struct {
	AccessToken string `json:"accessToken" mapstructure:"accessToken"`
	IDToken     string `json:"idToken" mapstructure:"idToken"`

	// Scopes are the scopes from the LoginOptions, not the scopes granted by
	// the provider.
	Scopes []string `json:"scopes" mapstructure:"scopes"`
}
