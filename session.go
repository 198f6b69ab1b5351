// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package msauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CacheLocation names where a Session keeps its token cache.
type CacheLocation string

const (
	// LocalStorage is a persistent, per user cache shared across sessions.
	LocalStorage CacheLocation = "localStorage"

	// MemoryStorage is a cache which lives as long as the session.
	MemoryStorage CacheLocation = "memoryStorage"
)

// SessionConfig is the identity provider configuration a Session is bound
// to.
type SessionConfig struct {
	ClientID         string
	Authority        string
	KnownAuthorities []string
	DomainHint       string
	RedirectURI      string
	CacheLocation    CacheLocation
}

// Validate the session configuration. It does not contact the authority.
func (c *SessionConfig) Validate() error {
	const op = "msauth.(SessionConfig).Validate"
	if c == nil {
		return fmt.Errorf("%s: session config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.Authority == "" {
		return fmt.Errorf("%s: authority is empty: %w", op, ErrInvalidParameter)
	}
	if _, err := url.Parse(c.Authority); err != nil {
		return fmt.Errorf("%s: authority %q is invalid: %w", op, c.Authority, ErrInvalidParameter)
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("%s: redirect uri is empty: %w", op, ErrInvalidParameter)
	}
	switch c.CacheLocation {
	case LocalStorage, MemoryStorage:
	default:
		return fmt.Errorf("%s: unsupported cache location %q: %w", op, c.CacheLocation, ErrInvalidParameter)
	}
	return nil
}

// Account is an account the session has signed in before.
type Account struct {
	// HomeAccountID uniquely identifies the account across tenants
	HomeAccountID string
	// Environment is the authority host the account was issued by
	Environment    string
	TenantID       string
	Username       string
	Name           string
	LocalAccountID string
}

// SilentRequest is a request for a token without user interaction.
type SilentRequest struct {
	Scopes []string
	// Account is optional; sessions reject silent requests without one.
	Account *Account
}

// PromptSelectAccount asks the provider to show an account picker.
const PromptSelectAccount = "select_account"

// InteractiveRequest is a request for a token via a user visible flow.
type InteractiveRequest struct {
	Scopes []string
	Prompt string
}

// TokenResult is the result of a successful token acquisition.
type TokenResult struct {
	AccessToken string
	IDToken     string
	// Scopes granted by the provider
	Scopes    []string
	ExpiresOn time.Time
	Account   *Account
}

// Session is an authentication session bound to one SessionConfig. Sessions
// own token validation and caching.
type Session interface {
	// Accounts returns the accounts known to the session. The first account
	// is used for silent acquisition.
	Accounts(ctx context.Context) ([]Account, error)

	// AcquireTokenSilent acquires a token for an account without user
	// interaction.
	AcquireTokenSilent(ctx context.Context, r *SilentRequest) (*TokenResult, error)

	// AcquireTokenPopup acquires a token via a popup and blocks until the
	// flow completes, fails or ctx is done.
	AcquireTokenPopup(ctx context.Context, r *InteractiveRequest) (*TokenResult, error)

	// AcquireTokenRedirect starts a full redirect flow. Implementations may
	// not be able to complete it within the call.
	AcquireTokenRedirect(ctx context.Context, r *InteractiveRequest) (*TokenResult, error)

	// LogoutPopup ends the session interactively.
	LogoutPopup(ctx context.Context) error

	// Done releases the session's resources.
	Done()
}

// SessionFactory creates sessions.
type SessionFactory interface {
	NewSession(ctx context.Context, c *SessionConfig) (Session, error)
}

// SessionFactoryFunc is an adapter to allow ordinary functions to be used as
// a SessionFactory.
type SessionFactoryFunc func(ctx context.Context, c *SessionConfig) (Session, error)

// NewSession calls f(ctx, c)
func (f SessionFactoryFunc) NewSession(ctx context.Context, c *SessionConfig) (Session, error) {
	return f(ctx, c)
}

// DefaultAuthorityHost is the host used to build an authority from a tenant.
const DefaultAuthorityHost = "https://login.microsoftonline.com"

// DefaultTenant is the tenant used when neither a tenant nor an authority
// is supplied.
const DefaultTenant = "common"

// ResolveAuthority returns authorityURL verbatim when it's not empty,
// otherwise the default authority for the tenant.
func ResolveAuthority(tenant, authorityURL string) string {
	if authorityURL != "" {
		return authorityURL
	}
	if tenant == "" {
		tenant = DefaultTenant
	}
	return DefaultAuthorityHost + "/" + tenant
}

// StripQueryAndFragment removes everything from the first '?' or '#'.
func StripQueryAndFragment(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
