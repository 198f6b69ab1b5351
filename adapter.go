// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package msauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Adapter implements plugin login and logout on top of a SessionFactory.
// It's safe for concurrent use; every call builds its own Session and the
// adapter doesn't serialize calls.
type Adapter struct {
	factory                SessionFactory
	logger                 hclog.Logger
	currentURL             func() string
	honorInteractionMethod bool
}

// NewAdapter creates an Adapter.
//
// Supported options: WithLogger, WithCurrentURL, WithHonorInteractionMethod
func NewAdapter(f SessionFactory, opt ...Option) (*Adapter, error) {
	const op = "msauth.NewAdapter"
	if f == nil {
		return nil, fmt.Errorf("%s: session factory is nil: %w", op, ErrNilParameter)
	}
	opts := getAdapterOpts(opt...)
	return &Adapter{
		factory:                f,
		logger:                 opts.withLogger.Named("msauth"),
		currentURL:             opts.withCurrentURL,
		honorInteractionMethod: opts.withHonorInteractionMethod,
	}, nil
}

// Login acquires a token for the requested scopes. It tries a silent
// acquisition with the first account known to the session, and on any
// failure makes exactly one interactive attempt. The interactive attempt
// uses Popup unless the adapter was created WithHonorInteractionMethod.
//
// Errors from the interactive attempt are logged and returned as is.
func (a *Adapter) Login(ctx context.Context, opts *LoginOptions) (*AuthResult, error) {
	const op = "msauth.(Adapter).Login"
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s, err := a.newSession(ctx, &opts.BaseOptions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer s.Done()

	r, err := a.acquireTokenSilently(ctx, s, opts.Scopes)
	if err == nil {
		return r, nil
	}
	a.logger.Debug("silent token acquisition failed",
		"client_id", opts.ClientID,
		"interaction_required", errors.Is(err, ErrInteractionRequired),
		"error", err)

	method := Popup
	if a.honorInteractionMethod {
		method = opts.InteractionMethod
	}
	r, err = a.acquireTokenInteractively(ctx, s, opts.Scopes, method)
	if err != nil {
		a.logger.Error("error occurred while logging in", "client_id", opts.ClientID, "interaction_method", method, "error", err)
		return nil, err
	}
	return r, nil
}

// Logout signs the first account out of the session. It returns
// ErrNothingToSignOut without contacting the provider when the session
// doesn't know about any account. Errors from the provider's sign-out are
// returned as is.
func (a *Adapter) Logout(ctx context.Context, opts *LogoutOptions) error {
	const op = "msauth.(Adapter).Logout"
	if opts == nil {
		return fmt.Errorf("%s: missing options: %w", op, ErrNilParameter)
	}
	if err := opts.BaseOptions.validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s, err := a.newSession(ctx, &opts.BaseOptions)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer s.Done()

	accounts, err := s.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("%s: unable to list accounts: %w", op, err)
	}
	if len(accounts) == 0 {
		return ErrNothingToSignOut
	}
	return s.LogoutPopup(ctx)
}

// sessionConfig builds the configuration for a new session from the
// caller's options.
func (a *Adapter) sessionConfig(opts *BaseOptions) *SessionConfig {
	redirectURI := opts.RedirectURI
	if redirectURI == "" {
		redirectURI = StripQueryAndFragment(a.currentURL())
	}
	return &SessionConfig{
		ClientID:         opts.ClientID,
		Authority:        ResolveAuthority(opts.Tenant, opts.AuthorityURL),
		KnownAuthorities: opts.KnownAuthorities,
		DomainHint:       opts.DomainHint,
		RedirectURI:      redirectURI,
		CacheLocation:    LocalStorage,
	}
}

func (a *Adapter) newSession(ctx context.Context, opts *BaseOptions) (Session, error) {
	const op = "msauth.(Adapter).newSession"
	c := a.sessionConfig(opts)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s, err := a.factory.NewSession(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create session: %w", op, err)
	}
	if s == nil {
		return nil, fmt.Errorf("%s: session factory returned a nil session: %w", op, ErrNilParameter)
	}
	return s, nil
}

func (a *Adapter) acquireTokenSilently(ctx context.Context, s Session, scopes []string) (*AuthResult, error) {
	const op = "msauth.(Adapter).acquireTokenSilently"
	req := &SilentRequest{Scopes: scopes}
	accounts, err := s.Accounts(ctx)
	switch {
	case err != nil:
		a.logger.Debug("unable to list accounts", "error", err)
	case len(accounts) > 0:
		req.Account = &accounts[0]
	}
	t, err := s.AcquireTokenSilent(ctx, req)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%s: session returned a nil token: %w", op, ErrNilParameter)
	}
	return newAuthResult(t, scopes), nil
}

func (a *Adapter) acquireTokenInteractively(ctx context.Context, s Session, scopes []string, method InteractionMethod) (*AuthResult, error) {
	const op = "msauth.(Adapter).acquireTokenInteractively"
	req := &InteractiveRequest{
		Scopes: scopes,
		Prompt: PromptSelectAccount,
	}
	var t *TokenResult
	var err error
	switch method {
	case Popup:
		t, err = s.AcquireTokenPopup(ctx, req)
	case Redirect:
		t, err = s.AcquireTokenRedirect(ctx, req)
	default:
		return nil, fmt.Errorf("%s: %s: %w", op, method, ErrUnsupportedInteraction)
	}
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%s: session returned a nil token: %w", op, ErrNilParameter)
	}
	return newAuthResult(t, scopes), nil
}

// newAuthResult reshapes a token. The result's scopes are the requested
// scopes, not the ones the provider granted.
func newAuthResult(t *TokenResult, requested []string) *AuthResult {
	scopes := make([]string, len(requested))
	copy(scopes, requested)
	return &AuthResult{
		AccessToken: t.AccessToken,
		IDToken:     t.IDToken,
		Scopes:      scopes,
	}
}
