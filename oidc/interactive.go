// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/msauth"
	"github.com/hashicorp/msauth/cache"
	"github.com/hashicorp/msauth/internal/id"
	"golang.org/x/oauth2"
)

// authRequest is the per request state of an authorization code flow
type authRequest struct {
	state       string
	nonce       string
	verifier    string
	redirectURI string
	scopes      []string
	prompt      string
}

func newAuthRequest(redirectURI string, r *msauth.InteractiveRequest) (*authRequest, error) {
	const op = "oidc.newAuthRequest"
	state, err := id.New("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate state: %w", op, err)
	}
	nonce, err := id.New("n")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate nonce: %w", op, err)
	}
	return &authRequest{
		state:       state,
		nonce:       nonce,
		verifier:    oauth2.GenerateVerifier(),
		redirectURI: redirectURI,
		scopes:      r.Scopes,
		prompt:      r.Prompt,
	}, nil
}

func validateInteractiveRequest(op string, r *msauth.InteractiveRequest) error {
	switch {
	case r == nil:
		return fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	case len(r.Scopes) == 0:
		return fmt.Errorf("%s: missing scopes: %w", op, ErrInvalidParameter)
	}
	return nil
}

// authCodeURL returns the authorization endpoint URL for the request.
func (c *PublicClient) authCodeURL(ctx context.Context, ar *authRequest) (string, error) {
	oc, err := c.oauth2Config(ctx, ar.redirectURI, ar.scopes)
	if err != nil {
		return "", err
	}
	opts := []oauth2.AuthCodeOption{
		oidc.Nonce(ar.nonce),
		oauth2.S256ChallengeOption(ar.verifier),
	}
	if ar.prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", ar.prompt))
	}
	if c.config.DomainHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("domain_hint", c.config.DomainHint))
	}
	if len(c.uiLocales) > 0 {
		locales := make([]string, 0, len(c.uiLocales))
		for _, l := range c.uiLocales {
			locales = append(locales, l.String())
		}
		opts = append(opts, oauth2.SetAuthURLParam("ui_locales", strings.Join(locales, " ")))
	}
	return oc.AuthCodeURL(ar.state, opts...), nil
}

// AcquireTokenPopup implements msauth.Session.AcquireTokenPopup. It listens
// on the config's loopback redirect uri, opens the authorization URL and
// waits for the provider's response. The wait is bounded by the context and
// the client's interaction timeout.
func (c *PublicClient) AcquireTokenPopup(ctx context.Context, r *msauth.InteractiveRequest) (*msauth.TokenResult, error) {
	const op = "oidc.(PublicClient).AcquireTokenPopup"
	if err := validateInteractiveRequest(op, r); err != nil {
		return nil, err
	}
	lb, err := listenLoopback(c.config.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer lb.close()

	ar, err := newAuthRequest(lb.URL(), r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	authURL, err := c.authCodeURL(ctx, ar)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.interactionTimeout)
	defer cancel()
	c.logger.Debug("waiting for authorization response", "redirect_uri", ar.redirectURI)
	q, err := lb.wait(waitCtx, func() error { return c.opener.Open(waitCtx, authURL) }, loginResponsePage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t, err := c.exchange(ctx, ar, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// AcquireTokenRedirect implements msauth.Session.AcquireTokenRedirect. It
// stores the request as pending, opens the authorization URL and returns
// ErrRedirectStarted. The flow is completed by HandleRedirect, typically in
// another session, with the URL the provider redirected to.
func (c *PublicClient) AcquireTokenRedirect(ctx context.Context, r *msauth.InteractiveRequest) (*msauth.TokenResult, error) {
	const op = "oidc.(PublicClient).AcquireTokenRedirect"
	if err := validateInteractiveRequest(op, r); err != nil {
		return nil, err
	}
	ar, err := newAuthRequest(c.config.RedirectURI, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	authURL, err := c.authCodeURL(ctx, ar)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p := &cache.Pending{
		State:        ar.state,
		Nonce:        ar.nonce,
		CodeVerifier: ar.verifier,
		RedirectURI:  ar.redirectURI,
		Scopes:       ar.scopes,
		ExpiresAt:    c.now().Add(c.interactionTimeout),
	}
	if err := c.cache.PutPending(ctx, c.partition, p); err != nil {
		return nil, fmt.Errorf("%s: unable to store pending request: %w", op, err)
	}
	if err := c.opener.Open(ctx, authURL); err != nil {
		if _, takeErr := c.cache.TakePending(ctx, c.partition, ar.state); takeErr != nil {
			c.logger.Warn("unable to remove pending request", "error", takeErr)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrOpenBrowser, err)
	}
	return nil, fmt.Errorf("%s: %w", op, ErrRedirectStarted)
}

// HandleRedirect completes a flow started by AcquireTokenRedirect.
// responseURL is the URL the provider redirected to; its query (or
// fragment) carries the authorization response. A pending request can be
// completed only once.
func (c *PublicClient) HandleRedirect(ctx context.Context, responseURL string) (*msauth.TokenResult, error) {
	const op = "oidc.(PublicClient).HandleRedirect"
	u, err := url.Parse(responseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse response url: %w", op, ErrInvalidParameter)
	}
	q := u.Query()
	if q.Get("state") == "" && u.Fragment != "" {
		if q, err = url.ParseQuery(u.Fragment); err != nil {
			return nil, fmt.Errorf("%s: unable to parse response fragment: %w", op, ErrInvalidParameter)
		}
	}
	state := q.Get("state")
	if state == "" {
		return nil, fmt.Errorf("%s: response has no state: %w", op, ErrInvalidParameter)
	}
	p, err := c.cache.TakePending(ctx, c.partition, state)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, ErrStateNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: unable to read pending request: %w", op, err)
	}
	if !p.ExpiresAt.IsZero() && !c.now().Before(p.ExpiresAt) {
		return nil, fmt.Errorf("%s: %w", op, ErrExpiredState)
	}
	ar := &authRequest{
		state:       p.State,
		nonce:       p.Nonce,
		verifier:    p.CodeVerifier,
		redirectURI: p.RedirectURI,
		scopes:      p.Scopes,
	}
	t, err := c.exchange(ctx, ar, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// exchange checks an authorization response, redeems its code, verifies
// the id_token and caches the result.
func (c *PublicClient) exchange(ctx context.Context, ar *authRequest, q url.Values) (*msauth.TokenResult, error) {
	const op = "oidc.(PublicClient).exchange"
	if code := q.Get("error"); code != "" {
		return nil, fmt.Errorf("%s: %w", op, &AuthError{
			Code:        code,
			Description: q.Get("error_description"),
			URI:         q.Get("error_uri"),
		})
	}
	if q.Get("state") != ar.state {
		return nil, fmt.Errorf("%s: %w", op, ErrResponseStateInvalid)
	}
	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%s: response has no code: %w", op, ErrInvalidParameter)
	}

	oc, err := c.oauth2Config(ctx, ar.redirectURI, ar.scopes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t, err := oc.Exchange(c.httpCtx(ctx), code, oauth2.VerifierOption(ar.verifier))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to redeem authorization code: %w", op, err)
	}
	claims, err := c.verifyIDToken(ctx, rawIDToken(t), ar.nonce)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e := c.newEntry(t, claims, ar.scopes)
	if err := c.cache.Put(ctx, c.partition, e); err != nil {
		return nil, fmt.Errorf("%s: unable to cache token: %w", op, err)
	}
	c.logger.Debug("acquired token", "home_account_id", e.HomeAccountID, "expires_on", e.ExpiresOn)
	return newTokenResult(e), nil
}
