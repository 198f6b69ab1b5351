// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/hashicorp/msauth"
	"github.com/hashicorp/msauth/cache"
	"golang.org/x/oauth2"
)

// AcquireTokenSilent implements msauth.Session.AcquireTokenSilent. It
// returns the cached access token of the request's account when it covers
// the requested scopes and isn't about to expire, otherwise it redeems the
// account's refresh token.
//
// Failures which need the user are matched by msauth.ErrInteractionRequired.
func (c *PublicClient) AcquireTokenSilent(ctx context.Context, r *msauth.SilentRequest) (*msauth.TokenResult, error) {
	const op = "oidc.(PublicClient).AcquireTokenSilent"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.Account == nil || r.Account.HomeAccountID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoAccount)
	}
	e, err := c.cache.Get(ctx, c.partition, r.Account.HomeAccountID)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return nil, fmt.Errorf("%s: account %s isn't cached: %w", op, r.Account.HomeAccountID, ErrNoAccount)
	case err != nil:
		return nil, fmt.Errorf("%s: unable to read cached account: %w", op, err)
	}

	if !strutil.StrListSubset(e.Scopes, resourceScopes(r.Scopes)) {
		c.logger.Debug("cached token doesn't cover the requested scopes", "cached", e.Scopes, "requested", r.Scopes)
		return c.refresh(ctx, e, r.Scopes)
	}
	if e.AccessToken != "" && !c.expired(e.ExpiresOn) {
		return newTokenResult(e), nil
	}
	return c.refresh(ctx, e, r.Scopes)
}

// refresh redeems the entry's refresh token for the scopes and updates the
// cache.
func (c *PublicClient) refresh(ctx context.Context, e *cache.Entry, scopes []string) (*msauth.TokenResult, error) {
	const op = "oidc.(PublicClient).refresh"
	if e.RefreshToken == "" {
		return nil, fmt.Errorf("%s: no refresh token for account %s: %w", op, e.HomeAccountID, msauth.ErrInteractionRequired)
	}
	oc, err := c.oauth2Config(ctx, c.config.RedirectURI, scopes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ts := oc.TokenSource(c.httpCtx(ctx), &oauth2.Token{RefreshToken: e.RefreshToken})
	t, err := ts.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && isInteractionRequiredCode(re.ErrorCode) {
			return nil, fmt.Errorf("%s: %w: %w", op, msauth.ErrInteractionRequired, err)
		}
		return nil, fmt.Errorf("%s: unable to refresh token: %w", op, err)
	}

	updated := *e
	updated.AccessToken = t.AccessToken
	updated.ExpiresOn = t.Expiry
	updated.Scopes = grantedScopes(t, scopes)
	updated.UpdatedAt = c.now()
	if t.RefreshToken != "" {
		updated.RefreshToken = t.RefreshToken
	}
	if raw := rawIDToken(t); raw != "" {
		claims, err := c.verifyIDToken(ctx, raw, "")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if claims.homeAccountID() != e.HomeAccountID {
			return nil, fmt.Errorf("%s: refreshed id_token is for a different account: %w", op, msauth.ErrInteractionRequired)
		}
		updated.IDToken = raw
		updated.Username = claims.username()
		updated.Name = claims.Name
	}
	if err := c.cache.Put(ctx, c.partition, &updated); err != nil {
		return nil, fmt.Errorf("%s: unable to cache refreshed token: %w", op, err)
	}
	c.logger.Debug("refreshed access token", "home_account_id", updated.HomeAccountID, "expires_on", updated.ExpiresOn)
	return newTokenResult(&updated), nil
}
