// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// idTokenClaims are the id_token claims recorded on cached accounts. See:
// https://learn.microsoft.com/en-us/entra/identity-platform/id-token-claims-reference
type idTokenClaims struct {
	Subject           string `json:"sub"`
	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
}

// homeAccountID is "<oid>.<tid>" when both are present, otherwise the
// subject.
func (c *idTokenClaims) homeAccountID() string {
	if c.ObjectID != "" && c.TenantID != "" {
		return c.ObjectID + "." + c.TenantID
	}
	return c.Subject
}

func (c *idTokenClaims) localAccountID() string {
	if c.ObjectID != "" {
		return c.ObjectID
	}
	return c.Subject
}

func (c *idTokenClaims) username() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Email
}

// verifyIDToken verifies the id_token's signature, audience, expiry and,
// for tenant specific authorities, issuer. A non-empty nonce must match
// the token's nonce.
func (c *PublicClient) verifyIDToken(ctx context.Context, raw, nonce string) (*idTokenClaims, error) {
	const op = "oidc.(PublicClient).verifyIDToken"
	if raw == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingIDToken)
	}
	provider, err := c.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	verifier := provider.Verifier(&oidc.Config{
		ClientID:        c.config.ClientID,
		SkipIssuerCheck: c.issuerTemplate != "",
		Now:             c.now,
	})
	t, err := verifier.Verify(c.httpCtx(ctx), raw)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to verify id_token: %w", op, err)
	}
	if nonce != "" && t.Nonce != nonce {
		return nil, fmt.Errorf("%s: id_token nonce doesn't match the request: %w", op, ErrInvalidNonce)
	}
	var claims idTokenClaims
	if err := t.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to read id_token claims: %w", op, err)
	}
	return &claims, nil
}
