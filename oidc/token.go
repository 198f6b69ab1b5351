// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"strings"

	"github.com/hashicorp/msauth/cache"
	"golang.org/x/oauth2"
)

// rawIDToken returns the id_token of a token response, if any.
func rawIDToken(t *oauth2.Token) string {
	raw, _ := t.Extra("id_token").(string)
	return raw
}

// grantedScopes returns the scopes of a token response. Providers may omit
// the scope parameter when it's identical to the request.
func grantedScopes(t *oauth2.Token, requested []string) []string {
	if s, ok := t.Extra("scope").(string); ok && strings.TrimSpace(s) != "" {
		return strings.Fields(s)
	}
	return requestScopes(requested)
}

// newEntry builds a cache entry from a token response and the claims of its
// id_token.
func (c *PublicClient) newEntry(t *oauth2.Token, claims *idTokenClaims, requested []string) *cache.Entry {
	return &cache.Entry{
		HomeAccountID:  claims.homeAccountID(),
		Environment:    c.config.environment(),
		TenantID:       claims.TenantID,
		Username:       claims.username(),
		Name:           claims.Name,
		LocalAccountID: claims.localAccountID(),
		AccessToken:    t.AccessToken,
		IDToken:        rawIDToken(t),
		RefreshToken:   t.RefreshToken,
		Scopes:         grantedScopes(t, requested),
		ExpiresOn:      t.Expiry,
		UpdatedAt:      c.now(),
	}
}
