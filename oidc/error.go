// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/msauth"
)

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrNilParameter         = errors.New("nil parameter")
	ErrUntrustedAuthority   = errors.New("untrusted authority")
	ErrInvalidRedirectURI   = errors.New("invalid redirect uri")
	ErrInteractionTimeout   = errors.New("timed out waiting for user interaction")
	ErrRedirectStarted      = errors.New("redirect started")
	ErrStateNotFound        = errors.New("state not found")
	ErrExpiredState         = errors.New("state is expired")
	ErrResponseStateInvalid = errors.New("response state invalid")
	ErrMissingIDToken       = errors.New("id_token is missing")
	ErrInvalidNonce         = errors.New("invalid nonce")
	ErrLoginFailed          = errors.New("login failed")
	ErrOpenBrowser          = errors.New("unable to open browser")

	// ErrNoAccount is returned by silent requests without a cached account.
	// It matches msauth.ErrInteractionRequired.
	ErrNoAccount = fmt.Errorf("no account: %w", msauth.ErrInteractionRequired)
)

// interactionRequiredCodes are the oauth2/oidc error codes which mean the
// user has to get involved.
var interactionRequiredCodes = []string{
	"invalid_grant",
	"interaction_required",
	"login_required",
	"consent_required",
	"account_selection_required",
}

func isInteractionRequiredCode(code string) bool {
	for _, c := range interactionRequiredCodes {
		if c == code {
			return true
		}
	}
	return false
}

// AuthError is an error response from the provider's authorization
// endpoint. See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthError struct {
	Code        string
	Description string
	URI         string
}

// Error implements the error interface
func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString("authorization error: ")
	b.WriteString(e.Code)
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	return b.String()
}

// Is matches ErrLoginFailed for every AuthError, msauth.ErrUserCancelled for
// access_denied and msauth.ErrInteractionRequired for the interaction
// required family of codes.
func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrLoginFailed:
		return true
	case msauth.ErrUserCancelled:
		return e.Code == "access_denied"
	case msauth.ErrInteractionRequired:
		return isInteractionRequiredCode(e.Code)
	}
	return false
}
