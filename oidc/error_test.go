// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/msauth"
	"github.com/stretchr/testify/assert"
)

func TestAuthError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                    string
		err                     *AuthError
		wantMsg                 string
		wantUserCancelled       bool
		wantInteractionRequired bool
	}{
		{
			name:              "access-denied",
			err:               &AuthError{Code: "access_denied", Description: "the user declined"},
			wantMsg:           "authorization error: access_denied: the user declined",
			wantUserCancelled: true,
		},
		{
			name:                    "login-required",
			err:                     &AuthError{Code: "login_required"},
			wantMsg:                 "authorization error: login_required",
			wantInteractionRequired: true,
		},
		{
			name:    "server-error",
			err:     &AuthError{Code: "server_error"},
			wantMsg: "authorization error: server_error",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			err := fmt.Errorf("wrapped: %w", tt.err)
			assert.Equal(tt.wantMsg, tt.err.Error())
			assert.ErrorIs(err, ErrLoginFailed)
			assert.Equal(tt.wantUserCancelled, errors.Is(err, msauth.ErrUserCancelled))
			assert.Equal(tt.wantInteractionRequired, errors.Is(err, msauth.ErrInteractionRequired))
			var ae *AuthError
			assert.True(errors.As(err, &ae))
			assert.Equal(tt.err.Code, ae.Code)
		})
	}
}

func TestErrNoAccount(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, fmt.Errorf("op: %w", ErrNoAccount), msauth.ErrInteractionRequired)
}
