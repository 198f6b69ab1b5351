// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package msauth

import "errors"

var (
	// ErrInvalidParameter is an invalid parameter error
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilParameter is a nil parameter error
	ErrNilParameter = errors.New("nil parameter")

	// ErrNothingToSignOut is returned by Adapter.Logout when the session
	// doesn't know about any account. Its message is surfaced to plugin
	// callers as is.
	ErrNothingToSignOut = errors.New("Nothing to sign out from.")

	// ErrInteractionRequired is returned by sessions when a token can't be
	// acquired without user interaction (no account, expired refresh token,
	// consent required, etc).
	ErrInteractionRequired = errors.New("interaction required")

	// ErrUserCancelled is returned by sessions when the user abandons an
	// interactive flow.
	ErrUserCancelled = errors.New("user cancelled")

	// ErrUnsupportedInteraction is returned for an unknown InteractionMethod
	ErrUnsupportedInteraction = errors.New("unsupported interaction method")
)
