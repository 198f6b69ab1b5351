// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package cache provides token caches for msauth sessions. Entries are
// partitioned per client and authority (see Partition) and keyed by the
// account's home account id.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when an entry or pending request doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter is an invalid parameter error
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Entry is a cached account and its tokens.
type Entry struct {
	HomeAccountID  string    `json:"home_account_id"`
	Environment    string    `json:"environment"`
	TenantID       string    `json:"tenant_id,omitempty"`
	Username       string    `json:"username,omitempty"`
	Name           string    `json:"name,omitempty"`
	LocalAccountID string    `json:"local_account_id,omitempty"`
	AccessToken    string    `json:"access_token"`
	IDToken        string    `json:"id_token,omitempty"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	Scopes         []string  `json:"scopes,omitempty"`
	ExpiresOn      time.Time `json:"expires_on"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Pending is an interactive request which was started in one session and
// will be completed in another (the redirect flow).
type Pending struct {
	State        string    `json:"state"`
	Nonce        string    `json:"nonce"`
	CodeVerifier string    `json:"code_verifier"`
	RedirectURI  string    `json:"redirect_uri"`
	Scopes       []string  `json:"scopes"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Cache stores entries and pending requests. Implementations must be
// concurrently safe.
type Cache interface {
	// List returns the entries of a partition ordered by home account id.
	List(ctx context.Context, partition string) ([]*Entry, error)

	// Get returns ErrNotFound when the entry doesn't exist.
	Get(ctx context.Context, partition, homeAccountID string) (*Entry, error)

	// Put creates or replaces an entry.
	Put(ctx context.Context, partition string, e *Entry) error

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, partition, homeAccountID string) error

	// PutPending stores a pending request keyed by its state.
	PutPending(ctx context.Context, partition string, p *Pending) error

	// TakePending returns and removes a pending request. It returns
	// ErrNotFound when there's no request for the state.
	TakePending(ctx context.Context, partition, state string) (*Pending, error)
}

// Partition returns the partition key for a client and authority.
func Partition(clientID, authority string) string {
	return clientID + "|" + authority
}

func validateEntry(op string, partition string, e *Entry) error {
	switch {
	case partition == "":
		return fmt.Errorf("%s: missing partition: %w", op, ErrInvalidParameter)
	case e == nil:
		return fmt.Errorf("%s: missing entry: %w", op, ErrInvalidParameter)
	case e.HomeAccountID == "":
		return fmt.Errorf("%s: missing home account id: %w", op, ErrInvalidParameter)
	}
	return nil
}

func validatePending(op string, partition string, p *Pending) error {
	switch {
	case partition == "":
		return fmt.Errorf("%s: missing partition: %w", op, ErrInvalidParameter)
	case p == nil:
		return fmt.Errorf("%s: missing pending request: %w", op, ErrInvalidParameter)
	case p.State == "":
		return fmt.Errorf("%s: missing state: %w", op, ErrInvalidParameter)
	}
	return nil
}
