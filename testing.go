// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package msauth

import (
	"context"
	"sync"
)

// TestSession is an in-memory Session which records the calls made to it.
// It's intended for tests of code built on the Adapter. It is concurrently
// safe.
type TestSession struct {
	mu sync.Mutex

	// Config is the configuration the session was created with (see
	// TestSessionFactory)
	Config *SessionConfig

	accounts    []Account
	accountsErr error

	silentToken *TokenResult
	silentErr   error

	popupToken *TokenResult
	popupErr   error

	redirectToken *TokenResult
	redirectErr   error

	logoutErr error

	silentRequests      []*SilentRequest
	popupRequests       []*InteractiveRequest
	redirectRequests    []*InteractiveRequest
	logoutCalls         int
	doneCalls           int
	accountsCalls       int
	interactiveSequence []InteractionMethod
}

// NewTestSession creates a TestSession. With no accounts and no configured
// silent token, AcquireTokenSilent fails with ErrInteractionRequired.
func NewTestSession() *TestSession {
	return &TestSession{}
}

// SetAccounts sets the accounts returned by Accounts
func (s *TestSession) SetAccounts(accounts ...Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
}

// SetAccountsError makes Accounts fail
func (s *TestSession) SetAccountsError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountsErr = err
}

// SetSilentResult sets the outcome of AcquireTokenSilent
func (s *TestSession) SetSilentResult(t *TokenResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silentToken, s.silentErr = t, err
}

// SetPopupResult sets the outcome of AcquireTokenPopup
func (s *TestSession) SetPopupResult(t *TokenResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popupToken, s.popupErr = t, err
}

// SetRedirectResult sets the outcome of AcquireTokenRedirect
func (s *TestSession) SetRedirectResult(t *TokenResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirectToken, s.redirectErr = t, err
}

// SetLogoutError sets the outcome of LogoutPopup
func (s *TestSession) SetLogoutError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutErr = err
}

// Accounts implements Session.Accounts
func (s *TestSession) Accounts(_ context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountsCalls++
	if s.accountsErr != nil {
		return nil, s.accountsErr
	}
	accounts := make([]Account, len(s.accounts))
	copy(accounts, s.accounts)
	return accounts, nil
}

// AcquireTokenSilent implements Session.AcquireTokenSilent. Requests
// without an account fail with ErrInteractionRequired.
func (s *TestSession) AcquireTokenSilent(_ context.Context, r *SilentRequest) (*TokenResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silentRequests = append(s.silentRequests, r)
	switch {
	case s.silentErr != nil:
		return nil, s.silentErr
	case r == nil || r.Account == nil || s.silentToken == nil:
		return nil, ErrInteractionRequired
	}
	return s.silentToken, nil
}

// AcquireTokenPopup implements Session.AcquireTokenPopup
func (s *TestSession) AcquireTokenPopup(_ context.Context, r *InteractiveRequest) (*TokenResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.popupRequests = append(s.popupRequests, r)
	s.interactiveSequence = append(s.interactiveSequence, Popup)
	return s.popupToken, s.popupErr
}

// AcquireTokenRedirect implements Session.AcquireTokenRedirect
func (s *TestSession) AcquireTokenRedirect(_ context.Context, r *InteractiveRequest) (*TokenResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirectRequests = append(s.redirectRequests, r)
	s.interactiveSequence = append(s.interactiveSequence, Redirect)
	return s.redirectToken, s.redirectErr
}

// LogoutPopup implements Session.LogoutPopup
func (s *TestSession) LogoutPopup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls++
	return s.logoutErr
}

// Done implements Session.Done
func (s *TestSession) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneCalls++
}

// SilentRequests returns the silent requests received so far
func (s *TestSession) SilentRequests() []*SilentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*SilentRequest(nil), s.silentRequests...)
}

// PopupRequests returns the popup requests received so far
func (s *TestSession) PopupRequests() []*InteractiveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*InteractiveRequest(nil), s.popupRequests...)
}

// RedirectRequests returns the redirect requests received so far
func (s *TestSession) RedirectRequests() []*InteractiveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*InteractiveRequest(nil), s.redirectRequests...)
}

// InteractiveCalls returns the interaction method of every interactive call,
// in order.
func (s *TestSession) InteractiveCalls() []InteractionMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]InteractionMethod(nil), s.interactiveSequence...)
}

// LogoutCalls returns the number of LogoutPopup calls
func (s *TestSession) LogoutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutCalls
}

// DoneCalls returns the number of Done calls
func (s *TestSession) DoneCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneCalls
}

// TestSessionFactory returns a SessionFactory which hands out s for every
// session, recording the config it was created with. A nil s gets a new
// TestSession per call.
func TestSessionFactory(s *TestSession) SessionFactory {
	return SessionFactoryFunc(func(_ context.Context, c *SessionConfig) (Session, error) {
		if s == nil {
			return &TestSession{Config: c}, nil
		}
		s.mu.Lock()
		s.Config = c
		s.mu.Unlock()
		return s, nil
	})
}
