// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/msauth"
	"github.com/hashicorp/msauth/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionFactory(t *testing.T) {
	t.Parallel()
	scopes := []string{"User.Read"}

	sessionConfig := func(tp *TestProvider, location msauth.CacheLocation) *msauth.SessionConfig {
		return &msauth.SessionConfig{
			ClientID:         TestClientID,
			Authority:        tp.Addr(),
			KnownAuthorities: []string{tp.Host()},
			DomainHint:       "example.com",
			RedirectURI:      testRedirectURI,
			CacheLocation:    location,
		}
	}

	t.Run("local-storage-is-shared", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ctx := context.Background()
		tp := StartTestProvider(t)
		f := NewSessionFactory(
			WithProviderCA(tp.CACert()),
			WithOpener(NewTestBrowser(t, tp)),
			WithCachePath(filepath.Join(t.TempDir(), "cache.db")),
			WithInteractionTimeout(5*time.Second),
		)

		s, err := f.NewSession(ctx, sessionConfig(tp, msauth.LocalStorage))
		require.NoError(err)
		pc, ok := s.(*PublicClient)
		require.True(ok)
		assert.Equal("example.com", pc.Config().DomainHint)
		assert.Equal([]string{tp.Host()}, pc.Config().KnownAuthorities)
		_, err = s.AcquireTokenPopup(ctx, &msauth.InteractiveRequest{Scopes: scopes})
		require.NoError(err)
		s.Done()

		next, err := f.NewSession(ctx, sessionConfig(tp, msauth.LocalStorage))
		require.NoError(err)
		defer next.Done()
		accounts, err := next.Accounts(ctx)
		require.NoError(err)
		require.Len(accounts, 1)
		_, err = next.AcquireTokenSilent(ctx, &msauth.SilentRequest{Scopes: scopes, Account: &accounts[0]})
		require.NoError(err)
	})
	t.Run("memory-storage-is-per-session", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ctx := context.Background()
		tp := StartTestProvider(t)
		f := NewSessionFactory(WithProviderCA(tp.CACert()), WithOpener(NewTestBrowser(t, tp)))

		s, err := f.NewSession(ctx, sessionConfig(tp, msauth.MemoryStorage))
		require.NoError(err)
		_, err = s.AcquireTokenPopup(ctx, &msauth.InteractiveRequest{Scopes: scopes})
		require.NoError(err)
		s.Done()

		next, err := f.NewSession(ctx, sessionConfig(tp, msauth.MemoryStorage))
		require.NoError(err)
		defer next.Done()
		accounts, err := next.Accounts(ctx)
		require.NoError(err)
		assert.Empty(accounts)
	})
	t.Run("with-cache", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ctx := context.Background()
		tp := StartTestProvider(t)
		shared := cache.NewMemory()
		f := NewSessionFactory(WithProviderCA(tp.CACert()), WithOpener(NewTestBrowser(t, tp)), WithCache(shared))
		s, err := f.NewSession(ctx, sessionConfig(tp, msauth.MemoryStorage))
		require.NoError(err)
		defer s.Done()
		_, err = s.AcquireTokenPopup(ctx, &msauth.InteractiveRequest{Scopes: scopes})
		require.NoError(err)
		entries, err := shared.List(ctx, cache.Partition(TestClientID, tp.Addr()))
		require.NoError(err)
		assert.Len(entries, 1)
	})
	t.Run("invalid", func(t *testing.T) {
		tp := StartTestProvider(t)
		f := NewSessionFactory(WithProviderCA(tp.CACert()))
		tests := []struct {
			name      string
			config    *msauth.SessionConfig
			wantErrIs error
		}{
			{name: "nil", wantErrIs: msauth.ErrNilParameter},
			{name: "empty", config: &msauth.SessionConfig{}, wantErrIs: msauth.ErrInvalidParameter},
			{
				name: "untrusted",
				config: &msauth.SessionConfig{
					ClientID:      TestClientID,
					Authority:     tp.Addr(),
					RedirectURI:   testRedirectURI,
					CacheLocation: msauth.MemoryStorage,
				},
				wantErrIs: ErrUntrustedAuthority,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s, err := f.NewSession(context.Background(), tt.config)
				require.Error(t, err)
				assert.Nil(t, s)
				assert.ErrorIs(t, err, tt.wantErrIs)
			})
		}
	})
}
