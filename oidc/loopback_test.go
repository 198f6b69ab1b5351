// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_listenLoopback(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		redirectURI string
		wantHost    string
		wantPath    string
		wantErr     bool
	}{
		{name: "ipv4", redirectURI: "http://127.0.0.1/callback", wantHost: "127.0.0.1", wantPath: "/callback"},
		{name: "localhost", redirectURI: "http://localhost", wantHost: "localhost", wantPath: "/"},
		{name: "query-dropped", redirectURI: "http://127.0.0.1:0/cb?x=1#y", wantHost: "127.0.0.1", wantPath: "/cb"},
		{name: "https", redirectURI: "https://127.0.0.1/callback", wantErr: true},
		{name: "remote", redirectURI: "http://example.com/callback", wantErr: true},
		{name: "unparsable", redirectURI: "%zz", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			lb, err := listenLoopback(tt.redirectURI)
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, ErrInvalidRedirectURI)
				return
			}
			require.NoError(err)
			defer lb.close()
			u, err := url.Parse(lb.URL())
			require.NoError(err)
			assert.Equal(tt.wantHost, u.Hostname())
			assert.NotEqual("0", u.Port())
			assert.NotEmpty(u.Port())
			assert.Equal(tt.wantPath, u.Path)
			assert.Empty(u.RawQuery)
			assert.Empty(u.Fragment)
		})
	}
}

func Test_loopback_wait(t *testing.T) {
	t.Parallel()
	get := func(u string) (int, string, error) {
		resp, err := http.Get(u)
		if err != nil {
			return 0, "", err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body), err
	}

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		lb, err := listenLoopback("http://127.0.0.1/callback")
		require.NoError(err)
		var status int
		var body string
		q, err := lb.wait(context.Background(), func() error {
			var err error
			status, body, err = get(lb.URL() + "?code=abc&state=xyz")
			return err
		}, loginResponsePage)
		require.NoError(err)
		assert.Equal("abc", q.Get("code"))
		assert.Equal("xyz", q.Get("state"))
		assert.Equal(http.StatusOK, status)
		assert.Equal("Signed in", testPageTitle(t, body))
	})
	t.Run("error-page", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		lb, err := listenLoopback("http://127.0.0.1/callback")
		require.NoError(err)
		var status int
		var body string
		q, err := lb.wait(context.Background(), func() error {
			var err error
			status, body, err = get(lb.URL() + "?error=access_denied&error_description=" + url.QueryEscape("<script>"))
			return err
		}, loginResponsePage)
		require.NoError(err)
		assert.Equal("access_denied", q.Get("error"))
		assert.Equal(http.StatusBadRequest, status)
		assert.Equal("Sign in failed", testPageTitle(t, body))
		assert.NotContains(body, "<script>")
	})
	t.Run("open-fails", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		lb, err := listenLoopback("http://127.0.0.1/callback")
		require.NoError(err)
		_, err = lb.wait(context.Background(), func() error { return errors.New("boom") }, loginResponsePage)
		require.Error(err)
		assert.ErrorIs(err, ErrOpenBrowser)
	})
	t.Run("timeout", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		lb, err := listenLoopback("http://127.0.0.1/callback")
		require.NoError(err)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = lb.wait(ctx, func() error { return nil }, loginResponsePage)
		require.Error(err)
		assert.ErrorIs(err, ErrInteractionTimeout)
	})
	t.Run("closed-after-wait", func(t *testing.T) {
		require := require.New(t)
		lb, err := listenLoopback("http://127.0.0.1/callback")
		require.NoError(err)
		_, err = lb.wait(context.Background(), func() error {
			_, _, err := get(lb.URL())
			return err
		}, logoutResponsePage)
		require.NoError(err)
		_, _, err = get(lb.URL())
		require.Error(err)
	})
}
