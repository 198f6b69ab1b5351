// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)

	tests := []struct {
		name            string
		clientID        string
		authority       string
		redirectURI     string
		opt             []Option
		want            *Config
		wantErr         bool
		wantErrIs       error
		wantErrContains string
	}{
		{
			name:        "microsoft-common",
			clientID:    "client",
			authority:   "https://login.microsoftonline.com/common",
			redirectURI: "http://localhost/callback",
			want: &Config{
				ClientID:    "client",
				Authority:   "https://login.microsoftonline.com/common",
				RedirectURI: "http://localhost/callback",
			},
		},
		{
			name:        "known-authority-with-all-opts",
			clientID:    "client",
			authority:   tp.Addr(),
			redirectURI: "http://127.0.0.1/callback",
			opt: []Option{
				WithKnownAuthorities(tp.Host()),
				WithDomainHint("example.com"),
				WithProviderCA(tp.CACert()),
			},
			want: &Config{
				ClientID:         "client",
				Authority:        tp.Addr(),
				KnownAuthorities: []string{tp.Host()},
				DomainHint:       "example.com",
				RedirectURI:      "http://127.0.0.1/callback",
				ProviderCA:       tp.CACert(),
			},
		},
		{
			name:        "known-authority-hostname-only",
			clientID:    "client",
			authority:   "https://login.contoso.com/tenant",
			redirectURI: "https://app.contoso.com/",
			opt:         []Option{WithKnownAuthorities("LOGIN.contoso.com")},
			want: &Config{
				ClientID:         "client",
				Authority:        "https://login.contoso.com/tenant",
				KnownAuthorities: []string{"LOGIN.contoso.com"},
				RedirectURI:      "https://app.contoso.com/",
			},
		},
		{
			name:            "missing-client-id",
			authority:       "https://login.microsoftonline.com/common",
			redirectURI:     "http://localhost",
			wantErr:         true,
			wantErrIs:       ErrInvalidParameter,
			wantErrContains: "client id is empty",
		},
		{
			name:            "missing-authority",
			clientID:        "client",
			redirectURI:     "http://localhost",
			wantErr:         true,
			wantErrIs:       ErrInvalidParameter,
			wantErrContains: "authority is empty",
		},
		{
			name:            "untrusted-authority",
			clientID:        "client",
			authority:       "https://login.contoso.com/tenant",
			redirectURI:     "http://localhost",
			wantErr:         true,
			wantErrIs:       ErrUntrustedAuthority,
			wantErrContains: "login.contoso.com",
		},
		{
			name:            "http-authority",
			clientID:        "client",
			authority:       "http://login.microsoftonline.com/common",
			redirectURI:     "http://localhost",
			wantErr:         true,
			wantErrIs:       ErrInvalidParameter,
			wantErrContains: "scheme",
		},
		{
			name:            "authority-with-query",
			clientID:        "client",
			authority:       "https://login.microsoftonline.com/common?x=1",
			redirectURI:     "http://localhost",
			wantErr:         true,
			wantErrIs:       ErrInvalidParameter,
			wantErrContains: "query or fragment",
		},
		{
			name:            "missing-redirect",
			clientID:        "client",
			authority:       "https://login.microsoftonline.com/common",
			wantErr:         true,
			wantErrIs:       ErrInvalidRedirectURI,
			wantErrContains: "redirect uri is empty",
		},
		{
			name:            "relative-redirect",
			clientID:        "client",
			authority:       "https://login.microsoftonline.com/common",
			redirectURI:     "/callback",
			wantErr:         true,
			wantErrIs:       ErrInvalidRedirectURI,
			wantErrContains: "not absolute",
		},
		{
			name:        "bad-ca",
			clientID:    "client",
			authority:   "https://login.microsoftonline.com/common",
			redirectURI: "http://localhost",
			opt:         []Option{WithProviderCA("not a cert")},
			wantErr:     true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.clientID, tt.authority, tt.redirectURI, tt.opt...)
			if tt.wantErr {
				require.Error(err)
				if tt.wantErrIs != nil {
					assert.ErrorIs(err, tt.wantErrIs)
				}
				if tt.wantErrContains != "" {
					assert.Contains(err.Error(), tt.wantErrContains)
				}
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	var c *Config
	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilParameter)
}

func TestConfig_discovery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name              string
		authority         string
		known             []string
		wantIssuer        string
		wantReported      string
		wantEnvironment   string
		tenantIndependent bool
	}{
		{
			name:              "common",
			authority:         "https://login.microsoftonline.com/common",
			wantIssuer:        "https://login.microsoftonline.com/common/v2.0",
			wantReported:      "https://login.microsoftonline.com/{tenantid}/v2.0",
			wantEnvironment:   "login.microsoftonline.com",
			tenantIndependent: true,
		},
		{
			name:              "organizations-trailing-slash",
			authority:         "https://login.microsoftonline.com/organizations/",
			wantIssuer:        "https://login.microsoftonline.com/organizations/v2.0",
			wantReported:      "https://login.microsoftonline.com/{tenantid}/v2.0",
			wantEnvironment:   "login.microsoftonline.com",
			tenantIndependent: true,
		},
		{
			name:            "tenant",
			authority:       "https://login.microsoftonline.com/contoso.onmicrosoft.com",
			wantIssuer:      "https://login.microsoftonline.com/contoso.onmicrosoft.com/v2.0",
			wantEnvironment: "login.microsoftonline.com",
		},
		{
			name:            "tenant-v2",
			authority:       "https://login.microsoftonline.com/contoso.onmicrosoft.com/v2.0",
			wantIssuer:      "https://login.microsoftonline.com/contoso.onmicrosoft.com/v2.0",
			wantEnvironment: "login.microsoftonline.com",
		},
		{
			name:            "known-authority",
			authority:       "https://127.0.0.1:8443/",
			known:           []string{"127.0.0.1"},
			wantIssuer:      "https://127.0.0.1:8443",
			wantEnvironment: "127.0.0.1:8443",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			c := &Config{ClientID: "client", Authority: tt.authority, KnownAuthorities: tt.known, RedirectURI: "http://localhost"}
			require.NoError(c.Validate())
			issuer, reported, err := c.discovery()
			require.NoError(err)
			assert.Equal(tt.wantIssuer, issuer)
			assert.Equal(tt.wantReported, reported)
			assert.Equal(tt.wantEnvironment, c.environment())
			assert.Equal(tt.tenantIndependent, c.tenantIndependent())
		})
	}
}

func Test_isLoopback(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.True(isLoopback("localhost"))
	assert.True(isLoopback("LocalHost"))
	assert.True(isLoopback("127.0.0.1"))
	assert.True(isLoopback("::1"))
	assert.False(isLoopback("example.com"))
	assert.False(isLoopback("10.0.0.1"))
}
