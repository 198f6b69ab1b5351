// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/hashicorp/msauth/internal/id"
	"github.com/stretchr/testify/require"
)

// TestProvider is a local OIDC provider for public clients. It supports
// discovery, the authorization code flow with PKCE, refresh tokens and
// RP initiated logout, which makes testing sessions without a real
// identity platform possible.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	signingKey *ecdsa.PrivateKey
	keyID      string
	jwks       *jose.JSONWebKeySet

	mu                  sync.Mutex
	clientID            string
	allowedRedirectURIs []string
	replyClaims         map[string]interface{}
	accessTokenExpiry   time.Duration
	idTokenExpiry       time.Duration
	authError           *AuthError
	refreshErrorCode    string
	omitIDToken         bool
	omitRefreshToken    bool
	disableEndSession   bool
	nonceOverride       string

	codes         map[string]testAuthCode
	refreshTokens map[string]string

	authorizeRequests  []url.Values
	tokenRequests      map[string]int
	endSessionRequests []url.Values
}

// testAuthCode is an issued, not yet redeemed, authorization code
type testAuthCode struct {
	nonce         string
	codeChallenge string
	redirectURI   string
	scope         string
}

const (
	// TestClientID is the client id the TestProvider accepts by default
	TestClientID = "test-client-id"

	// TestSubject is the subject of the tokens the TestProvider issues by
	// default
	TestSubject = "alice-subject"
)

// StartTestProvider creates a disposable TestProvider. The provider is
// stopped by the test's cleanup.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	kid, err := id.New("key")
	require.NoError(err)

	p := &TestProvider{
		signingKey: key,
		keyID:      kid,
		jwks: &jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{
				{
					Key:       &key.PublicKey,
					KeyID:     kid,
					Algorithm: string(jose.ES256),
					Use:       "sig",
				},
			},
		},
		clientID:            TestClientID,
		allowedRedirectURIs: []string{"http://127.0.0.1/callback", "http://localhost/callback"},
		replyClaims: map[string]interface{}{
			"sub":                TestSubject,
			"oid":                "00000000-0000-0000-0000-00000000a11c",
			"tid":                "00000000-0000-0000-0000-0000000000t1",
			"preferred_username": "alice@example.com",
			"name":               "Alice",
		},
		accessTokenExpiry: time.Hour,
		idTokenExpiry:     time.Hour,
		codes:             map[string]testAuthCode{},
		refreshTokens:     map[string]string{},
		tokenRequests:     map[string]int{},
	}

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the provider's base URL, which is also its issuer.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// Host returns the host (and port) of the provider, suitable for
// WithKnownAuthorities.
func (p *TestProvider) Host() string {
	return strings.TrimPrefix(p.Addr(), "https://")
}

// CACert returns the pem-encoded CA certificate used by the provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a client which trusts the provider.
func (p *TestProvider) HTTPClient() *http.Client {
	return p.httpServer.Client()
}

// SetClientID sets the client id the provider accepts.
func (p *TestProvider) SetClientID(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
}

// SetAllowedRedirectURIs sets the registered redirect uris. Loopback uris
// match any port.
func (p *TestProvider) SetAllowedRedirectURIs(uris ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetReplyClaims merges claims into the claims of issued id_tokens.
func (p *TestProvider) SetReplyClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range claims {
		p.replyClaims[k] = v
	}
}

// SetAccessTokenExpiry sets the lifetime of issued access tokens.
func (p *TestProvider) SetAccessTokenExpiry(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessTokenExpiry = d
}

// SetAuthError makes the authorization endpoint respond with an error.
// A nil error restores normal responses.
func (p *TestProvider) SetAuthError(e *AuthError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authError = e
}

// SetRefreshErrorCode makes refresh token grants fail with the oauth2
// error code. An empty code restores normal responses.
func (p *TestProvider) SetRefreshErrorCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshErrorCode = code
}

// SetNonceOverride makes issued id_tokens carry nonce instead of the
// requested one.
func (p *TestProvider) SetNonceOverride(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonceOverride = nonce
}

// OmitIDTokens forces an error state where the token endpoint doesn't
// return an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// OmitRefreshTokens stops the token endpoint from issuing refresh tokens.
func (p *TestProvider) OmitRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitRefreshToken = true
}

// DisableEndSession omits the end session endpoint from discovery.
func (p *TestProvider) DisableEndSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableEndSession = true
}

// AuthorizeRequests returns the query of every authorization request.
func (p *TestProvider) AuthorizeRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.authorizeRequests...)
}

// TokenRequests returns the number of token requests for a grant type.
func (p *TestProvider) TokenRequests(grantType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests[grantType]
}

// EndSessionRequests returns the query of every end session request.
func (p *TestProvider) EndSessionRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.endSessionRequests...)
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, redirectURI string, e *AuthError) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	q := u.Query()
	q.Set("state", req.URL.Query().Get("state"))
	q.Set("error", e.Code)
	if e.Description != "" {
		q.Set("error_description", e.Description)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	_ = p.writeJSON(w, &body)
}

// redirectAllowed matches registered uris exactly, except that loopback
// uris match any port.
func (p *TestProvider) redirectAllowed(redirectURI string) bool {
	if strutil.StrListContains(p.allowedRedirectURIs, redirectURI) {
		return true
	}
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme != "http" || !isLoopback(u.Hostname()) {
		return false
	}
	for _, allowed := range p.allowedRedirectURIs {
		a, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if a.Scheme == u.Scheme && a.Hostname() == u.Hostname() && a.Path == u.Path {
			return true
		}
	}
	return false
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer             string   `json:"issuer"`
			AuthEndpoint       string   `json:"authorization_endpoint"`
			TokenEndpoint      string   `json:"token_endpoint"`
			JWKSURI            string   `json:"jwks_uri"`
			EndSessionEndpoint string   `json:"end_session_endpoint,omitempty"`
			ResponseTypes      []string `json:"response_types_supported"`
			SigningAlgs        []string `json:"id_token_signing_alg_values_supported"`
			ChallengeMethods   []string `json:"code_challenge_methods_supported"`
		}{
			Issuer:             p.Addr(),
			AuthEndpoint:       p.Addr() + "/authorize",
			TokenEndpoint:      p.Addr() + "/token",
			JWKSURI:            p.Addr() + "/certs",
			EndSessionEndpoint: p.Addr() + "/logout",
			ResponseTypes:      []string{"code"},
			SigningAlgs:        []string{string(jose.ES256)},
			ChallengeMethods:   []string{"S256"},
		}
		if p.disableEndSession {
			reply.EndSessionEndpoint = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		p.authorizeRequests = append(p.authorizeRequests, qv)

		redirectURI := qv.Get("redirect_uri")
		if !p.redirectAllowed(redirectURI) {
			// never redirect to an unregistered uri
			w.WriteHeader(http.StatusBadRequest)
			_ = p.writeJSON(w, map[string]string{"error": "invalid_request", "error_description": "redirect_uri is not allowed"})
			return
		}
		switch {
		case qv.Get("client_id") != p.clientID:
			p.writeAuthErrorResponse(w, req, redirectURI, &AuthError{Code: "unauthorized_client"})
			return
		case qv.Get("response_type") != "code":
			p.writeAuthErrorResponse(w, req, redirectURI, &AuthError{Code: "unsupported_response_type"})
			return
		case !strutil.StrListContains(strings.Fields(qv.Get("scope")), "openid"):
			p.writeAuthErrorResponse(w, req, redirectURI, &AuthError{Code: "invalid_scope"})
			return
		case qv.Get("state") == "":
			p.writeAuthErrorResponse(w, req, redirectURI, &AuthError{Code: "invalid_request", Description: "missing state parameter"})
			return
		case qv.Get("code_challenge") == "" || qv.Get("code_challenge_method") != "S256":
			p.writeAuthErrorResponse(w, req, redirectURI, &AuthError{Code: "invalid_request", Description: "pkce is required"})
			return
		case p.authError != nil:
			p.writeAuthErrorResponse(w, req, redirectURI, p.authError)
			return
		}

		code, err := id.New("code")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		p.codes[code] = testAuthCode{
			nonce:         qv.Get("nonce"),
			codeChallenge: qv.Get("code_challenge"),
			redirectURI:   redirectURI,
			scope:         qv.Get("scope"),
		}
		u, _ := url.Parse(redirectURI)
		q := u.Query()
		q.Set("state", qv.Get("state"))
		q.Set("code", code)
		u.RawQuery = q.Encode()
		http.Redirect(w, req, u.String(), http.StatusFound)

	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		grantType := req.FormValue("grant_type")
		p.tokenRequests[grantType]++
		if req.FormValue("client_id") != p.clientID {
			p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "unknown client")
			return
		}
		switch grantType {
		case "authorization_code":
			code, ok := p.codes[req.FormValue("code")]
			delete(p.codes, req.FormValue("code"))
			switch {
			case !ok:
				p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unknown auth code")
				return
			case req.FormValue("redirect_uri") != code.redirectURI:
				p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "redirect_uri doesn't match the authorization request")
				return
			case s256(req.FormValue("code_verifier")) != code.codeChallenge:
				p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "code_verifier doesn't match the code challenge")
				return
			}
			p.writeTokenResponse(w, code.nonce, code.scope)

		case "refresh_token":
			subject, ok := p.refreshTokens[req.FormValue("refresh_token")]
			switch {
			case p.refreshErrorCode != "":
				p.writeTokenErrorResponse(w, http.StatusBadRequest, p.refreshErrorCode, "refresh failed")
				return
			case !ok || subject != p.replyClaims["sub"]:
				p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unknown refresh token")
				return
			}
			delete(p.refreshTokens, req.FormValue("refresh_token"))
			p.writeTokenResponse(w, "", req.FormValue("scope"))

		default:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
		}

	case "/logout":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		p.endSessionRequests = append(p.endSessionRequests, qv)
		postLogout := qv.Get("post_logout_redirect_uri")
		if postLogout == "" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if !p.redirectAllowed(postLogout) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		http.Redirect(w, req, postLogout, http.StatusFound)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// writeTokenResponse issues tokens for the reply claims. Callers must hold
// p.mu.
func (p *TestProvider) writeTokenResponse(w http.ResponseWriter, nonce, scope string) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": p.Addr(),
		"aud": p.clientID,
		"iat": now.Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
		"exp": now.Add(p.idTokenExpiry).Unix(),
	}
	for k, v := range p.replyClaims {
		claims[k] = v
	}
	if p.nonceOverride != "" {
		nonce = p.nonceOverride
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = p.keyID
	idToken, err := token.SignedString(p.signingKey)
	if err != nil {
		p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	accessToken, err := id.New("at")
	if err != nil {
		p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	reply := struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope,omitempty"`
		RefreshToken string `json:"refresh_token,omitempty"`
		IDToken      string `json:"id_token,omitempty"`
	}{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(p.accessTokenExpiry / time.Second),
		Scope:       scope,
		IDToken:     idToken,
	}
	if p.omitIDToken {
		reply.IDToken = ""
	}
	if !p.omitRefreshToken {
		rt, err := id.New("rt")
		if err != nil {
			p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		subject, _ := p.replyClaims["sub"].(string)
		p.refreshTokens[rt] = subject
		reply.RefreshToken = rt
	}
	_ = p.writeJSON(w, &reply)
}

// s256 is the S256 PKCE code challenge of a verifier
func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
