// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
)

// TestBrowser is an Opener which stands in for the user's browser. By
// default it follows the provider's redirects, including the one back to
// the client's loopback redirect uri, without any user interaction.
type TestBrowser struct {
	client *http.Client
	follow bool

	mu       sync.Mutex
	opened   []string
	lastURL  string
	lastBody string
	err      error
}

var _ Opener = (*TestBrowser)(nil)

// NewTestBrowser creates a TestBrowser which trusts the provider.
func NewTestBrowser(t *testing.T, p *TestProvider) *TestBrowser {
	t.Helper()
	client := p.HTTPClient()
	return &TestBrowser{
		client: &http.Client{Transport: client.Transport},
		follow: true,
	}
}

// DontFollow makes the browser only record the URLs it's asked to open.
func (b *TestBrowser) DontFollow() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.follow = false
}

// SetError makes Open fail with err
func (b *TestBrowser) SetError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Open implements Opener. The response of the final page is recorded (see
// LastPage).
func (b *TestBrowser) Open(ctx context.Context, url string) error {
	const op = "oidc.(TestBrowser).Open"
	b.mu.Lock()
	b.opened = append(b.opened, url)
	follow, err := b.follow, b.err
	b.mu.Unlock()
	if err != nil {
		return err
	}
	if !follow {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastURL = resp.Request.URL.String()
	b.lastBody = string(body)
	return nil
}

// Opened returns the URLs the browser was asked to open
func (b *TestBrowser) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

// LastPage returns the URL and body of the last page the browser landed on
func (b *TestBrowser) LastPage() (url string, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastURL, b.lastBody
}
