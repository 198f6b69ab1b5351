// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"

	"github.com/pkg/browser"
)

// Opener shows a URL to the user, typically in a browser.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// OpenerFunc adapts a func to an Opener
type OpenerFunc func(ctx context.Context, url string) error

// Open implements Opener
func (f OpenerFunc) Open(ctx context.Context, url string) error {
	return f(ctx, url)
}

// BrowserOpener opens URLs in the system browser.
var BrowserOpener Opener = OpenerFunc(func(_ context.Context, url string) error {
	return browser.OpenURL(url)
})
