// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
)

// ErrInvalidCertificatePem is returned when a CA PEM can't be parsed
var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// DefaultTimeout is the timeout used for requests to a provider
const DefaultTimeout = 30 * time.Second

// New creates a new http client which will use the optional CA certificate PEM
// if provided, otherwise it will use the installed system CA chain.
func New(caPEM string) (*http.Client, error) {
	const op = "httpclient.New"
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCertificatePem)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: tr,
		Timeout:   DefaultTimeout,
	}, nil
}

// Context returns a new Context that carries the provided HTTP client. It
// sets the same context key used by the github.com/coreos/go-oidc and
// golang.org/x/oauth2 packages, so the returned context works for both.
func Context(ctx context.Context, client *http.Client) context.Context {
	return oidc.ClientContext(ctx, client)
}
