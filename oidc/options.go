// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/msauth/cache"
	"golang.org/x/text/language"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

const (
	// DefaultExpirySkew is subtracted from a cached access token's expiry
	// when deciding whether it can still be used.
	DefaultExpirySkew = 5 * time.Minute

	// DefaultInteractionTimeout bounds how long an interactive flow waits
	// for the user.
	DefaultInteractionTimeout = 2 * time.Minute
)

// configOptions is the set of available options for Config functions
type configOptions struct {
	withKnownAuthorities []string
	withDomainHint       string
	withProviderCA       string
}

func configDefaults() configOptions {
	return configOptions{}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// clientOptions is the set of available options for PublicClient and
// session factory functions
type clientOptions struct {
	withCache              cache.Cache
	withCachePath          string
	withOpener             Opener
	withLogger             hclog.Logger
	withUILocales          []language.Tag
	withExpirySkew         time.Duration
	withInteractionTimeout time.Duration
	withNow                func() time.Time
	withProviderCA         string
}

func clientDefaults() clientOptions {
	return clientOptions{
		withOpener:             BrowserOpener,
		withLogger:             hclog.NewNullLogger(),
		withExpirySkew:         DefaultExpirySkew,
		withInteractionTimeout: DefaultInteractionTimeout,
		withNow:                time.Now,
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithKnownAuthorities provides optional authority hosts (with or without a
// port) which are trusted in addition to the Microsoft identity platform
// hosts.
//
// Valid for: Config
func WithKnownAuthorities(hosts ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withKnownAuthorities = append(o.withKnownAuthorities, hosts...)
		}
	}
}

// WithDomainHint provides an optional domain_hint for interactive requests.
//
// Valid for: Config
func WithDomainHint(hint string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withDomainHint = hint
		}
	}
}

// WithProviderCA provides an optional pem-encoded CA cert to use when
// sending requests to the provider.
//
// Valid for: Config and NewSessionFactory
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withProviderCA = cert
		case *clientOptions:
			v.withProviderCA = cert
		}
	}
}

// WithCache provides an optional token cache. The default is an in-memory
// cache which lives as long as the client.
//
// Valid for: PublicClient and NewSessionFactory
func WithCache(c cache.Cache) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && c != nil {
			o.withCache = c
		}
	}
}

// WithCachePath provides an optional file for the local storage cache used
// by sessions configured with msauth.LocalStorage.
//
// Valid for: NewSessionFactory
func WithCachePath(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withCachePath = path
		}
	}
}

// WithOpener provides an optional Opener for interactive flows. The default
// is BrowserOpener.
//
// Valid for: PublicClient and NewSessionFactory
func WithOpener(op Opener) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && op != nil {
			o.withOpener = op
		}
	}
}

// WithLogger provides an optional logger.
//
// Valid for: PublicClient and NewSessionFactory
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithUILocales provides optional language tags which are sent as the
// ui_locales parameter of interactive requests. See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthRequest
//
// Valid for: PublicClient and NewSessionFactory
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withUILocales = append(o.withUILocales, locales...)
		}
	}
}

// WithExpirySkew provides an optional expiry skew for cached access tokens.
//
// Valid for: PublicClient and NewSessionFactory
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && d >= 0 {
			o.withExpirySkew = d
		}
	}
}

// WithInteractionTimeout provides an optional limit on how long
// interactive flows wait for the user. It also bounds how long a pending
// redirect request stays valid.
//
// Valid for: PublicClient and NewSessionFactory
func WithInteractionTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && d > 0 {
			o.withInteractionTimeout = d
		}
	}
}

// WithNow provides an optional func for determining what the current time
// is.
//
// Valid for: PublicClient and NewSessionFactory
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && now != nil {
			o.withNow = now
		}
	}
}
