// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package msauth

import "github.com/hashicorp/go-hclog"

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

// DefaultCurrentURL is used as the current URL when the adapter isn't
// given a WithCurrentURL option.
const DefaultCurrentURL = "http://localhost"

// adapterOptions is the set of available options for an Adapter
type adapterOptions struct {
	withLogger                 hclog.Logger
	withCurrentURL             func() string
	withHonorInteractionMethod bool
}

func adapterDefaults() adapterOptions {
	return adapterOptions{
		withLogger:     hclog.NewNullLogger(),
		withCurrentURL: func() string { return DefaultCurrentURL },
	}
}

// getAdapterOpts gets the adapter defaults and applies the opt overrides
// passed in.
func getAdapterOpts(opt ...Option) adapterOptions {
	opts := adapterDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*adapterOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithCurrentURL provides the accessor for the URL of the page (or app) that
// started the flow. It's used to derive a redirect URI when the caller
// doesn't supply one.
func WithCurrentURL(fn func() string) Option {
	return func(o interface{}) {
		if o, ok := o.(*adapterOptions); ok && fn != nil {
			o.withCurrentURL = fn
		}
	}
}

// WithHonorInteractionMethod controls which interaction method Login falls
// back to when silent acquisition fails. By default the fallback is always
// Popup. When enabled, the caller's LoginOptions.InteractionMethod is used.
func WithHonorInteractionMethod(honor bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*adapterOptions); ok {
			o.withHonorInteractionMethod = honor
		}
	}
}
