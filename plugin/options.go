// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package plugin

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

// pluginOptions is the set of available options for a Plugin
type pluginOptions struct {
	withLogger hclog.Logger
}

func pluginDefaults() pluginOptions {
	return pluginOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getPluginOpts(opt ...Option) pluginOptions {
	opts := pluginDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*pluginOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
