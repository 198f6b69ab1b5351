// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package plugin exposes an msauth.Adapter as a method call surface taking
// and returning loosely typed maps, the shape a plugin host passes across
// its bridge.
package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/msauth"
	"github.com/mitchellh/mapstructure"
)

var (
	// ErrUnknownMethod is returned for calls to a method the plugin doesn't
	// have
	ErrUnknownMethod = errors.New("unknown method")

	// ErrInvalidParameter is returned when call options can't be decoded
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Methods of the plugin
const (
	MethodLogin  = "login"
	MethodLogout = "logout"
)

// Plugin dispatches calls to an adapter. It's safe for concurrent use.
type Plugin struct {
	adapter *msauth.Adapter
	logger  hclog.Logger
}

// New creates a Plugin.
//
// Supported options: WithLogger
func New(a *msauth.Adapter, opt ...Option) (*Plugin, error) {
	const op = "plugin.New"
	if a == nil {
		return nil, fmt.Errorf("%s: adapter is nil: %w", op, ErrInvalidParameter)
	}
	opts := getPluginOpts(opt...)
	return &Plugin{
		adapter: a,
		logger:  opts.withLogger.Named("plugin"),
	}, nil
}

// Call invokes method with the options. Login returns the auth result as
// a map with the keys accessToken, idToken and scopes; logout returns an
// empty map. Errors from the adapter are returned as is.
func (p *Plugin) Call(ctx context.Context, method string, options map[string]interface{}) (map[string]interface{}, error) {
	const op = "plugin.(Plugin).Call"
	p.logger.Debug("call", "method", method)
	switch method {
	case MethodLogin:
		var opts msauth.LoginOptions
		if err := decode(options, &opts); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r, err := p.adapter.Login(ctx, &opts)
		if err != nil {
			return nil, err
		}
		out := map[string]interface{}{}
		if err := mapstructure.Decode(r, &out); err != nil {
			return nil, fmt.Errorf("%s: unable to encode result: %w", op, err)
		}
		return out, nil

	case MethodLogout:
		var opts msauth.LogoutOptions
		if err := decode(options, &opts); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := p.adapter.Logout(ctx, &opts); err != nil {
			return nil, err
		}
		return map[string]interface{}{}, nil

	default:
		return nil, fmt.Errorf("%s: %q: %w", op, method, ErrUnknownMethod)
	}
}

// CallJSON is Call with a JSON object payload and result. An empty payload
// is an empty object.
func (p *Plugin) CallJSON(ctx context.Context, method string, payload []byte) ([]byte, error) {
	const op = "plugin.(Plugin).CallJSON"
	options := map[string]interface{}{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &options); err != nil {
			return nil, fmt.Errorf("%s: unable to parse payload: %w: %w", op, ErrInvalidParameter, err)
		}
	}
	out, err := p.Call(ctx, method, options)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to encode result: %w", op, err)
	}
	return b, nil
}

// decode the call options into out. Unknown keys are ignored.
func decode(options map[string]interface{}, out interface{}) error {
	const op = "plugin.decode"
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: interactionMethodHook,
		Result:     out,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := d.Decode(options); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
	}
	return nil
}

var interactionMethodType = reflect.TypeOf(msauth.InteractionMethod(0))

// interactionMethodHook decodes an interaction method from its name or
// its number (0 popup, 1 redirect).
func interactionMethodHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != interactionMethodType {
		return data, nil
	}
	var n int64
	switch v := data.(type) {
	case msauth.InteractionMethod:
		return v, nil
	case string:
		return msauth.ParseInteractionMethod(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("interaction method %v is not an integer", v)
		}
		n = int64(v)
	case int:
		n = int64(v)
	case int64:
		n = v
	default:
		return nil, fmt.Errorf("interaction method of type %s is not supported", from)
	}
	m := msauth.InteractionMethod(n)
	switch m {
	case msauth.Popup, msauth.Redirect:
		return m, nil
	}
	return nil, fmt.Errorf("interaction method %d is not supported", n)
}
