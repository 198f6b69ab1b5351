// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"

	"github.com/hashicorp/msauth"
	"github.com/hashicorp/msauth/cache"
)

// NewSessionFactory returns an msauth.SessionFactory which creates a
// PublicClient per session. Sessions configured with msauth.LocalStorage
// share the local storage cache (see WithCachePath); msauth.MemoryStorage
// sessions get a cache of their own. WithCache overrides both.
//
// Supported options: WithCache, WithCachePath, WithProviderCA, and every
// PublicClient option
func NewSessionFactory(opt ...Option) msauth.SessionFactory {
	return msauth.SessionFactoryFunc(func(ctx context.Context, sc *msauth.SessionConfig) (msauth.Session, error) {
		const op = "oidc.NewSessionFactory"
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		opts := getClientOpts(opt...)
		c, err := NewConfig(
			sc.ClientID,
			sc.Authority,
			sc.RedirectURI,
			WithKnownAuthorities(sc.KnownAuthorities...),
			WithDomainHint(sc.DomainHint),
			WithProviderCA(opts.withProviderCA),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tc := opts.withCache
		if tc == nil {
			switch sc.CacheLocation {
			case msauth.LocalStorage:
				if tc, err = cache.NewLocalStorage(opts.withCachePath, 0); err != nil {
					return nil, fmt.Errorf("%s: %w", op, err)
				}
			default:
				tc = cache.NewMemory()
			}
		}
		pc, err := NewPublicClient(ctx, c, append(append([]Option{}, opt...), WithCache(tc))...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return pc, nil
	})
}
