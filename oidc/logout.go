// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-multierror"
)

// LogoutPopup implements msauth.Session.LogoutPopup. It removes every
// cached account of the client, then shows the provider's end session
// endpoint (when the provider has one). With a loopback redirect uri it
// waits for the provider to redirect back after sign-out.
func (c *PublicClient) LogoutPopup(ctx context.Context) error {
	const op = "oidc.(PublicClient).LogoutPopup"
	entries, err := c.cache.List(ctx, c.partition)
	if err != nil {
		return fmt.Errorf("%s: unable to list cached accounts: %w", op, err)
	}
	var result *multierror.Error
	for _, e := range entries {
		if err := c.cache.Delete(ctx, c.partition, e.HomeAccountID); err != nil {
			result = multierror.Append(result, fmt.Errorf("account %s: %w", e.HomeAccountID, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: unable to remove cached accounts: %w", op, err)
	}

	if _, err := c.discover(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if c.endSessionEndpoint == "" {
		c.logger.Debug("provider has no end session endpoint", "removed_accounts", len(entries))
		return nil
	}
	var hint string
	if len(entries) > 0 {
		hint = entries[0].Username
	}

	lb, err := listenLoopback(c.config.RedirectURI)
	if err != nil {
		// not a loopback redirect, so there's nothing to wait for
		if err := c.opener.Open(ctx, c.endSessionURL(c.config.RedirectURI, hint)); err != nil {
			return fmt.Errorf("%s: %w: %w", op, ErrOpenBrowser, err)
		}
		return nil
	}
	defer lb.close()

	endSessionURL := c.endSessionURL(lb.URL(), hint)
	waitCtx, cancel := context.WithTimeout(ctx, c.interactionTimeout)
	defer cancel()
	if _, err := lb.wait(waitCtx, func() error { return c.opener.Open(waitCtx, endSessionURL) }, logoutResponsePage); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// endSessionURL returns the provider's end session URL. See:
// https://openid.net/specs/openid-connect-rpinitiated-1_0.html
func (c *PublicClient) endSessionURL(postLogoutRedirectURI, logoutHint string) string {
	u, err := url.Parse(c.endSessionEndpoint)
	if err != nil {
		return c.endSessionEndpoint
	}
	q := u.Query()
	q.Set("client_id", c.config.ClientID)
	q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	if logoutHint != "" {
		q.Set("logout_hint", logoutHint)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
