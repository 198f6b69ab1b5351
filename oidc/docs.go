// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for acquiring tokens as an OIDC public client, and it
provides the msauth.Session used by the msauth.Adapter.

Primary types provided by the package

* Config: provides the configuration of a public client (client id,
authority, known authorities, redirect uri, etc). Authorities must be
Microsoft identity platform hosts or listed as known authorities.

* PublicClient: an msauth.Session which acquires tokens with the
authorization code flow and PKCE. Tokens are cached per client and
authority, handed out silently while they're valid and renewed with
refresh tokens. Interactive requests open the authorization URL with an
Opener; popups listen for the response on a loopback redirect uri, while
redirects are completed with HandleRedirect.

* Opener: shows URLs to the user. BrowserOpener uses the system browser.

* NewSessionFactory: an msauth.SessionFactory which creates a PublicClient
per session, with the token cache picked by the session's cache location.

Testing

The package also provides a TestProvider, which is an in-process OIDC
provider supporting discovery, the authorization code flow with PKCE,
refresh tokens and RP initiated logout, and a TestBrowser which follows the
provider's redirects without user interaction.
*/
package oidc
