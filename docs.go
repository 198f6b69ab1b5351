// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package msauth provides the token acquisition backend of a cross-platform
authentication plugin.

The Adapter maps plugin login/logout calls onto an identity Session. A login
first tries to acquire a token silently using an account the session already
knows about and falls back to an interactive acquisition when that fails.
Results are normalized into an AuthResult.

Primary types provided by the package

* Adapter: implements Login and Logout on top of a SessionFactory. A new
Session is created for every call and released when the call completes.

* SessionFactory and Session: the identity collaborator. The adapter never
validates or stores tokens itself; see the oidc package for an OpenID Connect
implementation and TestSession for a substitute used in tests.

* LoginOptions, LogoutOptions: the caller supplied authentication parameters.

* AuthResult: the normalized login result. Its Scopes are always the scopes
the caller requested.

The plugin package decodes loosely typed plugin calls into these options.
*/
package msauth
