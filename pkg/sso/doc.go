// Package sso mediates single sign-on between a media server and external
// identity providers.
//
// # Overview
//
// Two federated-login protocols run in parallel: an authorization-code flow
// (OpenID Connect) and an assertion flow (SAML 2.0). Both normalize into a
// common evaluation pipeline that turns third-party identity claims into a
// local authorization decision: may the user log in, are they an
// administrator, and which library folders may they see.
//
// # Flow
//
// A challenge request builds a redirect to the IdP and, for the code flow,
// registers an in-flight login in the StateStore under an opaque state
// token. When the IdP redirects back, the adapter resolves the claim set
// through the claim-path resolver and the role policy, writes the decision
// into the stored record, and hands a completion page to the client. The
// client's auth call presents the token (or assertion) and receives a
// session from the Bridge.
//
// # Collaborators
//
// Code exchange and signature verification are delegated to
// github.com/coreos/go-oidc and github.com/russellhaering/gosaml2. User and
// session persistence live behind the UserAuthority and SessionAuthority
// interfaces; pkg/identity carries the reference implementation.
package sso
