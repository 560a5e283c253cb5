/*
oidc is a package for signing users in with the OpenID Connect authorization
code + id_token hybrid flow and keeping their tokens fresh.

Primary types provided by the package

* State: represents one sign-in attempt for a user. Its Id() is sent as the
oidc state and its Nonce() as the oidc nonce. States expire and are never
persisted; the caller owns them.

* Config: provides the configuration for the hybrid flow against one
authority (for example: authority URL, client Id/Secret, additional scopes,
an optional CA and an optional JWKS URL for id_token verification).

* Provider: provides the flow itself: building the authorize URL, exchanging
codes and refresh tokens at the token endpoint, handing out valid access
tokens from a tokencache.Cache and signing users out.

* IdToken and IdentityClaims: a compact id_token and the claims decoded from
it. ParseClaims, ValidateNonce and PreferredUsername work on the unverified
token; Provider.VerifyIdToken checks its signature when configured.

* DecodeSegment and EncodeSegment: the unpadded base64url codec used for
compact token segments.

* Alg: represents asymmetric signing algorithms

The oidc.callback package

The callback package includes the ability to create a http.HandlerFunc which
can be used as the redirect URL of the hybrid flow, where the id_token is
checked and the authorization code is exchanged for tokens.

Examples

* Calendar web app: examples/calendar-web in this repository.
*/
package oidc
