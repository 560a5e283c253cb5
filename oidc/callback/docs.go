/*
callback is a package that provides callbacks (in the form of http.HandlerFunc)
for handling OIDC provider responses to authorization code + id_token hybrid
flow authentication attempts.
*/
package callback
