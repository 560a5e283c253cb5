// calview provides a collection of related packages for signing users in to
// Microsoft identity (Azure AD v2.0) with the oidc hybrid flow, caching their
// tokens and reading their Outlook calendar.
//
//	oidc:            authorization URLs, token exchange/refresh, id_token parsing
//	oidc/callback:   the form_post redirect handler
//	tokencache:      per-user token records, file and in-memory caches
//	calendar:        the Outlook REST calendar view client
//
// See examples/calendar-web for a complete web app.
package calview
