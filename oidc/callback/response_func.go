package callback

import (
	"net/http"

	"github.com/hashicorp/calview/oidc"
	"github.com/hashicorp/calview/tokencache"
)

// SuccessResponseFunc is used by Callbacks to create a http response when the
// callback is successful.
//
// The function state parameter will contain the state that was returned as
// part of a successful oidc authentication response. The claims are decoded
// from the response's id_token and the record holds the tokens now cached for
// claims.UserId(). The function should use the http.ResponseWriter to send
// back whatever content (headers, html, JSON, etc) it wishes to the client
// that originated the oidc flow, typically after binding the user id to a
// session.
type SuccessResponseFunc func(state string, c *oidc.IdentityClaims, r *tokencache.Record, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by Callbacks to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response.  It also gets parameters for the oidc authentication error response
// and/or the callback error raised while processing the request.  The function
// should use the http.ResponseWriter to send back whatever content (headers,
// html, JSON, etc) it wishes to the client that originated the oidc flow.
type ErrorResponseFunc func(state string, respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Uri         string `json:"error_uri,omitempty"`
}
