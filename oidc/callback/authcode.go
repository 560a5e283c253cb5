package callback

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/calview/oidc"
)

// AuthCode creates an oidc authorization code + id_token callback handler
// which uses a StateReader to read existing oidc.State(s) via the request's
// oidc "state" parameter as a key for the lookup. It's meant to be mounted at
// redirectURL, which the authority form-posts its response to.
//
// The handler checks the response's id_token against the State's nonce,
// decodes the user's identity from it and exchanges the authorization code
// for tokens, which the Provider stores under the user's id. When the
// Provider is configured to verify id_token signatures, the id_token is
// verified instead of only having its nonce compared.
//
// ctx is used for state reads; the code exchange runs in the request's
// context.
//
// The SuccessResponseFunc is used to create a response when callback is
// successful. The ErrorResponseFunc is to create a response when the callback
// fails.
func AuthCode(ctx context.Context, p *oidc.Provider, rw StateReader, redirectURL string, sFn SuccessResponseFunc, eFn ErrorResponseFunc) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrInvalidParameter)
	case rw == nil:
		return nil, fmt.Errorf("%s: state reader is nil: %w", op, oidc.ErrInvalidParameter)
	case redirectURL == "":
		return nil, fmt.Errorf("%s: redirect URL is empty: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	return func(w http.ResponseWriter, req *http.Request) {
		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found
		reqState := req.FormValue("state")

		if err := req.FormValue("error"); err != "" {
			reqError := &AuthenErrorResponse{
				Error:       err,
				Description: req.FormValue("error_description"),
				Uri:         req.FormValue("error_uri"),
			}
			eFn(reqState, reqError, nil, w, req)
			return
		}

		state, err := rw.Read(ctx, reqState)
		if err != nil {
			responseErr := fmt.Errorf("%s: unable to read auth code state: %w", op, err)
			eFn(reqState, nil, responseErr, w, req)
			return
		}
		if state == nil {
			// could have expired or it could be invalid... no way to known for sure
			responseErr := fmt.Errorf("%s: auth code state not found: %w", op, oidc.ErrNotFound)
			eFn(reqState, nil, responseErr, w, req)
			return
		}
		if state.IsExpired() {
			responseErr := fmt.Errorf("%s: authentication state is expired: %w", op, oidc.ErrExpiredState)
			eFn(reqState, nil, responseErr, w, req)
			return
		}
		if reqState != state.Id() {
			// the StateReader didn't return the correct state for the key
			// given... this is an internal sort of error on the part of the
			// reader.
			responseErr := fmt.Errorf("%s: authen state and response state are not equal: %w", op, oidc.ErrResponseStateInvalid)
			eFn(reqState, nil, responseErr, w, req)
			return
		}

		reqIdToken := req.FormValue("id_token")
		if reqIdToken == "" {
			responseErr := fmt.Errorf("%s: %w", op, oidc.ErrMissingIdToken)
			eFn(reqState, nil, responseErr, w, req)
			return
		}
		claims, err := identity(req.Context(), p, reqIdToken, state.Nonce())
		if err != nil {
			responseErr := fmt.Errorf("%s: %w", op, err)
			eFn(reqState, nil, responseErr, w, req)
			return
		}
		userId := claims.UserId()
		if userId == "" {
			responseErr := fmt.Errorf("%s: id_token has neither an oid nor a sub claim: %w", op, oidc.ErrMalformedToken)
			eFn(reqState, nil, responseErr, w, req)
			return
		}

		reqCode := req.FormValue("code")
		if reqCode == "" {
			responseErr := fmt.Errorf("%s: authorization code is missing: %w", op, oidc.ErrInvalidParameter)
			eFn(reqState, nil, responseErr, w, req)
			return
		}
		record, err := p.Exchange(req.Context(), reqCode, redirectURL, userId)
		if err != nil {
			responseErr := fmt.Errorf("%s: unable to exchange authorization code: %w", op, err)
			eFn(reqState, nil, responseErr, w, req)
			return
		}
		sFn(reqState, claims, record, w, req)
	}, nil
}

// identity returns the claims of an id_token whose nonce matches. The token is
// verified when the provider supports it.
func identity(ctx context.Context, p *oidc.Provider, idToken, nonce string) (*oidc.IdentityClaims, error) {
	claims, err := p.VerifyIdToken(ctx, oidc.IdToken(idToken), nonce)
	switch {
	case err == nil:
		return claims, nil
	case !errors.Is(err, oidc.ErrVerificationNotConfigured):
		return nil, err
	}
	if !oidc.ValidateNonce(idToken, nonce) {
		return nil, fmt.Errorf("id_token nonce does not match the state's nonce: %w", oidc.ErrInvalidNonce)
	}
	return oidc.ParseClaims(idToken)
}
