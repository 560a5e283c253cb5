package oidc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidParameter          = errors.New("invalid parameter")
	ErrNilParameter              = errors.New("nil parameter")
	ErrInvalidCACert             = errors.New("invalid CA certificate")
	ErrInvalidAuthority          = errors.New("invalid authority")
	ErrIdGeneratorFailed         = errors.New("id generation failed")
	ErrExpiredState              = errors.New("state is expired")
	ErrResponseStateInvalid      = errors.New("oidc response state")
	ErrMissingIdToken            = errors.New("id_token is missing")
	ErrMalformedToken            = errors.New("malformed token")
	ErrIdTokenVerificationFailed = errors.New("id_token verification failed")
	ErrVerificationNotConfigured = errors.New("id_token verification is not configured")
	ErrInvalidNonce              = errors.New("invalid nonce")
	ErrNotFound                  = errors.New("not found")
	ErrTokenExchange             = errors.New("token exchange failed")
)

// TokenExchangeError is returned when the authority's token endpoint rejects
// an authorization code or refresh token, or cannot be reached. It matches
// ErrTokenExchange with errors.Is.
type TokenExchangeError struct {
	// StatusCode is the http status of the token response, or zero when no
	// response was received.
	StatusCode int

	// Code is the oauth error code, for example "invalid_grant".
	Code string

	// Description is the provider supplied error_description.
	Description string

	ErrorCodes    []int
	Timestamp     string
	TraceId       string
	CorrelationId string

	// Wrapped is the underlying transport or decoding error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *TokenExchangeError) Error() string {
	var b strings.Builder
	b.WriteString(ErrTokenExchange.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	}
	if e.Wrapped != nil && e.Description == "" {
		fmt.Fprintf(&b, ": %s", e.Wrapped)
	}
	return b.String()
}

// Is matches ErrTokenExchange.
func (e *TokenExchangeError) Is(target error) bool {
	return target == ErrTokenExchange
}

// Unwrap returns the underlying error.
func (e *TokenExchangeError) Unwrap() error {
	return e.Wrapped
}
