package oidc

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/hashicorp/calview/tokencache"
	"golang.org/x/oauth2"
)

// AccessToken and RefreshToken are the oauth tokens kept in the token cache.
// They redact themselves when formatted or marshaled, so they can be passed
// to a logger.
type (
	AccessToken  string
	RefreshToken string
)

// Redacted string or json forms of the tokens.
const (
	RedactedAccessToken  = "[REDACTED: access_token]"
	RedactedRefreshToken = "[REDACTED: refresh_token]"
)

// String will redact the token
func (t AccessToken) String() string { return RedactedAccessToken }

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedAccessToken) }

// String will redact the token
func (t RefreshToken) String() string { return RedactedRefreshToken }

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedRefreshToken) }

// tokenResponse converts the oauth2 library's token into the token endpoint
// response shape stored by the token cache. expires_in is taken verbatim from
// the raw response when present.
func tokenResponse(tk *oauth2.Token, now time.Time) *tokencache.TokenResponse {
	tr := &tokencache.TokenResponse{
		TokenType:    tk.TokenType,
		AccessToken:  tk.AccessToken,
		RefreshToken: tk.RefreshToken,
		ExpiresIn:    expiresIn(tk, now),
	}
	if v, ok := tk.Extra("id_token").(string); ok {
		tr.IdToken = v
	}
	if v, ok := tk.Extra("scope").(string); ok {
		tr.Scope = v
	}
	if v, ok := tk.Extra("resource").(string); ok {
		tr.Resource = v
	}
	return tr
}

func expiresIn(tk *oauth2.Token, now time.Time) string {
	switch v := tk.Extra("expires_in").(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	if tk.Expiry.IsZero() {
		return ""
	}
	return strconv.FormatInt(int64(tk.Expiry.Sub(now).Round(time.Second)/time.Second), 10)
}
