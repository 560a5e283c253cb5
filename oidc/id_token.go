package oidc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// IdToken is an oidc id_token
type IdToken string

// RedactedIdToken is the redacted string or json for an oidc id_token
const RedactedIdToken = "[REDACTED: id_token]"

// String will redact the token
func (t IdToken) String() string {
	return RedactedIdToken
}

// MarshalJSON will redact the token
func (t IdToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIdToken)
}

// Claims retrieves the IdToken claims into claims, which may be any value
// encoding/json can decode an object into. The signature is not verified.
func (t IdToken) Claims(claims interface{}) error {
	const op = "IdToken.Claims"
	if len(t) == 0 {
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	payload, err := claimsSegment(string(t))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(payload, claims); err != nil {
		return fmt.Errorf("%s: unable to decode claims: %v: %w", op, err, ErrMalformedToken)
	}
	return nil
}

// ParseClaims decodes the claims of a compact id_token. The token must have
// exactly three dot separated segments and its middle segment must decode to a
// JSON object, otherwise ErrMalformedToken is returned.
//
// ParseClaims does not verify the token's signature.
func ParseClaims(idToken string) (*IdentityClaims, error) {
	const op = "oidc.ParseClaims"
	var c IdentityClaims
	if err := IdToken(idToken).Claims(&c); err != nil {
		if strings.TrimSpace(idToken) == "" {
			return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrMalformedToken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

// ValidateNonce reports whether the id_token's nonce claim equals
// expectedNonce exactly. It returns false when expectedNonce is empty or the
// token cannot be parsed.
//
// Only the nonce is compared: the token's signature, issuer, audience and
// expiry are NOT checked. See Provider.VerifyIdToken for a full verification.
func ValidateNonce(idToken, expectedNonce string) bool {
	if expectedNonce == "" {
		return false
	}
	c, err := ParseClaims(idToken)
	if err != nil {
		return false
	}
	return c.Nonce == expectedNonce
}

// PreferredUsername returns the id_token's preferred_username claim verbatim.
// It's the user's sign-in name, normally an email address, and is used as the
// calendar API's anchor mailbox.
func PreferredUsername(idToken string) (string, error) {
	const op = "oidc.PreferredUsername"
	c, err := ParseClaims(idToken)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if c.PreferredUsername == "" {
		return "", fmt.Errorf("%s: preferred_username claim is missing: %w", op, ErrMalformedToken)
	}
	return c.PreferredUsername, nil
}

// claimsSegment splits a compact token and decodes its middle segment, which
// must hold a JSON object.
func claimsSegment(token string) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected 3 segments and got %d: %w", len(parts), ErrMalformedToken)
	}
	payload, err := DecodeSegment(parts[1])
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(bytes.TrimSpace(payload), []byte("{")) {
		return nil, fmt.Errorf("claims segment is not a JSON object: %w", ErrMalformedToken)
	}
	return payload, nil
}
