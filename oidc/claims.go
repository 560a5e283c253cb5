package oidc

import (
	"bytes"
	"encoding/json"
)

// IdentityClaims are the id_token claims used by the sign-in flow. Claims
// not listed here are ignored.
type IdentityClaims struct {
	Audience          Audience `json:"aud,omitempty"`
	Issuer            string   `json:"iss,omitempty"`
	IssuedAt          int64    `json:"iat,omitempty"`
	NotBefore         int64    `json:"nbf,omitempty"`
	Expiry            int64    `json:"exp,omitempty"`
	Version           string   `json:"ver,omitempty"`
	TenantId          string   `json:"tid,omitempty"`
	ObjectId          string   `json:"oid,omitempty"`
	Subject           string   `json:"sub,omitempty"`
	Email             string   `json:"email,omitempty"`
	Name              string   `json:"name,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Nonce             string   `json:"nonce,omitempty"`
	AuthTime          int64    `json:"auth_time,omitempty"`
}

// UserId is the stable identifier the token cache is keyed on: the oid
// claim when the authority issues one, otherwise sub.
func (c *IdentityClaims) UserId() string {
	if c.ObjectId != "" {
		return c.ObjectId
	}
	return c.Subject
}

// Audience is the aud claim, which may be a single string or a list.
type Audience []string

// UnmarshalJSON accepts either form of the aud claim.
func (a *Audience) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*a = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = Audience{s}
		return nil
	}
	var l []string
	if err := json.Unmarshal(b, &l); err != nil {
		return err
	}
	*a = l
	return nil
}
