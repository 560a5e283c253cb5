package id

import (
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// DefaultLength is the number of random characters in ids returned by New.
const DefaultLength = 10

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// New generates a base62 ID with an optional prefix. The ID is suitable for an
// oidc state id or nonce.
func New(optionalPrefix string) (string, error) {
	return NewWithLength(optionalPrefix, DefaultLength)
}

// NewWithLength generates a base62 ID of n random characters with an optional
// prefix.
func NewWithLength(optionalPrefix string, n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid id length %d", n)
	}
	id, err := random(n)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}

// NewCorrelationId returns a random RFC 4122 style identifier, used for the
// per-request client-request-id header.
func NewCorrelationId() (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("unable to generate correlation id: %w", err)
	}
	return id, nil
}

// random returns n base62 characters. Bytes >= 248 are discarded so every
// character is equally likely.
func random(n int) (string, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		buf, err := uuid.GenerateRandomBytes(n)
		if err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 248 {
				continue
			}
			out = append(out, base62Alphabet[b%62])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
