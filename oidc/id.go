package oidc

import (
	"fmt"

	"github.com/hashicorp/calview/sdk/id"
)

// NewId generates a ID with an optional prefix.   The ID generated is suitable
// for an State Id or Nonce
func NewId(optionalPrefix string) (string, error) {
	const op = "oidc.NewId"
	id, err := id.New(optionalPrefix)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %v: %w", op, err, ErrIdGeneratorFailed)
	}
	return id, nil
}
