package oidc

import (
	"encoding/base64"
	"fmt"
	"strings"
)

var base64URLToStd = strings.NewReplacer("-", "+", "_", "/")

// DecodeSegment decodes one unpadded base64url segment of a compact token.
// Standard alphabet characters are rejected.
// Padding is restored from the segment length; a length that leaves a
// remainder of 1 can never be valid base64 and is reported as ErrMalformedToken.
func DecodeSegment(seg string) ([]byte, error) {
	const op = "oidc.DecodeSegment"
	if i := strings.IndexAny(seg, "+/"); i >= 0 {
		return nil, fmt.Errorf("%s: illegal base64url character %q at %d: %w", op, seg[i], i, ErrMalformedToken)
	}
	s := base64URLToStd.Replace(seg)
	switch len(s) % 4 {
	case 0:
	case 2:
		s += "=="
	case 3:
		s += "="
	default:
		return nil, fmt.Errorf("%s: illegal base64url length %d: %w", op, len(seg), ErrMalformedToken)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrMalformedToken)
	}
	return b, nil
}

// EncodeSegment encodes b as an unpadded base64url segment.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
