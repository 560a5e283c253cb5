package tokencache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// SafetyMargin is subtracted from every provider-declared token lifetime.
const SafetyMargin = 5 * time.Minute

// Cache is the durable mapping from user id to token record. Implementations
// own the records; callers get copies.
type Cache interface {
	// Get returns the record for userId or ErrNotFound.
	Get(ctx context.Context, userId string) (*Record, error)

	// Upsert inserts or replaces the tokens for userId, computing the
	// record's ExpiresAt from the response's expires_in.
	Upsert(ctx context.Context, userId string, tr *TokenResponse) (*Record, error)

	// Remove deletes the record for userId. Removing an absent user is not an
	// error.
	Remove(ctx context.Context, userId string) error
}

// Record is one user's cached tokens.
type Record struct {
	UserId       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	IdToken      string    `json:"id_token"`
	ExpiresAt    time.Time `json:"expires"`
}

// Expired reports whether the record's ExpiresAt is before now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// TokenResponse is the success body of the authority's token endpoint.
// ExpiresIn is kept as text since some authorities send it as a JSON string.
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    string `json:"expires_in"`
	ExpiresOn    string `json:"expires_on,omitempty"`
	NotBefore    string `json:"not_before,omitempty"`
	Resource     string `json:"resource,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IdToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// maxLifetimeSeconds keeps a lifetime well inside time.Duration.
const maxLifetimeSeconds = 100 * 365 * 24 * 60 * 60

// Lifetime parses ExpiresIn as a number of seconds. An empty value is a zero
// lifetime.
func (tr *TokenResponse) Lifetime() (time.Duration, error) {
	const op = "TokenResponse.Lifetime"
	s := strings.TrimSpace(tr.ExpiresIn)
	if s == "" {
		return 0, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	switch {
	case err != nil, math.IsNaN(secs), math.IsInf(secs, 0):
		return 0, fmt.Errorf("%s: expires_in %q is not a number: %w", op, tr.ExpiresIn, ErrInvalidParameter)
	case secs < 0 || secs > maxLifetimeSeconds:
		return 0, fmt.Errorf("%s: expires_in %q is out of range: %w", op, tr.ExpiresIn, ErrInvalidParameter)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// ExpiresAt returns issued + lifetime - SafetyMargin.
func (tr *TokenResponse) ExpiresAt(issued time.Time) (time.Time, error) {
	lifetime, err := tr.Lifetime()
	if err != nil {
		return time.Time{}, err
	}
	return issued.Add(lifetime).Add(-SafetyMargin), nil
}

// snapshot is the whole cache content, in insertion order.
type snapshot []Record

func (s snapshot) find(userId string) int {
	for i := range s {
		if s[i].UserId == userId {
			return i
		}
	}
	return -1
}

// upsert replaces the tokens of an existing record or appends a new one and
// returns a copy of the stored record.
func (s *snapshot) upsert(userId string, tr *TokenResponse, now time.Time) (*Record, error) {
	expiresAt, err := tr.ExpiresAt(now)
	if err != nil {
		return nil, err
	}
	if i := s.find(userId); i >= 0 {
		r := &(*s)[i]
		r.AccessToken = tr.AccessToken
		r.RefreshToken = tr.RefreshToken
		r.IdToken = tr.IdToken
		r.ExpiresAt = expiresAt
		cp := *r
		return &cp, nil
	}
	r := Record{
		UserId:       userId,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IdToken:      tr.IdToken,
		ExpiresAt:    expiresAt,
	}
	*s = append(*s, r)
	return &r, nil
}

// remove reports whether a record was deleted.
func (s *snapshot) remove(userId string) bool {
	i := s.find(userId)
	if i < 0 {
		return false
	}
	*s = append((*s)[:i], (*s)[i+1:]...)
	return true
}

func validateUpsert(op, userId string, tr *TokenResponse) error {
	if userId == "" {
		return fmt.Errorf("%s: user id is empty: %w", op, ErrInvalidParameter)
	}
	if tr == nil {
		return fmt.Errorf("%s: token response is nil: %w", op, ErrInvalidParameter)
	}
	return nil
}
