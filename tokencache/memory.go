package tokencache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// MemoryCache is an in-process Cache. It is concurrently safe.
type MemoryCache struct {
	mu     sync.Mutex
	s      snapshot
	now    func() time.Time
	logger hclog.Logger
}

// ensure that MemoryCache implements the Cache interface
var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty MemoryCache.
//
// Supported options: WithNow, WithLogger
func NewMemoryCache(opt ...Option) *MemoryCache {
	opts := getOpts(opt...)
	return &MemoryCache{
		s:      snapshot{},
		now:    opts.withNow,
		logger: opts.withLogger,
	}
}

// Get returns a copy of the record for userId or ErrNotFound.
func (c *MemoryCache) Get(ctx context.Context, userId string) (*Record, error) {
	const op = "MemoryCache.Get"
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.s.find(userId)
	if i < 0 {
		return nil, fmt.Errorf("%s: user %q: %w", op, userId, ErrNotFound)
	}
	r := c.s[i]
	return &r, nil
}

// Upsert inserts or replaces the tokens for userId.
func (c *MemoryCache) Upsert(ctx context.Context, userId string, tr *TokenResponse) (*Record, error) {
	const op = "MemoryCache.Upsert"
	if err := validateUpsert(op, userId, tr); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, err := c.s.upsert(userId, tr, c.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("token record stored", "user_id", userId, "expires", r.ExpiresAt)
	return r, nil
}

// Remove deletes the record for userId, if any.
func (c *MemoryCache) Remove(ctx context.Context, userId string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := c.s.remove(userId)
	c.logger.Debug("token record removed", "user_id", userId, "found", removed)
	return nil
}

// Len returns the number of records.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.s)
}
