package tokencache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/hashicorp/go-hclog"
)

// DefaultFileName is the cache document's file name.
const DefaultFileName = "token_cache.json"

// DefaultPath returns the XDG data home location of the cache document for
// appName.
func DefaultPath(appName string) string {
	return filepath.Join(xdg.DataHome, appName, DefaultFileName)
}

// FileCache is a Cache backed by a single JSON document.
type FileCache struct {
	path   string
	now    func() time.Time
	logger hclog.Logger
}

// ensure that FileCache implements the Cache interface
var _ Cache = (*FileCache)(nil)

// NewFileCache returns a FileCache for path. The file does not need to exist.
//
// Supported options: WithNow, WithLogger
func NewFileCache(path string, opt ...Option) (*FileCache, error) {
	const op = "tokencache.NewFileCache"
	if path == "" {
		return nil, fmt.Errorf("%s: path is empty: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	return &FileCache{
		path:   path,
		now:    opts.withNow,
		logger: opts.withLogger,
	}, nil
}

// Path returns the location of the cache document.
func (c *FileCache) Path() string { return c.path }

// Get returns the record for userId or ErrNotFound.
func (c *FileCache) Get(ctx context.Context, userId string) (*Record, error) {
	const op = "FileCache.Get"
	s, err := c.load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	i := s.find(userId)
	if i < 0 {
		return nil, fmt.Errorf("%s: user %q: %w", op, userId, ErrNotFound)
	}
	r := s[i]
	return &r, nil
}

// Upsert reloads the document, replaces or appends the user's record and
// rewrites the document.
func (c *FileCache) Upsert(ctx context.Context, userId string, tr *TokenResponse) (*Record, error) {
	const op = "FileCache.Upsert"
	if err := validateUpsert(op, userId, tr); err != nil {
		return nil, err
	}
	s, err := c.load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r, err := s.upsert(userId, tr, c.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.save(s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("token record stored", "user_id", userId, "expires", r.ExpiresAt)
	return r, nil
}

// Remove reloads the document, drops the user's record if present and
// rewrites the document.
func (c *FileCache) Remove(ctx context.Context, userId string) error {
	const op = "FileCache.Remove"
	s, err := c.load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	removed := s.remove(userId)
	if err := c.save(s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("token record removed", "user_id", userId, "found", removed)
	return nil
}

// load reads the whole document. A missing or empty file is an empty cache.
func (c *FileCache) load() (snapshot, error) {
	b, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return snapshot{}, nil
	case err != nil:
		return nil, fmt.Errorf("unable to read token cache %s: %w", c.path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return snapshot{}, nil
	}
	var s snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unable to decode token cache %s: %w", c.path, err)
	}
	if s == nil {
		s = snapshot{}
	}
	return s, nil
}

// save replaces the document with s by writing a temp file next to it and
// renaming it over the old one.
func (c *FileCache) save(s snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("unable to encode token cache: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("unable to create token cache directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create token cache temp file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to write token cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to write token cache: %w", err)
	}
	if err := os.Chmod(tmp, 0o600); err != nil {
		return fmt.Errorf("unable to set token cache permissions: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("unable to replace token cache: %w", err)
	}
	return nil
}
