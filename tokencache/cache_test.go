package tokencache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCaches returns a fresh instance of every Cache implementation, all using
// now as their clock.
func testCaches(t *testing.T, now func() time.Time) map[string]Cache {
	t.Helper()
	require := require.New(t)
	fc, err := NewFileCache(filepath.Join(t.TempDir(), DefaultFileName), WithNow(now))
	require.NoError(err)
	return map[string]Cache{
		"file":   fc,
		"memory": NewMemoryCache(WithNow(now)),
	}
}

func TestTokenResponse_ExpiresAt(t *testing.T) {
	t.Parallel()
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresIn string
		want      time.Time
		wantIsErr error
	}{
		{name: "hour", expiresIn: "3600", want: issued.Add(3300 * time.Second)},
		{name: "fractional", expiresIn: "3600.5", want: issued.Add(3300*time.Second + 500*time.Millisecond)},
		{name: "number-string", expiresIn: " 60 ", want: issued.Add(60*time.Second - SafetyMargin)},
		{name: "empty", expiresIn: "", want: issued.Add(-SafetyMargin)},
		{name: "not-a-number", expiresIn: "soon", wantIsErr: ErrInvalidParameter},
		{name: "nan", expiresIn: "NaN", wantIsErr: ErrInvalidParameter},
		{name: "inf", expiresIn: "+Inf", wantIsErr: ErrInvalidParameter},
		{name: "negative", expiresIn: "-1", wantIsErr: ErrInvalidParameter},
		{name: "overflow", expiresIn: "1e300", wantIsErr: ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			tr := &TokenResponse{ExpiresIn: tt.expiresIn}
			got, err := tr.ExpiresAt(issued)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.True(tt.want.Equal(got), "ExpiresAt() = %v, want %v", got, tt.want)
		})
	}
}

func TestCache_UpsertGet(t *testing.T) {
	t.Parallel()
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return issued }
	for name, c := range testCaches(t, now) {
		c := c
		t.Run(name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			ctx := context.Background()

			stored, err := c.Upsert(ctx, "alice", &TokenResponse{
				ExpiresIn:    "3600",
				AccessToken:  "at-1",
				RefreshToken: "rt-1",
				IdToken:      "id-1",
			})
			require.NoError(err)
			assert.Equal("alice", stored.UserId)

			got, err := c.Get(ctx, "alice")
			require.NoError(err)
			assert.Equal("at-1", got.AccessToken)
			assert.Equal("rt-1", got.RefreshToken)
			assert.Equal("id-1", got.IdToken)
			want := issued.Add(3300 * time.Second)
			assert.Truef(want.Equal(got.ExpiresAt), "ExpiresAt = %v, want %v", got.ExpiresAt, want)
			assert.False(got.Expired(issued))
			assert.True(got.Expired(want.Add(time.Second)))
		})
	}
}

func TestCache_UpsertReplacesInPlace(t *testing.T) {
	t.Parallel()
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return issued }
	for name, c := range testCaches(t, now) {
		c := c
		t.Run(name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			ctx := context.Background()

			_, err := c.Upsert(ctx, "alice", &TokenResponse{ExpiresIn: "3600", AccessToken: "at-1", RefreshToken: "rt-1"})
			require.NoError(err)
			_, err = c.Upsert(ctx, "bob", &TokenResponse{ExpiresIn: "3600", AccessToken: "bob-at"})
			require.NoError(err)
			_, err = c.Upsert(ctx, "alice", &TokenResponse{ExpiresIn: "600", AccessToken: "at-2", RefreshToken: "rt-2"})
			require.NoError(err)

			got, err := c.Get(ctx, "alice")
			require.NoError(err)
			assert.Equal("at-2", got.AccessToken)
			assert.Equal("rt-2", got.RefreshToken)
			assert.True(issued.Add(300 * time.Second).Equal(got.ExpiresAt))

			switch v := c.(type) {
			case *MemoryCache:
				assert.Equal(2, v.Len())
			case *FileCache:
				s, err := v.load()
				require.NoError(err)
				assert.Len(s, 2)
				assert.Equal("alice", s[0].UserId)
			}
		})
	}
}

func TestCache_Remove(t *testing.T) {
	t.Parallel()
	for name, c := range testCaches(t, time.Now) {
		c := c
		t.Run(name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			ctx := context.Background()

			require.NoError(c.Remove(ctx, "nobody"))

			_, err := c.Upsert(ctx, "alice", &TokenResponse{ExpiresIn: "3600", AccessToken: "at"})
			require.NoError(err)
			require.NoError(c.Remove(ctx, "nobody"))
			_, err = c.Get(ctx, "alice")
			require.NoError(err)

			require.NoError(c.Remove(ctx, "alice"))
			_, err = c.Get(ctx, "alice")
			require.Error(err)
			assert.ErrorIs(err, ErrNotFound)
		})
	}
}

func TestCache_InvalidUpsert(t *testing.T) {
	t.Parallel()
	for name, c := range testCaches(t, time.Now) {
		c := c
		t.Run(name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			ctx := context.Background()
			_, err := c.Upsert(ctx, "", &TokenResponse{})
			require.Error(err)
			assert.ErrorIs(err, ErrInvalidParameter)

			_, err = c.Upsert(ctx, "alice", nil)
			require.Error(err)
			assert.ErrorIs(err, ErrInvalidParameter)

			_, err = c.Upsert(ctx, "alice", &TokenResponse{ExpiresIn: "never"})
			require.Error(err)
			assert.ErrorIs(err, ErrInvalidParameter)

			_, err = c.Get(ctx, "alice")
			assert.ErrorIs(err, ErrNotFound)
		})
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	c := NewMemoryCache()
	_, err := c.Upsert(ctx, "alice", &TokenResponse{ExpiresIn: "3600", AccessToken: "at"})
	require.NoError(err)

	got, err := c.Get(ctx, "alice")
	require.NoError(err)
	got.AccessToken = "mutated"

	again, err := c.Get(ctx, "alice")
	require.NoError(err)
	assert.Equal("at", again.AccessToken)
}
