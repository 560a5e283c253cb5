package calendar

import (
	"net/http"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func TestApplyOpts(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	opts := defaults()
	ApplyOpts(&opts, nil, WithMaxPages(3), nil)
	assert.Equal(3, opts.withMaxPages)
	assert.Equal(DefaultEndpoint, opts.withEndpoint)
}

func Test_getOpts(t *testing.T) {
	t.Parallel()
	t.Run("defaults", func(t *testing.T) {
		assert := assert.New(t)
		opts := getOpts()
		assert.Equal(DefaultEndpoint, opts.withEndpoint)
		assert.Equal(DefaultUserAgent, opts.withUserAgent)
		assert.Equal(DefaultMaxPages, opts.withMaxPages)
		assert.Zero(opts.withPageSize)
		assert.Nil(opts.withHTTPClient)
		assert.NotNil(opts.withLogger)
	})
	t.Run("overrides", func(t *testing.T) {
		assert := assert.New(t)
		c := &http.Client{}
		l := hclog.NewNullLogger()
		opts := getOpts(
			WithEndpoint("https://example.com/api"),
			WithHTTPClient(c),
			WithCACert("pem"),
			WithUserAgent("test/1.0"),
			WithLogger(l),
			WithMaxPages(2),
			WithPageSize(25),
		)
		assert.Equal("https://example.com/api", opts.withEndpoint)
		assert.Same(c, opts.withHTTPClient)
		assert.Equal("pem", opts.withCACert)
		assert.Equal("test/1.0", opts.withUserAgent)
		assert.Equal(l, opts.withLogger)
		assert.Equal(2, opts.withMaxPages)
		assert.Equal(25, opts.withPageSize)
	})
	t.Run("empty-values-keep-defaults", func(t *testing.T) {
		assert := assert.New(t)
		opts := getOpts(WithUserAgent(""), WithLogger(nil), nil)
		assert.Equal(DefaultUserAgent, opts.withUserAgent)
		assert.NotNil(opts.withLogger)
	})
}
