package calendar

import (
	"net/http"

	"github.com/hashicorp/go-hclog"
)

// DefaultEndpoint is the base URL of the calendar API.
const DefaultEndpoint = "https://outlook.office.com/api/v2.0"

// DefaultUserAgent identifies this client to the calendar API.
const DefaultUserAgent = "calview/1.0"

// DefaultMaxPages bounds how many pages CalendarViewAll follows.
const DefaultMaxPages = 10

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o != nil {
			o(opts)
		}
	}
}

// options is the set of available options for a Client
type options struct {
	withEndpoint   string
	withHTTPClient *http.Client
	withCACert     string
	withUserAgent  string
	withLogger     hclog.Logger
	withMaxPages   int
	withPageSize   int
}

func defaults() options {
	return options{
		withEndpoint:  DefaultEndpoint,
		withUserAgent: DefaultUserAgent,
		withLogger:    hclog.NewNullLogger(),
		withMaxPages:  DefaultMaxPages,
	}
}

func getOpts(opt ...Option) options {
	opts := defaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithEndpoint provides the base URL of the calendar API, for example
// https://outlook.office.com/api/beta
func WithEndpoint(endpoint string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withEndpoint = endpoint
		}
	}
}

// WithHTTPClient provides the http client used for API calls. It takes
// precedence over WithCACert.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withHTTPClient = c
		}
	}
}

// WithCACert provides an optional PEM encoded CA cert to trust when calling
// the API.
func WithCACert(pem string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCACert = pem
		}
	}
}

// WithUserAgent provides the User-Agent sent on every call.
func WithUserAgent(ua string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && ua != "" {
			o.withUserAgent = ua
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithMaxPages bounds how many pages CalendarViewAll follows.
func WithMaxPages(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withMaxPages = n
		}
	}
}

// WithPageSize asks the API for at most n events per page, using the
// odata.maxpagesize preference. Zero leaves the page size to the API.
func WithPageSize(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withPageSize = n
		}
	}
}
