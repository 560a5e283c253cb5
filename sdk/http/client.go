package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/calview/sdk/id"
	"github.com/hashicorp/go-cleanhttp"
)

var (
	ErrInvalidCertificatePem = errors.New("invalid certificate PEM")
)

const (
	// ClientRequestIdHeader carries a fresh correlation id on every request.
	ClientRequestIdHeader = "client-request-id"

	// ReturnClientRequestIdHeader asks the server to echo the correlation id.
	ReturnClientRequestIdHeader = "return-client-request-id"
)

// NewClient creates a new http client which will use the optional CA certificate PEM
// if provided, otherwise it will use the installed system CA chain. When
// userAgent is not empty every request is sent with that User-Agent, a fresh
// client-request-id and return-client-request-id: true, unless the request
// already sets them.
func NewClient(caPEM string, userAgent string) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}

	var rt http.RoundTripper = tr
	if userAgent != "" {
		rt = &headerTransport{base: tr, userAgent: userAgent}
	}
	return &http.Client{
		Transport: rt,
	}, nil
}

// headerTransport stamps the client identification headers on outbound
// requests.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper. The request is cloned before headers
// are added.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	if r.Header.Get(ClientRequestIdHeader) == "" {
		cid, err := id.NewCorrelationId()
		if err != nil {
			return nil, err
		}
		r.Header.Set(ClientRequestIdHeader, cid)
		r.Header.Set(ReturnClientRequestIdHeader, "true")
	}
	return t.base.RoundTrip(r)
}

// OidcClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func OidcClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}
