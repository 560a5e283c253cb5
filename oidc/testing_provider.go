package oidc

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/calview/oidc/internal/strutils"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
)

const (
	// TestTenant is the path segment the TestProvider serves its authority
	// under.
	TestTenant = "common"

	testKeysPath = "/discovery/v2.0/keys"
)

// TestProvider is a local authority that supports the authorization code +
// id_token hybrid flow, refresh grants and a JWKS endpoint, which makes
// writing tests much easier.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks                *jose.JSONWebKeySet
	allowedRedirectURIs []string

	mu                 sync.Mutex
	clientID           string
	clientSecret       string
	expectedAuthCode   string
	expectedAuthNonce  string
	refreshToken       string
	rotateRefreshToken bool
	omitRefreshToken   bool
	omitIDToken        bool
	expiresIn          string
	customClaims       map[string]interface{}
	tokenError         *testTokenError
	issued             int
	grants             map[string]int
	lastTokenHeader    http.Header

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T
}

type testTokenError struct {
	statusCode  int
	code        string
	description string
}

// StartTestProvider creates a disposable TestProvider served over TLS. Use
// CACert() to trust it.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		allowedRedirectURIs: []string{
			"https://example.com/callback",
		},
		clientID:         "test-client-id",
		clientSecret:     "test-client-secret",
		expectedAuthCode: "test-auth-code",
		refreshToken:     "test-refresh-token",
		expiresIn:        "3599",
		grants:           map[string]int{},
		t:                t,
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// Authority returns the authority URL to configure a Config with.
func (p *TestProvider) Authority() string { return p.Addr() + "/" + TestTenant }

// JWKSURL returns the URL the provider publishes its signing keys at.
func (p *TestProvider) JWKSURL() string { return p.Authority() + testKeysPath }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a client that trusts the provider's CA and doesn't
// follow redirects, which is what a browser test needs to look at the
// authorize endpoint's responses.
func (p *TestProvider) HTTPClient() *http.Client {
	c := &Config{ProviderCA: p.caCert}
	client, err := c.HttpClient()
	require.NoError(p.t, err)
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return client
}

// SigningKeys returns the test provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// ClientCreds returns the client id and secret the provider accepts.
func (p *TestProvider) ClientCreds() (clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID, p.clientSecret
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code posted back by the authorize
// endpoint and the one accepted by the token endpoint.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetExpectedAuthNonce configures the nonce required by the authorize endpoint
// and embedded in issued id_tokens.
func (p *TestProvider) SetExpectedAuthNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthNonce = nonce
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the OIDC workflow. If not configured a sample of
// "https://example.com/callback" is used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetRefreshToken configures the refresh token issued and the one accepted by
// refresh grants.
func (p *TestProvider) SetRefreshToken(rt string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshToken = rt
}

// RotateRefreshTokens makes every refresh grant issue a new refresh token.
func (p *TestProvider) RotateRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateRefreshToken = true
}

// OmitRefreshTokens makes the token endpoint reply without a refresh_token.
func (p *TestProvider) OmitRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitRefreshToken = true
}

// OmitIDTokens forces an error state where the token endpoint does not return
// id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// SetExpiresIn sets the expires_in value of token replies. It is sent as a
// string, the way the authority does.
func (p *TestProvider) SetExpiresIn(seconds string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = seconds
}

// SetCustomClaims lets you set claims to return in the id_tokens issued by the
// provider.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetTokenError makes every token request fail with the given status and
// error body. A zero statusCode clears it.
func (p *TestProvider) SetTokenError(statusCode int, code, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if statusCode == 0 {
		p.tokenError = nil
		return
	}
	p.tokenError = &testTokenError{statusCode: statusCode, code: code, description: description}
}

// GrantCount returns how many token requests with the grant type were
// received, including failed ones.
func (p *TestProvider) GrantCount(grantType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grants[grantType]
}

// LastTokenRequestHeader returns the headers of the last token request.
func (p *TestProvider) LastTokenRequestHeader() http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTokenHeader.Clone()
}

// IdToken returns an id_token signed by the provider for its client id and
// the nonce.
func (p *TestProvider) IdToken(nonce string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idTokenLocked(nonce)
}

func (p *TestProvider) idTokenLocked(nonce string) string {
	p.t.Helper()
	return TestIdToken(p.t, p.ecdsaPrivateKey, p.Authority()+"/v2.0", p.clientID, nonce, p.customClaims)
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, statusCode int, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code          string `json:"error"`
		Desc          string `json:"error_description,omitempty"`
		ErrorCodes    []int  `json:"error_codes"`
		Timestamp     string `json:"timestamp"`
		TraceId       string `json:"trace_id"`
		CorrelationId string `json:"correlation_id"`
	}{
		Code:          errorCode,
		Desc:          errorMessage,
		ErrorCodes:    []int{70008},
		Timestamp:     time.Now().UTC().Format("2006-01-02 15:04:05Z"),
		TraceId:       "00000000-0000-0000-0000-000000000001",
		CorrelationId: "00000000-0000-0000-0000-000000000002",
	}
	p.writeJSON(w, statusCode, &body)
}

var testFormPost = template.Must(template.New("form_post").Parse(`<html><body onload="document.forms[0].submit()">
<form method="POST" action="{{.RedirectURI}}">
<input type="hidden" id="code" name="code" value="{{.Code}}"/>
<input type="hidden" id="id_token" name="id_token" value="{{.IdToken}}"/>
<input type="hidden" id="state" name="state" value="{{.State}}"/>
</form></body></html>`))

var testFormPostError = template.Must(template.New("form_post_error").Parse(`<html><body onload="document.forms[0].submit()">
<form method="POST" action="{{.RedirectURI}}">
<input type="hidden" id="error" name="error" value="{{.Error}}"/>
<input type="hidden" id="error_description" name="error_description" value="{{.Description}}"/>
<input type="hidden" id="state" name="state" value="{{.State}}"/>
</form></body></html>`))

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, redirectURI, state, errorCode, errorMessage string) {
	w.Header().Set("Content-Type", "text/html")
	_ = testFormPostError.Execute(w, map[string]string{
		"RedirectURI": redirectURI,
		"Error":       errorCode,
		"Description": errorMessage,
		"State":       state,
	})
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	prefix := "/" + TestTenant
	if !strings.HasPrefix(req.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch strings.TrimPrefix(req.URL.Path, prefix) {
	case AuthorizePath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.serveAuthorize(w, req)

	case TokenPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.serveToken(w, req)

	case testKeysPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.writeJSON(w, http.StatusOK, p.jwks)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) serveAuthorize(w http.ResponseWriter, req *http.Request) {
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri")
	state := qv.Get("state")

	if !strutils.StrListContains(p.allowedRedirectURIs, redirectURI) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintf(w, "redirect_uri %q is not allowed", redirectURI)
		return
	}
	switch {
	case qv.Get("client_id") != p.clientID:
		p.writeAuthErrorResponse(w, redirectURI, state, "unauthorized_client", "unknown client_id")
		return
	case qv.Get("response_type") != ResponseTypeHybrid:
		p.writeAuthErrorResponse(w, redirectURI, state, "unsupported_response_type", "")
		return
	case qv.Get("response_mode") != ResponseModeFormPost:
		p.writeAuthErrorResponse(w, redirectURI, state, "invalid_request", "unsupported response_mode")
		return
	case !strutils.StrListContains(strings.Fields(qv.Get("scope")), "openid"):
		p.writeAuthErrorResponse(w, redirectURI, state, "invalid_scope", "openid scope is required")
		return
	case state == "":
		p.writeAuthErrorResponse(w, redirectURI, state, "invalid_request", "missing state parameter")
		return
	case qv.Get("nonce") == "":
		p.writeAuthErrorResponse(w, redirectURI, state, "invalid_request", "missing nonce parameter")
		return
	case p.expectedAuthNonce != "" && p.expectedAuthNonce != qv.Get("nonce"):
		p.writeAuthErrorResponse(w, redirectURI, state, "access_denied", "unexpected nonce")
		return
	case p.expectedAuthCode == "":
		p.writeAuthErrorResponse(w, redirectURI, state, "access_denied", "")
		return
	}

	w.Header().Set("Content-Type", "text/html")
	_ = testFormPost.Execute(w, map[string]string{
		"RedirectURI": redirectURI,
		"Code":        p.expectedAuthCode,
		"IdToken":     p.idTokenLocked(qv.Get("nonce")),
		"State":       state,
	})
}

func (p *TestProvider) serveToken(w http.ResponseWriter, req *http.Request) {
	grantType := req.FormValue("grant_type")
	p.grants[grantType]++
	p.lastTokenHeader = req.Header.Clone()

	if p.tokenError != nil {
		p.writeTokenErrorResponse(w, p.tokenError.statusCode, p.tokenError.code, p.tokenError.description)
		return
	}
	if req.FormValue("client_id") != p.clientID || req.FormValue("client_secret") != p.clientSecret {
		p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}

	switch grantType {
	case "authorization_code":
		switch {
		case !strutils.StrListContains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		case req.FormValue("code") != p.expectedAuthCode:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "AADSTS70008: The provided authorization code or refresh token has expired due to inactivity.")
			return
		}
	case "refresh_token":
		if req.FormValue("refresh_token") == "" || req.FormValue("refresh_token") != p.refreshToken {
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "AADSTS70008: The provided authorization code or refresh token has expired due to inactivity.")
			return
		}
		if p.rotateRefreshToken {
			p.refreshToken = fmt.Sprintf("%s-rotated", p.refreshToken)
		}
	default:
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
		return
	}

	p.issued++
	reply := struct {
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
		ExpiresIn    string `json:"expires_in"`
		ExtExpiresIn string `json:"ext_expires_in"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token,omitempty"`
		IdToken      string `json:"id_token,omitempty"`
	}{
		TokenType:    "Bearer",
		Scope:        req.FormValue("scope"),
		ExpiresIn:    p.expiresIn,
		ExtExpiresIn: p.expiresIn,
		AccessToken:  fmt.Sprintf("test-access-token-%d", p.issued),
		RefreshToken: p.refreshToken,
		IdToken:      p.idTokenLocked(p.expectedAuthNonce),
	}
	if p.omitRefreshToken {
		reply.RefreshToken = ""
	}
	if p.omitIDToken {
		reply.IdToken = ""
	}
	p.writeJSON(w, http.StatusOK, &reply)
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				Algorithm: string(ES256),
				Use:       "sig",
			},
		},
	}
}
