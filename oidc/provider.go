package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/calview/oidc/internal/strutils"
	sdkHttp "github.com/hashicorp/calview/sdk/http"
	"github.com/hashicorp/calview/tokencache"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// DefaultScopes are requested on every sign-in, ahead of any configured or
// per-call scopes.
var DefaultScopes = []string{oidc.ScopeOpenID, oidc.ScopeOfflineAccess, "profile"}

const (
	// ResponseTypeHybrid asks the authority for both an authorization code
	// and an id_token.
	ResponseTypeHybrid = "code id_token"

	// ResponseModeFormPost has the authority POST the response to the
	// redirect URL.
	ResponseModeFormPost = "form_post"
)

// Provider drives the authorization code + id_token hybrid flow against one
// authority and keeps the resulting tokens in a tokencache.Cache.
//
// The cache is the single owner of token state; Provider holds no tokens of
// its own. AccessToken is the one place callers should get a usable access
// token from.
type Provider struct {
	config *Config
	cache  tokencache.Cache
	client *http.Client
	logger hclog.Logger

	// verifier is only set when the config has a JWKSURL.
	verifier *oidc.IDTokenVerifier

	nowFunc func() time.Time

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like: refreshing JWKs key sets
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider. Creating a Provider makes no
// http requests.
//
// See Provider.Done() which must be called to release provider resources.
// Supported options:
//	WithNow
func NewProvider(c *Config, cache tokencache.Cache, opt ...Option) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if cache == nil {
		return nil, fmt.Errorf("%s: token cache is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with it's background ctx/cancel will
	// allow us to use p.Done() to release any resources when returning errors
	// from this function.
	p := &Provider{
		config:              c,
		cache:               cache,
		logger:              c.Logger,
		nowFunc:             opts.withNowFunc,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}
	if p.logger == nil {
		p.logger = hclog.NewNullLogger()
	}

	client, err := c.HttpClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	if c.JWKSURL != "" {
		algs := c.SupportedSigningAlgs
		if len(algs) == 0 {
			algs = []Alg{RS256}
		}
		supported := make([]string, 0, len(algs))
		for _, a := range algs {
			supported = append(supported, string(a))
		}
		keySet := oidc.NewRemoteKeySet(HttpClientContext(p.backgroundCtx, client), c.JWKSURL)
		p.verifier = oidc.NewVerifier(c.Issuer, keySet, &oidc.Config{
			ClientID:             c.ClientId,
			SupportedSigningAlgs: supported,
			SkipIssuerCheck:      c.Issuer == "",
			Now:                  p.now,
		})
	}
	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// AuthURL builds the authority's authorize URL for one sign-in attempt. The
// scopes are requested after DefaultScopes and the configured scopes, without
// duplicates. state and nonce are normally a State's Id() and Nonce(); they
// must be non-empty and different.
//
// AuthURL makes no http requests.
func (p *Provider) AuthURL(scopes []string, redirectURL, state, nonce string) (string, error) {
	const op = "Provider.AuthURL"
	switch {
	case state == "":
		return "", fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	case nonce == "":
		return "", fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	case state == nonce:
		return "", fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	case redirectURL == "":
		return "", fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	all := make([]string, 0, len(DefaultScopes)+len(p.config.Scopes)+len(scopes))
	all = append(all, DefaultScopes...)
	all = append(all, p.config.Scopes...)
	all = append(all, scopes...)

	oauth2Config := p.oauth2Config(redirectURL, strutils.RemoveDuplicatesStable(all, false))
	return oauth2Config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", ResponseTypeHybrid),
		oauth2.SetAuthURLParam("response_mode", ResponseModeFormPost),
		oidc.Nonce(nonce),
	), nil
}

// Exchange redeems an authorization code at the token endpoint and stores the
// resulting tokens for userId. The redirectURL must be the one used to build
// the authorize URL.
//
// A rejected code returns a *TokenExchangeError carrying the provider's
// error_description.
func (p *Provider) Exchange(ctx context.Context, authorizationCode, redirectURL, userId string) (*tokencache.Record, error) {
	const op = "Provider.Exchange"
	switch {
	case authorizationCode == "":
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	case userId == "":
		return nil, fmt.Errorf("%s: user id is empty: %w", op, ErrInvalidParameter)
	}
	p.logger.Debug("exchanging authorization code", "user_id", userId)

	oauth2Config := p.oauth2Config(redirectURL, nil)
	tk, err := oauth2Config.Exchange(HttpClientContext(ctx, p.client), authorizationCode)
	if err != nil {
		exErr := newTokenExchangeError(err)
		p.logger.Warn("authorization code exchange failed", "user_id", userId, "error", exErr)
		return nil, fmt.Errorf("%s: %w", op, exErr)
	}
	r, err := p.store(ctx, userId, tk)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// Refresh redeems a refresh token at the token endpoint and replaces the
// tokens stored for userId. The authority may rotate the refresh token; the
// new one simply overwrites the old one.
func (p *Provider) Refresh(ctx context.Context, refreshToken, redirectURL, userId string) (*tokencache.Record, error) {
	const op = "Provider.Refresh"
	switch {
	case refreshToken == "":
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	case userId == "":
		return nil, fmt.Errorf("%s: user id is empty: %w", op, ErrInvalidParameter)
	}
	p.logger.Debug("refreshing access token", "user_id", userId, "refresh_token", RefreshToken(refreshToken))

	oauth2Config := p.oauth2Config(redirectURL, nil)
	// an empty access token forces the token source to go to the endpoint
	ts := oauth2Config.TokenSource(HttpClientContext(ctx, p.client), &oauth2.Token{RefreshToken: refreshToken})
	tk, err := ts.Token()
	if err != nil {
		exErr := newTokenExchangeError(err)
		p.logger.Warn("refresh token exchange failed", "user_id", userId, "error", exErr)
		return nil, fmt.Errorf("%s: %w", op, exErr)
	}
	r, err := p.store(ctx, userId, tk)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// AccessToken returns a currently valid access token for userId, refreshing
// it through the token cache when the cached one has expired. ErrNotFound is
// returned when nothing is cached for the user, or when the cached token has
// expired and there is no refresh token; the user has to sign in again.
//
// A failed refresh returns a *TokenExchangeError. Callers should also send the
// user back through sign-in in that case rather than retry.
func (p *Provider) AccessToken(ctx context.Context, userId, redirectURL string) (string, error) {
	const op = "Provider.AccessToken"
	if userId == "" {
		return "", fmt.Errorf("%s: user id is empty: %w", op, ErrInvalidParameter)
	}
	r, err := p.cache.Get(ctx, userId)
	switch {
	case errors.Is(err, tokencache.ErrNotFound):
		return "", fmt.Errorf("%s: no tokens cached for user: %w", op, ErrNotFound)
	case err != nil:
		return "", fmt.Errorf("%s: unable to read token cache: %w", op, err)
	}
	if !r.Expired(p.now()) {
		p.logger.Trace("using cached access token", "user_id", userId, "access_token", AccessToken(r.AccessToken), "expires", r.ExpiresAt)
		return r.AccessToken, nil
	}
	if r.RefreshToken == "" {
		p.logger.Debug("cached access token expired and no refresh token", "user_id", userId, "access_token", AccessToken(r.AccessToken))
		return "", fmt.Errorf("%s: access token expired and no refresh token cached: %w", op, ErrNotFound)
	}
	refreshed, err := p.Refresh(ctx, r.RefreshToken, redirectURL, userId)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return refreshed.AccessToken, nil
}

// SignOut removes the user's tokens from the cache. Nothing is revoked at the
// authority.
func (p *Provider) SignOut(ctx context.Context, userId string) error {
	const op = "Provider.SignOut"
	if err := p.cache.Remove(ctx, userId); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.logger.Debug("signed out", "user_id", userId)
	return nil
}

// VerifyIdToken verifies the id_token's signature, audience, expiry, issuer
// (when configured) and nonce, and returns its claims. It requires a config
// with a JWKSURL and returns ErrVerificationNotConfigured otherwise.
//
// VerifyIdToken is separate from, and stricter than, ValidateNonce.
func (p *Provider) VerifyIdToken(ctx context.Context, t IdToken, nonce string) (*IdentityClaims, error) {
	const op = "Provider.VerifyIdToken"
	if p.verifier == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrVerificationNotConfigured)
	}
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return nil, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	verified, err := p.verifier.Verify(HttpClientContext(ctx, p.client), string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrIdTokenVerificationFailed)
	}
	if verified.Nonce != nonce {
		return nil, fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrInvalidNonce)
	}
	var c IdentityClaims
	if err := verified.Claims(&c); err != nil {
		return nil, fmt.Errorf("%s: unable to decode claims: %v: %w", op, err, ErrMalformedToken)
	}
	return &c, nil
}

// Config returns the provider's configuration.
func (p *Provider) Config() *Config { return p.config }

func (p *Provider) store(ctx context.Context, userId string, tk *oauth2.Token) (*tokencache.Record, error) {
	r, err := p.cache.Upsert(ctx, userId, tokenResponse(tk, p.now()))
	if err != nil {
		return nil, fmt.Errorf("unable to store tokens: %w", err)
	}
	p.logger.Debug("tokens stored", "user_id", userId,
		"access_token", AccessToken(r.AccessToken),
		"refresh_token", RefreshToken(r.RefreshToken),
		"expires", r.ExpiresAt)
	return r, nil
}

func (p *Provider) oauth2Config(redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ClientId,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.config.AuthEndpoint(),
			TokenURL:  p.config.TokenEndpoint(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: scopes,
	}
}

// now returns the current time using the optional nowFunc.
func (p *Provider) now() time.Time {
	if p.nowFunc != nil {
		return p.nowFunc()
	}
	return time.Now() // fallback to this default
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	return sdkHttp.OidcClientContext(ctx, client)
}

// tokenErrorResponse is the token endpoint's error body.
type tokenErrorResponse struct {
	Error         string `json:"error"`
	Description   string `json:"error_description"`
	ErrorCodes    []int  `json:"error_codes"`
	Timestamp     string `json:"timestamp"`
	TraceId       string `json:"trace_id"`
	CorrelationId string `json:"correlation_id"`
}

// newTokenExchangeError classifies an error returned by the oauth2 package.
func newTokenExchangeError(err error) *TokenExchangeError {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return &TokenExchangeError{Wrapped: err}
	}
	e := &TokenExchangeError{Wrapped: err}
	if re.Response != nil {
		e.StatusCode = re.Response.StatusCode
	}
	var body tokenErrorResponse
	if jsonErr := json.Unmarshal(re.Body, &body); jsonErr == nil {
		e.Code = body.Error
		e.Description = body.Description
		e.ErrorCodes = body.ErrorCodes
		e.Timestamp = body.Timestamp
		e.TraceId = body.TraceId
		e.CorrelationId = body.CorrelationId
	}
	if e.Description == "" {
		e.Description = strings.TrimSpace(string(re.Body))
	}
	return e
}

// providerOptions is the set of available options for Provider functions
type providerOptions struct {
	withNowFunc func() time.Time
}

// providerDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func providerDefaults() providerOptions {
	return providerOptions{}
}

// getProviderOpts gets the provider defaults and applies the opt overrides passed in
func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
