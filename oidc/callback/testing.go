package callback

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/hashicorp/calview/oidc"
	"github.com/hashicorp/calview/tokencache"
	"github.com/stretchr/testify/require"
)

// testSuccessFn is a test SuccessResponseFunc
func testSuccessFn(stateId string, c *oidc.IdentityClaims, r *tokencache.Record, w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("login successful: " + c.UserId()))
}

// testFailFn is a test ErrorResponseFunc
func testFailFn(stateId string, r *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
	if e != nil {
		w.WriteHeader(http.StatusInternalServerError)
		j, _ := json.Marshal(&AuthenErrorResponse{
			Error:       "internal-callback-error",
			Description: e.Error(),
		})
		_, _ = w.Write(j)
		return
	}
	if r != nil {
		w.WriteHeader(http.StatusUnauthorized)
		j, _ := json.Marshal(r)
		_, _ = w.Write(j)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	j, _ := json.Marshal(&AuthenErrorResponse{
		Error: "unknown-callback-error",
	})
	_, _ = w.Write(j)
}

// testNewProvider creates a new Provider.  It uses the TestProvider (tp) to
// properly construct the provider's configuration. This is helpful
// internally, but intentionally not exported.
func testNewProvider(t *testing.T, tp *oidc.TestProvider, cache tokencache.Cache, opt ...oidc.Option) *oidc.Provider {
	const op = "testNewProvider"
	t.Helper()
	require := require.New(t)
	require.NotNilf(cache, "%s: cache is nil", op)

	clientId, clientSecret := tp.ClientCreds()
	opt = append([]oidc.Option{oidc.WithProviderCA(tp.CACert())}, opt...)
	c, err := oidc.NewConfig(tp.Authority(), clientId, oidc.ClientSecret(clientSecret), opt...)
	require.NoError(err)
	p, err := oidc.NewProvider(c, cache)
	require.NoError(err)
	t.Cleanup(p.Done)
	return p
}

// testFormPost builds the request the authority's form_post page sends to the
// redirect URL.
func testFormPost(t *testing.T, redirectURL string, form url.Values) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, redirectURL, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
