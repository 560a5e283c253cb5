package oidc

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yhat/scrape"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// testParseFormPost parses an authorize endpoint form_post page and returns
// the form's action and its hidden inputs, keyed by id.
func testParseFormPost(t *testing.T, body io.Reader) (string, url.Values) {
	t.Helper()
	require := require.New(t)
	root, err := html.Parse(body)
	require.NoError(err)
	form, ok := scrape.Find(root, scrape.ByTag(atom.Form))
	require.True(ok, "no form found")
	require.Equal("post", strings.ToLower(scrape.Attr(form, "method")))

	values := url.Values{}
	for _, in := range scrape.FindAll(form, scrape.ByTag(atom.Input)) {
		values.Set(scrape.Attr(in, "id"), scrape.Attr(in, "value"))
	}
	return scrape.Attr(form, "action"), values
}

func Test_StartTestProvider(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	tp := StartTestProvider(t)
	assert.True(strings.HasPrefix(tp.Addr(), "https://127.0.0.1:"))
	assert.Equal(tp.Addr()+"/common", tp.Authority())
	assert.NotEmpty(tp.CACert())
	pub, priv := tp.SigningKeys()
	assert.NotEmpty(pub)
	assert.NotEmpty(priv)
}

func TestTestProvider_authorize(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	client := tp.HTTPClient()
	clientId, _ := tp.ClientCreds()

	authorize := func(t *testing.T, qv url.Values) (int, string, url.Values) {
		t.Helper()
		resp, err := client.Get(tp.Authority() + AuthorizePath + "?" + qv.Encode())
		require.NoError(t, err)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, "", nil
		}
		action, values := testParseFormPost(t, resp.Body)
		return resp.StatusCode, action, values
	}
	valid := func() url.Values {
		return url.Values{
			"client_id":     {clientId},
			"response_type": {ResponseTypeHybrid},
			"response_mode": {ResponseModeFormPost},
			"scope":         {"openid offline_access profile"},
			"redirect_uri":  {testRedirectURL},
			"state":         {"s1"},
			"nonce":         {"n1"},
		}
	}

	t.Run("form-post", func(t *testing.T) {
		assert := assert.New(t)
		status, action, values := authorize(t, valid())
		assert.Equal(http.StatusOK, status)
		assert.Equal(testRedirectURL, action)
		assert.Equal("test-auth-code", values.Get("code"))
		assert.Equal("s1", values.Get("state"))
		assert.True(ValidateNonce(values.Get("id_token"), "n1"))
	})
	t.Run("bad-response-type", func(t *testing.T) {
		assert := assert.New(t)
		qv := valid()
		qv.Set("response_type", "code")
		status, action, values := authorize(t, qv)
		assert.Equal(http.StatusOK, status)
		assert.Equal(testRedirectURL, action)
		assert.Equal("unsupported_response_type", values.Get("error"))
		assert.Equal("s1", values.Get("state"))
	})
	t.Run("redirect-not-allowed", func(t *testing.T) {
		assert := assert.New(t)
		qv := valid()
		qv.Set("redirect_uri", "https://evil.example.com")
		status, _, _ := authorize(t, qv)
		assert.Equal(http.StatusBadRequest, status)
	})
}

func TestTestProvider_setters(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	tp := StartTestProvider(t)

	tp.SetClientCreds("id", "secret")
	id, secret := tp.ClientCreds()
	assert.Equal("id", id)
	assert.Equal("secret", secret)

	tp.SetExpectedAuthCode("code")
	assert.Equal("code", tp.expectedAuthCode)

	tp.SetAllowedRedirectURIs([]string{"https://a", "https://b"})
	assert.Equal([]string{"https://a", "https://b"}, tp.allowedRedirectURIs)

	tp.SetExpiresIn("60")
	assert.Equal("60", tp.expiresIn)

	tp.SetTokenError(http.StatusBadRequest, "invalid_grant", "nope")
	assert.Equal(&testTokenError{statusCode: http.StatusBadRequest, code: "invalid_grant", description: "nope"}, tp.tokenError)
	tp.SetTokenError(0, "", "")
	assert.Nil(tp.tokenError)

	tp.SetCustomClaims(map[string]interface{}{"name": "Bob"})
	c, err := ParseClaims(tp.IdToken("n1"))
	assert.NoError(err)
	assert.Equal("Bob", c.Name)
	assert.Equal("n1", c.Nonce)
	assert.Equal([]string{"id"}, []string(c.Audience))
}
