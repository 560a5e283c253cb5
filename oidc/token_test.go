package oidc

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/calview/tokencache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func Test_tokenResponse(t *testing.T) {
	t.Parallel()
	now := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	tests := []struct {
		name  string
		token *oauth2.Token
		want  *tokencache.TokenResponse
	}{
		{
			name: "expires-in-string",
			token: (&oauth2.Token{
				TokenType:    "Bearer",
				AccessToken:  "at",
				RefreshToken: "rt",
			}).WithExtra(map[string]interface{}{
				"expires_in": "3599",
				"id_token":   "a.b.c",
				"scope":      "openid calendars.read",
			}),
			want: &tokencache.TokenResponse{
				TokenType:    "Bearer",
				AccessToken:  "at",
				RefreshToken: "rt",
				ExpiresIn:    "3599",
				IdToken:      "a.b.c",
				Scope:        "openid calendars.read",
			},
		},
		{
			name: "expires-in-number",
			token: (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]interface{}{
				"expires_in": float64(3600),
				"resource":   "https://outlook.office.com",
			}),
			want: &tokencache.TokenResponse{
				AccessToken: "at",
				ExpiresIn:   "3600",
				Resource:    "https://outlook.office.com",
			},
		},
		{
			name: "expires-in-json-number",
			token: (&oauth2.Token{AccessToken: "at"}).WithExtra(map[string]interface{}{
				"expires_in": json.Number("120"),
			}),
			want: &tokencache.TokenResponse{AccessToken: "at", ExpiresIn: "120"},
		},
		{
			name:  "from-expiry",
			token: &oauth2.Token{AccessToken: "at", Expiry: now.Add(10 * time.Minute)},
			want:  &tokencache.TokenResponse{AccessToken: "at", ExpiresIn: "600"},
		},
		{
			name:  "no-expiry",
			token: &oauth2.Token{AccessToken: "at"},
			want:  &tokencache.TokenResponse{AccessToken: "at"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			assert.Equal(tt.want, tokenResponse(tt.token, now))
		})
	}
}

func TestRedactedTokens(t *testing.T) {
	t.Parallel()
	const secret = "super secret token"
	tests := []struct {
		name  string
		token interface {
			fmt.Stringer
			json.Marshaler
		}
		want string
	}{
		{name: "access-token", token: AccessToken(secret), want: RedactedAccessToken},
		{name: "refresh-token", token: RefreshToken(secret), want: RedactedRefreshToken},
		{name: "id-token", token: IdToken(secret), want: RedactedIdToken},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			assert.Equal(tt.want, tt.token.String())
			assert.Equal(tt.want, fmt.Sprintf("%v", tt.token))

			got, err := json.Marshal(struct {
				T interface{} `json:"t"`
			}{T: tt.token})
			require.NoError(err)
			assert.Equal(fmt.Sprintf(`{"t":"%s"}`, tt.want), string(got))
			assert.NotContains(string(got), secret)
		})
	}
}
