package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/internal/authn"
	"github.com/vecinotech/vecinotech/internal/mocks"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
)

func TestRemoteOidcAuthenticator_Authenticate(t *testing.T) {
	t.Run("missing_bearer_token", func(t *testing.T) {
		authenticator := &RemoteOidcAuthenticator{}
		_, err := authenticator.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, authn.ErrMissingBearerToken, err)
	})

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	authenticator := &RemoteOidcAuthenticator{
		IssuerURLs: []string{"https://issuer.example", "https://alias.example"},
		Audience:   "vecinotech",
		JWKs: keyfunc.NewGiven(map[string]keyfunc.GivenKey{
			"kid_1": keyfunc.NewGivenRSA(&privateKey.PublicKey, keyfunc.GivenKeyOptions{
				Algorithm: "RS256",
			}),
		}),
	}

	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss": "https://issuer.example",
			"aud": "vecinotech",
			"sub": "ana",
			"exp": time.Now().Add(time.Minute).Unix(),
		}
	}
	with := func(key string, value interface{}) jwt.MapClaims {
		c := valid()
		if value == nil {
			delete(c, key)
		} else {
			c[key] = value
		}
		return c
	}

	tests := []struct {
		name          string
		kid           string
		key           *rsa.PrivateKey
		claims        jwt.MapClaims
		expectedError string
		wantSubject   string
		wantScopes    map[string]bool
	}{
		{name: "valid", claims: valid(), wantSubject: "ana", wantScopes: map[string]bool{}},
		{name: "issuer_alias", claims: with("iss", "https://alias.example"), wantSubject: "ana", wantScopes: map[string]bool{}},
		{
			name:        "scopes",
			claims:      with("scope", "read write"),
			wantSubject: "ana",
			wantScopes:  map[string]bool{"read": true, "write": true},
		},
		{name: "expired", claims: with("exp", time.Now().Add(-10*time.Minute).Unix()), expectedError: "invalid bearer token"},
		{name: "future_iat", claims: with("iat", time.Now().Add(10*time.Minute).Unix()), expectedError: "invalid bearer token"},
		{name: "unknown_kid", kid: "kid_2", claims: valid(), expectedError: "invalid bearer token"},
		{name: "wrong_key", key: otherKey, claims: valid(), expectedError: "invalid bearer token"},
		{name: "wrong_issuer", claims: with("iss", "https://evil.example"), expectedError: "invalid issuer"},
		{name: "missing_issuer", claims: with("iss", nil), expectedError: "invalid issuer"},
		{name: "wrong_audience", claims: with("aud", "someone-else"), expectedError: "invalid audience"},
		{name: "missing_subject", claims: with("sub", nil), expectedError: "invalid subject"},
		{name: "non_string_subject", claims: with("sub", 12), expectedError: "invalid subject"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kid := tc.kid
			if kid == "" {
				kid = "kid_1"
			}
			key := tc.key
			if key == nil {
				key = privateKey
			}
			token := jwt.NewWithClaims(jwt.SigningMethodRS256, tc.claims)
			token.Header["kid"] = kid
			signed, err := token.SignedString(key)
			require.NoError(t, err)

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer "+signed)

			claims, err := authenticator.Authenticate(r)
			if tc.expectedError != "" {
				require.ErrorIs(t, err, serverErrors.ErrUnauthenticated)
				require.Equal(t, tc.expectedError, serverErrors.PublicMessage(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantSubject, claims.Subject)
			require.Equal(t, tc.wantScopes, claims.Scopes)
		})
	}
}

func TestRemoteOidcAuthenticator_AgainstIssuer(t *testing.T) {
	server, err := mocks.NewMockOidcServer()
	require.NoError(t, err)
	defer server.Close()

	authenticator, err := NewRemoteOidcAuthenticator([]string{server.URL()}, "vecinotech")
	require.NoError(t, err)
	defer authenticator.Close()
	require.Equal(t, server.URL()+"/jwks.json", authenticator.JwksURI)

	token, err := server.GetToken("vecinotech", "ana")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil)
	claims, err := authenticator.Authenticate(r)
	require.NoError(t, err)
	require.Equal(t, "ana", claims.Subject)
}

func TestNewRemoteOidcAuthenticator_Errors(t *testing.T) {
	_, err := NewRemoteOidcAuthenticator(nil, "vecinotech")
	require.Error(t, err)

	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	_, err = NewRemoteOidcAuthenticator([]string{notFound.URL}, "vecinotech")
	require.ErrorContains(t, err, "unexpected status code getting OIDC: 404")
}
