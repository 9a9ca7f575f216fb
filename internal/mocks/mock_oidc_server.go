package mocks

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const kidHeader = "1"

// MockOidcServer serves a discovery document and a one key JWKS, and signs
// tokens with the matching private key.
type MockOidcServer struct {
	privateKey *rsa.PrivateKey
	httpServer *httptest.Server
}

// NewMockOidcServer starts a mock OIDC issuer on a random local port.
// You must call Close afterward.
func NewMockOidcServer() (*MockOidcServer, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	server := &MockOidcServer{privateKey: privateKey}
	server.httpServer = httptest.NewServer(server.handler())
	return server, nil
}

func (server *MockOidcServer) handler() http.Handler {
	publicKey := &server.privateKey.PublicKey
	mux := http.NewServeMux()

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   server.URL(),
			"jwks_uri": server.URL() + "/jwks.json",
		})
	})

	mux.HandleFunc("/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{
				{
					"kid": kidHeader,
					"kty": "RSA",
					"alg": "RS256",
					"use": "sig",
					"n":   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
				},
			},
		})
	})

	return mux
}

// URL is the issuer URL.
func (server *MockOidcServer) URL() string {
	return server.httpServer.URL
}

func (server *MockOidcServer) Close() {
	server.httpServer.Close()
}

// GetToken returns an RS256 token for subject issued by this server.
func (server *MockOidcServer) GetToken(audience, subject string) (string, error) {
	return server.Sign(jwt.RegisteredClaims{
		Issuer:    server.URL(),
		Audience:  []string{audience},
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
}

// Sign signs arbitrary claims with the server key.
func (server *MockOidcServer) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kidHeader
	return token.SignedString(server.privateKey)
}
