package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vecinotech/vecinotech/internal/authn"
	"github.com/vecinotech/vecinotech/pkg/retryablehttp"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
)

type RemoteOidcAuthenticator struct {
	IssuerURLs []string
	Audience   string

	JwksURI string
	JWKs    *keyfunc.JWKS

	httpClient *http.Client
}

var (
	jwkRefreshInterval = 48 * time.Hour

	errInvalidAudience = unauthenticated("invalid audience")
	errInvalidClaims   = unauthenticated("invalid claims")
	errInvalidIssuer   = unauthenticated("invalid issuer")
	errInvalidSubject  = unauthenticated("invalid subject")
	errInvalidToken    = unauthenticated("invalid bearer token")

	fetchJWKs = fetchJWK
)

var _ authn.Authenticator = (*RemoteOidcAuthenticator)(nil)

func unauthenticated(msg string) error {
	return &serverErrors.Error{Kind: serverErrors.ErrUnauthenticated, Message: msg}
}

// NewRemoteOidcAuthenticator fetches the issuer's discovery document and keys.
// The first issuer is the one queried; the others are accepted aliases.
func NewRemoteOidcAuthenticator(issuerURLs []string, audience string) (*RemoteOidcAuthenticator, error) {
	if len(issuerURLs) == 0 {
		return nil, errors.New("at least one issuer is required")
	}
	cfg := retryablehttp.DefaultConfig()
	cfg.RetryMax = 3
	oidc := &RemoteOidcAuthenticator{
		IssuerURLs: issuerURLs,
		Audience:   audience,
		httpClient: retryablehttp.StandardClient(cfg, nil),
	}
	if err := fetchJWKs(oidc); err != nil {
		return nil, err
	}
	return oidc, nil
}

func (oidc *RemoteOidcAuthenticator) Authenticate(r *http.Request) (*authn.Claims, error) {
	raw, err := authn.BearerToken(r)
	if err != nil {
		return nil, err
	}

	jwtParser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithIssuedAt())

	token, err := jwtParser.Parse(raw, oidc.JWKs.Keyfunc)
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidClaims
	}

	issuer, err := claims.GetIssuer()
	if err != nil || !slices.Contains(oidc.IssuerURLs, issuer) {
		return nil, errInvalidIssuer
	}

	audiences, err := claims.GetAudience()
	if err != nil || !slices.Contains(audiences, oidc.Audience) {
		return nil, errInvalidAudience
	}

	// the subject is the user id, so it is mandatory
	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return nil, errInvalidSubject
	}

	principal := &authn.Claims{
		Subject: subject,
		Scopes:  make(map[string]bool),
	}

	// optional scopes
	if scope, ok := claims["scope"].(string); ok {
		for _, s := range strings.Fields(scope) {
			principal.Scopes[s] = true
		}
	}

	return principal, nil
}

func fetchJWK(oidc *RemoteOidcAuthenticator) error {
	oidcConfig, err := oidc.GetConfiguration()
	if err != nil {
		return fmt.Errorf("error fetching OIDC configuration: %w", err)
	}

	oidc.JwksURI = oidcConfig.JWKsURI
	jwks, err := oidc.GetKeys()
	if err != nil {
		return fmt.Errorf("error fetching OIDC keys: %w", err)
	}

	oidc.JWKs = jwks

	return nil
}

func (oidc *RemoteOidcAuthenticator) GetKeys() (*keyfunc.JWKS, error) {
	jwks, err := keyfunc.Get(oidc.JwksURI, keyfunc.Options{
		Client:          oidc.httpClient,
		RefreshInterval: jwkRefreshInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching keys from %v: %w", oidc.JwksURI, err)
	}
	return jwks, nil
}

func (oidc *RemoteOidcAuthenticator) GetConfiguration() (*authn.OidcConfig, error) {
	wellKnown := strings.TrimSuffix(oidc.IssuerURLs[0], "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequest(http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, fmt.Errorf("error forming request to get OIDC: %w", err)
	}

	res, err := oidc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error getting OIDC: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code getting OIDC: %v", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	oidcConfig := &authn.OidcConfig{}
	if err := json.Unmarshal(body, oidcConfig); err != nil {
		return nil, fmt.Errorf("failed parsing document: %w", err)
	}

	if oidcConfig.Issuer == "" {
		return nil, errors.New("missing issuer value")
	}

	if oidcConfig.JWKsURI == "" {
		return nil, errors.New("missing jwks_uri value")
	}
	return oidcConfig, nil
}

func (oidc *RemoteOidcAuthenticator) Close() {
	if oidc.JWKs != nil {
		oidc.JWKs.EndBackground()
	}
}
