// Package authn resolves the caller of an HTTP request to a user id.
package authn

import (
	"context"
	"net/http"
	"strings"

	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
)

var (
	ErrUnauthenticated    = &serverErrors.Error{Kind: serverErrors.ErrUnauthenticated, Message: "unauthenticated"}
	ErrMissingBearerToken = &serverErrors.Error{Kind: serverErrors.ErrUnauthenticated, Message: "missing bearer token"}
)

// AccessTokenParam carries the bearer token on requests that cannot set
// headers, such as browser WebSocket handshakes.
const AccessTokenParam = "access_token"

// Claims identifies an authenticated caller. Subject is the user id.
type Claims struct {
	Subject string
	Scopes  map[string]bool
}

type Authenticator interface {
	// Authenticate returns the caller's claims, or an error matching
	// serverErrors.ErrUnauthenticated.
	Authenticate(r *http.Request) (*Claims, error)

	// Close releases background resources such as key refresh loops.
	Close()
}

// OidcConfig contains authorization server metadata. See https://datatracker.ietf.org/doc/html/rfc8414#section-2
type OidcConfig struct {
	Issuer  string `json:"issuer"`
	JWKsURI string `json:"jwks_uri"`
}

type ctxKey struct{}

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(*Claims)
	return claims, ok && claims != nil
}

// UserID returns the authenticated subject stored in ctx, or "".
func UserID(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Subject
	}
	return ""
}

// BearerToken extracts the token from the Authorization header, falling back
// to the access_token query parameter.
func BearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrMissingBearerToken
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get(AccessTokenParam); token != "" {
		return token, nil
	}
	return "", ErrMissingBearerToken
}

// Middleware authenticates every request with a, storing the claims in the
// request context. Failures are answered by onError.
func Middleware(a Authenticator, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}
