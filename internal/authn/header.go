package authn

import (
	"net/http"
	"strings"
)

const (
	// UserIDHeader names the trusted header read by HeaderAuthenticator.
	UserIDHeader = "X-User-Id"
	// UserIDParam is its query parameter fallback.
	UserIDParam = "user_id"

	maxUserIDLength = 128
)

// HeaderAuthenticator trusts the user id sent by the client. It is meant for
// development and for deployments behind an authenticating proxy.
type HeaderAuthenticator struct{}

var _ Authenticator = (*HeaderAuthenticator)(nil)

func (HeaderAuthenticator) Authenticate(r *http.Request) (*Claims, error) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get(UserIDParam))
	}
	if userID == "" || len(userID) > maxUserIDLength {
		return nil, ErrUnauthenticated
	}
	return &Claims{Subject: userID}, nil
}

func (HeaderAuthenticator) Close() {}
