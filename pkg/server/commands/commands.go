// Package commands holds the use cases of the help request service. Each
// command validates its input, talks to the datastore and translates storage
// errors with serverErrors.HandleError. Commands never publish events, the
// server does that once a command has succeeded.
package commands

import (
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"

	"github.com/vecinotech/vecinotech/pkg/id"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
)

var tracer = otel.Tracer("vecinotech/pkg/server/commands")

// Clock returns the current time. Commands default to time.Now.
type Clock func() time.Time

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return serverErrors.ErrMissingUser
	}
	return nil
}

// requireRequestID rejects ids that cannot name any request.
func requireRequestID(requestID string) error {
	if !id.IsValid(requestID) {
		return serverErrors.ErrRequestNotFound
	}
	return nil
}

// requiredText trims s and checks it is non blank and at most max runes long.
func requiredText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", serverErrors.InvalidArgument("%s is required", field)
	}
	return optionalText(field, s, max)
}

func optionalText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		return "", serverErrors.InvalidArgument("%s must be at most %d characters", field, max)
	}
	return s, nil
}
