// Package errors contains the errors surfaced to callers of the server.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/natefinch/wrap"

	"github.com/vecinotech/vecinotech/pkg/geocode"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

const InternalServerErrorMsg = "internal server error"

// StatusClientClosedRequest is reported when the caller went away.
const StatusClientClosedRequest = 499

// Kinds. Every error returned by the server matches exactly one of them with
// errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrCancelled         = errors.New("cancelled")
	ErrDeadlineExceeded  = errors.New("deadline exceeded")
	ErrInternal          = errors.New("internal")

	ErrGeocodeExhausted    = geocode.ErrGeocodeExhausted
	ErrUpstreamUnavailable = geocode.ErrUpstreamUnavailable
)

var (
	ErrRequestNotFound     = &Error{Kind: ErrNotFound, Message: "request not found"}
	ErrProfileNotFound     = &Error{Kind: ErrNotFound, Message: "profile not found"}
	ErrRatingNotFound      = &Error{Kind: ErrNotFound, Message: "rating not found"}
	ErrRequestNotAvailable = &Error{Kind: ErrInvalidTransition, Message: "request is no longer available"}
	ErrOwnRequest          = &Error{Kind: ErrInvalidTransition, Message: "cannot claim your own request"}
	ErrRequestState        = &Error{Kind: ErrInvalidTransition, Message: "request state does not allow this operation"}
	ErrAlreadyExists       = &Error{Kind: ErrInvalidTransition, Message: "already exists"}
	ErrAlreadyRated        = &Error{Kind: ErrInvalidTransition, Message: "request has already been rated"}
	ErrNotParticipant      = &Error{Kind: ErrUnauthorized, Message: "not a participant of this request"}
	ErrMissingUser         = &Error{Kind: ErrUnauthenticated, Message: "missing or invalid credentials"}
	ErrRequestCancelled    = &Error{Kind: ErrCancelled, Message: "request has been cancelled"}
	ErrRequestTimeout      = &Error{Kind: ErrDeadlineExceeded, Message: "request timed out"}
	ErrNoSearchOrigin      = &Error{Kind: ErrInvalidArgument, Message: "no search origin, provide coordinates or locate your profile first"}
	ErrNoLocation          = &Error{Kind: ErrGeocodeExhausted, Message: "address could not be located"}
	ErrGeocoderUnavailable = &Error{Kind: ErrUpstreamUnavailable, Message: "geocoding service unavailable"}
)

// Error is an error whose Message can be shown to the caller. Kind is the
// taxonomy entry it belongs to.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// InvalidArgument reports a validation failure.
func InvalidArgument(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NewInternalError hides cause behind public, or behind a generic message
// when public is empty. cause stays reachable through errors.Is and errors.As.
func NewInternalError(public string, cause error) error {
	if public == "" {
		public = InternalServerErrorMsg
	}
	return wrap.With(cause, &Error{Kind: ErrInternal, Message: public})
}

// HandleError translates storage and geocoding errors into the server
// taxonomy, keeping the original error as the cause.
func HandleError(public string, err error) error {
	var served *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &served):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return wrap.With(err, &Error{Kind: ErrNotFound, Message: notFoundMessage(public)})
	case errors.Is(err, storage.ErrNotClaimable):
		return wrap.With(err, ErrRequestNotAvailable)
	case errors.Is(err, storage.ErrOwnRequest):
		return wrap.With(err, ErrOwnRequest)
	case errors.Is(err, storage.ErrInvalidState):
		return wrap.With(err, ErrRequestState)
	case errors.Is(err, storage.ErrNotParticipant):
		return wrap.With(err, ErrNotParticipant)
	case errors.Is(err, storage.ErrCollision):
		return wrap.With(err, ErrAlreadyExists)
	case errors.Is(err, storage.ErrCancelled), errors.Is(err, context.Canceled):
		return wrap.With(err, ErrRequestCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		return wrap.With(err, ErrRequestTimeout)
	case errors.Is(err, geocode.ErrUpstreamUnavailable):
		return wrap.With(err, ErrGeocoderUnavailable)
	case errors.Is(err, geocode.ErrGeocodeExhausted):
		return wrap.With(err, ErrNoLocation)
	}
	return NewInternalError(public, err)
}

func notFoundMessage(public string) string {
	if public == "" {
		return "not found"
	}
	return public
}

// PublicMessage returns the message safe to show for err.
func PublicMessage(err error) string {
	var served *Error
	if errors.As(err, &served) {
		return served.Message
	}
	return InternalServerErrorMsg
}

// HTTPStatus maps err to the status code the HTTP API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrCancelled):
		return StatusClientClosedRequest
	case errors.Is(err, ErrDeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrGeocodeExhausted):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine readable name of the kind of err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrDeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrGeocodeExhausted):
		return "geocode_exhausted"
	default:
		return "internal_error"
	}
}
