package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/geocode"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

func TestInternalErrorDontLeakInternals(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := NewInternalError("public", cause)

	require.Equal(t, "public", PublicMessage(err))
	require.ErrorIs(t, err, ErrInternal)
	require.ErrorIs(t, err, cause)
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestInternalErrorsWithNoMessageReturnsInternalServiceError(t *testing.T) {
	err := NewInternalError("", errors.New("internal"))
	require.Equal(t, InternalServerErrorMsg, PublicMessage(err))
}

func TestHandleStorageErrors(t *testing.T) {
	tests := map[string]struct {
		storageErr error
		expected   error
		kind       error
		status     int
	}{
		`not_found`: {
			storageErr: storage.ErrNotFound,
			kind:       ErrNotFound,
			status:     http.StatusNotFound,
		},
		`claim_lost`: {
			storageErr: storage.ErrNotClaimable,
			expected:   ErrRequestNotAvailable,
			kind:       ErrInvalidTransition,
			status:     http.StatusConflict,
		},
		`own_request`: {
			storageErr: storage.ErrOwnRequest,
			expected:   ErrOwnRequest,
			kind:       ErrInvalidTransition,
			status:     http.StatusConflict,
		},
		`invalid_state`: {
			storageErr: storage.ErrInvalidState,
			expected:   ErrRequestState,
			kind:       ErrInvalidTransition,
			status:     http.StatusConflict,
		},
		`not_participant`: {
			storageErr: storage.ErrNotParticipant,
			expected:   ErrNotParticipant,
			kind:       ErrUnauthorized,
			status:     http.StatusForbidden,
		},
		`collision`: {
			storageErr: storage.ErrCollision,
			expected:   ErrAlreadyExists,
			kind:       ErrInvalidTransition,
			status:     http.StatusConflict,
		},
		`context_cancelled`: {
			storageErr: storage.ErrCancelled,
			expected:   ErrRequestCancelled,
			kind:       ErrCancelled,
			status:     StatusClientClosedRequest,
		},
		`raw_context_cancelled`: {
			storageErr: fmt.Errorf("query: %w", context.Canceled),
			expected:   ErrRequestCancelled,
			kind:       ErrCancelled,
			status:     StatusClientClosedRequest,
		},
		`deadline_exceeded`: {
			storageErr: fmt.Errorf("sql error: %w", context.DeadlineExceeded),
			expected:   ErrRequestTimeout,
			kind:       ErrDeadlineExceeded,
			status:     http.StatusGatewayTimeout,
		},
		`geocode_upstream`: {
			storageErr: fmt.Errorf("%w: %w", geocode.ErrGeocodeExhausted, geocode.ErrUpstreamUnavailable),
			expected:   ErrGeocoderUnavailable,
			kind:       ErrUpstreamUnavailable,
			status:     http.StatusServiceUnavailable,
		},
		`geocode_exhausted`: {
			storageErr: geocode.ErrGeocodeExhausted,
			expected:   ErrNoLocation,
			kind:       ErrGeocodeExhausted,
			status:     http.StatusUnprocessableEntity,
		},
		`unknown`: {
			storageErr: errors.New("disk full"),
			kind:       ErrInternal,
			status:     http.StatusInternalServerError,
		},
	}
	for testName, test := range tests {
		t.Run(testName, func(t *testing.T) {
			err := HandleError("", test.storageErr)
			require.ErrorIs(t, err, test.storageErr)
			require.ErrorIs(t, err, test.kind)
			if test.expected != nil {
				require.ErrorIs(t, err, test.expected)
				require.Equal(t, test.expected.Error(), PublicMessage(err))
			}
			require.Equal(t, test.status, HTTPStatus(err))
		})
	}
}

func TestHandleErrorKeepsServedErrors(t *testing.T) {
	err := InvalidArgument("title must be at most %d characters", 120)
	require.Same(t, err, HandleError("", err))
	require.Equal(t, "title must be at most 120 characters", PublicMessage(err))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	require.NoError(t, HandleError("", nil))
	require.Equal(t, http.StatusOK, HTTPStatus(nil))
}

func TestHandleErrorNotFoundMessage(t *testing.T) {
	err := HandleError("request not found", storage.ErrNotFound)
	require.Equal(t, "request not found", PublicMessage(err))

	err = HandleError("", storage.ErrNotFound)
	require.Equal(t, "not found", PublicMessage(err))
}

func TestRequestNotAvailableIsInvalidTransition(t *testing.T) {
	require.ErrorIs(t, ErrRequestNotAvailable, ErrInvalidTransition)
	require.NotErrorIs(t, ErrRequestNotAvailable, ErrUnauthorized)
	require.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrMissingUser))
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: InvalidArgument("bad"), want: "invalid_argument"},
		{err: ErrMissingUser, want: "unauthenticated"},
		{err: ErrNotParticipant, want: "unauthorized"},
		{err: ErrRequestNotFound, want: "not_found"},
		{err: ErrRequestNotAvailable, want: "invalid_transition"},
		{err: ErrRequestCancelled, want: "cancelled"},
		{err: ErrRequestTimeout, want: "deadline_exceeded"},
		{err: ErrGeocoderUnavailable, want: "upstream_unavailable"},
		{err: ErrNoLocation, want: "geocode_exhausted"},
		{err: errors.New("boom"), want: "internal_error"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			require.Equal(t, tc.want, Code(tc.err))
		})
	}
}
