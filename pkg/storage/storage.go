// Package storage contains storage interfaces and implementations
//
//go:generate mockgen -source storage.go -destination ../../internal/mocks/mock_storage.go -package mocks -exclude_interfaces RequestBackend,ProfileBackend,MessageBackend,RatingBackend
package storage

import (
	"context"
	"time"

	"github.com/vecinotech/vecinotech/pkg/geo"
)

// RequestBackend stores help requests and owns their state transitions.
type RequestBackend interface {
	// CreateRequest inserts r as given. r.ID and r.CreatedAt are set by the caller.
	CreateRequest(ctx context.Context, r *Request) error

	GetRequest(ctx context.Context, id string) (*Request, error)

	// ClaimRequest moves an OPEN request to IN_PROGRESS with volunteerID in a
	// single conditional write. Under concurrent calls exactly one succeeds; the
	// others get ErrNotClaimable. It returns ErrOwnRequest when the volunteer
	// is the requester and ErrNotFound for an unknown id.
	ClaimRequest(ctx context.Context, id, volunteerID string, now time.Time) (*Request, error)

	// CompleteRequest closes an IN_PROGRESS request on behalf of a
	// participant. Closing an already CLOSED request returns it with
	// transitioned set to false. Non participants get ErrNotParticipant and an
	// OPEN request ErrInvalidState.
	CompleteRequest(ctx context.Context, id, actorID string, now time.Time) (r *Request, transitioned bool, err error)

	// ListRequestsByRequester and ListRequestsByVolunteer return newest first.
	ListRequestsByRequester(ctx context.Context, userID string) ([]*Request, error)
	ListRequestsByVolunteer(ctx context.Context, userID string) ([]*Request, error)

	// ListOpenWithLocation returns located OPEN requests, newest first.
	ListOpenWithLocation(ctx context.Context, limit int) ([]*Request, error)

	// FindOpenNearby returns located OPEN requests within radiusMeters of
	// origin, ordered by distance then creation time. A non positive limit
	// means DefaultNearbyLimit, larger limits are capped to it. Callers clamp
	// the radius.
	FindOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64, limit int) ([]NearbyRequest, error)
	CountOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64) (int, error)

	// Leaderboard ranks volunteers by closed requests.
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// ProfileBackend stores user profiles and their cached location.
type ProfileBackend interface {
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)

	// UpsertProfile writes every field except Location, which keeps its
	// stored value.
	UpsertProfile(ctx context.Context, p *UserProfile) error

	// SetProfileLocation overwrites the cached location. A nil loc clears it.
	SetProfileLocation(ctx context.Context, userID string, loc *geo.Coordinate, now time.Time) error

	SetVolunteer(ctx context.Context, userID string, volunteer bool, now time.Time) (*UserProfile, error)
}

// MessageBackend stores chat history.
type MessageBackend interface {
	// CreateMessage inserts msg if the request is IN_PROGRESS and the sender is
	// a participant, checked in the same transaction as the insert.
	CreateMessage(ctx context.Context, msg *Message) error

	// ListMessages returns the request's messages oldest first.
	ListMessages(ctx context.Context, requestID string) ([]*Message, error)

	// MarkMessagesRead flips every unread message of the request that readerID
	// did not send, returning how many changed.
	MarkMessagesRead(ctx context.Context, requestID, readerID string) (int, error)

	CountUnread(ctx context.Context, requestID, readerID string) (int, error)
}

// RatingBackend stores volunteer ratings.
type RatingBackend interface {
	// CreateRating returns ErrCollision when the request already has a rating.
	CreateRating(ctx context.Context, r *Rating) error
	GetRatingByRequest(ctx context.Context, requestID string) (*Rating, error)
	// ListRatingsByVolunteer returns newest first.
	ListRatingsByVolunteer(ctx context.Context, volunteerID string) ([]*Rating, error)
}

type Datastore interface {
	RequestBackend
	ProfileBackend
	MessageBackend
	RatingBackend

	// IsReady reports whether the datastore is ready to accept traffic.
	IsReady(ctx context.Context) (ReadinessStatus, error)

	// Close closes the datastore and cleans up any residual resources.
	Close()
}

// ReadinessStatus represents the readiness status of the datastore.
type ReadinessStatus struct {
	// Message is a human-friendly status message for the current datastore status.
	Message string

	IsReady bool
}
