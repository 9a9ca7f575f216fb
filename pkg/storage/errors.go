package storage

import (
	"errors"
)

var (
	// ErrCollision if an item already exists within the store.
	ErrCollision = errors.New("item already exists")

	ErrNotFound  = errors.New("not found")
	ErrCancelled = errors.New("request has been cancelled")

	// Lifecycle errors, returned by the conditional writes.

	// ErrNotClaimable if the request is no longer OPEN.
	ErrNotClaimable = errors.New("request is no longer available")
	// ErrOwnRequest if a requester tries to claim their own request.
	ErrOwnRequest = errors.New("cannot claim your own request")
	// ErrNotParticipant if the actor is neither the requester nor the volunteer.
	ErrNotParticipant = errors.New("user is not a participant of the request")
	// ErrInvalidState if the request state does not allow the operation.
	ErrInvalidState = errors.New("request state does not allow this operation")
)
