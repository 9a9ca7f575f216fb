package notify

import "time"

// Kind names what happened.
type Kind string

const (
	KindAccepted   Kind = "accepted"
	KindFinished   Kind = "finished"
	KindJoined     Kind = "joined"
	KindLeft       Kind = "left"
	KindMessage    Kind = "message"
	KindCallInvite Kind = "call-invite"
)

// Event is what subscribers receive. Data holds the kind specific payload and
// is encoded as is by transports.
type Event struct {
	Kind      Kind      `json:"kind"`
	Topic     Topic     `json:"topic"`
	RequestID string    `json:"requestId,omitempty"`
	ActorID   string    `json:"actorId,omitempty"`
	At        time.Time `json:"at"`
	Data      any       `json:"data,omitempty"`
}

// CallInvite is the payload of a KindCallInvite event.
type CallInvite struct {
	Room string `json:"room"`
	URL  string `json:"url"`
}
