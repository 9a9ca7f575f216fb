package storage

import (
	"time"

	"github.com/vecinotech/vecinotech/pkg/geo"
)

// RequestState is the lifecycle position of a help request.
type RequestState string

const (
	StateOpen       RequestState = "OPEN"
	StateInProgress RequestState = "IN_PROGRESS"
	StateClosed     RequestState = "CLOSED"
)

func (s RequestState) rank() int {
	switch s {
	case StateOpen:
		return 0
	case StateInProgress:
		return 1
	case StateClosed:
		return 2
	default:
		return -1
	}
}

func (s RequestState) Valid() bool {
	return s.rank() >= 0
}

// CanAdvanceTo reports whether next is the single state that follows s.
func (s RequestState) CanAdvanceTo(next RequestState) bool {
	return s.Valid() && next.Valid() && next.rank() == s.rank()+1
}

const (
	DefaultCategory = "GENERAL"

	MaxTitleLength       = 120
	MaxDescriptionLength = 1000
	MaxCategoryLength    = 40
	MaxMessageLength     = 1000
	MaxCommentLength     = 500
	MinScore             = 1
	MaxScore             = 5

	DefaultNearbyLimit = 50
	MaxMapListing      = 500
	DefaultLeaderboard = 10
	MaxLeaderboard     = 100
)

// Request is a help request posted by a requester.
type Request struct {
	ID          string
	RequesterID string
	// VolunteerID is empty until the request is claimed and kept afterwards.
	VolunteerID string
	Title       string
	Description string
	Category    string
	State       RequestState
	Location    *geo.Coordinate
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ticket is the human facing reference of the request.
func (r *Request) Ticket() string {
	return "VT-" + r.ID
}

// IsParticipant reports whether userID is the requester or the volunteer.
func (r *Request) IsParticipant(userID string) bool {
	return r.Participants().Contains(userID)
}

func (r *Request) Participants() Participants {
	return Participants{RequesterID: r.RequesterID, VolunteerID: r.VolunteerID}
}

// Participants are the users allowed on a request's chat.
type Participants struct {
	RequesterID string
	VolunteerID string
}

func (p Participants) Contains(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == p.RequesterID || userID == p.VolunteerID
}

// NearbyRequest is an open request together with its distance to the search origin.
type NearbyRequest struct {
	Request        *Request
	DistanceMeters float64
}

// UserProfile is the locally known part of a user account. Location is the
// cached geocoding result of the address.
type UserProfile struct {
	UserID      string
	DisplayName string
	AddressLine string
	City        string
	PostalCode  string
	Country     string
	Volunteer   bool
	Location    *geo.Coordinate
	UpdatedAt   time.Time
}

// Message is a chat line on a request.
type Message struct {
	ID        string
	RequestID string
	SenderID  string
	Body      string
	SentAt    time.Time
	Read      bool
}

// Rating is the requester's review of the volunteer of a closed request.
type Rating struct {
	ID          string
	RequestID   string
	RequesterID string
	VolunteerID string
	Score       int
	Comment     string
	CreatedAt   time.Time
}

// LeaderboardEntry counts the closed requests of a volunteer.
type LeaderboardEntry struct {
	VolunteerID string
	DisplayName string
	Closed      int
}

// NormalizeLimit maps a non positive limit to def and caps it at max.
func NormalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

// Timestamp truncates t to the precision every engine can store.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
