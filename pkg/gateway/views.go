package gateway

import (
	"time"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/server/commands"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

type requestView struct {
	ID          string               `json:"id"`
	Ticket      string               `json:"ticket"`
	RequesterID string               `json:"requesterId"`
	VolunteerID string               `json:"volunteerId,omitempty"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	State       storage.RequestState `json:"state"`
	Location    *geo.Coordinate      `json:"location,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

func newRequestView(r *storage.Request) requestView {
	return requestView{
		ID:          r.ID,
		Ticket:      r.Ticket(),
		RequesterID: r.RequesterID,
		VolunteerID: r.VolunteerID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		State:       r.State,
		Location:    r.Location,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newRequestViews(rs []*storage.Request) []requestView {
	out := make([]requestView, 0, len(rs))
	for _, r := range rs {
		out = append(out, newRequestView(r))
	}
	return out
}

type completeView struct {
	Request      requestView `json:"request"`
	Transitioned bool        `json:"transitioned"`
}

type nearbyItemView struct {
	requestView
	DistanceMeters float64 `json:"distanceMeters"`
}

type nearbyView struct {
	Items    []nearbyItemView `json:"items"`
	Total    int              `json:"total"`
	RadiusKm float64          `json:"radiusKm"`
	Origin   geo.Coordinate   `json:"origin"`
}

func newNearbyView(res *commands.SearchNearbyResult) nearbyView {
	items := make([]nearbyItemView, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, nearbyItemView{
			requestView:    newRequestView(it.Request),
			DistanceMeters: it.DistanceMeters,
		})
	}
	return nearbyView{Items: items, Total: res.Total, RadiusKm: res.RadiusKm, Origin: res.Origin}
}

type leaderboardEntryView struct {
	VolunteerID string `json:"volunteerId"`
	DisplayName string `json:"displayName,omitempty"`
	Closed      int    `json:"closed"`
}

func newLeaderboardView(entries []storage.LeaderboardEntry) []leaderboardEntryView {
	out := make([]leaderboardEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, leaderboardEntryView{VolunteerID: e.VolunteerID, DisplayName: e.DisplayName, Closed: e.Closed})
	}
	return out
}

type messageView struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	SenderID  string    `json:"senderId"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
	Read      bool      `json:"read"`
}

func newMessageView(m *storage.Message) messageView {
	return messageView{
		ID:        m.ID,
		RequestID: m.RequestID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		SentAt:    m.SentAt,
		Read:      m.Read,
	}
}

func newMessageViews(ms []*storage.Message) []messageView {
	out := make([]messageView, 0, len(ms))
	for _, m := range ms {
		out = append(out, newMessageView(m))
	}
	return out
}

type ratingView struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"requestId"`
	RequesterID string    `json:"requesterId"`
	VolunteerID string    `json:"volunteerId"`
	Score       int       `json:"score"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newRatingView(r *storage.Rating) ratingView {
	return ratingView{
		ID:          r.ID,
		RequestID:   r.RequestID,
		RequesterID: r.RequesterID,
		VolunteerID: r.VolunteerID,
		Score:       r.Score,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt,
	}
}

type volunteerRatingsView struct {
	Ratings []ratingView `json:"ratings"`
	Average float64      `json:"average"`
}

type profileView struct {
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName"`
	AddressLine string          `json:"addressLine,omitempty"`
	City        string          `json:"city,omitempty"`
	PostalCode  string          `json:"postalCode,omitempty"`
	Country     string          `json:"country,omitempty"`
	Volunteer   bool            `json:"volunteer"`
	Location    *geo.Coordinate `json:"location,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func newProfileView(p *storage.UserProfile) profileView {
	return profileView{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		AddressLine: p.AddressLine,
		City:        p.City,
		PostalCode:  p.PostalCode,
		Country:     p.Country,
		Volunteer:   p.Volunteer,
		Location:    p.Location,
		UpdatedAt:   p.UpdatedAt,
	}
}

type countView struct {
	Count int `json:"count"`
}

// request bodies

type createRequestBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type sendMessageBody struct {
	Body string `json:"body"`
}

type rateBody struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type profileBody struct {
	DisplayName string `json:"displayName"`
	AddressLine string `json:"addressLine"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
}

type volunteerBody struct {
	Volunteer bool `json:"volunteer"`
}
