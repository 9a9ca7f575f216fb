package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

var tracer = otel.Tracer("vecinotech/pkg/storage/memory")

// MemoryBackend provides an ephemeral memory-backed implementation of [storage.Datastore].
// These instances may be safely shared by multiple go-routines.
type MemoryBackend struct {
	mu sync.RWMutex

	requests    map[string]*storage.Request
	byRequester map[string]*timeIndex
	byVolunteer map[string]*timeIndex
	// openLocated holds the OPEN requests that have a location.
	openLocated *timeIndex
	spatial     *spatialIndex

	profiles map[string]*storage.UserProfile
	messages map[string][]*storage.Message
	ratings  map[string]*storage.Rating
}

// Ensures that [MemoryBackend] implements the [storage.Datastore] interface.
var _ storage.Datastore = (*MemoryBackend)(nil)

// New creates a new [MemoryBackend].
func New() *MemoryBackend {
	return &MemoryBackend{
		requests:    make(map[string]*storage.Request),
		byRequester: make(map[string]*timeIndex),
		byVolunteer: make(map[string]*timeIndex),
		openLocated: newTimeIndex(),
		spatial:     newSpatialIndex(),
		profiles:    make(map[string]*storage.UserProfile),
		messages:    make(map[string][]*storage.Message),
		ratings:     make(map[string]*storage.Rating),
	}
}

// Close does not do anything for [MemoryBackend].
func (s *MemoryBackend) Close() {}

// IsReady see [storage.Datastore].IsReady.
func (s *MemoryBackend) IsReady(context.Context) (storage.ReadinessStatus, error) {
	return storage.ReadinessStatus{IsReady: true}, nil
}

func cloneRequest(r *storage.Request) *storage.Request {
	c := *r
	if r.Location != nil {
		loc := *r.Location
		c.Location = &loc
	}
	return &c
}

func cloneProfile(p *storage.UserProfile) *storage.UserProfile {
	c := *p
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	return &c
}

func indexFor(m map[string]*timeIndex, userID string) *timeIndex {
	idx, ok := m[userID]
	if !ok {
		idx = newTimeIndex()
		m[userID] = idx
	}
	return idx
}

func (s *MemoryBackend) collect(ids []string) []*storage.Request {
	requests := make([]*storage.Request, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, cloneRequest(s.requests[id]))
	}
	return requests
}

// CreateRequest see [storage.RequestBackend].CreateRequest.
func (s *MemoryBackend) CreateRequest(ctx context.Context, r *storage.Request) error {
	_, span := tracer.Start(ctx, "memory.CreateRequest")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[r.ID]; ok {
		return storage.ErrCollision
	}

	stored := cloneRequest(r)
	stored.CreatedAt = storage.Timestamp(r.CreatedAt)
	stored.UpdatedAt = storage.Timestamp(r.UpdatedAt)
	s.requests[r.ID] = stored

	indexFor(s.byRequester, stored.RequesterID).put(stored.CreatedAt, stored.ID)
	if stored.VolunteerID != "" {
		indexFor(s.byVolunteer, stored.VolunteerID).put(stored.CreatedAt, stored.ID)
	}
	if stored.State == storage.StateOpen && stored.Location != nil {
		s.openLocated.put(stored.CreatedAt, stored.ID)
		s.spatial.insert(stored.ID, *stored.Location)
	}
	return nil
}

// GetRequest see [storage.RequestBackend].GetRequest.
func (s *MemoryBackend) GetRequest(ctx context.Context, id string) (*storage.Request, error) {
	_, span := tracer.Start(ctx, "memory.GetRequest")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRequest(r), nil
}

// ClaimRequest see [storage.RequestBackend].ClaimRequest.
func (s *MemoryBackend) ClaimRequest(ctx context.Context, id, volunteerID string, now time.Time) (*storage.Request, error) {
	_, span := tracer.Start(ctx, "memory.ClaimRequest")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	switch {
	case !ok:
		return nil, storage.ErrNotFound
	case r.RequesterID == volunteerID:
		return nil, storage.ErrOwnRequest
	case r.State != storage.StateOpen:
		return nil, storage.ErrNotClaimable
	}

	r.State = storage.StateInProgress
	r.VolunteerID = volunteerID
	r.UpdatedAt = storage.Timestamp(now)

	indexFor(s.byVolunteer, volunteerID).put(r.CreatedAt, r.ID)
	if r.Location != nil {
		s.openLocated.remove(r.CreatedAt, r.ID)
		s.spatial.remove(r.ID)
	}
	return cloneRequest(r), nil
}

// CompleteRequest see [storage.RequestBackend].CompleteRequest.
func (s *MemoryBackend) CompleteRequest(ctx context.Context, id, actorID string, now time.Time) (*storage.Request, bool, error) {
	_, span := tracer.Start(ctx, "memory.CompleteRequest")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, false, storage.ErrNotFound
	}
	if !r.IsParticipant(actorID) {
		return nil, false, storage.ErrNotParticipant
	}

	switch r.State {
	case storage.StateClosed:
		return cloneRequest(r), false, nil
	case storage.StateInProgress:
	default:
		return nil, false, storage.ErrInvalidState
	}

	r.State = storage.StateClosed
	r.UpdatedAt = storage.Timestamp(now)
	return cloneRequest(r), true, nil
}

// ListRequestsByRequester see [storage.RequestBackend].ListRequestsByRequester.
func (s *MemoryBackend) ListRequestsByRequester(ctx context.Context, userID string) ([]*storage.Request, error) {
	_, span := tracer.Start(ctx, "memory.ListRequestsByRequester")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byRequester[userID]
	if !ok {
		return nil, nil
	}
	return s.collect(idx.newest(0)), nil
}

// ListRequestsByVolunteer see [storage.RequestBackend].ListRequestsByVolunteer.
func (s *MemoryBackend) ListRequestsByVolunteer(ctx context.Context, userID string) ([]*storage.Request, error) {
	_, span := tracer.Start(ctx, "memory.ListRequestsByVolunteer")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byVolunteer[userID]
	if !ok {
		return nil, nil
	}
	return s.collect(idx.newest(0)), nil
}

// ListOpenWithLocation see [storage.RequestBackend].ListOpenWithLocation.
func (s *MemoryBackend) ListOpenWithLocation(ctx context.Context, limit int) ([]*storage.Request, error) {
	_, span := tracer.Start(ctx, "memory.ListOpenWithLocation")
	defer span.End()

	limit = storage.NormalizeLimit(limit, storage.MaxMapListing, storage.MaxMapListing)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(s.openLocated.newest(limit)), nil
}

func (s *MemoryBackend) nearby(origin geo.Coordinate, radiusMeters float64) []storage.NearbyRequest {
	var found []storage.NearbyRequest
	for _, id := range s.spatial.within(origin, radiusMeters) {
		r := s.requests[id]
		if r.State != storage.StateOpen || r.Location == nil {
			continue
		}
		d := geo.HaversineDistanceMeters(origin, *r.Location)
		if d > radiusMeters {
			continue
		}
		found = append(found, storage.NearbyRequest{Request: r, DistanceMeters: d})
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.DistanceMeters != b.DistanceMeters {
			return a.DistanceMeters < b.DistanceMeters
		}
		if !a.Request.CreatedAt.Equal(b.Request.CreatedAt) {
			return a.Request.CreatedAt.Before(b.Request.CreatedAt)
		}
		return a.Request.ID < b.Request.ID
	})
	return found
}

// FindOpenNearby see [storage.RequestBackend].FindOpenNearby.
func (s *MemoryBackend) FindOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64, limit int) ([]storage.NearbyRequest, error) {
	_, span := tracer.Start(ctx, "memory.FindOpenNearby")
	defer span.End()

	limit = storage.NormalizeLimit(limit, storage.DefaultNearbyLimit, storage.DefaultNearbyLimit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	found := s.nearby(origin, radiusMeters)
	if len(found) > limit {
		found = found[:limit]
	}
	for i := range found {
		found[i].Request = cloneRequest(found[i].Request)
	}
	return found, nil
}

// CountOpenNearby see [storage.RequestBackend].CountOpenNearby.
func (s *MemoryBackend) CountOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64) (int, error) {
	_, span := tracer.Start(ctx, "memory.CountOpenNearby")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.nearby(origin, radiusMeters)), nil
}

// Leaderboard see [storage.RequestBackend].Leaderboard.
func (s *MemoryBackend) Leaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error) {
	_, span := tracer.Start(ctx, "memory.Leaderboard")
	defer span.End()

	limit = storage.NormalizeLimit(limit, storage.DefaultLeaderboard, storage.MaxLeaderboard)

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, r := range s.requests {
		if r.State == storage.StateClosed {
			counts[r.VolunteerID]++
		}
	}

	entries := make([]storage.LeaderboardEntry, 0, len(counts))
	for volunteerID, n := range counts {
		entry := storage.LeaderboardEntry{VolunteerID: volunteerID, Closed: n}
		if p, ok := s.profiles[volunteerID]; ok {
			entry.DisplayName = p.DisplayName
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Closed != entries[j].Closed {
			return entries[i].Closed > entries[j].Closed
		}
		return entries[i].VolunteerID < entries[j].VolunteerID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// GetProfile see [storage.ProfileBackend].GetProfile.
func (s *MemoryBackend) GetProfile(ctx context.Context, userID string) (*storage.UserProfile, error) {
	_, span := tracer.Start(ctx, "memory.GetProfile")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneProfile(p), nil
}

// UpsertProfile see [storage.ProfileBackend].UpsertProfile.
func (s *MemoryBackend) UpsertProfile(ctx context.Context, p *storage.UserProfile) error {
	_, span := tracer.Start(ctx, "memory.UpsertProfile")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneProfile(p)
	stored.Location = nil
	if existing, ok := s.profiles[p.UserID]; ok {
		stored.Location = existing.Location
	}
	stored.UpdatedAt = storage.Timestamp(p.UpdatedAt)
	s.profiles[p.UserID] = stored
	return nil
}

// SetProfileLocation see [storage.ProfileBackend].SetProfileLocation.
func (s *MemoryBackend) SetProfileLocation(ctx context.Context, userID string, loc *geo.Coordinate, now time.Time) error {
	_, span := tracer.Start(ctx, "memory.SetProfileLocation")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Location = nil
	if loc != nil {
		c := *loc
		p.Location = &c
	}
	p.UpdatedAt = storage.Timestamp(now)
	return nil
}

// SetVolunteer see [storage.ProfileBackend].SetVolunteer.
func (s *MemoryBackend) SetVolunteer(ctx context.Context, userID string, volunteer bool, now time.Time) (*storage.UserProfile, error) {
	_, span := tracer.Start(ctx, "memory.SetVolunteer")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	p.Volunteer = volunteer
	p.UpdatedAt = storage.Timestamp(now)
	return cloneProfile(p), nil
}

// CreateMessage see [storage.MessageBackend].CreateMessage.
func (s *MemoryBackend) CreateMessage(ctx context.Context, m *storage.Message) error {
	_, span := tracer.Start(ctx, "memory.CreateMessage")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[m.RequestID]
	if !ok {
		return storage.ErrNotFound
	}
	if !r.IsParticipant(m.SenderID) {
		return storage.ErrNotParticipant
	}
	if r.State != storage.StateInProgress {
		return storage.ErrInvalidState
	}
	for _, existing := range s.messages[m.RequestID] {
		if existing.ID == m.ID {
			return storage.ErrCollision
		}
	}

	stored := *m
	stored.SentAt = storage.Timestamp(m.SentAt)
	s.messages[m.RequestID] = append(s.messages[m.RequestID], &stored)
	return nil
}

// ListMessages see [storage.MessageBackend].ListMessages.
func (s *MemoryBackend) ListMessages(ctx context.Context, requestID string) ([]*storage.Message, error) {
	_, span := tracer.Start(ctx, "memory.ListMessages")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[requestID]
	messages := make([]*storage.Message, 0, len(stored))
	for _, m := range stored {
		c := *m
		messages = append(messages, &c)
	}

	slices.SortStableFunc(messages, func(a, b *storage.Message) int {
		if c := a.SentAt.Compare(b.SentAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return messages, nil
}

// MarkMessagesRead see [storage.MessageBackend].MarkMessagesRead.
func (s *MemoryBackend) MarkMessagesRead(ctx context.Context, requestID, readerID string) (int, error) {
	_, span := tracer.Start(ctx, "memory.MarkMessagesRead")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for _, m := range s.messages[requestID] {
		if !m.Read && m.SenderID != readerID {
			m.Read = true
			n++
		}
	}
	return n, nil
}

// CountUnread see [storage.MessageBackend].CountUnread.
func (s *MemoryBackend) CountUnread(ctx context.Context, requestID, readerID string) (int, error) {
	_, span := tracer.Start(ctx, "memory.CountUnread")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	for _, m := range s.messages[requestID] {
		if !m.Read && m.SenderID != readerID {
			n++
		}
	}
	return n, nil
}

// CreateRating see [storage.RatingBackend].CreateRating.
func (s *MemoryBackend) CreateRating(ctx context.Context, rating *storage.Rating) error {
	_, span := tracer.Start(ctx, "memory.CreateRating")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[rating.RequestID]
	if !ok {
		return storage.ErrNotFound
	}
	if r.RequesterID != rating.RequesterID {
		return storage.ErrNotParticipant
	}
	if r.State != storage.StateClosed || r.VolunteerID == "" {
		return storage.ErrInvalidState
	}
	if _, ok := s.ratings[rating.RequestID]; ok {
		return storage.ErrCollision
	}

	rating.VolunteerID = r.VolunteerID
	stored := *rating
	stored.CreatedAt = storage.Timestamp(rating.CreatedAt)
	s.ratings[rating.RequestID] = &stored
	return nil
}

// GetRatingByRequest see [storage.RatingBackend].GetRatingByRequest.
func (s *MemoryBackend) GetRatingByRequest(ctx context.Context, requestID string) (*storage.Rating, error) {
	_, span := tracer.Start(ctx, "memory.GetRatingByRequest")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.ratings[requestID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *r
	return &c, nil
}

// ListRatingsByVolunteer see [storage.RatingBackend].ListRatingsByVolunteer.
func (s *MemoryBackend) ListRatingsByVolunteer(ctx context.Context, volunteerID string) ([]*storage.Rating, error) {
	_, span := tracer.Start(ctx, "memory.ListRatingsByVolunteer")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ratings []*storage.Rating
	for _, r := range s.ratings {
		if r.VolunteerID == volunteerID {
			c := *r
			ratings = append(ratings, &c)
		}
	}

	sort.Slice(ratings, func(i, j int) bool {
		if !ratings[i].CreatedAt.Equal(ratings[j].CreatedAt) {
			return ratings[i].CreatedAt.After(ratings[j].CreatedAt)
		}
		return ratings[i].ID > ratings[j].ID
	})
	return ratings, nil
}
