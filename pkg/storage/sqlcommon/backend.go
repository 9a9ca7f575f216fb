package sqlcommon

import (
	"context"
	"time"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

// Backend implements every [storage.Datastore] operation that is plain SQL.
// Engines embed it and add the spatial queries, readiness and Close.
type Backend struct {
	DBInfo *DBInfo
}

func NewBackend(dbInfo *DBInfo) *Backend {
	return &Backend{DBInfo: dbInfo}
}

func (b *Backend) CreateRequest(ctx context.Context, r *storage.Request) error {
	return CreateRequest(ctx, b.DBInfo, r)
}

func (b *Backend) GetRequest(ctx context.Context, id string) (*storage.Request, error) {
	return GetRequest(ctx, b.DBInfo, id)
}

func (b *Backend) ClaimRequest(ctx context.Context, id, volunteerID string, now time.Time) (*storage.Request, error) {
	return ClaimRequest(ctx, b.DBInfo, id, volunteerID, now)
}

func (b *Backend) CompleteRequest(ctx context.Context, id, actorID string, now time.Time) (*storage.Request, bool, error) {
	return CompleteRequest(ctx, b.DBInfo, id, actorID, now)
}

func (b *Backend) ListRequestsByRequester(ctx context.Context, userID string) ([]*storage.Request, error) {
	return ListRequestsByRequester(ctx, b.DBInfo, userID)
}

func (b *Backend) ListRequestsByVolunteer(ctx context.Context, userID string) ([]*storage.Request, error) {
	return ListRequestsByVolunteer(ctx, b.DBInfo, userID)
}

func (b *Backend) ListOpenWithLocation(ctx context.Context, limit int) ([]*storage.Request, error) {
	return ListOpenWithLocation(ctx, b.DBInfo, limit)
}

func (b *Backend) Leaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error) {
	return Leaderboard(ctx, b.DBInfo, limit)
}

func (b *Backend) GetProfile(ctx context.Context, userID string) (*storage.UserProfile, error) {
	return GetProfile(ctx, b.DBInfo, userID)
}

func (b *Backend) UpsertProfile(ctx context.Context, p *storage.UserProfile) error {
	return UpsertProfile(ctx, b.DBInfo, p)
}

func (b *Backend) SetProfileLocation(ctx context.Context, userID string, loc *geo.Coordinate, now time.Time) error {
	return SetProfileLocation(ctx, b.DBInfo, userID, loc, now)
}

func (b *Backend) SetVolunteer(ctx context.Context, userID string, volunteer bool, now time.Time) (*storage.UserProfile, error) {
	return SetVolunteer(ctx, b.DBInfo, userID, volunteer, now)
}

func (b *Backend) CreateMessage(ctx context.Context, m *storage.Message) error {
	return CreateMessage(ctx, b.DBInfo, m)
}

func (b *Backend) ListMessages(ctx context.Context, requestID string) ([]*storage.Message, error) {
	return ListMessages(ctx, b.DBInfo, requestID)
}

func (b *Backend) MarkMessagesRead(ctx context.Context, requestID, readerID string) (int, error) {
	return MarkMessagesRead(ctx, b.DBInfo, requestID, readerID)
}

func (b *Backend) CountUnread(ctx context.Context, requestID, readerID string) (int, error) {
	return CountUnread(ctx, b.DBInfo, requestID, readerID)
}

func (b *Backend) CreateRating(ctx context.Context, r *storage.Rating) error {
	return CreateRating(ctx, b.DBInfo, r)
}

func (b *Backend) GetRatingByRequest(ctx context.Context, requestID string) (*storage.Rating, error) {
	return GetRatingByRequest(ctx, b.DBInfo, requestID)
}

func (b *Backend) ListRatingsByVolunteer(ctx context.Context, volunteerID string) ([]*storage.Rating, error) {
	return ListRatingsByVolunteer(ctx, b.DBInfo, volunteerID)
}
