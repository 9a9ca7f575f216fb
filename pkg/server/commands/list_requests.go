package commands

import (
	"context"

	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

// Role selects which side of a request ListRequestsQuery matches the user on.
type Role string

const (
	RoleRequester Role = "requester"
	RoleVolunteer Role = "volunteer"
)

// ListRequestsQuery lists the requests a user posted or took, newest first.
type ListRequestsQuery struct {
	datastore storage.RequestBackend
	logger    logger.Logger
}

func NewListRequestsQuery(datastore storage.RequestBackend, logger logger.Logger) *ListRequestsQuery {
	return &ListRequestsQuery{
		datastore: datastore,
		logger:    logger,
	}
}

func (q *ListRequestsQuery) Execute(ctx context.Context, userID string, role Role) ([]*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "ListRequests")
	defer span.End()

	if err := requireUser(userID); err != nil {
		return nil, err
	}

	var (
		requests []*storage.Request
		err      error
	)
	switch role {
	case RoleRequester:
		requests, err = q.datastore.ListRequestsByRequester(ctx, userID)
	case RoleVolunteer:
		requests, err = q.datastore.ListRequestsByVolunteer(ctx, userID)
	default:
		return nil, serverErrors.InvalidArgument("unknown role %q", role)
	}
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}
	return requests, nil
}

// MapListingQuery returns located OPEN requests for the map view, newest
// first and capped at storage.MaxMapListing.
type MapListingQuery struct {
	datastore storage.RequestBackend
	logger    logger.Logger
}

func NewMapListingQuery(datastore storage.RequestBackend, logger logger.Logger) *MapListingQuery {
	return &MapListingQuery{
		datastore: datastore,
		logger:    logger,
	}
}

func (q *MapListingQuery) Execute(ctx context.Context, limit int) ([]*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "MapListing")
	defer span.End()

	requests, err := q.datastore.ListOpenWithLocation(ctx, storage.NormalizeLimit(limit, storage.MaxMapListing, storage.MaxMapListing))
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}
	return requests, nil
}

type LeaderboardQuery struct {
	datastore storage.RequestBackend
	logger    logger.Logger
}

func NewLeaderboardQuery(datastore storage.RequestBackend, logger logger.Logger) *LeaderboardQuery {
	return &LeaderboardQuery{
		datastore: datastore,
		logger:    logger,
	}
}

// Execute ranks volunteers by closed requests. A non positive limit means
// storage.DefaultLeaderboard.
func (q *LeaderboardQuery) Execute(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error) {
	ctx, span := tracer.Start(ctx, "Leaderboard")
	defer span.End()

	entries, err := q.datastore.Leaderboard(ctx, storage.NormalizeLimit(limit, storage.DefaultLeaderboard, storage.MaxLeaderboard))
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}
	return entries, nil
}
