package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/id"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

func newRating(requestID, requesterID string, score int, createdAt time.Time) *storage.Rating {
	return &storage.Rating{
		ID:          id.New(),
		RequestID:   requestID,
		RequesterID: requesterID,
		Score:       score,
		Comment:     "Muy amable",
		CreatedAt:   createdAt,
	}
}

func RatingsTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	requester := user("requester")
	volunteer := user("volunteer")

	t.Run("request_not_closed", func(t *testing.T) {
		r := createRequest(t, ds, requester, nil)
		err := ds.CreateRating(ctx, newRating(r.ID, requester, 5, time.Now()))
		require.ErrorIs(t, err, storage.ErrInvalidState)

		_, err = ds.ClaimRequest(ctx, r.ID, volunteer, time.Now())
		require.NoError(t, err)
		err = ds.CreateRating(ctx, newRating(r.ID, requester, 5, time.Now()))
		require.ErrorIs(t, err, storage.ErrInvalidState)
	})

	t.Run("unknown_request", func(t *testing.T) {
		err := ds.CreateRating(ctx, newRating("missing", requester, 5, time.Now()))
		require.ErrorIs(t, err, storage.ErrNotFound)

		_, err = ds.GetRatingByRequest(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("only_requester_rates", func(t *testing.T) {
		r := closedRequest(t, ds, requester, volunteer)

		err := ds.CreateRating(ctx, newRating(r.ID, volunteer, 5, time.Now()))
		require.ErrorIs(t, err, storage.ErrNotParticipant)

		err = ds.CreateRating(ctx, newRating(r.ID, user("stranger"), 5, time.Now()))
		require.ErrorIs(t, err, storage.ErrNotParticipant)
	})

	t.Run("one_rating_per_request", func(t *testing.T) {
		r := closedRequest(t, ds, requester, volunteer)

		rating := newRating(r.ID, requester, 4, time.Now())
		require.NoError(t, ds.CreateRating(ctx, rating))
		require.Equal(t, volunteer, rating.VolunteerID)

		got, err := ds.GetRatingByRequest(ctx, r.ID)
		require.NoError(t, err)
		require.Equal(t, rating.ID, got.ID)
		require.Equal(t, requester, got.RequesterID)
		require.Equal(t, volunteer, got.VolunteerID)
		require.Equal(t, 4, got.Score)
		require.Equal(t, "Muy amable", got.Comment)
		requireSameTime(t, rating.CreatedAt, got.CreatedAt)

		err = ds.CreateRating(ctx, newRating(r.ID, requester, 1, time.Now()))
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("list_by_volunteer", func(t *testing.T) {
		rated := user("volunteer")
		base := time.Now().Add(-time.Hour)

		older := newRating(closedRequest(t, ds, requester, rated).ID, requester, 3, base)
		newer := newRating(closedRequest(t, ds, requester, rated).ID, requester, 5, base.Add(time.Second))
		require.NoError(t, ds.CreateRating(ctx, older))
		require.NoError(t, ds.CreateRating(ctx, newer))

		ratings, err := ds.ListRatingsByVolunteer(ctx, rated)
		require.NoError(t, err)
		require.Len(t, ratings, 2)
		require.Equal(t, newer.ID, ratings[0].ID)
		require.Equal(t, older.ID, ratings[1].ID)

		none, err := ds.ListRatingsByVolunteer(ctx, user("nobody"))
		require.NoError(t, err)
		require.Empty(t, none)
	})
}
