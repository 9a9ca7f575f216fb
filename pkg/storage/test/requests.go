package test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

func CreateAndGetRequestTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	requester := user("requester")

	t.Run("round_trip", func(t *testing.T) {
		r := newRequest(requester, &geo.Coordinate{Latitude: 40.4168, Longitude: -3.7038}, time.Now())
		r.Category = "SHOPPING"
		require.NoError(t, ds.CreateRequest(ctx, r))

		got, err := ds.GetRequest(ctx, r.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(r, got, cmpOpts...); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("without_location", func(t *testing.T) {
		r := createRequest(t, ds, requester, nil)

		got, err := ds.GetRequest(ctx, r.ID)
		require.NoError(t, err)
		require.Nil(t, got.Location)
	})

	t.Run("duplicate_id", func(t *testing.T) {
		r := createRequest(t, ds, requester, nil)

		err := ds.CreateRequest(ctx, newRequestWithID(r.ID, requester))
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := ds.GetRequest(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func newRequestWithID(id, requesterID string) *storage.Request {
	r := newRequest(requesterID, nil, time.Now())
	r.ID = id
	return r
}

func ClaimRequestTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	requester := user("requester")
	volunteer := user("volunteer")

	t.Run("own_request", func(t *testing.T) {
		r := createRequest(t, ds, requester, nil)

		_, err := ds.ClaimRequest(ctx, r.ID, requester, time.Now())
		require.ErrorIs(t, err, storage.ErrOwnRequest)

		got, err := ds.GetRequest(ctx, r.ID)
		require.NoError(t, err)
		require.Equal(t, storage.StateOpen, got.State)
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := ds.ClaimRequest(ctx, "missing", volunteer, time.Now())
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("claims_open_request", func(t *testing.T) {
		r := createRequest(t, ds, requester, nil)
		now := time.Now().Add(time.Minute)

		claimed, err := ds.ClaimRequest(ctx, r.ID, volunteer, now)
		require.NoError(t, err)
		require.Equal(t, storage.StateInProgress, claimed.State)
		require.Equal(t, volunteer, claimed.VolunteerID)
		requireSameTime(t, now, claimed.UpdatedAt)
		requireSameTime(t, r.CreatedAt, claimed.CreatedAt)

		_, err = ds.ClaimRequest(ctx, r.ID, user("late"), time.Now())
		require.ErrorIs(t, err, storage.ErrNotClaimable)

		got, err := ds.GetRequest(ctx, r.ID)
		require.NoError(t, err)
		require.Equal(t, volunteer, got.VolunteerID)
	})

	t.Run("same_volunteer_twice", func(t *testing.T) {
		r := createRequest(t, ds, requester, nil)

		_, err := ds.ClaimRequest(ctx, r.ID, volunteer, time.Now())
		require.NoError(t, err)
		_, err = ds.ClaimRequest(ctx, r.ID, volunteer, time.Now())
		require.ErrorIs(t, err, storage.ErrNotClaimable)
	})
}

func ConcurrentClaimTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	r := createRequest(t, ds, user("requester"), nil)

	const volunteers = 10

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []string
		rejected int
		errs     []error
	)
	for i := 0; i < volunteers; i++ {
		volunteerID := fmt.Sprintf("%s-%d", user("volunteer"), i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := ds.ClaimRequest(ctx, r.ID, volunteerID, time.Now())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, claimed.VolunteerID)
			case errors.Is(err, storage.ErrNotClaimable):
				rejected++
			default:
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, winners, 1)
	require.Equal(t, volunteers-1, rejected)

	got, err := ds.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, storage.StateInProgress, got.State)
	require.Equal(t, winners[0], got.VolunteerID)
}

func CompleteRequestTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	requester := user("requester")
	volunteer := user("volunteer")

	t.Run("open_request", func(t *testing.T) {
		r := createRequest(t, ds, requester, nil)

		_, _, err := ds.CompleteRequest(ctx, r.ID, requester, time.Now())
		require.ErrorIs(t, err, storage.ErrInvalidState)
	})

	t.Run("not_found", func(t *testing.T) {
		_, _, err := ds.CompleteRequest(ctx, "missing", requester, time.Now())
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("lifecycle", func(t *testing.T) {
		r := createRequest(t, ds, requester, nil)
		_, err := ds.ClaimRequest(ctx, r.ID, volunteer, time.Now())
		require.NoError(t, err)

		_, _, err = ds.CompleteRequest(ctx, r.ID, user("stranger"), time.Now())
		require.ErrorIs(t, err, storage.ErrNotParticipant)

		closedAt := time.Now().Add(time.Hour)
		closed, transitioned, err := ds.CompleteRequest(ctx, r.ID, requester, closedAt)
		require.NoError(t, err)
		require.True(t, transitioned)
		require.Equal(t, storage.StateClosed, closed.State)
		require.Equal(t, volunteer, closed.VolunteerID)
		requireSameTime(t, closedAt, closed.UpdatedAt)

		again, transitioned, err := ds.CompleteRequest(ctx, r.ID, volunteer, time.Now())
		require.NoError(t, err)
		require.False(t, transitioned)
		require.Equal(t, storage.StateClosed, again.State)
		requireSameTime(t, closedAt, again.UpdatedAt)

		_, err = ds.ClaimRequest(ctx, r.ID, user("late"), time.Now())
		require.ErrorIs(t, err, storage.ErrNotClaimable)
	})

	t.Run("concurrent_participants", func(t *testing.T) {
		r := createRequest(t, ds, requester, nil)
		_, err := ds.ClaimRequest(ctx, r.ID, volunteer, time.Now())
		require.NoError(t, err)

		var (
			wg          sync.WaitGroup
			mu          sync.Mutex
			transitions int
			errs        []error
		)
		for _, actor := range []string{requester, volunteer} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, transitioned, err := ds.CompleteRequest(ctx, r.ID, actor, time.Now())

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if transitioned {
					transitions++
				}
			}()
		}
		wg.Wait()

		require.Empty(t, errs)
		require.Equal(t, 1, transitions)
	})
}

func ListRequestsTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	requester := user("requester")
	volunteer := user("volunteer")
	base := time.Now().Add(-time.Hour)

	var created []*storage.Request
	for i := 0; i < 3; i++ {
		r := newRequest(requester, nil, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, ds.CreateRequest(ctx, r))
		created = append(created, r)
	}

	mine, err := ds.ListRequestsByRequester(ctx, requester)
	require.NoError(t, err)
	require.Equal(t, []string{created[2].ID, created[1].ID, created[0].ID}, requestIDs(mine))

	for _, r := range created[:2] {
		_, err := ds.ClaimRequest(ctx, r.ID, volunteer, time.Now())
		require.NoError(t, err)
	}

	helping, err := ds.ListRequestsByVolunteer(ctx, volunteer)
	require.NoError(t, err)
	require.Equal(t, []string{created[1].ID, created[0].ID}, requestIDs(helping))

	none, err := ds.ListRequestsByRequester(ctx, user("nobody"))
	require.NoError(t, err)
	require.Empty(t, none)

	none, err = ds.ListRequestsByVolunteer(ctx, user("nobody"))
	require.NoError(t, err)
	require.Empty(t, none)
}

func LeaderboardTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	requester := user("requester")
	top := user("top")
	second := user("second")
	busy := user("busy")

	require.NoError(t, ds.UpsertProfile(ctx, &storage.UserProfile{
		UserID:      top,
		DisplayName: "Lucía",
		Volunteer:   true,
		UpdatedAt:   time.Now(),
	}))

	closedRequest(t, ds, requester, top)
	closedRequest(t, ds, requester, top)
	closedRequest(t, ds, requester, second)

	inProgress := createRequest(t, ds, requester, nil)
	_, err := ds.ClaimRequest(ctx, inProgress.ID, busy, time.Now())
	require.NoError(t, err)

	entries, err := ds.Leaderboard(ctx, storage.MaxLeaderboard)
	require.NoError(t, err)

	byID := make(map[string]storage.LeaderboardEntry, len(entries))
	for i, e := range entries {
		byID[e.VolunteerID] = e
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		require.GreaterOrEqual(t, prev.Closed, e.Closed)
		if prev.Closed == e.Closed {
			require.Less(t, prev.VolunteerID, e.VolunteerID)
		}
	}

	require.Equal(t, storage.LeaderboardEntry{VolunteerID: top, DisplayName: "Lucía", Closed: 2}, byID[top])
	require.Equal(t, storage.LeaderboardEntry{VolunteerID: second, Closed: 1}, byID[second])
	require.NotContains(t, byID, busy)

	limited, err := ds.Leaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, entries[0], limited[0])
}
