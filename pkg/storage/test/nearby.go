package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

func nearbyIDs(found []storage.NearbyRequest) []string {
	ids := make([]string, 0, len(found))
	for _, n := range found {
		ids = append(ids, n.Request.ID)
	}
	return ids
}

// FindOpenNearbyTest searches around Teruel, a region no other test in the
// suite writes to, so earlier located requests never show up in the results.
func FindOpenNearbyTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	requester := user("requester")
	base := time.Now().Add(-time.Hour)

	origin := geo.Coordinate{Latitude: 40.3456, Longitude: -1.1065}
	at := func(dLat, dLon float64) *geo.Coordinate {
		return &geo.Coordinate{Latitude: origin.Latitude + dLat, Longitude: origin.Longitude + dLon}
	}

	create := func(loc *geo.Coordinate, offset time.Duration) *storage.Request {
		r := newRequest(requester, loc, base.Add(offset))
		require.NoError(t, ds.CreateRequest(ctx, r))
		return r
	}

	closest := create(at(0.0012, -0.0002), 0)
	near := create(at(0.0132, 0.0038), time.Second)
	tieOld := create(at(0.0232, 0), 2*time.Second)
	tieNew := create(at(0.0232, 0), 3*time.Second)
	edge := create(at(0.0832, 0), 4*time.Second)

	// excluded: outside the radius, without location, already claimed
	create(at(-0.5540, -0.3235), 5*time.Second)
	create(nil, 6*time.Second)
	claimed := create(at(0.0002, -0.0001), 7*time.Second)
	_, err := ds.ClaimRequest(ctx, claimed.ID, user("volunteer"), time.Now())
	require.NoError(t, err)

	t.Run("ordered_by_distance_then_age", func(t *testing.T) {
		found, err := ds.FindOpenNearby(ctx, origin, 10_000, 0)
		require.NoError(t, err)
		require.Equal(t, []string{closest.ID, near.ID, tieOld.ID, tieNew.ID, edge.ID}, nearbyIDs(found))

		for i, n := range found {
			require.Equal(t, storage.StateOpen, n.Request.State)
			require.InDelta(t, geo.HaversineDistanceMeters(origin, *n.Request.Location), n.DistanceMeters, 1)
			if i > 0 {
				require.GreaterOrEqual(t, n.DistanceMeters, found[i-1].DistanceMeters)
			}
		}

		count, err := ds.CountOpenNearby(ctx, origin, 10_000)
		require.NoError(t, err)
		require.Equal(t, 5, count)
	})

	t.Run("smaller_radius", func(t *testing.T) {
		found, err := ds.FindOpenNearby(ctx, origin, 2_000, 0)
		require.NoError(t, err)
		require.Equal(t, []string{closest.ID, near.ID}, nearbyIDs(found))

		count, err := ds.CountOpenNearby(ctx, origin, 2_000)
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("limit", func(t *testing.T) {
		found, err := ds.FindOpenNearby(ctx, origin, 10_000, 2)
		require.NoError(t, err)
		require.Equal(t, []string{closest.ID, near.ID}, nearbyIDs(found))

		// the count ignores the limit
		count, err := ds.CountOpenNearby(ctx, origin, 10_000)
		require.NoError(t, err)
		require.Equal(t, 5, count)
	})

	t.Run("claim_removes_from_results", func(t *testing.T) {
		r := create(at(0.0001, 0), 8*time.Second)

		found, err := ds.FindOpenNearby(ctx, origin, 10_000, 1)
		require.NoError(t, err)
		require.Equal(t, []string{r.ID}, nearbyIDs(found))

		_, err = ds.ClaimRequest(ctx, r.ID, user("volunteer"), time.Now())
		require.NoError(t, err)

		found, err = ds.FindOpenNearby(ctx, origin, 10_000, 1)
		require.NoError(t, err)
		require.Equal(t, []string{closest.ID}, nearbyIDs(found))
	})

	t.Run("nothing_around", func(t *testing.T) {
		found, err := ds.FindOpenNearby(ctx, geo.Coordinate{Latitude: -33.8688, Longitude: 151.2093}, 50_000, 0)
		require.NoError(t, err)
		require.Empty(t, found)

		count, err := ds.CountOpenNearby(ctx, geo.Coordinate{Latitude: -33.8688, Longitude: 151.2093}, 50_000)
		require.NoError(t, err)
		require.Zero(t, count)
	})
}

func ListOpenWithLocationTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	requester := user("requester")

	sevilla := geo.Coordinate{Latitude: 37.3891, Longitude: -5.9845}
	listed := createRequest(t, ds, requester, &sevilla)
	unlocated := createRequest(t, ds, requester, nil)
	claimed := createRequest(t, ds, requester, &sevilla)
	_, err := ds.ClaimRequest(ctx, claimed.ID, user("volunteer"), time.Now())
	require.NoError(t, err)

	all, err := ds.ListOpenWithLocation(ctx, 0)
	require.NoError(t, err)

	ids := requestIDs(all)
	require.Contains(t, ids, listed.ID)
	require.NotContains(t, ids, unlocated.ID)
	require.NotContains(t, ids, claimed.ID)

	for i, r := range all {
		require.Equal(t, storage.StateOpen, r.State)
		require.NotNil(t, r.Location)
		if i > 0 {
			require.False(t, r.CreatedAt.After(all[i-1].CreatedAt))
		}
	}

	one, err := ds.ListOpenWithLocation(ctx, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, all[0].ID, one[0].ID)
}
