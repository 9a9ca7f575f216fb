package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/test"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemdbStorage(t *testing.T) {
	ds := New()
	test.RunAllTests(t, ds)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	ds := New()

	r := &storage.Request{
		ID:          "01J0000000000000000000000A",
		RequesterID: "ana",
		State:       storage.StateOpen,
		Location:    &geo.Coordinate{Latitude: 40.4168, Longitude: -3.7038},
		CreatedAt:   time.Now(),
	}
	require.NoError(t, ds.CreateRequest(ctx, r))

	// mutating the caller's value does not reach the store
	r.Location.Latitude = 0
	r.Title = "changed"

	got, err := ds.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.InDelta(t, 40.4168, got.Location.Latitude, 0)
	require.Empty(t, got.Title)

	got.State = storage.StateClosed
	again, err := ds.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, storage.StateOpen, again.State)
}

func TestSpatialIndexRebuildsAfterRemovals(t *testing.T) {
	idx := newSpatialIndex()
	origin := geo.Coordinate{Latitude: 40.4168, Longitude: -3.7038}

	ids := []string{"a", "b", "c", "d"}
	for i, id := range ids {
		idx.insert(id, geo.Coordinate{Latitude: origin.Latitude + float64(i)*0.001, Longitude: origin.Longitude})
	}
	require.ElementsMatch(t, ids, idx.within(origin, 1_000))

	idx.remove("a")
	require.Equal(t, 1, idx.removed)
	// stale entries are still reported until the tree is rebuilt
	require.Len(t, idx.within(origin, 1_000), 4)

	idx.remove("b")
	idx.remove("c")
	require.Zero(t, idx.removed)
	require.Equal(t, []string{"d"}, idx.within(origin, 1_000))

	idx.remove("unknown")
	require.Zero(t, idx.removed)
}

func TestSpatialIndexRadius(t *testing.T) {
	idx := newSpatialIndex()
	sol := geo.Coordinate{Latitude: 40.4168, Longitude: -3.7038}

	idx.insert("near", geo.Coordinate{Latitude: 40.4300, Longitude: -3.7000})
	idx.insert("toledo", geo.Coordinate{Latitude: 39.8628, Longitude: -4.0273})

	require.Equal(t, []string{"near"}, idx.within(sol, 10_000))
	require.ElementsMatch(t, []string{"near", "toledo"}, idx.within(sol, 100_000))
	require.Empty(t, newSpatialIndex().within(sol, 100_000))
}

func TestTimeIndexNewest(t *testing.T) {
	idx := newTimeIndex()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	idx.put(base, "b")
	idx.put(base.Add(time.Second), "c")
	idx.put(base, "a")
	idx.put(base.Add(-time.Second), "z")

	require.Equal(t, []string{"c", "b", "a", "z"}, idx.newest(0))
	require.Equal(t, []string{"c", "b"}, idx.newest(2))

	idx.remove(base, "b")
	require.Equal(t, []string{"c", "a", "z"}, idx.newest(0))
	require.Empty(t, newTimeIndex().newest(5))
}
