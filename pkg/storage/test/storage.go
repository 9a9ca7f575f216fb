// Package test holds the behavior every [storage.Datastore] implementation
// must share. Engines call [RunAllTests] against a fresh datastore.
package test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/id"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

func RunAllTests(t *testing.T, ds storage.Datastore) {
	t.Run("TestDatastoreIsReady", func(t *testing.T) {
		status, err := ds.IsReady(context.Background())
		require.NoError(t, err)
		require.True(t, status.IsReady)
	})

	// Requests.
	t.Run("TestCreateAndGetRequest", func(t *testing.T) { CreateAndGetRequestTest(t, ds) })
	t.Run("TestClaimRequest", func(t *testing.T) { ClaimRequestTest(t, ds) })
	t.Run("TestConcurrentClaim", func(t *testing.T) { ConcurrentClaimTest(t, ds) })
	t.Run("TestCompleteRequest", func(t *testing.T) { CompleteRequestTest(t, ds) })
	t.Run("TestListRequests", func(t *testing.T) { ListRequestsTest(t, ds) })
	t.Run("TestLeaderboard", func(t *testing.T) { LeaderboardTest(t, ds) })

	// Proximity.
	t.Run("TestFindOpenNearby", func(t *testing.T) { FindOpenNearbyTest(t, ds) })
	t.Run("TestListOpenWithLocation", func(t *testing.T) { ListOpenWithLocationTest(t, ds) })

	// Profiles.
	t.Run("TestProfiles", func(t *testing.T) { ProfilesTest(t, ds) })

	// Chat.
	t.Run("TestMessages", func(t *testing.T) { MessagesTest(t, ds) })

	// Ratings.
	t.Run("TestRatings", func(t *testing.T) { RatingsTest(t, ds) })
}

// user returns a fresh user id so tests sharing one datastore never collide.
func user(prefix string) string {
	return prefix + "-" + id.New()
}

func newRequest(requesterID string, loc *geo.Coordinate, createdAt time.Time) *storage.Request {
	return &storage.Request{
		ID:          id.New(),
		RequesterID: requesterID,
		Title:       "Ayuda con la compra",
		Description: "Necesito que alguien me suba la compra al tercer piso",
		Category:    storage.DefaultCategory,
		State:       storage.StateOpen,
		Location:    loc,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func createRequest(t *testing.T, ds storage.Datastore, requesterID string, loc *geo.Coordinate) *storage.Request {
	t.Helper()
	r := newRequest(requesterID, loc, time.Now())
	require.NoError(t, ds.CreateRequest(context.Background(), r))
	return r
}

// closedRequest creates a request and drives it to CLOSED.
func closedRequest(t *testing.T, ds storage.Datastore, requesterID, volunteerID string) *storage.Request {
	t.Helper()
	ctx := context.Background()

	r := createRequest(t, ds, requesterID, nil)
	_, err := ds.ClaimRequest(ctx, r.ID, volunteerID, time.Now())
	require.NoError(t, err)
	closed, transitioned, err := ds.CompleteRequest(ctx, r.ID, volunteerID, time.Now())
	require.NoError(t, err)
	require.True(t, transitioned)
	return closed
}

// cmpOpts compares times at the precision every engine stores.
var cmpOpts = []cmp.Option{
	cmp.Comparer(func(a, b time.Time) bool {
		return storage.Timestamp(a).Equal(storage.Timestamp(b))
	}),
}

func requireSameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	require.True(t, storage.Timestamp(want).Equal(got), "want %s, got %s", want, got)
}

func requestIDs(requests []*storage.Request) []string {
	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ID)
	}
	return ids
}
