package commands

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vecinotech/vecinotech/internal/mocks"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/id"
	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/memory"
)

// kmNorth is the latitude delta of one kilometer due north.
const kmNorth = 1000 / geo.EarthRadiusMeters * 180 / math.Pi

func locatedRequest(t *testing.T, ds storage.Datastore, loc geo.Coordinate) *storage.Request {
	t.Helper()
	now := storage.Timestamp(time.Now())
	r := &storage.Request{
		ID:          id.New(),
		RequesterID: user("requester"),
		Title:       "t",
		Description: "d",
		Category:    storage.DefaultCategory,
		State:       storage.StateOpen,
		Location:    &loc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, ds.CreateRequest(context.Background(), r))
	return r
}

func nearbyIDs(items []storage.NearbyRequest) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.Request.ID)
	}
	return ids
}

func TestSearchNearbyClampsRadius(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	origin := geo.Coordinate{Latitude: 40.0, Longitude: -3.0}
	at := func(km float64) geo.Coordinate {
		return geo.Coordinate{Latitude: origin.Latitude + km*kmNorth, Longitude: origin.Longitude}
	}

	halfKm := locatedRequest(t, ds, at(0.5))
	oneAndHalfKm := locatedRequest(t, ds, at(1.5))
	fifteenKm := locatedRequest(t, ds, at(15))
	locatedRequest(t, ds, at(25))

	cmd := NewSearchNearbyCommand(ds, logger.NewNoopLogger())
	search := func(radiusKm float64) *SearchNearbyResult {
		res, err := cmd.Execute(ctx, SearchNearbyInput{UserID: "vera", Origin: &origin, RadiusKm: radiusKm})
		require.NoError(t, err)
		return res
	}

	huge, atMax := search(500), search(20)
	require.Equal(t, nearbyIDs(atMax.Items), nearbyIDs(huge.Items))
	require.Equal(t, []string{halfKm.ID, oneAndHalfKm.ID, fifteenKm.ID}, nearbyIDs(huge.Items))
	require.Equal(t, 3, huge.Total)
	require.InDelta(t, 20.0, huge.RadiusKm, 0)

	zero, atMin := search(0), search(1)
	require.Equal(t, nearbyIDs(atMin.Items), nearbyIDs(zero.Items))
	require.Equal(t, []string{halfKm.ID}, nearbyIDs(zero.Items))
	require.InDelta(t, 1.0, zero.RadiusKm, 0)
	require.InDelta(t, 500, zero.Items[0].DistanceMeters, 1)

	negative := search(-3)
	require.Equal(t, nearbyIDs(atMin.Items), nearbyIDs(negative.Items))
}

func TestSearchNearbyLimitKeepsTotal(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	origin := geo.Coordinate{Latitude: -33.0, Longitude: 151.0}
	for i := 1; i <= 4; i++ {
		locatedRequest(t, ds, geo.Coordinate{Latitude: origin.Latitude + float64(i)*kmNorth, Longitude: origin.Longitude})
	}

	res, err := NewSearchNearbyCommand(ds, logger.NewNoopLogger()).Execute(ctx, SearchNearbyInput{
		UserID:   "vera",
		Origin:   &origin,
		RadiusKm: 10,
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.Equal(t, 4, res.Total)
	require.Less(t, res.Items[0].DistanceMeters, res.Items[1].DistanceMeters)
}

func TestSearchNearbyOrigin(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	cmd := NewSearchNearbyCommand(ds, logger.NewNoopLogger())
	r := locatedRequest(t, ds, calleMayor)

	t.Run("profile_location", func(t *testing.T) {
		volunteer := user("volunteer")
		saveProfile(t, ds, volunteer, &plazaEspana)

		res, err := cmd.Execute(ctx, SearchNearbyInput{UserID: volunteer, RadiusKm: 2})
		require.NoError(t, err)
		require.Equal(t, plazaEspana, res.Origin)
		require.Equal(t, []string{r.ID}, nearbyIDs(res.Items))
	})

	t.Run("profile_without_location", func(t *testing.T) {
		volunteer := user("volunteer")
		saveProfile(t, ds, volunteer, nil)

		_, err := cmd.Execute(ctx, SearchNearbyInput{UserID: volunteer, RadiusKm: 2})
		require.ErrorIs(t, err, serverErrors.ErrInvalidArgument)
		require.Equal(t, serverErrors.ErrNoSearchOrigin.Message, serverErrors.PublicMessage(err))
	})

	t.Run("no_profile", func(t *testing.T) {
		_, err := cmd.Execute(ctx, SearchNearbyInput{UserID: user("volunteer"), RadiusKm: 2})
		require.ErrorIs(t, err, serverErrors.ErrInvalidArgument)
	})

	t.Run("invalid_origin", func(t *testing.T) {
		_, err := cmd.Execute(ctx, SearchNearbyInput{UserID: "vera", Origin: &geo.Coordinate{Latitude: 91}})
		require.ErrorIs(t, err, serverErrors.ErrInvalidArgument)
	})

	t.Run("missing_user", func(t *testing.T) {
		_, err := cmd.Execute(ctx, SearchNearbyInput{Origin: &calleMayor})
		require.ErrorIs(t, err, serverErrors.ErrUnauthenticated)
	})
}

func TestSearchNearbyPassesClampedMeters(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()
	mockDatastore := mocks.NewMockDatastore(mockController)

	mockDatastore.EXPECT().FindOpenNearby(gomock.Any(), calleMayor, 20000.0, 0).Return(nil, nil)
	mockDatastore.EXPECT().CountOpenNearby(gomock.Any(), calleMayor, 20000.0).Return(0, nil)

	res, err := NewSearchNearbyCommand(mockDatastore, logger.NewNoopLogger()).Execute(context.Background(), SearchNearbyInput{
		UserID:   "vera",
		Origin:   &calleMayor,
		RadiusKm: 75,
	})
	require.NoError(t, err)
	require.Empty(t, res.Items)
	require.Zero(t, res.Total)
}

// A requester in Calle Mayor posts a request, a volunteer one kilometer away
// finds it first in a 5 km search.
func TestMadridScenarioSearch(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()

	requester := user("requester")
	saveProfile(t, ds, requester, nil)
	g, provider := newGeocoder(t)
	provider.EXPECT().Lookup(gomock.Any(), "Calle Mayor 5, Madrid, 28013, Spain").Return(calleMayor, nil)

	r, err := NewCreateRequestCommand(ds, g, logger.NewNoopLogger()).Execute(ctx, CreateRequestInput{
		RequesterID: requester,
		Title:       "Groceries",
		Description: "Carry the shopping to the third floor",
	})
	require.NoError(t, err)
	require.InDelta(t, 40.415, r.Location.Latitude, 0.001)
	require.InDelta(t, -3.707, r.Location.Longitude, 0.001)

	farther := locatedRequest(t, ds, geo.Coordinate{Latitude: 40.4400, Longitude: -3.6900})

	volunteer := user("volunteer")
	saveProfile(t, ds, volunteer, &plazaEspana)
	res, err := NewSearchNearbyCommand(ds, logger.NewNoopLogger()).Execute(ctx, SearchNearbyInput{UserID: volunteer, RadiusKm: 5})
	require.NoError(t, err)
	require.Equal(t, []string{r.ID, farther.ID}, nearbyIDs(res.Items))
	require.Less(t, res.Items[0].DistanceMeters, 2000.0)
}
