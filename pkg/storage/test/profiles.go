package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

func ProfilesTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()

	t.Run("missing_profile", func(t *testing.T) {
		missing := user("missing")

		_, err := ds.GetProfile(ctx, missing)
		require.ErrorIs(t, err, storage.ErrNotFound)

		err = ds.SetProfileLocation(ctx, missing, &geo.Coordinate{Latitude: 1, Longitude: 1}, time.Now())
		require.ErrorIs(t, err, storage.ErrNotFound)

		_, err = ds.SetVolunteer(ctx, missing, true, time.Now())
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("upsert_keeps_location", func(t *testing.T) {
		userID := user("profile")
		profile := &storage.UserProfile{
			UserID:      userID,
			DisplayName: "Carmen",
			AddressLine: "Calle Mayor 1",
			City:        "Madrid",
			PostalCode:  "28013",
			Country:     "España",
			UpdatedAt:   time.Now(),
		}
		require.NoError(t, ds.UpsertProfile(ctx, profile))

		got, err := ds.GetProfile(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, "Carmen", got.DisplayName)
		require.Equal(t, "Calle Mayor 1", got.AddressLine)
		require.Equal(t, "Madrid", got.City)
		require.Equal(t, "28013", got.PostalCode)
		require.Equal(t, "España", got.Country)
		require.False(t, got.Volunteer)
		require.Nil(t, got.Location)
		requireSameTime(t, profile.UpdatedAt, got.UpdatedAt)

		sol := geo.Coordinate{Latitude: 40.4168, Longitude: -3.7038}
		require.NoError(t, ds.SetProfileLocation(ctx, userID, &sol, time.Now()))

		profile.DisplayName = "Carmen G."
		profile.Location = &geo.Coordinate{Latitude: 0, Longitude: 0}
		profile.UpdatedAt = time.Now()
		require.NoError(t, ds.UpsertProfile(ctx, profile))

		got, err = ds.GetProfile(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, "Carmen G.", got.DisplayName)
		require.Equal(t, &sol, got.Location)

		require.NoError(t, ds.SetProfileLocation(ctx, userID, nil, time.Now()))
		got, err = ds.GetProfile(ctx, userID)
		require.NoError(t, err)
		require.Nil(t, got.Location)
	})

	t.Run("set_volunteer", func(t *testing.T) {
		userID := user("profile")
		require.NoError(t, ds.UpsertProfile(ctx, &storage.UserProfile{
			UserID:      userID,
			DisplayName: "Andrés",
			UpdatedAt:   time.Now(),
		}))

		now := time.Now().Add(time.Minute)
		updated, err := ds.SetVolunteer(ctx, userID, true, now)
		require.NoError(t, err)
		require.True(t, updated.Volunteer)
		require.Equal(t, "Andrés", updated.DisplayName)
		requireSameTime(t, now, updated.UpdatedAt)

		// setting the same value again is not an error
		updated, err = ds.SetVolunteer(ctx, userID, true, now)
		require.NoError(t, err)
		require.True(t, updated.Volunteer)

		updated, err = ds.SetVolunteer(ctx, userID, false, time.Now())
		require.NoError(t, err)
		require.False(t, updated.Volunteer)
	})
}
