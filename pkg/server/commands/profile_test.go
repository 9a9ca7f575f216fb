package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/geocode"
	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage/memory"
)

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	log := logger.NewNoopLogger()
	update := NewUpdateProfileCommand(ds, log)
	userID := user("ana")

	_, err := update.Execute(ctx, UpdateProfileInput{UserID: userID})
	require.ErrorIs(t, err, serverErrors.ErrInvalidArgument)

	_, err = NewGetProfileQuery(ds, log).Execute(ctx, userID)
	require.ErrorIs(t, err, serverErrors.ErrNotFound)
	require.Equal(t, serverErrors.ErrProfileNotFound.Message, serverErrors.PublicMessage(err))

	created, err := update.Execute(ctx, UpdateProfileInput{
		UserID:      userID,
		DisplayName: "Ana",
		AddressLine: "Calle Mayor 5",
		City:        "Madrid",
	})
	require.NoError(t, err)
	require.Equal(t, "Ana", created.DisplayName)
	require.False(t, created.Volunteer)
	require.Nil(t, created.Location)

	_, err = NewSetVolunteerCommand(ds, log).Execute(ctx, userID, true)
	require.NoError(t, err)
	require.NoError(t, ds.SetProfileLocation(ctx, userID, &calleMayor, created.UpdatedAt))

	// a new address keeps the cached location until refreshed
	moved, err := update.Execute(ctx, UpdateProfileInput{
		UserID:      userID,
		DisplayName: "Ana M.",
		AddressLine: "Gran Via 1",
		City:        "Madrid",
	})
	require.NoError(t, err)
	require.Equal(t, "Gran Via 1", moved.AddressLine)
	require.True(t, moved.Volunteer)
	require.Equal(t, &calleMayor, moved.Location)
}

func TestRefreshLocation(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	log := logger.NewNoopLogger()

	userID := user("ana")
	saveProfile(t, ds, userID, &calleMayor)

	t.Run("overwrites", func(t *testing.T) {
		g, provider := newGeocoder(t)
		provider.EXPECT().Lookup(gomock.Any(), "Calle Mayor 5, Madrid, 28013, Spain").Return(plazaEspana, nil)

		p, err := NewRefreshLocationCommand(ds, g, log).Execute(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, &plazaEspana, p.Location)

		stored, err := ds.GetProfile(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, &plazaEspana, stored.Location)
	})

	t.Run("exhausted_keeps_previous", func(t *testing.T) {
		g, provider := newGeocoder(t)
		provider.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(geo.Coordinate{}, geocode.ErrNoResults).Times(5)

		_, err := NewRefreshLocationCommand(ds, g, log).Execute(ctx, userID)
		require.ErrorIs(t, err, serverErrors.ErrGeocodeExhausted)

		stored, err := ds.GetProfile(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, &plazaEspana, stored.Location)
	})

	t.Run("upstream_down", func(t *testing.T) {
		g, provider := newGeocoder(t)
		provider.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(geo.Coordinate{}, geocode.ErrUpstreamUnavailable).Times(5)

		_, err := NewRefreshLocationCommand(ds, g, log).Execute(ctx, userID)
		require.ErrorIs(t, err, serverErrors.ErrUpstreamUnavailable)
		require.Equal(t, serverErrors.ErrGeocoderUnavailable.Message, serverErrors.PublicMessage(err))
	})

	t.Run("unknown_profile", func(t *testing.T) {
		g, _ := newGeocoder(t)
		_, err := NewRefreshLocationCommand(ds, g, log).Execute(ctx, user("nobody"))
		require.ErrorIs(t, err, serverErrors.ErrNotFound)
	})

	t.Run("no_geocoder", func(t *testing.T) {
		_, err := NewRefreshLocationCommand(ds, nil, log).Execute(ctx, userID)
		require.ErrorIs(t, err, serverErrors.ErrUpstreamUnavailable)
	})
}

func TestSetVolunteerUnknownProfile(t *testing.T) {
	_, err := NewSetVolunteerCommand(memory.New(), logger.NewNoopLogger()).Execute(context.Background(), user("nobody"), true)
	require.ErrorIs(t, err, serverErrors.ErrNotFound)
}
