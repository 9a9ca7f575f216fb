package geocode

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vecinotech/vecinotech/internal/throttler"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/geocode/mocks"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

var (
	calleMayor = Address{Line: "Calle Mayor 5", City: "Madrid", PostalCode: "28013", Country: "Spain"}
	madrid     = geo.Coordinate{Latitude: 40.4153, Longitude: -3.7074}
	postcode   = geo.Coordinate{Latitude: 40.4147, Longitude: -3.7101}
)

func TestResolve(t *testing.T) {
	t.Run("first_step_hit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mocks.NewMockProvider(ctrl)
		provider.EXPECT().Lookup(gomock.Any(), "Calle Mayor 5, Madrid, 28013, Spain").Return(madrid, nil)

		got, err := NewCascadeGeocoder(provider).Resolve(context.Background(), calleMayor)
		require.NoError(t, err)
		require.Equal(t, madrid, got)
	})

	t.Run("postal_code_step_hit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mocks.NewMockProvider(ctrl)
		gomock.InOrder(
			provider.EXPECT().Lookup(gomock.Any(), "Calle Mayor 5, Madrid, 28013, Spain").Return(geo.Coordinate{}, ErrNoResults),
			provider.EXPECT().Lookup(gomock.Any(), "Calle Mayor, Madrid, 28013, Spain").Return(geo.Coordinate{}, ErrUpstreamUnavailable),
			provider.EXPECT().Lookup(gomock.Any(), "Calle Mayor, Madrid, Spain").Return(geo.Coordinate{}, ErrNoResults),
			provider.EXPECT().Lookup(gomock.Any(), "28013, Spain").Return(postcode, nil),
		)

		got, err := NewCascadeGeocoder(provider).Resolve(context.Background(), calleMayor)
		require.NoError(t, err)
		require.Equal(t, postcode, got)
	})

	t.Run("exhausted_after_five_calls", func(t *testing.T) {
		provider := &countingProvider{err: ErrNoResults}
		log, logs := logger.NewObserverLogger("debug")

		_, err := NewCascadeGeocoder(provider, WithLogger(log)).Resolve(context.Background(), calleMayor)
		require.ErrorIs(t, err, ErrGeocodeExhausted)
		require.NotErrorIs(t, err, ErrUpstreamUnavailable)
		require.Equal(t, int32(5), provider.calls.Load())
		require.Equal(t, 5, logs.FilterMessage("geocode miss").Len())
	})

	t.Run("all_upstream_failures", func(t *testing.T) {
		provider := &countingProvider{err: errors.New("connection refused")}

		_, err := NewCascadeGeocoder(provider).Resolve(context.Background(), calleMayor)
		require.ErrorIs(t, err, ErrGeocodeExhausted)
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
		require.Equal(t, int32(5), provider.calls.Load())
	})

	t.Run("empty_address_makes_no_calls", func(t *testing.T) {
		provider := &countingProvider{err: ErrNoResults}

		_, err := NewCascadeGeocoder(provider).Resolve(context.Background(), Address{})
		require.ErrorIs(t, err, ErrGeocodeExhausted)
		require.Zero(t, provider.calls.Load())
	})

	t.Run("default_country_is_applied", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mocks.NewMockProvider(ctrl)
		provider.EXPECT().Lookup(gomock.Any(), "Lisboa, Portugal").Return(madrid, nil)

		_, err := NewCascadeGeocoder(provider, WithDefaultCountry("Portugal")).
			Resolve(context.Background(), Address{City: "Lisboa"})
		require.NoError(t, err)
	})

	t.Run("cancelled_context_stops_cascade", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		provider := &countingProvider{err: ErrNoResults, onCall: cancel}

		_, err := NewCascadeGeocoder(provider).Resolve(ctx, calleMayor)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, int32(1), provider.calls.Load())
	})

	t.Run("pacer_wait_is_cancellable", func(t *testing.T) {
		provider := &countingProvider{err: ErrNoResults}
		pacer := throttler.NewIntervalPacer("test", time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := NewCascadeGeocoder(provider, WithPacer(pacer)).Resolve(ctx, calleMayor)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrGeocodeExhausted)
		require.Equal(t, int32(1), provider.calls.Load())
	})

	t.Run("cache_serves_repeated_queries", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mocks.NewMockProvider(ctrl)
		provider.EXPECT().Lookup(gomock.Any(), "Calle Mayor 5, Madrid, 28013, Spain").Return(madrid, nil).Times(1)

		cache, err := storage.NewInMemoryLRUCache[geo.Coordinate]()
		require.NoError(t, err)
		defer cache.Stop()

		g := NewCascadeGeocoder(provider, WithCache(cache, time.Minute))
		for i := 0; i < 3; i++ {
			got, err := g.Resolve(context.Background(), calleMayor)
			require.NoError(t, err)
			require.Equal(t, madrid, got)
		}
	})
}

type countingProvider struct {
	calls  atomic.Int32
	err    error
	onCall func()
}

func (p *countingProvider) Lookup(ctx context.Context, query string) (geo.Coordinate, error) {
	p.calls.Add(1)
	if p.onCall != nil {
		p.onCall()
	}
	return geo.Coordinate{}, p.err
}
