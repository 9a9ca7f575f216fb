package storagewrappers

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vecinotech/vecinotech/internal/build"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

var _ storage.Datastore = (*BoundedConcurrencyDatastore)(nil)

var timeWaitingHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: build.ProjectName,
	Name:      "time_waiting_for_nearby_queries",
	Help:      "Time (in ms) spent waiting for FindOpenNearby and CountOpenNearby calls to the datastore",
	Buckets:   []float64{1, 10, 25, 50, 100, 1000, 5000}, // milliseconds
})

// BoundedConcurrencyDatastore makes sure there are at most N concurrent
// geographic queries against the wrapped datastore. Everything else passes
// through unbounded.
type BoundedConcurrencyDatastore struct {
	storage.Datastore
	limiter chan struct{}
}

// NewBoundedConcurrencyDatastore returns a wrapper that allows n concurrent
// FindOpenNearby and CountOpenNearby calls. One search request issues both, so
// n should be at least 2.
func NewBoundedConcurrencyDatastore(wrapped storage.Datastore, n uint32) *BoundedConcurrencyDatastore {
	return &BoundedConcurrencyDatastore{
		Datastore: wrapped,
		limiter:   make(chan struct{}, n),
	}
}

// acquire blocks until a slot is free or ctx is done.
func (b *BoundedConcurrencyDatastore) acquire(ctx context.Context) error {
	start := time.Now()

	select {
	case b.limiter <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	timeWaiting := time.Since(start).Milliseconds()
	timeWaitingHistogram.Observe(float64(timeWaiting))
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int64("time_waiting", timeWaiting))

	return nil
}

func (b *BoundedConcurrencyDatastore) release() {
	<-b.limiter
}

// FindOpenNearby see [storage.RequestBackend.FindOpenNearby].
func (b *BoundedConcurrencyDatastore) FindOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64, limit int) ([]storage.NearbyRequest, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.release()

	return b.Datastore.FindOpenNearby(ctx, origin, radiusMeters, limit)
}

// CountOpenNearby see [storage.RequestBackend.CountOpenNearby].
func (b *BoundedConcurrencyDatastore) CountOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64) (int, error) {
	if err := b.acquire(ctx); err != nil {
		return 0, err
	}
	defer b.release()

	return b.Datastore.CountOpenNearby(ctx, origin, radiusMeters)
}
