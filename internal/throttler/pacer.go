//go:generate mockgen -source pacer.go -destination ../mocks/mock_pacer.go -package mocks

package throttler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/vecinotech/vecinotech/internal/build"
)

// Pacer guards calls to an upstream that enforces a usage policy.
type Pacer interface {
	// Acquire blocks until the caller may issue one upstream call. The returned
	// release func must be called once the call finished. Acquire returns the
	// context error if ctx ends first, in which case nothing is held.
	Acquire(ctx context.Context) (release func(), err error)
}

type NoopPacer struct{}

var _ Pacer = (*NoopPacer)(nil)

func (NoopPacer) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return func() {}, nil
}

var pacerDelayMsHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace:                       build.ProjectName,
	Name:                            "upstream_pacer_delay_ms",
	Help:                            "Time spent waiting for an upstream call slot",
	Buckets:                         []float64{1, 10, 100, 500, 1000, 2000, 5000, 10000},
	NativeHistogramBucketFactor:     1.1,
	NativeHistogramMaxBucketNumber:  100,
	NativeHistogramMinResetDuration: time.Hour,
}, []string{"upstream"})

// IntervalPacer allows a single call in flight and at most one call start per
// interval.
type IntervalPacer struct {
	name    string
	slot    *semaphore.Weighted
	limiter *rate.Limiter
}

var _ Pacer = (*IntervalPacer)(nil)

// NewIntervalPacer returns a pacer for the upstream called name. A non
// positive interval only serializes calls.
func NewIntervalPacer(name string, interval time.Duration) *IntervalPacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &IntervalPacer{
		name:    name,
		slot:    semaphore.NewWeighted(1),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *IntervalPacer) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()

	if err := p.slot.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		p.slot.Release(1)
		return nil, err
	}

	pacerDelayMsHistogram.WithLabelValues(p.name).Observe(float64(time.Since(start).Milliseconds()))

	return func() { p.slot.Release(1) }, nil
}
