// Package geocode turns free text postal addresses into coordinates by
// querying a provider with progressively less precise queries.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/internal/build"
	"github.com/vecinotech/vecinotech/internal/throttler"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/telemetry"
)

const DefaultCountry = "Spain"

var tracer = otel.Tracer("pkg/geocode")

var lookupCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: build.ProjectName,
	Name:      "geocode_lookups_total",
	Help:      "Provider lookups performed by the geocoding cascade, by step and outcome.",
}, []string{"step", "outcome"})

// Geocoder resolves an address to a coordinate.
type Geocoder interface {
	Resolve(ctx context.Context, addr Address) (geo.Coordinate, error)
}

// CascadeGeocoder tries up to five queries of decreasing precision and returns
// the first hit. Every provider call is paced.
type CascadeGeocoder struct {
	provider       Provider
	pacer          throttler.Pacer
	logger         logger.Logger
	defaultCountry string
	cache          storage.InMemoryCache[geo.Coordinate]
	cacheTTL       time.Duration
}

var _ Geocoder = (*CascadeGeocoder)(nil)

type Option func(*CascadeGeocoder)

func WithPacer(p throttler.Pacer) Option {
	return func(g *CascadeGeocoder) {
		g.pacer = p
	}
}

func WithLogger(l logger.Logger) Option {
	return func(g *CascadeGeocoder) {
		g.logger = l
	}
}

func WithDefaultCountry(country string) Option {
	return func(g *CascadeGeocoder) {
		g.defaultCountry = country
	}
}

// WithCache keeps successful lookups keyed by the exact query for ttl.
func WithCache(c storage.InMemoryCache[geo.Coordinate], ttl time.Duration) Option {
	return func(g *CascadeGeocoder) {
		g.cache = c
		g.cacheTTL = ttl
	}
}

func NewCascadeGeocoder(provider Provider, opts ...Option) *CascadeGeocoder {
	g := &CascadeGeocoder{
		provider:       provider,
		pacer:          throttler.NoopPacer{},
		logger:         logger.NewNoopLogger(),
		defaultCountry: DefaultCountry,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve returns the coordinate of the first cascade step the provider can
// answer. It returns ErrGeocodeExhausted when every step misses; the error
// also matches ErrUpstreamUnavailable when no step got an answer from the
// provider at all. A cancelled ctx aborts the cascade with ctx.Err().
func (g *CascadeGeocoder) Resolve(ctx context.Context, addr Address) (geo.Coordinate, error) {
	ctx, span := tracer.Start(ctx, "geocode.Resolve")
	defer span.End()

	queries := cascadeQueries(addr, g.defaultCountry)
	upstreamFailures := 0

	for i, query := range queries {
		step := fmt.Sprint(i + 1)

		if c, ok := g.cached(query); ok {
			lookupCounter.WithLabelValues(step, "cached").Inc()
			return c, nil
		}

		release, err := g.pacer.Acquire(ctx)
		if err != nil {
			telemetry.TraceError(span, err)
			return geo.Coordinate{}, err
		}
		c, err := g.provider.Lookup(ctx, query)
		release()

		if err == nil {
			if g.cache != nil {
				g.cache.Set(query, c, g.cacheTTL)
			}
			lookupCounter.WithLabelValues(step, "hit").Inc()
			span.SetAttributes(attribute.Int("geocode.step", i+1))
			g.logger.DebugWithContext(ctx, "geocode hit",
				zap.Int("step", i+1),
				zap.String("query", query),
				zap.Stringer("coordinate", c))
			return c, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			telemetry.TraceError(span, ctxErr)
			return geo.Coordinate{}, ctxErr
		}

		outcome := "miss"
		if !errors.Is(err, ErrNoResults) {
			outcome = "error"
			upstreamFailures++
		}
		lookupCounter.WithLabelValues(step, outcome).Inc()
		g.logger.DebugWithContext(ctx, "geocode miss",
			zap.Int("step", i+1),
			zap.String("query", query),
			zap.Error(err))
	}

	span.SetAttributes(attribute.Int("geocode.step", 0))
	if len(queries) > 0 && upstreamFailures == len(queries) {
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrGeocodeExhausted, ErrUpstreamUnavailable)
	}
	return geo.Coordinate{}, ErrGeocodeExhausted
}

func (g *CascadeGeocoder) cached(query string) (geo.Coordinate, bool) {
	if g.cache == nil {
		return geo.Coordinate{}, false
	}
	return g.cache.Get(query)
}
