package commands

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

type SearchNearbyInput struct {
	UserID string
	// Origin overrides the caller's profile location when set.
	Origin   *geo.Coordinate
	RadiusKm float64
	Limit    int
}

type SearchNearbyResult struct {
	Items []storage.NearbyRequest
	// Total counts every match within the radius, ignoring the limit.
	Total int
	// RadiusKm is the radius actually searched.
	RadiusKm float64
	Origin   geo.Coordinate
}

// SearchNearbyCommand finds OPEN requests around a point. The radius is
// clamped to [geo.MinRadiusKm, geo.MaxRadiusKm].
type SearchNearbyCommand struct {
	datastore storage.Datastore
	logger    logger.Logger
}

func NewSearchNearbyCommand(datastore storage.Datastore, logger logger.Logger) *SearchNearbyCommand {
	return &SearchNearbyCommand{
		datastore: datastore,
		logger:    logger,
	}
}

func (c *SearchNearbyCommand) Execute(ctx context.Context, in SearchNearbyInput) (*SearchNearbyResult, error) {
	ctx, span := tracer.Start(ctx, "SearchNearby")
	defer span.End()

	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}

	origin, err := c.origin(ctx, in)
	if err != nil {
		return nil, err
	}

	radiusKm := geo.ClampRadiusKm(in.RadiusKm)
	radiusMeters := geo.KmToMeters(radiusKm)
	span.SetAttributes(attribute.Float64("radius_km", radiusKm))

	var (
		items []storage.NearbyRequest
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = c.datastore.FindOpenNearby(gctx, origin, radiusMeters, in.Limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = c.datastore.CountOpenNearby(gctx, origin, radiusMeters)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	// the two reads are not one snapshot
	if total < len(items) {
		total = len(items)
	}

	return &SearchNearbyResult{
		Items:    items,
		Total:    total,
		RadiusKm: radiusKm,
		Origin:   origin,
	}, nil
}

func (c *SearchNearbyCommand) origin(ctx context.Context, in SearchNearbyInput) (geo.Coordinate, error) {
	if in.Origin != nil {
		if err := in.Origin.Validate(); err != nil {
			return geo.Coordinate{}, serverErrors.InvalidArgument("%s", err.Error())
		}
		return *in.Origin, nil
	}

	profile, err := c.datastore.GetProfile(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return geo.Coordinate{}, serverErrors.ErrNoSearchOrigin
		}
		return geo.Coordinate{}, serverErrors.HandleError("", err)
	}
	if profile.Location == nil {
		return geo.Coordinate{}, serverErrors.ErrNoSearchOrigin
	}
	return *profile.Location, nil
}
