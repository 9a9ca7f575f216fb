package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/geocode"
	"github.com/vecinotech/vecinotech/pkg/id"
	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

type CreateRequestInput struct {
	RequesterID string
	Title       string
	Description string
	Category    string
}

// CreateRequestCommand stores a new OPEN request located at the requester's
// cached address. Instances may be safely shared by multiple goroutines.
type CreateRequestCommand struct {
	datastore storage.Datastore
	geocoder  geocode.Geocoder
	logger    logger.Logger
	clock     Clock
}

type CreateRequestCommandOption func(*CreateRequestCommand)

func WithCreateRequestClock(c Clock) CreateRequestCommandOption {
	return func(cmd *CreateRequestCommand) {
		cmd.clock = c
	}
}

// NewCreateRequestCommand returns a command that geocodes with g. A nil g
// stores requests without a location unless the profile already has one.
func NewCreateRequestCommand(datastore storage.Datastore, g geocode.Geocoder, logger logger.Logger, opts ...CreateRequestCommandOption) *CreateRequestCommand {
	cmd := &CreateRequestCommand{
		datastore: datastore,
		geocoder:  g,
		logger:    logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(cmd)
	}
	return cmd
}

func (c *CreateRequestCommand) Execute(ctx context.Context, in CreateRequestInput) (*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "CreateRequest")
	defer span.End()

	if err := requireUser(in.RequesterID); err != nil {
		return nil, err
	}
	title, err := requiredText("title", in.Title, storage.MaxTitleLength)
	if err != nil {
		return nil, err
	}
	description, err := requiredText("description", in.Description, storage.MaxDescriptionLength)
	if err != nil {
		return nil, err
	}
	category, err := optionalText("category", in.Category, storage.MaxCategoryLength)
	if err != nil {
		return nil, err
	}
	if category == "" {
		category = storage.DefaultCategory
	}
	category = strings.ToUpper(category)

	loc, err := c.locate(ctx, in.RequesterID)
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	now := storage.Timestamp(c.clock())
	requestID, err := id.NewFromTime(now)
	if err != nil {
		return nil, serverErrors.NewInternalError("", err)
	}

	r := &storage.Request{
		ID:          requestID,
		RequesterID: in.RequesterID,
		Title:       title,
		Description: description,
		Category:    category,
		State:       storage.StateOpen,
		Location:    loc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.datastore.CreateRequest(ctx, r); err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	span.SetAttributes(attribute.String("request_id", r.ID), attribute.Bool("located", loc != nil))

	return r, nil
}

// locate returns the requester's cached location, geocoding and caching the
// profile address the first time. Only storage failures and cancellation are
// errors; anything else leaves the request unlocated.
func (c *CreateRequestCommand) locate(ctx context.Context, requesterID string) (*geo.Coordinate, error) {
	profile, err := c.datastore.GetProfile(ctx, requesterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.logger.WarnWithContext(ctx, "requester has no profile, storing request without location",
				zap.String("user_id", requesterID))
			return nil, nil
		}
		return nil, err
	}
	if profile.Location != nil {
		return profile.Location, nil
	}
	if c.geocoder == nil {
		return nil, nil
	}

	coord, err := c.geocoder.Resolve(ctx, addressOf(profile))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnWithContext(ctx, "could not geocode requester address, storing request without location",
			zap.String("user_id", requesterID),
			zap.Error(err))
		return nil, nil
	}

	if err := c.datastore.SetProfileLocation(ctx, requesterID, &coord, c.clock()); err != nil {
		c.logger.WarnWithContext(ctx, "failed to cache requester location",
			zap.String("user_id", requesterID),
			zap.Error(err))
	}

	return &coord, nil
}

func addressOf(p *storage.UserProfile) geocode.Address {
	return geocode.Address{
		Line:       p.AddressLine,
		City:       p.City,
		PostalCode: p.PostalCode,
		Country:    p.Country,
	}
}
