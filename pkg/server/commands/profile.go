package commands

import (
	"context"
	"errors"
	"time"

	"github.com/natefinch/wrap"
	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/pkg/geocode"
	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

const (
	maxDisplayNameLength = 80
	maxAddressLength     = 200
	maxAddressPartLength = 100
)

func handleProfileError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return wrap.With(err, serverErrors.ErrProfileNotFound)
	}
	return serverErrors.HandleError("", err)
}

type GetProfileQuery struct {
	datastore storage.ProfileBackend
	logger    logger.Logger
}

func NewGetProfileQuery(datastore storage.ProfileBackend, logger logger.Logger) *GetProfileQuery {
	return &GetProfileQuery{
		datastore: datastore,
		logger:    logger,
	}
}

func (q *GetProfileQuery) Execute(ctx context.Context, userID string) (*storage.UserProfile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	p, err := q.datastore.GetProfile(ctx, userID)
	if err != nil {
		return nil, handleProfileError(err)
	}
	return p, nil
}

type UpdateProfileInput struct {
	UserID      string
	DisplayName string
	AddressLine string
	City        string
	PostalCode  string
	Country     string
}

// UpdateProfileCommand creates or replaces a user's profile. The cached
// location and the volunteer flag are kept; a new address is only geocoded
// through RefreshLocationCommand.
type UpdateProfileCommand struct {
	datastore storage.ProfileBackend
	logger    logger.Logger
	clock     Clock
}

func NewUpdateProfileCommand(datastore storage.ProfileBackend, logger logger.Logger) *UpdateProfileCommand {
	return &UpdateProfileCommand{
		datastore: datastore,
		logger:    logger,
		clock:     time.Now,
	}
}

func (c *UpdateProfileCommand) Execute(ctx context.Context, in UpdateProfileInput) (*storage.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "UpdateProfile")
	defer span.End()

	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}

	p := &storage.UserProfile{UserID: in.UserID}
	var err error
	if p.DisplayName, err = requiredText("display name", in.DisplayName, maxDisplayNameLength); err != nil {
		return nil, err
	}
	if p.AddressLine, err = optionalText("address", in.AddressLine, maxAddressLength); err != nil {
		return nil, err
	}
	if p.City, err = optionalText("city", in.City, maxAddressPartLength); err != nil {
		return nil, err
	}
	if p.PostalCode, err = optionalText("postal code", in.PostalCode, maxAddressPartLength); err != nil {
		return nil, err
	}
	if p.Country, err = optionalText("country", in.Country, maxAddressPartLength); err != nil {
		return nil, err
	}

	existing, err := c.datastore.GetProfile(ctx, in.UserID)
	switch {
	case err == nil:
		p.Volunteer = existing.Volunteer
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, serverErrors.HandleError("", err)
	}

	p.UpdatedAt = storage.Timestamp(c.clock())
	if err := c.datastore.UpsertProfile(ctx, p); err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	stored, err := c.datastore.GetProfile(ctx, in.UserID)
	if err != nil {
		return nil, handleProfileError(err)
	}
	return stored, nil
}

// RefreshLocationCommand geocodes the profile address again and overwrites
// the cached location. Unlike request creation, a failed lookup is reported
// to the caller and leaves the previous location in place.
type RefreshLocationCommand struct {
	datastore storage.ProfileBackend
	geocoder  geocode.Geocoder
	logger    logger.Logger
	clock     Clock
}

func NewRefreshLocationCommand(datastore storage.ProfileBackend, g geocode.Geocoder, logger logger.Logger) *RefreshLocationCommand {
	return &RefreshLocationCommand{
		datastore: datastore,
		geocoder:  g,
		logger:    logger,
		clock:     time.Now,
	}
}

func (c *RefreshLocationCommand) Execute(ctx context.Context, userID string) (*storage.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "RefreshLocation")
	defer span.End()

	if err := requireUser(userID); err != nil {
		return nil, err
	}

	p, err := c.datastore.GetProfile(ctx, userID)
	if err != nil {
		return nil, handleProfileError(err)
	}
	if c.geocoder == nil {
		return nil, serverErrors.ErrGeocoderUnavailable
	}

	coord, err := c.geocoder.Resolve(ctx, addressOf(p))
	if err != nil {
		c.logger.InfoWithContext(ctx, "profile address could not be located",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, serverErrors.HandleError("", err)
	}

	now := storage.Timestamp(c.clock())
	if err := c.datastore.SetProfileLocation(ctx, userID, &coord, now); err != nil {
		return nil, handleProfileError(err)
	}

	p.Location = &coord
	p.UpdatedAt = now
	return p, nil
}

type SetVolunteerCommand struct {
	datastore storage.ProfileBackend
	logger    logger.Logger
	clock     Clock
}

func NewSetVolunteerCommand(datastore storage.ProfileBackend, logger logger.Logger) *SetVolunteerCommand {
	return &SetVolunteerCommand{
		datastore: datastore,
		logger:    logger,
		clock:     time.Now,
	}
}

func (c *SetVolunteerCommand) Execute(ctx context.Context, userID string, volunteer bool) (*storage.UserProfile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	p, err := c.datastore.SetVolunteer(ctx, userID, volunteer, storage.Timestamp(c.clock()))
	if err != nil {
		return nil, handleProfileError(err)
	}
	return p, nil
}
