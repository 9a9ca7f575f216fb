package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/natefinch/wrap"

	"github.com/vecinotech/vecinotech/pkg/id"
	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

type RateRequestInput struct {
	RequestID   string
	RequesterID string
	Score       int
	Comment     string
}

// RateRequestCommand lets the requester of a CLOSED request rate its
// volunteer, once.
type RateRequestCommand struct {
	datastore storage.RatingBackend
	logger    logger.Logger
	clock     Clock
}

func NewRateRequestCommand(datastore storage.RatingBackend, logger logger.Logger) *RateRequestCommand {
	return &RateRequestCommand{
		datastore: datastore,
		logger:    logger,
		clock:     time.Now,
	}
}

func (c *RateRequestCommand) Execute(ctx context.Context, in RateRequestInput) (*storage.Rating, error) {
	ctx, span := tracer.Start(ctx, "RateRequest")
	defer span.End()

	if err := requireUser(in.RequesterID); err != nil {
		return nil, err
	}
	if err := requireRequestID(in.RequestID); err != nil {
		return nil, err
	}
	if in.Score < storage.MinScore || in.Score > storage.MaxScore {
		return nil, serverErrors.InvalidArgument("score must be between %d and %d", storage.MinScore, storage.MaxScore)
	}
	comment, err := optionalText("comment", in.Comment, storage.MaxCommentLength)
	if err != nil {
		return nil, err
	}

	now := storage.Timestamp(c.clock())
	ratingID, err := id.NewFromTime(now)
	if err != nil {
		return nil, serverErrors.NewInternalError("", err)
	}

	rating := &storage.Rating{
		ID:          ratingID,
		RequestID:   in.RequestID,
		RequesterID: in.RequesterID,
		Score:       in.Score,
		Comment:     comment,
		CreatedAt:   now,
	}
	if err := c.datastore.CreateRating(ctx, rating); err != nil {
		if errors.Is(err, storage.ErrCollision) {
			return nil, wrap.With(err, serverErrors.ErrAlreadyRated)
		}
		return nil, serverErrors.HandleError("request not found", err)
	}

	return rating, nil
}

type GetRequestRatingQuery struct {
	datastore storage.RatingBackend
	logger    logger.Logger
}

func NewGetRequestRatingQuery(datastore storage.RatingBackend, logger logger.Logger) *GetRequestRatingQuery {
	return &GetRequestRatingQuery{
		datastore: datastore,
		logger:    logger,
	}
}

func (q *GetRequestRatingQuery) Execute(ctx context.Context, requestID string) (*storage.Rating, error) {
	if err := requireRequestID(requestID); err != nil {
		return nil, err
	}

	rating, err := q.datastore.GetRatingByRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, wrap.With(err, serverErrors.ErrRatingNotFound)
		}
		return nil, serverErrors.HandleError("", err)
	}
	return rating, nil
}

// VolunteerRatings is a volunteer's rating history with its average score.
type VolunteerRatings struct {
	Ratings []*storage.Rating
	Average float64
}

type ListVolunteerRatingsQuery struct {
	datastore storage.RatingBackend
	logger    logger.Logger
}

func NewListVolunteerRatingsQuery(datastore storage.RatingBackend, logger logger.Logger) *ListVolunteerRatingsQuery {
	return &ListVolunteerRatingsQuery{
		datastore: datastore,
		logger:    logger,
	}
}

func (q *ListVolunteerRatingsQuery) Execute(ctx context.Context, volunteerID string) (*VolunteerRatings, error) {
	ctx, span := tracer.Start(ctx, "ListVolunteerRatings")
	defer span.End()

	if strings.TrimSpace(volunteerID) == "" {
		return nil, serverErrors.InvalidArgument("volunteer id is required")
	}

	ratings, err := q.datastore.ListRatingsByVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	res := &VolunteerRatings{Ratings: ratings}
	if len(ratings) > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r.Score
		}
		res.Average = float64(sum) / float64(len(ratings))
	}
	return res, nil
}
