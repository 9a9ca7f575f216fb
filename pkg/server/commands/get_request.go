package commands

import (
	"context"

	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

type GetRequestQuery struct {
	datastore storage.RequestBackend
	logger    logger.Logger
}

func NewGetRequestQuery(datastore storage.RequestBackend, logger logger.Logger) *GetRequestQuery {
	return &GetRequestQuery{
		datastore: datastore,
		logger:    logger,
	}
}

func (q *GetRequestQuery) Execute(ctx context.Context, requestID string) (*storage.Request, error) {
	if err := requireRequestID(requestID); err != nil {
		return nil, err
	}

	r, err := q.datastore.GetRequest(ctx, requestID)
	if err != nil {
		return nil, serverErrors.HandleError("request not found", err)
	}
	return r, nil
}

// ParticipantsQuery reads the current requester and volunteer of a request
// straight from the datastore.
type ParticipantsQuery struct {
	datastore storage.RequestBackend
}

func NewParticipantsQuery(datastore storage.RequestBackend) *ParticipantsQuery {
	return &ParticipantsQuery{datastore: datastore}
}

func (q *ParticipantsQuery) Execute(ctx context.Context, requestID string) (storage.Participants, error) {
	ctx, span := tracer.Start(ctx, "ParticipantsOf")
	defer span.End()

	if err := requireRequestID(requestID); err != nil {
		return storage.Participants{}, err
	}

	r, err := q.datastore.GetRequest(ctx, requestID)
	if err != nil {
		return storage.Participants{}, serverErrors.HandleError("request not found", err)
	}
	return r.Participants(), nil
}
