package commands

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

// CompleteRequestCommand closes an IN_PROGRESS request. Completing a request
// that is already CLOSED succeeds and reports that nothing changed.
type CompleteRequestCommand struct {
	datastore storage.RequestBackend
	logger    logger.Logger
	clock     Clock
}

func NewCompleteRequestCommand(datastore storage.RequestBackend, logger logger.Logger) *CompleteRequestCommand {
	return &CompleteRequestCommand{
		datastore: datastore,
		logger:    logger,
		clock:     time.Now,
	}
}

// Execute returns the closed request and whether this call closed it.
func (c *CompleteRequestCommand) Execute(ctx context.Context, requestID, actorID string) (*storage.Request, bool, error) {
	ctx, span := tracer.Start(ctx, "CompleteRequest", trace.WithAttributes(
		attribute.String("request_id", requestID),
	))
	defer span.End()

	if err := requireUser(actorID); err != nil {
		return nil, false, err
	}
	if err := requireRequestID(requestID); err != nil {
		return nil, false, err
	}

	r, transitioned, err := c.datastore.CompleteRequest(ctx, requestID, actorID, storage.Timestamp(c.clock()))
	if err != nil {
		return nil, false, serverErrors.HandleError("request not found", err)
	}

	span.SetAttributes(attribute.Bool("transitioned", transitioned))

	return r, transitioned, nil
}
