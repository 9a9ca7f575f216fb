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

// ClaimRequestCommand assigns a volunteer to an OPEN request. The datastore
// performs the claim as one conditional write, so at most one of many
// concurrent claims succeeds.
type ClaimRequestCommand struct {
	datastore storage.RequestBackend
	logger    logger.Logger
	clock     Clock
}

func NewClaimRequestCommand(datastore storage.RequestBackend, logger logger.Logger) *ClaimRequestCommand {
	return &ClaimRequestCommand{
		datastore: datastore,
		logger:    logger,
		clock:     time.Now,
	}
}

func (c *ClaimRequestCommand) Execute(ctx context.Context, requestID, volunteerID string) (*storage.Request, error) {
	ctx, span := tracer.Start(ctx, "ClaimRequest", trace.WithAttributes(
		attribute.String("request_id", requestID),
	))
	defer span.End()

	if err := requireUser(volunteerID); err != nil {
		return nil, err
	}
	if err := requireRequestID(requestID); err != nil {
		return nil, err
	}

	r, err := c.datastore.ClaimRequest(ctx, requestID, volunteerID, storage.Timestamp(c.clock()))
	if err != nil {
		return nil, serverErrors.HandleError("request not found", err)
	}

	return r, nil
}
