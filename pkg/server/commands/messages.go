package commands

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vecinotech/vecinotech/pkg/id"
	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

// requireParticipant loads the request and checks userID takes part in it.
func requireParticipant(ctx context.Context, datastore storage.RequestBackend, requestID, userID string) (*storage.Request, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := requireRequestID(requestID); err != nil {
		return nil, err
	}

	r, err := datastore.GetRequest(ctx, requestID)
	if err != nil {
		return nil, serverErrors.HandleError("request not found", err)
	}
	if !r.IsParticipant(userID) {
		return nil, serverErrors.ErrNotParticipant
	}
	return r, nil
}

// SendMessageCommand stores a chat line. The datastore rejects it unless the
// request is IN_PROGRESS and the sender is one of its participants.
type SendMessageCommand struct {
	datastore storage.Datastore
	logger    logger.Logger
	clock     Clock
}

func NewSendMessageCommand(datastore storage.Datastore, logger logger.Logger) *SendMessageCommand {
	return &SendMessageCommand{
		datastore: datastore,
		logger:    logger,
		clock:     time.Now,
	}
}

func (c *SendMessageCommand) Execute(ctx context.Context, requestID, senderID, body string) (*storage.Message, error) {
	ctx, span := tracer.Start(ctx, "SendMessage", trace.WithAttributes(
		attribute.String("request_id", requestID),
	))
	defer span.End()

	if err := requireUser(senderID); err != nil {
		return nil, err
	}
	if err := requireRequestID(requestID); err != nil {
		return nil, err
	}
	body, err := requiredText("message", body, storage.MaxMessageLength)
	if err != nil {
		return nil, err
	}

	now := storage.Timestamp(c.clock())
	messageID, err := id.NewFromTime(now)
	if err != nil {
		return nil, serverErrors.NewInternalError("", err)
	}

	m := &storage.Message{
		ID:        messageID,
		RequestID: requestID,
		SenderID:  senderID,
		Body:      body,
		SentAt:    now,
	}
	if err := c.datastore.CreateMessage(ctx, m); err != nil {
		return nil, serverErrors.HandleError("request not found", err)
	}

	return m, nil
}

// ListMessagesQuery returns a request's chat history, oldest first, to its
// participants. History stays readable after the request is closed.
type ListMessagesQuery struct {
	datastore storage.Datastore
	logger    logger.Logger
}

func NewListMessagesQuery(datastore storage.Datastore, logger logger.Logger) *ListMessagesQuery {
	return &ListMessagesQuery{
		datastore: datastore,
		logger:    logger,
	}
}

func (q *ListMessagesQuery) Execute(ctx context.Context, requestID, userID string) ([]*storage.Message, error) {
	ctx, span := tracer.Start(ctx, "ListMessages")
	defer span.End()

	if _, err := requireParticipant(ctx, q.datastore, requestID, userID); err != nil {
		return nil, err
	}

	messages, err := q.datastore.ListMessages(ctx, requestID)
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}
	return messages, nil
}

type MarkMessagesReadCommand struct {
	datastore storage.Datastore
	logger    logger.Logger
}

func NewMarkMessagesReadCommand(datastore storage.Datastore, logger logger.Logger) *MarkMessagesReadCommand {
	return &MarkMessagesReadCommand{
		datastore: datastore,
		logger:    logger,
	}
}

// Execute marks as read every message of the request that readerID did not
// send and returns how many changed.
func (c *MarkMessagesReadCommand) Execute(ctx context.Context, requestID, readerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "MarkMessagesRead")
	defer span.End()

	if _, err := requireParticipant(ctx, c.datastore, requestID, readerID); err != nil {
		return 0, err
	}

	n, err := c.datastore.MarkMessagesRead(ctx, requestID, readerID)
	if err != nil {
		return 0, serverErrors.HandleError("", err)
	}
	return n, nil
}

type CountUnreadQuery struct {
	datastore storage.Datastore
	logger    logger.Logger
}

func NewCountUnreadQuery(datastore storage.Datastore, logger logger.Logger) *CountUnreadQuery {
	return &CountUnreadQuery{
		datastore: datastore,
		logger:    logger,
	}
}

func (q *CountUnreadQuery) Execute(ctx context.Context, requestID, readerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "CountUnread")
	defer span.End()

	if _, err := requireParticipant(ctx, q.datastore, requestID, readerID); err != nil {
		return 0, err
	}

	n, err := q.datastore.CountUnread(ctx, requestID, readerID)
	if err != nil {
		return 0, serverErrors.HandleError("", err)
	}
	return n, nil
}
