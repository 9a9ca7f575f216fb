package commands

import (
	"context"
	"net/url"

	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

const (
	DefaultCallBaseURL = "https://meet.jit.si"
	callRoomPrefix     = "vecinotech-"
)

// CallRoom is a video call room scoped to one request.
type CallRoom struct {
	Name string
	URL  string
}

// CallRoomName is the deterministic room of a request, so both participants
// land in the same room.
func CallRoomName(requestID string) string {
	return callRoomPrefix + requestID
}

// InviteToCallCommand hands out the call room of an IN_PROGRESS request to
// one of its participants.
type InviteToCallCommand struct {
	datastore storage.RequestBackend
	logger    logger.Logger
	baseURL   string
}

func NewInviteToCallCommand(datastore storage.RequestBackend, logger logger.Logger, baseURL string) *InviteToCallCommand {
	if baseURL == "" {
		baseURL = DefaultCallBaseURL
	}
	return &InviteToCallCommand{
		datastore: datastore,
		logger:    logger,
		baseURL:   baseURL,
	}
}

func (c *InviteToCallCommand) Execute(ctx context.Context, requestID, userID string) (*CallRoom, error) {
	ctx, span := tracer.Start(ctx, "InviteToCall")
	defer span.End()

	r, err := requireParticipant(ctx, c.datastore, requestID, userID)
	if err != nil {
		return nil, err
	}
	if r.State != storage.StateInProgress {
		return nil, serverErrors.ErrRequestState
	}

	name := CallRoomName(r.ID)
	u, err := url.JoinPath(c.baseURL, name)
	if err != nil {
		return nil, serverErrors.NewInternalError("", err)
	}

	return &CallRoom{Name: name, URL: u}, nil
}
