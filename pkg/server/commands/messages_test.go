package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/id"
	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/memory"
)

func TestChat(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	log := logger.NewNoopLogger()
	send := NewSendMessageCommand(ds, log)
	list := NewListMessagesQuery(ds, log)
	markRead := NewMarkMessagesReadCommand(ds, log)
	unread := NewCountUnreadQuery(ds, log)

	t.Run("open_request_is_not_chattable", func(t *testing.T) {
		requester := user("requester")
		r := openRequest(t, ds, requester)

		_, err := send.Execute(ctx, r.ID, requester, "hello?")
		require.ErrorIs(t, err, serverErrors.ErrInvalidTransition)
	})

	t.Run("validation", func(t *testing.T) {
		r, requester, _ := inProgressRequest(t, ds)

		_, err := send.Execute(ctx, r.ID, requester, "   ")
		require.ErrorIs(t, err, serverErrors.ErrInvalidArgument)

		_, err = send.Execute(ctx, r.ID, requester, strings.Repeat("x", storage.MaxMessageLength+1))
		require.ErrorIs(t, err, serverErrors.ErrInvalidArgument)

		_, err = send.Execute(ctx, r.ID, "", "hi")
		require.ErrorIs(t, err, serverErrors.ErrUnauthenticated)

		_, err = send.Execute(ctx, id.New(), requester, "hi")
		require.ErrorIs(t, err, serverErrors.ErrNotFound)
	})

	t.Run("stranger", func(t *testing.T) {
		r, _, _ := inProgressRequest(t, ds)
		stranger := user("stranger")

		_, err := send.Execute(ctx, r.ID, stranger, "let me in")
		require.ErrorIs(t, err, serverErrors.ErrUnauthorized)

		_, err = list.Execute(ctx, r.ID, stranger)
		require.ErrorIs(t, err, serverErrors.ErrUnauthorized)

		_, err = markRead.Execute(ctx, r.ID, stranger)
		require.ErrorIs(t, err, serverErrors.ErrUnauthorized)

		_, err = unread.Execute(ctx, r.ID, stranger)
		require.ErrorIs(t, err, serverErrors.ErrUnauthorized)
	})

	t.Run("conversation", func(t *testing.T) {
		r, requester, volunteer := inProgressRequest(t, ds)

		first, err := send.Execute(ctx, r.ID, requester, " Thanks for coming! ")
		require.NoError(t, err)
		require.Equal(t, "Thanks for coming!", first.Body)
		require.False(t, first.Read)

		_, err = send.Execute(ctx, r.ID, requester, "Door code is 1234")
		require.NoError(t, err)
		reply, err := send.Execute(ctx, r.ID, volunteer, "On my way")
		require.NoError(t, err)

		n, err := unread.Execute(ctx, r.ID, volunteer)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		n, err = markRead.Execute(ctx, r.ID, volunteer)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		n, err = unread.Execute(ctx, r.ID, volunteer)
		require.NoError(t, err)
		require.Zero(t, n)

		n, err = unread.Execute(ctx, r.ID, requester)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, _, err = NewCompleteRequestCommand(ds, log).Execute(ctx, r.ID, requester)
		require.NoError(t, err)

		_, err = send.Execute(ctx, r.ID, volunteer, "bye")
		require.ErrorIs(t, err, serverErrors.ErrInvalidTransition)

		history, err := list.Execute(ctx, r.ID, requester)
		require.NoError(t, err)
		require.Len(t, history, 3)
		require.Equal(t, first.ID, history[0].ID)
		require.Equal(t, reply.ID, history[2].ID)
	})
}
