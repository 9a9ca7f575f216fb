package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/id"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

func newMessage(requestID, senderID, body string, sentAt time.Time) *storage.Message {
	return &storage.Message{
		ID:        id.New(),
		RequestID: requestID,
		SenderID:  senderID,
		Body:      body,
		SentAt:    sentAt,
	}
}

func MessagesTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()
	requester := user("requester")
	volunteer := user("volunteer")

	r := createRequest(t, ds, requester, nil)

	t.Run("open_request_has_no_chat", func(t *testing.T) {
		err := ds.CreateMessage(ctx, newMessage(r.ID, requester, "hola", time.Now()))
		require.ErrorIs(t, err, storage.ErrInvalidState)
	})

	t.Run("unknown_request", func(t *testing.T) {
		err := ds.CreateMessage(ctx, newMessage("missing", requester, "hola", time.Now()))
		require.ErrorIs(t, err, storage.ErrNotFound)

		messages, err := ds.ListMessages(ctx, "missing")
		require.NoError(t, err)
		require.Empty(t, messages)
	})

	_, err := ds.ClaimRequest(ctx, r.ID, volunteer, time.Now())
	require.NoError(t, err)

	t.Run("stranger", func(t *testing.T) {
		err := ds.CreateMessage(ctx, newMessage(r.ID, user("stranger"), "hola", time.Now()))
		require.ErrorIs(t, err, storage.ErrNotParticipant)
	})

	t.Run("conversation", func(t *testing.T) {
		base := time.Now()
		first := newMessage(r.ID, requester, "¿Puedes venir a las cinco?", base)
		second := newMessage(r.ID, volunteer, "Sí, allí estaré", base.Add(time.Second))
		third := newMessage(r.ID, requester, "Gracias", base.Add(2*time.Second))
		for _, m := range []*storage.Message{third, first, second} {
			require.NoError(t, ds.CreateMessage(ctx, m))
		}

		messages, err := ds.ListMessages(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, messages, 3)
		for i, want := range []*storage.Message{first, second, third} {
			got := messages[i]
			require.Equal(t, want.ID, got.ID)
			require.Equal(t, want.SenderID, got.SenderID)
			require.Equal(t, want.Body, got.Body)
			require.False(t, got.Read)
			requireSameTime(t, want.SentAt, got.SentAt)
		}

		unread, err := ds.CountUnread(ctx, r.ID, volunteer)
		require.NoError(t, err)
		require.Equal(t, 2, unread)

		unread, err = ds.CountUnread(ctx, r.ID, requester)
		require.NoError(t, err)
		require.Equal(t, 1, unread)

		marked, err := ds.MarkMessagesRead(ctx, r.ID, volunteer)
		require.NoError(t, err)
		require.Equal(t, 2, marked)

		marked, err = ds.MarkMessagesRead(ctx, r.ID, volunteer)
		require.NoError(t, err)
		require.Zero(t, marked)

		unread, err = ds.CountUnread(ctx, r.ID, volunteer)
		require.NoError(t, err)
		require.Zero(t, unread)

		unread, err = ds.CountUnread(ctx, r.ID, requester)
		require.NoError(t, err)
		require.Equal(t, 1, unread)

		messages, err = ds.ListMessages(ctx, r.ID)
		require.NoError(t, err)
		require.True(t, messages[0].Read)
		require.False(t, messages[1].Read)
		require.True(t, messages[2].Read)
	})

	t.Run("duplicate_id", func(t *testing.T) {
		m := newMessage(r.ID, requester, "otra vez", time.Now())
		require.NoError(t, ds.CreateMessage(ctx, m))
		require.ErrorIs(t, ds.CreateMessage(ctx, m), storage.ErrCollision)
	})

	t.Run("closed_request", func(t *testing.T) {
		_, _, err := ds.CompleteRequest(ctx, r.ID, requester, time.Now())
		require.NoError(t, err)

		err = ds.CreateMessage(ctx, newMessage(r.ID, volunteer, "adiós", time.Now()))
		require.ErrorIs(t, err, storage.ErrInvalidState)

		messages, err := ds.ListMessages(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, messages, 4)
	})
}
