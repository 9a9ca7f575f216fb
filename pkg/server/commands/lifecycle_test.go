package commands

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vecinotech/vecinotech/internal/mocks"
	"github.com/vecinotech/vecinotech/pkg/id"
	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/memory"
)

func TestClaimRequest(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	requester := user("requester")
	r := openRequest(t, ds, requester)
	cmd := NewClaimRequestCommand(ds, logger.NewNoopLogger())

	t.Run("missing_volunteer", func(t *testing.T) {
		_, err := cmd.Execute(ctx, r.ID, "")
		require.ErrorIs(t, err, serverErrors.ErrUnauthenticated)
	})

	t.Run("malformed_id", func(t *testing.T) {
		_, err := cmd.Execute(ctx, "not-an-id", user("volunteer"))
		require.ErrorIs(t, err, serverErrors.ErrNotFound)
	})

	t.Run("unknown_id", func(t *testing.T) {
		_, err := cmd.Execute(ctx, id.New(), user("volunteer"))
		require.ErrorIs(t, err, serverErrors.ErrNotFound)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.Equal(t, "request not found", serverErrors.PublicMessage(err))
	})

	t.Run("own_request", func(t *testing.T) {
		_, err := cmd.Execute(ctx, r.ID, requester)
		require.ErrorIs(t, err, serverErrors.ErrInvalidTransition)
		require.Equal(t, "cannot claim your own request", serverErrors.PublicMessage(err))
	})

	volunteer := user("volunteer")
	t.Run("claims", func(t *testing.T) {
		claimed, err := cmd.Execute(ctx, r.ID, volunteer)
		require.NoError(t, err)
		require.Equal(t, storage.StateInProgress, claimed.State)
		require.Equal(t, volunteer, claimed.VolunteerID)
		require.Equal(t, requester, claimed.RequesterID)
	})

	t.Run("second_volunteer", func(t *testing.T) {
		_, err := cmd.Execute(ctx, r.ID, user("volunteer"))
		require.ErrorIs(t, err, serverErrors.ErrInvalidTransition)
		require.Equal(t, serverErrors.ErrRequestNotAvailable.Message, serverErrors.PublicMessage(err))

		stored, err := ds.GetRequest(ctx, r.ID)
		require.NoError(t, err)
		require.Equal(t, volunteer, stored.VolunteerID)
	})
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	ds := memory.New()
	r := openRequest(t, ds, user("requester"))
	cmd := NewClaimRequestCommand(ds, logger.NewNoopLogger())

	const volunteers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
	)
	for i := 0; i < volunteers; i++ {
		volunteer := user("volunteer")
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := cmd.Execute(context.Background(), r.ID, volunteer)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, claimed.VolunteerID)
				return
			}
			if errors.Is(err, serverErrors.ErrInvalidTransition) {
				losers++
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Equal(t, volunteers-1, losers)

	stored, err := ds.GetRequest(context.Background(), r.ID)
	require.NoError(t, err)
	require.Equal(t, winners[0], stored.VolunteerID)
}

func TestCompleteRequest(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	cmd := NewCompleteRequestCommand(ds, logger.NewNoopLogger())

	t.Run("open_request", func(t *testing.T) {
		requester := user("requester")
		r := openRequest(t, ds, requester)

		_, transitioned, err := cmd.Execute(ctx, r.ID, requester)
		require.ErrorIs(t, err, serverErrors.ErrInvalidTransition)
		require.False(t, transitioned)
	})

	t.Run("stranger", func(t *testing.T) {
		r, _, _ := inProgressRequest(t, ds)

		_, _, err := cmd.Execute(ctx, r.ID, user("stranger"))
		require.ErrorIs(t, err, serverErrors.ErrUnauthorized)
	})

	t.Run("idempotent", func(t *testing.T) {
		r, requester, volunteer := inProgressRequest(t, ds)

		closed, transitioned, err := cmd.Execute(ctx, r.ID, volunteer)
		require.NoError(t, err)
		require.True(t, transitioned)
		require.Equal(t, storage.StateClosed, closed.State)
		require.Equal(t, volunteer, closed.VolunteerID)

		again, transitioned, err := cmd.Execute(ctx, r.ID, requester)
		require.NoError(t, err)
		require.False(t, transitioned)
		require.Equal(t, closed, again)
	})

	t.Run("concurrent_participants", func(t *testing.T) {
		r, requester, volunteer := inProgressRequest(t, ds)

		var (
			wg          sync.WaitGroup
			mu          sync.Mutex
			transitions int
		)
		for i := 0; i < 10; i++ {
			actor := requester
			if i%2 == 1 {
				actor = volunteer
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, transitioned, err := cmd.Execute(ctx, r.ID, actor)
				if err != nil {
					return
				}
				if transitioned {
					mu.Lock()
					transitions++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, transitions)
	})

	t.Run("datastore_error", func(t *testing.T) {
		mockController := gomock.NewController(t)
		defer mockController.Finish()
		mockDatastore := mocks.NewMockDatastore(mockController)
		requestID := id.New()
		mockDatastore.EXPECT().CompleteRequest(gomock.Any(), requestID, "ana", gomock.Any()).Return(nil, false, errors.New("connection reset"))

		_, _, err := NewCompleteRequestCommand(mockDatastore, logger.NewNoopLogger()).Execute(ctx, requestID, "ana")
		require.ErrorIs(t, err, serverErrors.ErrInternal)
	})
}

func TestParticipantsQuery(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	q := NewParticipantsQuery(ds)

	requester := user("requester")
	r := openRequest(t, ds, requester)

	participants, err := q.Execute(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, storage.Participants{RequesterID: requester}, participants)

	volunteer := user("volunteer")
	_, err = NewClaimRequestCommand(ds, logger.NewNoopLogger()).Execute(ctx, r.ID, volunteer)
	require.NoError(t, err)

	participants, err = q.Execute(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, storage.Participants{RequesterID: requester, VolunteerID: volunteer}, participants)
	require.True(t, participants.Contains(volunteer))
	require.False(t, participants.Contains(""))

	_, err = q.Execute(ctx, id.New())
	require.ErrorIs(t, err, serverErrors.ErrNotFound)
}
