package storagewrappers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/vecinotech/vecinotech/internal/mocks"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var sol = geo.Coordinate{Latitude: 40.4169, Longitude: -3.7035}

func TestBoundedConcurrencyWrapper(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()
	mockDatastore := mocks.NewMockDatastore(mockController)

	var running, peak atomic.Int32
	slow := func() {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		running.Add(-1)
	}

	mockDatastore.EXPECT().FindOpenNearby(gomock.Any(), sol, 5000.0, 10).
		DoAndReturn(func(context.Context, geo.Coordinate, float64, int) ([]storage.NearbyRequest, error) {
			slow()
			return nil, nil
		}).Times(3)
	mockDatastore.EXPECT().CountOpenNearby(gomock.Any(), sol, 5000.0).
		DoAndReturn(func(context.Context, geo.Coordinate, float64) (int, error) {
			slow()
			return 0, nil
		}).Times(3)

	limited := NewBoundedConcurrencyDatastore(mockDatastore, 2)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := limited.FindOpenNearby(context.Background(), sol, 5000, 10)
			require.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := limited.CountOpenNearby(context.Background(), sol, 5000)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak.Load(), int32(2))
	require.Equal(t, int32(0), running.Load())
}

func TestBoundedConcurrencyWrapper_ContextDoneWhileWaiting(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()
	mockDatastore := mocks.NewMockDatastore(mockController)

	release := make(chan struct{})
	entered := make(chan struct{})
	mockDatastore.EXPECT().FindOpenNearby(gomock.Any(), sol, 1000.0, 5).
		DoAndReturn(func(context.Context, geo.Coordinate, float64, int) ([]storage.NearbyRequest, error) {
			close(entered)
			<-release
			return nil, nil
		})

	limited := NewBoundedConcurrencyDatastore(mockDatastore, 1)

	done := make(chan error)
	go func() {
		_, err := limited.FindOpenNearby(context.Background(), sol, 1000, 5)
		done <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := limited.CountOpenNearby(ctx, sol, 1000)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
}

func TestBoundedConcurrencyWrapper_PassesThroughOtherCalls(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()
	mockDatastore := mocks.NewMockDatastore(mockController)

	limited := NewBoundedConcurrencyDatastore(mockDatastore, 0)

	mockDatastore.EXPECT().GetRequest(gomock.Any(), "r1").Return(&storage.Request{ID: "r1"}, nil)
	r, err := limited.GetRequest(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, "r1", r.ID)
}
