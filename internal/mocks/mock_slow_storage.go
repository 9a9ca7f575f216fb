package mocks

import (
	"context"
	"time"

	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/storage"
)

// slowDataStorage is a proxy to the actual ds except the request reads are
// slowed down by readDelay. It allows simulating requests that time out.
type slowDataStorage struct {
	readDelay time.Duration
	storage.Datastore
}

// NewMockSlowDataStorage returns a wrapper of a datastore that adds artificial
// delays into request reads. The delay ends early when the context is done.
func NewMockSlowDataStorage(ds storage.Datastore, readDelay time.Duration) storage.Datastore {
	return &slowDataStorage{
		readDelay: readDelay,
		Datastore: ds,
	}
}

func (m *slowDataStorage) Close() {}

func (m *slowDataStorage) wait(ctx context.Context) error {
	timer := time.NewTimer(m.readDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *slowDataStorage) GetRequest(ctx context.Context, id string) (*storage.Request, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.Datastore.GetRequest(ctx, id)
}

func (m *slowDataStorage) FindOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64, limit int) ([]storage.NearbyRequest, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.Datastore.FindOpenNearby(ctx, origin, radiusMeters, limit)
}

func (m *slowDataStorage) CountOpenNearby(ctx context.Context, origin geo.Coordinate, radiusMeters float64) (int, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	return m.Datastore.CountOpenNearby(ctx, origin, radiusMeters)
}
