package redis_test

import (
	"testing"
	"time"

	redis_adapter "dispatch/internal/adapters/out/redis"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/location"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func position(t *testing.T, driverID kernel.UUID, lat, lng float64, at time.Time) location.Position {
	t.Helper()
	p, err := location.NewPosition(driverID, lat, lng, 45, at)
	require.NoError(t, err)
	return p
}

func TestLocationBuffer_FiftyUpdatesFlushAsOneRow(t *testing.T) {
	ctx := t.Context()
	_, client := newClient(t)
	buffer := redis_adapter.NewLocationBuffer(client)
	driverID := kernel.NewUUID()

	var last location.Position
	for i := range 50 {
		last = position(t, driverID, 48.85+float64(i)*0.0001, 2.35, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, buffer.Record(ctx, last))
	}

	batch, err := buffer.BeginFlush(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, driverID, batch[0].DriverID)
	assert.InDelta(t, last.Point.Lat(), batch[0].Point.Lat(), 1e-9)
	assert.True(t, last.RecordedAt.Equal(batch[0].RecordedAt))
	require.NoError(t, buffer.CompleteFlush(ctx))

	again, err := buffer.BeginFlush(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestLocationBuffer_StaleSampleIsDropped(t *testing.T) {
	ctx := t.Context()
	_, client := newClient(t)
	buffer := redis_adapter.NewLocationBuffer(client)
	driverID := kernel.NewUUID()

	require.NoError(t, buffer.Record(ctx, position(t, driverID, 48.8600, 2.3500, t0.Add(time.Minute))))
	require.NoError(t, buffer.Record(ctx, position(t, driverID, 48.9500, 2.5000, t0)))

	latest, err := buffer.Latest(ctx, driverID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.InDelta(t, 48.8600, latest.Point.Lat(), 1e-9)
	assert.True(t, t0.Add(time.Minute).Equal(latest.RecordedAt))

	center, err := kernel.NewGeoPoint(48.8600, 2.3500)
	require.NoError(t, err)
	nearby, err := buffer.Nearby(ctx, center, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, nearby, 1, "geo set keeps the newer point")

	batch, err := buffer.BeginFlush(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.InDelta(t, 48.8600, batch[0].Point.Lat(), 1e-9)
}

func TestLocationBuffer_SameTimestampKeepsIncoming(t *testing.T) {
	ctx := t.Context()
	_, client := newClient(t)
	buffer := redis_adapter.NewLocationBuffer(client)
	driverID := kernel.NewUUID()

	require.NoError(t, buffer.Record(ctx, position(t, driverID, 48.8600, 2.3500, t0)))
	require.NoError(t, buffer.Record(ctx, position(t, driverID, 48.8700, 2.3500, t0)))

	latest, err := buffer.Latest(ctx, driverID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.InDelta(t, 48.8700, latest.Point.Lat(), 1e-9)
}

func TestLocationBuffer_LatestAndNearby(t *testing.T) {
	ctx := t.Context()
	_, client := newClient(t)
	buffer := redis_adapter.NewLocationBuffer(client)
	near, far := kernel.NewUUID(), kernel.NewUUID()

	require.NoError(t, buffer.Record(ctx, position(t, near, 48.8570, 2.3520, t0)))
	require.NoError(t, buffer.Record(ctx, position(t, far, 48.9000, 2.4500, t0)))

	latest, err := buffer.Latest(ctx, near)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.InDelta(t, 48.8570, latest.Point.Lat(), 1e-9)
	assert.InDelta(t, 45.0, latest.Heading, 1e-9)

	unknown, err := buffer.Latest(ctx, kernel.NewUUID())
	require.NoError(t, err)
	assert.Nil(t, unknown)

	center, err := kernel.NewGeoPoint(48.8566, 2.3522)
	require.NoError(t, err)

	within, err := buffer.Nearby(ctx, center, 1, 10)
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.Equal(t, near, within[0].DriverID)
	assert.Less(t, within[0].DistanceKm, 1.0)

	all, err := buffer.Nearby(ctx, center, 20, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, near, all[0].DriverID, "closest first")
	assert.Equal(t, far, all[1].DriverID)
}

func TestLocationBuffer_FailedFlushIsRetriedFirst(t *testing.T) {
	ctx := t.Context()
	_, client := newClient(t)
	buffer := redis_adapter.NewLocationBuffer(client)
	first, second := kernel.NewUUID(), kernel.NewUUID()

	require.NoError(t, buffer.Record(ctx, position(t, first, 48.85, 2.35, t0)))
	batch, err := buffer.BeginFlush(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	// The insert failed: CompleteFlush is not called. New samples keep arriving.
	require.NoError(t, buffer.Record(ctx, position(t, second, 48.86, 2.36, t0.Add(time.Minute))))

	retry, err := buffer.BeginFlush(ctx)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, first, retry[0].DriverID)
	require.NoError(t, buffer.CompleteFlush(ctx))

	next, err := buffer.BeginFlush(ctx)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, second, next[0].DriverID)

	latest, err := buffer.Latest(ctx, first)
	require.NoError(t, err)
	assert.NotNil(t, latest, "flushing never touches the live positions")
}
