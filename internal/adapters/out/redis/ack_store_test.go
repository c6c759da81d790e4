package redis_test

import (
	"testing"
	"time"

	redis_adapter "dispatch/internal/adapters/out/redis"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAckStore(t *testing.T) {
	ctx := t.Context()
	srv, client := newClient(t)
	store := redis_adapter.NewAckStore(client)
	orderID, holder, other := kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID()

	acked, err := store.IsAcked(ctx, orderID, holder)
	require.NoError(t, err)
	assert.False(t, acked)

	require.NoError(t, store.MarkAcked(ctx, orderID, holder, 15*time.Second))

	acked, err = store.IsAcked(ctx, orderID, holder)
	require.NoError(t, err)
	assert.True(t, acked)
	acked, err = store.IsAcked(ctx, orderID, other)
	require.NoError(t, err)
	assert.False(t, acked)

	srv.FastForward(16 * time.Second)
	acked, err = store.IsAcked(ctx, orderID, holder)
	require.NoError(t, err)
	assert.False(t, acked, "expires with the offer")

	require.NoError(t, store.MarkAcked(ctx, orderID, holder, time.Minute))
	require.NoError(t, store.Clear(ctx, orderID))
	acked, err = store.IsAcked(ctx, orderID, holder)
	require.NoError(t, err)
	assert.False(t, acked)
}
