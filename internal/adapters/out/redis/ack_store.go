package redis

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"

	"github.com/redis/go-redis/v9"
)

// AckStore records which driver acknowledged an order's offer. The key expires
// with the offer so a crashed node leaves nothing behind.
type AckStore struct {
	client *redis.Client
}

func NewAckStore(client *redis.Client) *AckStore {
	return &AckStore{client: client}
}

func ackKey(orderID kernel.UUID) string {
	return buildKey("ack", orderID.String())
}

func (s *AckStore) MarkAcked(ctx context.Context, orderID, driverID kernel.UUID, ttl time.Duration) error {
	return s.client.Set(ctx, ackKey(orderID), driverID.String(), ttl).Err()
}

// IsAcked is true only for the driver that acknowledged; a later offer to another
// driver is not acknowledged by the previous holder's ack.
func (s *AckStore) IsAcked(ctx context.Context, orderID, driverID kernel.UUID) (bool, error) {
	holder, err := s.client.Get(ctx, ackKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return holder == driverID.String(), nil
}

func (s *AckStore) Clear(ctx context.Context, orderID kernel.UUID) error {
	return s.client.Del(ctx, ackKey(orderID)).Err()
}
