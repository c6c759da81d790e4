package ports

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/kernel"
)

// AckStore shares offer acknowledgements between instances so the ack monitor
// stops even when the ack landed on another node.
type AckStore interface {
	MarkAcked(ctx context.Context, orderID, driverID kernel.UUID, ttl time.Duration) error
	IsAcked(ctx context.Context, orderID, driverID kernel.UUID) (bool, error)
	Clear(ctx context.Context, orderID kernel.UUID) error
}
