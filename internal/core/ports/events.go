package ports

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
)

// EventPublisher delivers domain events on the realtime channels. Consumers
// deduplicate with the event sequence.
type EventPublisher interface {
	// EmitToDriver publishes on the channel of a single driver.
	EmitToDriver(ctx context.Context, driverID kernel.UUID, event kernel.DomainEvent) error

	// EmitToGlobal publishes on the operators' channel.
	EmitToGlobal(ctx context.Context, event kernel.DomainEvent) error
}
