// Package ports defines the contracts between the dispatch core and its
// infrastructure: persistence, the live location buffer, the route optimizer,
// reverse geocoding and the driver/global event channels.
package ports

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

// OrderRepository persists the order aggregate with its steps, stops, actions and proofs.
type OrderRepository interface {
	// Add persists a new, decomposed order.
	Add(ctx context.Context, aggregate *order.Order) error

	// Update replaces the persisted structure with the aggregate's and appends
	// its pending events to the unit of work.
	Update(ctx context.Context, aggregate *order.Order) error

	// Get loads an order without locking it.
	Get(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// GetForUpdate loads an order holding its row lock until the transaction ends.
	// Every transition of an order goes through it.
	GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// Delete removes the order and cascades to its structure and missions. The
	// aggregate's pending events are still published.
	Delete(ctx context.Context, aggregate *order.Order) error

	// MarkFrozen freezes an order whose persisted state cannot be restored.
	MarkFrozen(ctx context.Context, id kernel.UUID, reason string) error

	// ListDueForDispatch returns ids of unfrozen PENDING orders whose back-off has
	// elapsed, highest priority and oldest first.
	ListDueForDispatch(ctx context.Context, now time.Time, limit int) ([]kernel.UUID, error)

	// ListExpiredOffers returns ids of orders whose offer window closed at or before now.
	ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]kernel.UUID, error)

	// CountOpenOffersByDrivers counts unanswered offers per driver. Drivers
	// without one are absent from the map.
	CountOpenOffersByDrivers(ctx context.Context, driverIDs []kernel.UUID) (map[kernel.UUID]int, error)
}
