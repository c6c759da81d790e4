package ports

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/location"
)

// LocationBuffer keeps the latest position per driver in memory-speed storage
// and stages samples for the periodic flush.
type LocationBuffer interface {
	// Record overwrites the live and pending position of the driver and moves it
	// in the geo set, atomically.
	Record(ctx context.Context, p location.Position) error

	// Latest returns the live position, nil when the driver never reported.
	Latest(ctx context.Context, driverID kernel.UUID) (*location.Position, error)

	// Nearby searches live positions within radiusKm of center, closest first.
	Nearby(ctx context.Context, center kernel.GeoPoint, radiusKm float64, limit int) ([]location.Nearby, error)

	// BeginFlush moves the pending samples aside and returns them. Samples left
	// aside by a failed flush are returned first.
	BeginFlush(ctx context.Context) ([]location.Position, error)

	// CompleteFlush drops the samples returned by BeginFlush.
	CompleteFlush(ctx context.Context) error
}

// LocationHistoryRepository is the append-only position history.
type LocationHistoryRepository interface {
	InsertBatch(ctx context.Context, positions []location.Position) error
}
