package ports

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/mission"
)

type MissionRepository interface {
	Add(ctx context.Context, aggregate *mission.Mission) error
	Update(ctx context.Context, aggregate *mission.Mission) error
	Get(ctx context.Context, id kernel.UUID) (*mission.Mission, error)

	// ListByOrderForUpdate locks every mission of the order.
	ListByOrderForUpdate(ctx context.Context, orderID kernel.UUID) ([]*mission.Mission, error)

	// ListActiveByDriver returns the driver's ASSIGNED and IN_PROGRESS missions,
	// oldest first.
	ListActiveByDriver(ctx context.Context, driverID kernel.UUID) ([]*mission.Mission, error)

	// CountActiveByDrivers counts active missions per driver in one query.
	CountActiveByDrivers(ctx context.Context, driverIDs []kernel.UUID) (map[kernel.UUID]int, error)
}
