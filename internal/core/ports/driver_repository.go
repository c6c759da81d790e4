package ports

import (
	"context"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
)

type DriverRepository interface {
	Add(ctx context.Context, aggregate *driver.Driver) error
	Update(ctx context.Context, aggregate *driver.Driver) error
	Get(ctx context.Context, id kernel.UUID) (*driver.Driver, error)
	GetForUpdate(ctx context.Context, id kernel.UUID) (*driver.Driver, error)

	// GetMany skips unknown ids.
	GetMany(ctx context.Context, ids []kernel.UUID) ([]*driver.Driver, error)
}
