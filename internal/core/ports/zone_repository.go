package ports

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/zone"
)

// ZoneRepository is the durable side of the geo-zone index.
type ZoneRepository interface {
	Add(ctx context.Context, aggregate *zone.Zone) error
	Update(ctx context.Context, aggregate *zone.Zone) error
	Get(ctx context.Context, id kernel.UUID) (*zone.Zone, error)

	// ListActiveCovering returns active zones whose bounding box covers p. Exact
	// containment is checked by the caller against the zone shape.
	ListActiveCovering(ctx context.Context, p kernel.GeoPoint) ([]*zone.Zone, error)
}
