package ports

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/route"
)

var ErrAddressNotFound = errors.New("address not found")

// RouteOptimizer solves the stop sequence of a virtual state. It is a black box
// and may be slow; callers bound it with a context deadline.
type RouteOptimizer interface {
	Calculate(ctx context.Context, state route.VirtualState, vehicle route.Vehicle) (route.Plan, error)
}

// ReverseGeocoder returns ErrAddressNotFound when no address matches p.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, p kernel.GeoPoint) (string, error)
}
