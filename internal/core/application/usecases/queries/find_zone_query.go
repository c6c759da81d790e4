package queries

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var (
	ErrFindZoneQueryIsNotConstructed = errors.New(
		"FindZoneQuery must be created via NewFindZoneQuery constructor",
	)
)

// FindZoneQuery resolves the most specific active zone containing a point.
type FindZoneQuery struct {
	point kernel.GeoPoint
	guard guard.ConstructorGuard
}

func NewFindZoneQuery(lat, lng float64) (FindZoneQuery, error) {
	p, err := kernel.NewGeoPoint(lat, lng)
	if err != nil {
		return FindZoneQuery{}, err
	}
	return FindZoneQuery{point: p, guard: guard.NewConstructorGuard()}, nil
}

func (q FindZoneQuery) Point() kernel.GeoPoint {
	return q.point
}

func (q FindZoneQuery) Validate() error {
	return q.guard.Validate(ErrFindZoneQueryIsNotConstructed)
}

type FindZoneQueryResponse struct {
	ZoneID    kernel.UUID
	Name      string
	OwnerType string
	OwnerID   *kernel.UUID
	Shape     string
}
