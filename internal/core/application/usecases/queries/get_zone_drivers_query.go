package queries

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var (
	ErrGetZoneDriversQueryIsNotConstructed = errors.New(
		"GetZoneDriversQuery must be created via NewGetZoneDriversQuery constructor",
	)
)

// GetZoneDriversQuery lists the drivers statically assigned to a zone.
type GetZoneDriversQuery struct {
	zoneID kernel.UUID
	guard  guard.ConstructorGuard
}

func NewGetZoneDriversQuery(zoneID kernel.UUID) (GetZoneDriversQuery, error) {
	if err := wrapRequired("zoneID", zoneID.Validate()); err != nil {
		return GetZoneDriversQuery{}, err
	}
	return GetZoneDriversQuery{zoneID: zoneID, guard: guard.NewConstructorGuard()}, nil
}

func (q GetZoneDriversQuery) ZoneID() kernel.UUID {
	return q.zoneID
}

func (q GetZoneDriversQuery) Validate() error {
	return q.guard.Validate(ErrGetZoneDriversQueryIsNotConstructed)
}

type GetZoneDriversQueryResponse struct {
	DriverID kernel.UUID
	Name     string
	WorkMode string
	Online   bool
}
