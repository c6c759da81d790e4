package queries

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/zone"
	"dispatch/internal/pkg/errs"
)

// zoneFinder is the part of the zone repository FindZone needs.
type zoneFinder interface {
	ListActiveCovering(ctx context.Context, p kernel.GeoPoint) ([]*zone.Zone, error)
}

// FindZoneQueryHandler narrows candidates with the stored bounding boxes, then
// checks exact containment against each shape. Overlaps resolve to the smallest
// zone.
type FindZoneQueryHandler struct {
	zones zoneFinder
}

func NewFindZoneQueryHandler(zones zoneFinder) FindZoneQueryHandler {
	return FindZoneQueryHandler{zones: zones}
}

func (h FindZoneQueryHandler) Handle(ctx context.Context, query FindZoneQuery) (FindZoneQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return FindZoneQueryResponse{}, err
	}

	candidates, err := h.zones.ListActiveCovering(ctx, query.Point())
	if err != nil {
		return FindZoneQueryResponse{}, err
	}

	z := zone.MostSpecific(candidates, query.Point())
	if z == nil {
		return FindZoneQueryResponse{}, errs.NewObjectNotFoundError("zone", query.Point().String())
	}
	return FindZoneQueryResponse{
		ZoneID:    z.ID(),
		Name:      z.Name(),
		OwnerType: z.OwnerType().String(),
		OwnerID:   z.OwnerID(),
		Shape:     z.Shape().Kind().String(),
	}, nil
}
