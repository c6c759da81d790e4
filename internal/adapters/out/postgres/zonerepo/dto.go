// Package zonerepo persists geo-zones. Shapes are stored as GeoJSON geometry next
// to an indexed bounding box used as a coarse filter.
package zonerepo

import (
	"fmt"

	"dispatch/internal/adapters/out/postgres/pgconv"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/zone"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type ZoneDTO struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name      string     `gorm:"type:varchar(255);not null"`
	OwnerType string     `gorm:"type:varchar(20);not null"`
	OwnerID   *uuid.UUID `gorm:"type:uuid;index"`
	ShapeKind string     `gorm:"type:varchar(20);not null"`
	RadiusKm  float64
	Geometry  []byte  `gorm:"type:jsonb;not null"`
	MinLat    float64 `gorm:"not null;index:idx_zones_bbox,priority:1"`
	MaxLat    float64 `gorm:"not null;index:idx_zones_bbox,priority:2"`
	MinLng    float64 `gorm:"not null;index:idx_zones_bbox,priority:3"`
	MaxLng    float64 `gorm:"not null;index:idx_zones_bbox,priority:4"`
	Active    bool    `gorm:"not null;default:true"`

	Drivers []ZoneDriverDTO `gorm:"foreignKey:ZoneID;constraint:OnDelete:CASCADE"`
}

func (ZoneDTO) TableName() string {
	return "zones"
}

// ZoneDriverDTO is a static driver assignment.
type ZoneDriverDTO struct {
	ZoneID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	DriverID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (ZoneDriverDTO) TableName() string {
	return "zone_drivers"
}

func fromDomain(z *zone.Zone) (ZoneDTO, error) {
	shape := z.Shape()
	geometry, err := geojson.NewGeometry(shape.Geometry()).MarshalJSON()
	if err != nil {
		return ZoneDTO{}, fmt.Errorf("encode zone geometry: %w", err)
	}

	zoneID := z.ID().Bytes()
	drivers := make([]ZoneDriverDTO, 0, len(z.DriverIDs()))
	for _, id := range z.DriverIDs() {
		drivers = append(drivers, ZoneDriverDTO{ZoneID: zoneID, DriverID: id.Bytes()})
	}

	bound := shape.Bound()
	return ZoneDTO{
		ID:        zoneID,
		Name:      z.Name(),
		OwnerType: z.OwnerType().String(),
		OwnerID:   pgconv.NullableUUID(z.OwnerID()),
		ShapeKind: shape.Kind().String(),
		RadiusKm:  shape.RadiusKm(),
		Geometry:  geometry,
		MinLat:    bound.Min.Lat(),
		MaxLat:    bound.Max.Lat(),
		MinLng:    bound.Min.Lon(),
		MaxLng:    bound.Max.Lon(),
		Active:    z.IsActive(),
		Drivers:   drivers,
	}, nil
}

func toDomain(dto ZoneDTO) (*zone.Zone, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := pgconv.FromNullableUUID(dto.OwnerID)
	if err != nil {
		return nil, err
	}
	ownerType, err := zone.ParseOwnerType(dto.OwnerType)
	if err != nil {
		return nil, err
	}
	shape, err := shapeToDomain(dto)
	if err != nil {
		return nil, err
	}

	driverIDs := make([]kernel.UUID, 0, len(dto.Drivers))
	for _, d := range dto.Drivers {
		driverID, idErr := pgconv.FromUUID(d.DriverID)
		if idErr != nil {
			return nil, idErr
		}
		driverIDs = append(driverIDs, driverID)
	}

	return zone.RestoreZone(id, dto.Name, ownerType, ownerID, shape, dto.Active, driverIDs)
}

func shapeToDomain(dto ZoneDTO) (zone.Shape, error) {
	kind, err := zone.ParseShapeKind(dto.ShapeKind)
	if err != nil {
		return zone.Shape{}, err
	}
	g, err := geojson.UnmarshalGeometry(dto.Geometry)
	if err != nil {
		return zone.Shape{}, fmt.Errorf("decode zone geometry: %w", err)
	}

	switch geom := g.Geometry().(type) {
	case orb.Point:
		if kind == zone.Circle {
			center, pErr := kernel.GeoPointFromOrb(geom)
			if pErr != nil {
				return zone.Shape{}, pErr
			}
			return zone.NewCircle(center, dto.RadiusKm)
		}
	case orb.Polygon:
		if len(geom) == 0 {
			break
		}
		switch kind {
		case zone.Polygon:
			return zone.NewPolygon(geom[0])
		case zone.Rectangle:
			return zone.NewRectangle(geom.Bound())
		case zone.Circle, zone.UnknownShape:
		}
	}
	return zone.Shape{}, zoneCorruption(dto.ID, kind)
}
