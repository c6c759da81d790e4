package zonerepo

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/zone"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormZoneRepository implements ZoneRepository using GORM.
type GormZoneRepository struct {
	db *gorm.DB
}

func NewGormZoneRepository(db *gorm.DB) *GormZoneRepository {
	return &GormZoneRepository{db: db}
}

func (r *GormZoneRepository) Add(ctx context.Context, aggregate *zone.Zone) error {
	dto, err := fromDomain(aggregate)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&dto).Error
}

// Update rewrites the zone row and replaces its driver assignments.
func (r *GormZoneRepository) Update(ctx context.Context, aggregate *zone.Zone) error {
	dto, err := fromDomain(aggregate)
	if err != nil {
		return err
	}

	db := r.db.WithContext(ctx)
	result := db.Model(&ZoneDTO{}).
		Omit(clause.Associations).
		Where("id = ?", dto.ID).
		Select("*").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("zone", aggregate.ID().String())
	}

	if err = db.Where("zone_id = ?", dto.ID).Delete(&ZoneDriverDTO{}).Error; err != nil {
		return err
	}
	if len(dto.Drivers) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&dto.Drivers).Error
}

func (r *GormZoneRepository) Get(ctx context.Context, id kernel.UUID) (*zone.Zone, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto ZoneDTO
	if err := r.db.WithContext(ctx).Preload("Drivers").First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("zone", id.String())
		}
		return nil, err
	}
	return toDomain(dto)
}

func (r *GormZoneRepository) ListActiveCovering(ctx context.Context, p kernel.GeoPoint) ([]*zone.Zone, error) {
	var dtos []ZoneDTO
	err := r.db.WithContext(ctx).
		Preload("Drivers").
		Where("active").
		Where("min_lat <= ? AND max_lat >= ?", p.Lat(), p.Lat()).
		Where("min_lng <= ? AND max_lng >= ?", p.Lng(), p.Lng()).
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	zones := make([]*zone.Zone, 0, len(dtos))
	for _, dto := range dtos {
		z, zErr := toDomain(dto)
		if zErr != nil {
			return nil, zErr
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func zoneCorruption(id uuid.UUID, kind zone.ShapeKind) error {
	return errs.NewCorruptionError("zone "+id.String(), "geometry does not match shape "+kind.String())
}
