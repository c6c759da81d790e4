package driverrepo

import (
	"context"
	"errors"

	"dispatch/internal/adapters/out/postgres/pgconv"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDriverRepository implements DriverRepository using GORM.
type GormDriverRepository struct {
	db *gorm.DB
}

func NewGormDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

func (r *GormDriverRepository) Add(ctx context.Context, aggregate *driver.Driver) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	return r.db.WithContext(ctx).Create(&dto).Error
}

// Update selects every column so zero values (offline, no active zone) are written too.
func (r *GormDriverRepository) Update(ctx context.Context, aggregate *driver.Driver) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).Model(&DriverDTO{}).
		Where("id = ?", dto.ID).
		Select("*").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("driver", aggregate.ID().String())
	}
	return nil
}

func (r *GormDriverRepository) Get(ctx context.Context, id kernel.UUID) (*driver.Driver, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *GormDriverRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*driver.Driver, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormDriverRepository) GetMany(ctx context.Context, ids []kernel.UUID) ([]*driver.Driver, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var dtos []DriverDTO
	if err := r.db.WithContext(ctx).Where("id IN ?", pgconv.UUIDs(ids)).Find(&dtos).Error; err != nil {
		return nil, err
	}

	drivers := make([]*driver.Driver, 0, len(dtos))
	for _, dto := range dtos {
		d, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, nil
}

func (r *GormDriverRepository) get(db *gorm.DB, id kernel.UUID) (*driver.Driver, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto DriverDTO
	if err := db.First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("driver", id.String())
		}
		return nil, err
	}
	return toDomain(dto)
}
