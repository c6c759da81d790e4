package missionrepo

import (
	"context"
	"errors"

	"dispatch/internal/adapters/out/postgres/pgconv"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/mission"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMissionRepository implements MissionRepository using GORM.
type GormMissionRepository struct {
	db *gorm.DB
}

func NewGormMissionRepository(db *gorm.DB) *GormMissionRepository {
	return &GormMissionRepository{db: db}
}

func activeStatuses() []string {
	return []string{mission.Assigned.String(), mission.InProgress.String()}
}

func (r *GormMissionRepository) Add(ctx context.Context, aggregate *mission.Mission) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&dto).Error
}

func (r *GormMissionRepository) Update(ctx context.Context, aggregate *mission.Mission) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).Model(&MissionDTO{}).
		Omit(clause.Associations).
		Where("id = ?", dto.ID).
		Select("*").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("mission", aggregate.ID().String())
	}
	return nil
}

func (r *GormMissionRepository) Get(ctx context.Context, id kernel.UUID) (*mission.Mission, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto MissionDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("mission", id.String())
		}
		return nil, err
	}
	return toDomain(dto)
}

func (r *GormMissionRepository) ListByOrderForUpdate(ctx context.Context, orderID kernel.UUID) ([]*mission.Mission, error) {
	var dtos []MissionDTO
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID.Bytes()).
		Order("accepted_at").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(dtos)
}

func (r *GormMissionRepository) ListActiveByDriver(ctx context.Context, driverID kernel.UUID) ([]*mission.Mission, error) {
	var dtos []MissionDTO
	err := r.db.WithContext(ctx).
		Where("driver_id = ? AND status IN ?", driverID.Bytes(), activeStatuses()).
		Order("accepted_at").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(dtos)
}

func (r *GormMissionRepository) CountActiveByDrivers(
	ctx context.Context, driverIDs []kernel.UUID,
) (map[kernel.UUID]int, error) {
	counts := make(map[kernel.UUID]int, len(driverIDs))
	if len(driverIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		DriverID uuid.UUID
		Active   int
	}
	err := r.db.WithContext(ctx).Model(&MissionDTO{}).
		Select("driver_id, COUNT(*) AS active").
		Where("driver_id IN ? AND status IN ?", pgconv.UUIDs(driverIDs), activeStatuses()).
		Group("driver_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		id, idErr := pgconv.FromUUID(row.DriverID)
		if idErr != nil {
			return nil, idErr
		}
		counts[id] = row.Active
	}
	return counts, nil
}

func toDomainList(dtos []MissionDTO) ([]*mission.Mission, error) {
	out := make([]*mission.Mission, 0, len(dtos))
	for _, dto := range dtos {
		m, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
