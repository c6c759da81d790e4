// Package locationrepo is the append-only driver position history.
package locationrepo

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/location"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// LocationHistoryDTO is one flushed sample. (driver_id, recorded_at) is unique so a
// batch replayed after a failed flush inserts nothing twice.
type LocationHistoryDTO struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	DriverID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_location_history_sample,priority:1"`
	Lat        float64   `gorm:"not null"`
	Lng        float64   `gorm:"not null"`
	Heading    float64   `gorm:"not null"`
	RecordedAt time.Time `gorm:"not null;uniqueIndex:uq_location_history_sample,priority:2"`
	FlushedAt  time.Time `gorm:"not null;autoCreateTime"`
}

func (LocationHistoryDTO) TableName() string {
	return "location_history"
}

type GormLocationHistoryRepository struct {
	db *gorm.DB
}

func NewGormLocationHistoryRepository(db *gorm.DB) *GormLocationHistoryRepository {
	return &GormLocationHistoryRepository{db: db}
}

func (r *GormLocationHistoryRepository) InsertBatch(ctx context.Context, positions []location.Position) error {
	if len(positions) == 0 {
		return nil
	}

	rows := make([]LocationHistoryDTO, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, LocationHistoryDTO{
			DriverID:   p.DriverID.Bytes(),
			Lat:        p.Point.Lat(),
			Lng:        p.Point.Lng(),
			Heading:    p.Heading,
			RecordedAt: p.RecordedAt,
		})
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "driver_id"}, {Name: "recorded_at"}},
			DoNothing: true,
		}).
		CreateInBatches(&rows, insertBatchSize).Error
}
