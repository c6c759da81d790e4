// Package settingsrepo reads operator overrides of the dispatch settings.
package settingsrepo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DispatchSettingDTO is one key/value override, e.g. offer_timeout = "20s".
type DispatchSettingDTO struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (DispatchSettingDTO) TableName() string {
	return "dispatch_settings"
}

type GormSettingsRepository struct {
	db *gorm.DB
}

func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

func (r *GormSettingsRepository) LoadDispatchSettings(ctx context.Context) (map[string]string, error) {
	var rows []DispatchSettingDTO
	if err := r.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}
