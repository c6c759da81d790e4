package postgres

import (
	"dispatch/internal/adapters/out/postgres/driverrepo"
	"dispatch/internal/adapters/out/postgres/locationrepo"
	"dispatch/internal/adapters/out/postgres/missionrepo"
	"dispatch/internal/adapters/out/postgres/orderrepo"
	"dispatch/internal/adapters/out/postgres/settingsrepo"
	"dispatch/internal/adapters/out/postgres/zonerepo"

	"gorm.io/gorm"
)

// Models lists every persisted DTO, parents before children.
func Models() []any {
	models := orderrepo.Models()
	return append(models,
		&missionrepo.MissionDTO{},
		&driverrepo.DriverDTO{},
		&zonerepo.ZoneDTO{},
		&zonerepo.ZoneDriverDTO{},
		&locationrepo.LocationHistoryDTO{},
		&settingsrepo.DispatchSettingDTO{},
	)
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
