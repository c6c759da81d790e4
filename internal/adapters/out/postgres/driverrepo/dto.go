// Package driverrepo persists drivers with their work mode, availability and vehicle.
package driverrepo

import (
	"dispatch/internal/adapters/out/postgres/pgconv"
	"dispatch/internal/core/domain/model/driver"

	"github.com/google/uuid"
)

type DriverDTO struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CompanyID      *uuid.UUID `gorm:"type:uuid;index"`
	Name           string     `gorm:"type:varchar(255);not null"`
	WorkMode       string     `gorm:"type:varchar(20);not null"`
	Online         bool       `gorm:"not null;default:false"`
	ActiveZoneID   *uuid.UUID `gorm:"type:uuid"`
	VehicleProfile string     `gorm:"type:varchar(64);not null"`
	Capacity       int        `gorm:"not null;default:0"`
}

func (DriverDTO) TableName() string {
	return "drivers"
}

func fromDomain(d *driver.Driver) DriverDTO {
	return DriverDTO{
		ID:             d.ID().Bytes(),
		CompanyID:      pgconv.NullableUUID(d.CompanyID()),
		Name:           d.Name(),
		WorkMode:       d.WorkMode().String(),
		Online:         d.IsOnline(),
		ActiveZoneID:   pgconv.NullableUUID(d.ActiveZoneID()),
		VehicleProfile: d.VehicleProfile(),
		Capacity:       d.Capacity(),
	}
}

func toDomain(dto DriverDTO) (*driver.Driver, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	companyID, err := pgconv.FromNullableUUID(dto.CompanyID)
	if err != nil {
		return nil, err
	}
	zoneID, err := pgconv.FromNullableUUID(dto.ActiveZoneID)
	if err != nil {
		return nil, err
	}
	mode, err := driver.ParseWorkMode(dto.WorkMode)
	if err != nil {
		return nil, err
	}

	return driver.RestoreDriver(driver.RestoreParams{
		ID:             id,
		CompanyID:      companyID,
		Name:           dto.Name,
		WorkMode:       mode,
		Online:         dto.Online,
		ActiveZoneID:   zoneID,
		VehicleProfile: dto.VehicleProfile,
		Capacity:       dto.Capacity,
	})
}
