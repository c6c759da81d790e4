// Package missionrepo persists missions, the driver-bound slices of an order.
package missionrepo

import (
	"time"

	"dispatch/internal/adapters/out/postgres/orderrepo"
	"dispatch/internal/adapters/out/postgres/pgconv"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/mission"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/paulmach/orb"
)

type MissionDTO struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey"`
	OrderID           uuid.UUID      `gorm:"type:uuid;not null;index"`
	DriverID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_missions_driver_status,priority:1"`
	StepIDs           pq.StringArray `gorm:"type:text[]"`
	Status            string         `gorm:"type:varchar(20);not null;index:idx_missions_driver_status,priority:2"`
	DestinationLat    float64        `gorm:"not null"`
	DestinationLng    float64        `gorm:"not null"`
	OptimizedData     []byte         `gorm:"type:jsonb"`
	EstimatedDuration int
	EstimatedDistance int
	RouteGeometry     orb.LineString `gorm:"type:jsonb;serializer:json"`
	AcceptedAt        time.Time      `gorm:"not null"`
	StartedAt         *time.Time
	FinishedAt        *time.Time
	FailureReason     string `gorm:"type:text"`

	Order orderrepo.OrderDTO `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (MissionDTO) TableName() string {
	return "missions"
}

func fromDomain(m *mission.Mission) MissionDTO {
	return MissionDTO{
		ID:                m.ID().Bytes(),
		OrderID:           m.OrderID().Bytes(),
		DriverID:          m.DriverID().Bytes(),
		StepIDs:           pgconv.UUIDArray(m.StepIDs()),
		Status:            m.Status().String(),
		DestinationLat:    m.Destination().Lat(),
		DestinationLng:    m.Destination().Lng(),
		OptimizedData:     m.OptimizedData(),
		EstimatedDuration: m.EstimatedDuration(),
		EstimatedDistance: m.EstimatedDistance(),
		RouteGeometry:     m.RouteGeometry(),
		AcceptedAt:        m.AcceptedAt(),
		StartedAt:         m.StartedAt(),
		FinishedAt:        m.FinishedAt(),
		FailureReason:     m.FailureReason(),
	}
}

func toDomain(dto MissionDTO) (*mission.Mission, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := pgconv.FromUUID(dto.OrderID)
	if err != nil {
		return nil, err
	}
	driverID, err := pgconv.FromUUID(dto.DriverID)
	if err != nil {
		return nil, err
	}
	stepIDs, err := pgconv.FromUUIDArray(dto.StepIDs)
	if err != nil {
		return nil, err
	}
	status, err := mission.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}
	destination, err := kernel.NewGeoPoint(dto.DestinationLat, dto.DestinationLng)
	if err != nil {
		return nil, err
	}

	return mission.RestoreMission(mission.RestoreParams{
		ID:                id,
		OrderID:           orderID,
		DriverID:          driverID,
		StepIDs:           stepIDs,
		Status:            status,
		Destination:       destination,
		OptimizedData:     dto.OptimizedData,
		EstimatedDuration: dto.EstimatedDuration,
		EstimatedDistance: dto.EstimatedDistance,
		RouteGeometry:     dto.RouteGeometry,
		AcceptedAt:        dto.AcceptedAt,
		StartedAt:         dto.StartedAt,
		FinishedAt:        dto.FinishedAt,
		FailureReason:     dto.FailureReason,
	})
}
