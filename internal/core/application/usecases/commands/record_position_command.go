package commands

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/location"
	"dispatch/internal/pkg/guard"
)

var ErrRecordPositionCommandIsNotConstructed = errors.New(
	"RecordPositionCommand must be created via NewRecordPositionCommand constructor",
)

// RecordPositionCommand is one GPS sample from the driver app.
type RecordPositionCommand struct {
	position location.Position
	guard    guard.ConstructorGuard
}

func NewRecordPositionCommand(
	driverID kernel.UUID, lat, lng, heading float64, recordedAt time.Time,
) (RecordPositionCommand, error) {
	p, err := location.NewPosition(driverID, lat, lng, heading, recordedAt)
	if err != nil {
		return RecordPositionCommand{}, err
	}
	return RecordPositionCommand{position: p, guard: guard.NewConstructorGuard()}, nil
}

func (c RecordPositionCommand) Validate() error {
	return c.guard.Validate(ErrRecordPositionCommandIsNotConstructed)
}

func (c RecordPositionCommand) Position() location.Position { return c.position }
