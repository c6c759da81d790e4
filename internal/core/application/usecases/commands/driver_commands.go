package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var (
	ErrCreateDriverCommandIsNotConstructed = errors.New(
		"CreateDriverCommand must be created via NewCreateDriverCommand constructor",
	)
	ErrChangeWorkModeCommandIsNotConstructed = errors.New(
		"ChangeWorkModeCommand must be created via NewChangeWorkModeCommand constructor",
	)
	ErrSetDriverAvailabilityCommandIsNotConstructed = errors.New(
		"SetDriverAvailabilityCommand must be created via NewSetDriverAvailabilityCommand constructor",
	)
)

// CreateDriverCommand registers a driver. Empty VehicleProfile keeps the default.
type CreateDriverCommand struct {
	DriverID       kernel.UUID
	Name           string
	CompanyID      *kernel.UUID
	WorkMode       driver.WorkMode
	VehicleProfile string
	Capacity       int

	guard guard.ConstructorGuard
}

func NewCreateDriverCommand(
	driverID kernel.UUID, name string, companyID *kernel.UUID, mode driver.WorkMode, vehicleProfile string, capacity int,
) (CreateDriverCommand, error) {
	var err error
	if name == "" {
		err = errs.NewValueIsRequiredError("name")
	}
	if err = errors.Join(err, driverID.Validate(), mode.Validate()); err != nil {
		return CreateDriverCommand{}, err
	}
	return CreateDriverCommand{
		DriverID:       driverID,
		Name:           name,
		CompanyID:      companyID,
		WorkMode:       mode,
		VehicleProfile: vehicleProfile,
		Capacity:       capacity,
		guard:          guard.NewConstructorGuard(),
	}, nil
}

func (c CreateDriverCommand) Validate() error {
	return c.guard.Validate(ErrCreateDriverCommandIsNotConstructed)
}

// ChangeWorkModeCommand requests IDEP or ETP; a busy driver passes through the
// transition mode first.
type ChangeWorkModeCommand struct {
	driverID kernel.UUID
	target   driver.WorkMode
	guard    guard.ConstructorGuard
}

func NewChangeWorkModeCommand(driverID kernel.UUID, target driver.WorkMode) (ChangeWorkModeCommand, error) {
	var err error
	if target != driver.Independent && target != driver.Enterprise {
		err = errs.NewValueIsInvalidError("target work mode")
	}
	if err = errors.Join(driverID.Validate(), err); err != nil {
		return ChangeWorkModeCommand{}, err
	}
	return ChangeWorkModeCommand{driverID: driverID, target: target, guard: guard.NewConstructorGuard()}, nil
}

func (c ChangeWorkModeCommand) Validate() error {
	return c.guard.Validate(ErrChangeWorkModeCommandIsNotConstructed)
}

func (c ChangeWorkModeCommand) DriverID() kernel.UUID { return c.driverID }

func (c ChangeWorkModeCommand) Target() driver.WorkMode { return c.target }

// SetDriverAvailabilityCommand toggles the online flag and the active zone. A nil
// zone lifts the restriction.
type SetDriverAvailabilityCommand struct {
	driverID     kernel.UUID
	online       bool
	activeZoneID *kernel.UUID
	guard        guard.ConstructorGuard
}

func NewSetDriverAvailabilityCommand(
	driverID kernel.UUID, online bool, activeZoneID *kernel.UUID,
) (SetDriverAvailabilityCommand, error) {
	err := driverID.Validate()
	if activeZoneID != nil {
		err = errors.Join(err, activeZoneID.Validate())
	}
	if err != nil {
		return SetDriverAvailabilityCommand{}, err
	}
	return SetDriverAvailabilityCommand{
		driverID:     driverID,
		online:       online,
		activeZoneID: activeZoneID,
		guard:        guard.NewConstructorGuard(),
	}, nil
}

func (c SetDriverAvailabilityCommand) Validate() error {
	return c.guard.Validate(ErrSetDriverAvailabilityCommandIsNotConstructed)
}
