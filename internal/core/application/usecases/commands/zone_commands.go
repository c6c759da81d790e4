package commands

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/zone"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/guard"
)

var (
	ErrCreateZoneCommandIsNotConstructed = errors.New(
		"CreateZoneCommand must be created via NewCreateZoneCommand constructor",
	)
	ErrAssignZoneDriverCommandIsNotConstructed = errors.New(
		"AssignZoneDriverCommand must be created via NewAssignZoneDriverCommand constructor",
	)
)

type CreateZoneCommand struct {
	zone  *zone.Zone
	guard guard.ConstructorGuard
}

// NewCreateZoneCommand builds the zone up front so shape errors surface here.
func NewCreateZoneCommand(
	id kernel.UUID, name string, ownerType zone.OwnerType, ownerID *kernel.UUID, shape zone.Shape,
) (CreateZoneCommand, error) {
	z, err := zone.NewZone(id, name, ownerType, ownerID, shape)
	if err != nil {
		return CreateZoneCommand{}, err
	}
	return CreateZoneCommand{zone: z, guard: guard.NewConstructorGuard()}, nil
}

func (c CreateZoneCommand) Validate() error {
	return c.guard.Validate(ErrCreateZoneCommandIsNotConstructed)
}

// AssignZoneDriverCommand adds a static driver assignment to a zone.
type AssignZoneDriverCommand struct {
	zoneID   kernel.UUID
	driverID kernel.UUID
	guard    guard.ConstructorGuard
}

func NewAssignZoneDriverCommand(zoneID, driverID kernel.UUID) (AssignZoneDriverCommand, error) {
	if err := errors.Join(zoneID.Validate(), driverID.Validate()); err != nil {
		return AssignZoneDriverCommand{}, err
	}
	return AssignZoneDriverCommand{zoneID: zoneID, driverID: driverID, guard: guard.NewConstructorGuard()}, nil
}

func (c AssignZoneDriverCommand) Validate() error {
	return c.guard.Validate(ErrAssignZoneDriverCommandIsNotConstructed)
}

type ZoneCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewZoneCommandHandler(uowFactory ports.UnitOfWorkFactory) ZoneCommandHandler {
	return ZoneCommandHandler{uowFactory: uowFactory}
}

func (h ZoneCommandHandler) Create(ctx context.Context, cmd CreateZoneCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		return uow.ZoneRepository().Add(ctx, cmd.zone)
	})
}

func (h ZoneCommandHandler) AssignDriver(ctx context.Context, cmd AssignZoneDriverCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		if _, err := uow.DriverRepository().Get(ctx, cmd.driverID); err != nil {
			return err
		}
		repo := uow.ZoneRepository()
		z, err := repo.Get(ctx, cmd.zoneID)
		if err != nil {
			return err
		}
		z.AssignDriver(cmd.driverID)
		return repo.Update(ctx, z)
	})
}
