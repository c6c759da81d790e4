package commands

import (
	"context"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/ports"
)

// DriverCommandHandler manages driver registration, work mode and availability.
type DriverCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewDriverCommandHandler(uowFactory ports.UnitOfWorkFactory) DriverCommandHandler {
	return DriverCommandHandler{uowFactory: uowFactory}
}

func (h DriverCommandHandler) Create(ctx context.Context, cmd CreateDriverCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	d, err := driver.NewDriver(cmd.DriverID, cmd.Name, cmd.CompanyID, cmd.WorkMode)
	if err != nil {
		return err
	}
	if cmd.VehicleProfile != "" {
		if err = d.SetVehicle(cmd.VehicleProfile, cmd.Capacity); err != nil {
			return err
		}
	}

	return inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		return uow.DriverRepository().Add(ctx, d)
	})
}

// ChangeWorkMode returns the mode the driver is in afterwards.
func (h DriverCommandHandler) ChangeWorkMode(ctx context.Context, cmd ChangeWorkModeCommand) (driver.WorkMode, error) {
	if err := cmd.Validate(); err != nil {
		return driver.UnknownMode, err
	}

	var mode driver.WorkMode
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		repo := uow.DriverRepository()
		d, err := repo.GetForUpdate(ctx, cmd.DriverID())
		if err != nil {
			return err
		}
		active, err := uow.MissionRepository().ListActiveByDriver(ctx, cmd.DriverID())
		if err != nil {
			return err
		}
		if err = d.RequestWorkMode(cmd.Target(), len(active)); err != nil {
			return err
		}
		mode = d.WorkMode()
		return repo.Update(ctx, d)
	})
	if err != nil {
		return driver.UnknownMode, err
	}
	return mode, nil
}

func (h DriverCommandHandler) SetAvailability(ctx context.Context, cmd SetDriverAvailabilityCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		repo := uow.DriverRepository()
		d, err := repo.GetForUpdate(ctx, cmd.driverID)
		if err != nil {
			return err
		}
		if cmd.activeZoneID != nil {
			if _, err = uow.ZoneRepository().Get(ctx, *cmd.activeZoneID); err != nil {
				return err
			}
		}

		if cmd.online {
			d.GoOnline()
		} else {
			d.GoOffline()
		}
		d.SetActiveZone(cmd.activeZoneID)
		return repo.Update(ctx, d)
	})
}
