package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
)

// EditOrderStructureCommandHandler edits in place while no mission governs the
// target, and through shadow copies otherwise. The client view is always
// recalculated; the driver view only when the driver sees the change now.
type EditOrderStructureCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	scheduler  RouteScheduler
	cfg        services.DispatchConfig
	clock      kernel.Clock
}

func NewEditOrderStructureCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	scheduler RouteScheduler,
	cfg services.DispatchConfig,
	clock kernel.Clock,
) EditOrderStructureCommandHandler {
	return EditOrderStructureCommandHandler{uowFactory: uowFactory, scheduler: scheduler, cfg: cfg, clock: clock}
}

func (h EditOrderStructureCommandHandler) Handle(ctx context.Context, cmd EditOrderStructureCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	driverVisible := false
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		locked, err := lockOrder(ctx, uow, cmd.OrderID())
		if err != nil {
			return err
		}
		o := locked.order
		if err = o.ApplyStructuralEdit(cmd.Edits(), locked.missions, h.cfg.ProofPolicy(), now); err != nil {
			return err
		}

		if active := locked.missions.Active(); active != nil && !o.HasPendingChanges() {
			driverVisible = true
			destination, err := o.Destination()
			if err != nil {
				return err
			}
			if err = active.SetDestination(destination); err != nil {
				return err
			}
			if err = uow.MissionRepository().Update(ctx, active); err != nil {
				return err
			}
		}
		return uow.OrderRepository().Update(ctx, o)
	})
	if err != nil {
		return err
	}

	h.scheduler.Schedule(cmd.OrderID(), route.ClientView)
	if driverVisible {
		h.scheduler.Schedule(cmd.OrderID(), route.DriverView)
	}
	return nil
}
