package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/ports"
)

// MergeCheckpointCommandHandler runs an explicit checkpoint. Stop completion runs
// the same merge implicitly. A second call with nothing pending returns an
// unchanged result and writes nothing.
type MergeCheckpointCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	scheduler  RouteScheduler
	clock      kernel.Clock
}

func NewMergeCheckpointCommandHandler(
	uowFactory ports.UnitOfWorkFactory, scheduler RouteScheduler, clock kernel.Clock,
) MergeCheckpointCommandHandler {
	return MergeCheckpointCommandHandler{uowFactory: uowFactory, scheduler: scheduler, clock: clock}
}

func (h MergeCheckpointCommandHandler) Handle(ctx context.Context, cmd MergeCheckpointCommand) (order.MergeResult, error) {
	if err := cmd.Validate(); err != nil {
		return order.MergeResult{}, err
	}

	now := h.clock.Now()
	var res order.MergeResult
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		locked, err := lockOrder(ctx, uow, cmd.OrderID())
		if err != nil {
			return err
		}
		if res, err = locked.order.MergeCheckpoint(now); err != nil || !res.Changed {
			return err
		}
		if err = applyMerge(locked.order, locked.missions, res); err != nil {
			return err
		}
		missionRepo := uow.MissionRepository()
		for _, m := range locked.missions {
			if err = missionRepo.Update(ctx, m); err != nil {
				return err
			}
		}
		return uow.OrderRepository().Update(ctx, locked.order)
	})
	if err != nil {
		return order.MergeResult{}, freezeOnCorruption(ctx, h.uowFactory, cmd.OrderID(), err)
	}

	if res.Changed {
		h.scheduler.Schedule(cmd.OrderID(), route.DriverView)
		h.scheduler.Schedule(cmd.OrderID(), route.ClientView)
	}
	return res, nil
}
