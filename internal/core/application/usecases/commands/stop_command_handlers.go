package commands

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/ports"
)

// StopCommandHandler executes the driver's stop transitions. Completing or
// failing a stop runs the checkpoint merge; a merge that changed the structure
// triggers a driver route recalculation.
//
// Example:
//
//	cmd, _ := NewCompleteStopCommand(orderID, driverID, stopID)
//	outcome, err := handler.CompleteStop(ctx, cmd)
//	if err == nil && outcome.OrderFinished {
//	    // mission closed, driver work mode settled
//	}
type StopCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	scheduler  RouteScheduler
	clock      kernel.Clock
}

func NewStopCommandHandler(uowFactory ports.UnitOfWorkFactory, scheduler RouteScheduler, clock kernel.Clock) StopCommandHandler {
	return StopCommandHandler{uowFactory: uowFactory, scheduler: scheduler, clock: clock}
}

func (h StopCommandHandler) ArriveAtStop(ctx context.Context, cmd ArriveAtStopCommand) (order.ExecutionOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return order.ExecutionOutcome{}, err
	}
	return h.execute(ctx, cmd.stopCommand, func(o *order.Order, now time.Time) (order.ExecutionOutcome, error) {
		return o.ArriveAtStop(cmd.StopID(), now)
	})
}

func (h StopCommandHandler) CompleteStop(ctx context.Context, cmd CompleteStopCommand) (order.ExecutionOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return order.ExecutionOutcome{}, err
	}
	return h.execute(ctx, cmd.stopCommand, func(o *order.Order, now time.Time) (order.ExecutionOutcome, error) {
		return o.CompleteStop(cmd.StopID(), now)
	})
}

func (h StopCommandHandler) FailStop(ctx context.Context, cmd FailStopCommand) (order.ExecutionOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return order.ExecutionOutcome{}, err
	}
	return h.execute(ctx, cmd.stopCommand, func(o *order.Order, now time.Time) (order.ExecutionOutcome, error) {
		return o.FailStop(cmd.StopID(), cmd.Reason(), now)
	})
}

func (h StopCommandHandler) execute(
	ctx context.Context,
	cmd stopCommand,
	transition func(o *order.Order, now time.Time) (order.ExecutionOutcome, error),
) (order.ExecutionOutcome, error) {
	now := h.clock.Now()
	var outcome order.ExecutionOutcome
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		locked, err := lockOrder(ctx, uow, cmd.OrderID())
		if err != nil {
			return err
		}
		if err = checkAssignedDriver(locked.order, cmd.DriverID()); err != nil {
			return err
		}
		if outcome, err = transition(locked.order, now); err != nil {
			return err
		}
		if err = applyOutcome(ctx, uow, locked, outcome, now); err != nil {
			return err
		}
		return uow.OrderRepository().Update(ctx, locked.order)
	})
	if err != nil {
		return order.ExecutionOutcome{}, freezeOnCorruption(ctx, h.uowFactory, cmd.OrderID(), err)
	}

	if outcome.Merge.Changed && !outcome.OrderFinished {
		h.scheduler.Schedule(cmd.OrderID(), route.DriverView)
	}
	return outcome, nil
}
