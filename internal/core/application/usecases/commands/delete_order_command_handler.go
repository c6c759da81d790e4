package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
)

// DeleteOrderCommandHandler cancels the order, which emits order.deleted, and
// removes it with its structure and missions. In-flight optimizer calls and the
// ack monitor are stopped after commit.
type DeleteOrderCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	watcher    OfferWatcher
	calls      OptimizerCalls
	acks       ports.AckStore
	clock      kernel.Clock
}

func NewDeleteOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	watcher OfferWatcher,
	calls OptimizerCalls,
	acks ports.AckStore,
	clock kernel.Clock,
) DeleteOrderCommandHandler {
	return DeleteOrderCommandHandler{uowFactory: uowFactory, watcher: watcher, calls: calls, acks: acks, clock: clock}
}

func (h DeleteOrderCommandHandler) Handle(ctx context.Context, cmd DeleteOrderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	var drivers []kernel.UUID
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		locked, err := lockOrder(ctx, uow, cmd.OrderID())
		if err != nil {
			return err
		}
		if !locked.order.Status().IsFinal() {
			if err = locked.order.Cancel(now); err != nil {
				return err
			}
		}
		for _, m := range locked.missions {
			if m.IsActive() {
				drivers = append(drivers, m.DriverID())
			}
		}
		if err = uow.OrderRepository().Delete(ctx, locked.order); err != nil {
			return err
		}
		for _, driverID := range drivers {
			if err = settleDriver(ctx, uow, driverID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.calls.Cancel(cmd.OrderID())
	h.watcher.Stop(cmd.OrderID())
	return h.acks.Clear(ctx, cmd.OrderID())
}
