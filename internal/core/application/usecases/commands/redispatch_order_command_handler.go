package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
)

// RedispatchOrderCommandHandler is the operator override for escalated, frozen or
// stuck orders. An accepted but not started mission is failed and its optimizer
// call cancelled before the order is offered again.
type RedispatchOrderCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	watcher    OfferWatcher
	calls      OptimizerCalls
	acks       ports.AckStore
	dispatcher OrderDispatchHandler
	clock      kernel.Clock
}

func NewRedispatchOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	watcher OfferWatcher,
	calls OptimizerCalls,
	acks ports.AckStore,
	dispatcher OrderDispatchHandler,
	clock kernel.Clock,
) RedispatchOrderCommandHandler {
	return RedispatchOrderCommandHandler{
		uowFactory: uowFactory,
		watcher:    watcher,
		calls:      calls,
		acks:       acks,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

func (h RedispatchOrderCommandHandler) Handle(ctx context.Context, cmd RedispatchOrderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		locked, err := lockOrder(ctx, uow, cmd.OrderID())
		if err != nil {
			return err
		}
		if err = locked.order.Redispatch(now); err != nil {
			return err
		}

		missionRepo := uow.MissionRepository()
		for _, m := range locked.missions {
			if !m.IsActive() {
				continue
			}
			if err = m.Fail("REASSIGNED", now); err != nil {
				return err
			}
			if err = missionRepo.Update(ctx, m); err != nil {
				return err
			}
			if err = settleDriver(ctx, uow, m.DriverID()); err != nil {
				return err
			}
		}
		return uow.OrderRepository().Update(ctx, locked.order)
	})
	if err != nil {
		return err
	}

	h.watcher.Stop(cmd.OrderID())
	h.calls.Cancel(cmd.OrderID())
	if err = h.acks.Clear(ctx, cmd.OrderID()); err != nil {
		return err
	}
	return redispatch(ctx, h.dispatcher, cmd.OrderID())
}
