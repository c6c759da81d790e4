package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
)

// MarkDriverUnreachableCommandHandler treats a silent offer holder like an expired
// offer. It is a no-op when the offer was acknowledged, resolved or re-issued in
// the meantime.
type MarkDriverUnreachableCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	dispatcher OrderDispatchHandler
	recorder   DispatchRecorder
	cfg        services.DispatchConfig
	clock      kernel.Clock
}

func NewMarkDriverUnreachableCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	dispatcher OrderDispatchHandler,
	recorder DispatchRecorder,
	cfg services.DispatchConfig,
	clock kernel.Clock,
) MarkDriverUnreachableCommandHandler {
	return MarkDriverUnreachableCommandHandler{
		uowFactory: uowFactory,
		dispatcher: dispatcher,
		recorder:   recorder,
		cfg:        cfg,
		clock:      clock,
	}
}

func (h MarkDriverUnreachableCommandHandler) Handle(ctx context.Context, cmd MarkDriverUnreachableCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	changed := false
	var status order.Status
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		repo := uow.OrderRepository()
		o, err := repo.GetForUpdate(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if changed = o.MarkUnreachable(cmd.DriverID(), now, h.cfg.MaxAutoRetries()); !changed {
			return nil
		}
		status = o.Status()
		return repo.Update(ctx, o)
	})
	if err != nil || !changed {
		return err
	}

	h.recorder.OfferResolved(OutcomeUnreachable)
	return afterOfferFailed(ctx, h.dispatcher, h.recorder, cmd.OrderID(), status)
}
