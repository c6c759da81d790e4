package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
)

// RefuseOfferCommandHandler records the refusal and, while retries remain,
// offers the order to the next driver right away.
type RefuseOfferCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	watcher    OfferWatcher
	dispatcher OrderDispatchHandler
	recorder   DispatchRecorder
	cfg        services.DispatchConfig
	clock      kernel.Clock
}

func NewRefuseOfferCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	watcher OfferWatcher,
	dispatcher OrderDispatchHandler,
	recorder DispatchRecorder,
	cfg services.DispatchConfig,
	clock kernel.Clock,
) RefuseOfferCommandHandler {
	return RefuseOfferCommandHandler{
		uowFactory: uowFactory,
		watcher:    watcher,
		dispatcher: dispatcher,
		recorder:   recorder,
		cfg:        cfg,
		clock:      clock,
	}
}

func (h RefuseOfferCommandHandler) Handle(ctx context.Context, cmd RefuseOfferCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	var status order.Status
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		repo := uow.OrderRepository()
		o, err := repo.GetForUpdate(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if err = o.Refuse(cmd.DriverID(), now, h.cfg.MaxAutoRetries()); err != nil {
			return err
		}
		status = o.Status()
		return repo.Update(ctx, o)
	})
	if err != nil {
		return err
	}

	h.watcher.Stop(cmd.OrderID())
	h.recorder.OfferResolved(OutcomeRefused)
	return afterOfferFailed(ctx, h.dispatcher, h.recorder, cmd.OrderID(), status)
}

// afterOfferFailed redispatches an order that went back to PENDING and counts an
// escalation otherwise.
func afterOfferFailed(
	ctx context.Context, dispatcher OrderDispatchHandler, recorder DispatchRecorder,
	orderID kernel.UUID, status order.Status,
) error {
	switch status {
	case order.Pending:
		return redispatch(ctx, dispatcher, orderID)
	case order.Escalated:
		recorder.Escalated()
	}
	return nil
}
