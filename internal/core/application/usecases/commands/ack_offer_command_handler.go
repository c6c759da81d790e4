package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
)

// AckOfferCommandHandler stops the liveness pings of an offer. The ack is stored
// in the AckStore as well so that monitors on other instances see it.
type AckOfferCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	acks       ports.AckStore
	watcher    OfferWatcher
	cfg        services.DispatchConfig
	clock      kernel.Clock
}

func NewAckOfferCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	acks ports.AckStore,
	watcher OfferWatcher,
	cfg services.DispatchConfig,
	clock kernel.Clock,
) AckOfferCommandHandler {
	return AckOfferCommandHandler{uowFactory: uowFactory, acks: acks, watcher: watcher, cfg: cfg, clock: clock}
}

func (h AckOfferCommandHandler) Handle(ctx context.Context, cmd AckOfferCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		repo := uow.OrderRepository()
		o, err := repo.GetForUpdate(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if err = o.Acknowledge(cmd.DriverID(), now); err != nil {
			return err
		}
		return repo.Update(ctx, o)
	})
	if err != nil {
		return err
	}

	h.watcher.Stop(cmd.OrderID())
	return h.acks.MarkAcked(ctx, cmd.OrderID(), cmd.DriverID(), h.cfg.OfferTimeout())
}
