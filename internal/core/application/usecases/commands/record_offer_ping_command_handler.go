package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
)

// RecordOfferPingCommandHandler moves an OFFERED order to ACK_PENDING. Later pings
// change nothing and commit nothing.
type RecordOfferPingCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	clock      kernel.Clock
}

func NewRecordOfferPingCommandHandler(uowFactory ports.UnitOfWorkFactory, clock kernel.Clock) RecordOfferPingCommandHandler {
	return RecordOfferPingCommandHandler{uowFactory: uowFactory, clock: clock}
}

func (h RecordOfferPingCommandHandler) Handle(ctx context.Context, cmd RecordOfferPingCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	return inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		repo := uow.OrderRepository()
		o, err := repo.GetForUpdate(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if !o.MarkPinged(cmd.DriverID(), now) {
			return nil
		}
		return repo.Update(ctx, o)
	})
}
