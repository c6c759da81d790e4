package commands

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
)

// dispatchBatch bounds one sweep, highest priority first.
const dispatchBatch = 50

// DispatchPendingOrdersCommandHandler is the batch form of DispatchOrder used by
// the dispatch job. Each order is dispatched in its own transaction; orders
// without candidates or already taken meanwhile are skipped silently.
type DispatchPendingOrdersCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	dispatcher OrderDispatchHandler
	clock      kernel.Clock
}

func NewDispatchPendingOrdersCommandHandler(
	uowFactory ports.UnitOfWorkFactory, dispatcher OrderDispatchHandler, clock kernel.Clock,
) DispatchPendingOrdersCommandHandler {
	return DispatchPendingOrdersCommandHandler{uowFactory: uowFactory, dispatcher: dispatcher, clock: clock}
}

// Handle returns the number of orders offered.
func (h DispatchPendingOrdersCommandHandler) Handle(ctx context.Context, cmd DispatchPendingOrdersCommand) (int, error) {
	if err := cmd.Validate(); err != nil {
		return 0, err
	}

	var ids []kernel.UUID
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		var err error
		ids, err = uow.OrderRepository().ListDueForDispatch(ctx, h.clock.Now(), dispatchBatch)
		return err
	})
	if err != nil {
		return 0, err
	}

	offered := 0
	var joined error
	for _, id := range ids {
		if ctx.Err() != nil {
			return offered, errors.Join(joined, ctx.Err())
		}
		dispatchCmd, err := NewDispatchOrderCommand(id)
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		err = h.dispatcher.Handle(ctx, dispatchCmd)
		switch {
		case err == nil:
			offered++
		case isExpectedDispatchOutcome(err):
		default:
			joined = errors.Join(joined, err)
		}
	}
	return offered, joined
}
