package commands

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

// expireBatch bounds one sweep; the job runs every second.
const expireBatch = 100

// ExpireOffersCommandHandler sweeps expired offers, one transaction per order so
// a single failure does not hold back the others. It returns how many offers
// were withdrawn.
type ExpireOffersCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	watcher    OfferWatcher
	dispatcher OrderDispatchHandler
	recorder   DispatchRecorder
	cfg        services.DispatchConfig
	clock      kernel.Clock
}

func NewExpireOffersCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	watcher OfferWatcher,
	dispatcher OrderDispatchHandler,
	recorder DispatchRecorder,
	cfg services.DispatchConfig,
	clock kernel.Clock,
) ExpireOffersCommandHandler {
	return ExpireOffersCommandHandler{
		uowFactory: uowFactory,
		watcher:    watcher,
		dispatcher: dispatcher,
		recorder:   recorder,
		cfg:        cfg,
		clock:      clock,
	}
}

func (h ExpireOffersCommandHandler) Handle(ctx context.Context, cmd ExpireOffersCommand) (int, error) {
	if err := cmd.Validate(); err != nil {
		return 0, err
	}

	now := h.clock.Now()
	var ids []kernel.UUID
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		var err error
		ids, err = uow.OrderRepository().ListExpiredOffers(ctx, now, expireBatch)
		return err
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	var joined error
	for _, id := range ids {
		ok, err := h.expire(ctx, id, now)
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, joined
}

func (h ExpireOffersCommandHandler) expire(ctx context.Context, orderID kernel.UUID, now time.Time) (bool, error) {
	changed := false
	var status order.Status
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		repo := uow.OrderRepository()
		o, err := repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if changed = o.ExpireOffer(now, h.cfg.MaxAutoRetries()); !changed {
			return nil
		}
		status = o.Status()
		return repo.Update(ctx, o)
	})
	if errors.Is(err, errs.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil || !changed {
		return false, err
	}

	h.watcher.Stop(orderID)
	h.recorder.OfferResolved(OutcomeExpired)
	return true, afterOfferFailed(ctx, h.dispatcher, h.recorder, orderID, status)
}
