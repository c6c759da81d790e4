package commands

import (
	"context"
	"errors"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/mission"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/zone"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

// candidateLimit caps the radius search; the closest drivers win anyway.
const candidateLimit = 50

// DispatchOrderCommandHandler turns the live geo set into candidates and lets the
// OrderDispatcher offer the order. ErrNoCandidates is returned after the back-off
// is committed.
//
// Example:
//
//	err := handler.Handle(ctx, cmd)
//	switch {
//	case errors.Is(err, services.ErrNoCandidates):
//	    // retried by the dispatch job after RetryBackoff
//	case err != nil:
//	    return err
//	}
type DispatchOrderCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	locations  ports.LocationBuffer
	dispatcher *services.OrderDispatcher
	watcher    OfferWatcher
	recorder   DispatchRecorder
	clock      kernel.Clock
}

func NewDispatchOrderCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	locations ports.LocationBuffer,
	dispatcher *services.OrderDispatcher,
	watcher OfferWatcher,
	recorder DispatchRecorder,
	clock kernel.Clock,
) *DispatchOrderCommandHandler {
	return &DispatchOrderCommandHandler{
		uowFactory: uowFactory,
		locations:  locations,
		dispatcher: dispatcher,
		watcher:    watcher,
		recorder:   recorder,
		clock:      clock,
	}
}

func (h *DispatchOrderCommandHandler) Handle(ctx context.Context, cmd DispatchOrderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	var offered services.Ranked
	noCandidates := false

	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		orderRepo := uow.OrderRepository()
		o, err := orderRepo.GetForUpdate(ctx, cmd.OrderID())
		if err != nil {
			return err
		}
		if err = o.CheckDispatchable(now); err != nil {
			return err
		}

		pool, err := h.candidates(ctx, uow, o)
		if err != nil {
			return err
		}

		offered, err = h.dispatcher.Dispatch(o, pool, now)
		if errors.Is(err, services.ErrNoCandidates) {
			noCandidates = true
			return orderRepo.Update(ctx, o)
		}
		if err != nil {
			return err
		}
		return orderRepo.Update(ctx, o)
	})
	if err != nil {
		return freezeOnCorruption(ctx, h.uowFactory, cmd.OrderID(), err)
	}

	if noCandidates {
		h.recorder.NoCandidates()
		return services.ErrNoCandidates
	}

	h.recorder.OfferIssued()
	h.watcher.Watch(cmd.OrderID(), offered.Driver.ID())
	return nil
}

func (h *DispatchOrderCommandHandler) candidates(
	ctx context.Context, uow ports.UnitOfWork, o *order.Order,
) ([]services.Candidate, error) {
	origin, err := o.Origin()
	if err != nil {
		return nil, err
	}

	nearby, err := h.locations.Nearby(ctx, origin, h.dispatcher.Config().SearchRadiusKm(), candidateLimit)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		return nil, nil
	}

	ids := make([]kernel.UUID, 0, len(nearby))
	for _, n := range nearby {
		ids = append(ids, n.DriverID)
	}

	drivers, err := uow.DriverRepository().GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[kernel.UUID]*driver.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID()] = d
	}

	missionRepo := uow.MissionRepository()
	counts, err := missionRepo.CountActiveByDrivers(ctx, ids)
	if err != nil {
		return nil, err
	}
	offers, err := uow.OrderRepository().CountOpenOffersByDrivers(ctx, ids)
	if err != nil {
		return nil, err
	}

	zones := make(map[kernel.UUID]*zone.Zone)
	pool := make([]services.Candidate, 0, len(nearby))
	for _, n := range nearby {
		d, ok := byID[n.DriverID]
		if !ok {
			continue
		}
		c := services.Candidate{
			Driver:         d,
			Position:       n.Point,
			ActiveMissions: counts[d.ID()],
			OpenOffers:     offers[d.ID()],
		}

		if c.ActiveMissions > 0 {
			active, err := missionRepo.ListActiveByDriver(ctx, d.ID())
			if err != nil {
				return nil, err
			}
			c.CurrentDestination = lastDestination(active)
		}

		if zoneID := d.ActiveZoneID(); zoneID != nil {
			z, err := h.zone(ctx, uow, zones, *zoneID)
			if err != nil {
				return nil, err
			}
			c.ActiveZone = z
		}

		pool = append(pool, c)
	}
	return pool, nil
}

func (h *DispatchOrderCommandHandler) zone(
	ctx context.Context, uow ports.UnitOfWork, cache map[kernel.UUID]*zone.Zone, id kernel.UUID,
) (*zone.Zone, error) {
	if z, ok := cache[id]; ok {
		return z, nil
	}
	z, err := uow.ZoneRepository().Get(ctx, id)
	if errors.Is(err, errs.ErrObjectNotFound) {
		cache[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cache[id] = z
	return z, nil
}

// lastDestination is where the most recently accepted mission ends.
func lastDestination(active []*mission.Mission) *kernel.GeoPoint {
	var last *mission.Mission
	for _, m := range active {
		if last == nil || m.AcceptedAt().After(last.AcceptedAt()) {
			last = m
		}
	}
	if last == nil {
		return nil
	}
	dest := last.Destination()
	return &dest
}

// isExpectedDispatchOutcome reports results a background dispatch treats as
// "nothing to do now".
func isExpectedDispatchOutcome(err error) bool {
	return err == nil ||
		errors.Is(err, services.ErrNoCandidates) ||
		errors.Is(err, errs.ErrRuleViolation)
}
