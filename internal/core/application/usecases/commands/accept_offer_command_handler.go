package commands

import (
	"context"
	"fmt"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/mission"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

// AcceptOfferCommandHandler creates the mission of the offer holder. The order row
// lock serializes concurrent accepts, so at most one mission is ever created per
// offer; the loser gets NOT_OFFER_HOLDER. The driver row lock does the same for
// the driver's workload: chaining rules are checked again against the missions
// the driver holds at accept time.
//
// Example:
//
//	cmd, _ := NewAcceptOfferCommand(orderID, driverID)
//	if err := handler.Handle(ctx, cmd); err != nil {
//	    var rv *errs.RuleViolationError
//	    if errors.As(err, &rv) && rv.Code == order.ReasonOfferExpired {
//	        // too late
//	    }
//	}
type AcceptOfferCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	dispatcher *services.OrderDispatcher
	watcher    OfferWatcher
	scheduler  RouteScheduler
	recorder   DispatchRecorder
	clock      kernel.Clock
}

func NewAcceptOfferCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	dispatcher *services.OrderDispatcher,
	watcher OfferWatcher,
	scheduler RouteScheduler,
	recorder DispatchRecorder,
	clock kernel.Clock,
) AcceptOfferCommandHandler {
	return AcceptOfferCommandHandler{
		uowFactory: uowFactory,
		dispatcher: dispatcher,
		watcher:    watcher,
		scheduler:  scheduler,
		recorder:   recorder,
		clock:      clock,
	}
}

func (h AcceptOfferCommandHandler) Handle(ctx context.Context, cmd AcceptOfferCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := h.clock.Now()
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		orderRepo := uow.OrderRepository()
		o, err := orderRepo.GetForUpdate(ctx, cmd.OrderID())
		if err != nil {
			return err
		}

		d, err := uow.DriverRepository().GetForUpdate(ctx, cmd.DriverID())
		if err != nil {
			return err
		}
		if !d.CanReceiveNewMissions() {
			return errs.NewRuleViolationError(services.ReasonDriverTransitioning,
				fmt.Sprintf("driver is %s", d.WorkMode()))
		}

		destination, err := o.Destination()
		if err != nil {
			return err
		}
		m, err := mission.NewMission(kernel.NewUUID(), o.ID(), d.ID(), o.UnfinishedStepIDs(), destination, now)
		if err != nil {
			return err
		}

		if err = o.Accept(d.ID(), m.ID(), now); err != nil {
			return err
		}
		if err = h.checkWorkload(ctx, uow, o, d); err != nil {
			return err
		}
		if err = uow.MissionRepository().Add(ctx, m); err != nil {
			return err
		}
		return orderRepo.Update(ctx, o)
	})
	if err != nil {
		return err
	}

	h.watcher.Stop(cmd.OrderID())
	h.recorder.OfferResolved(OutcomeAccepted)
	h.scheduler.Schedule(cmd.OrderID(), route.DriverView)
	return nil
}

// checkWorkload rejects an accept that would push the driver past the concurrent
// mission cap or chain a mission too far from the current one.
func (h AcceptOfferCommandHandler) checkWorkload(
	ctx context.Context, uow ports.UnitOfWork, o *order.Order, d *driver.Driver,
) error {
	active, err := uow.MissionRepository().ListActiveByDriver(ctx, d.ID())
	if err != nil {
		return err
	}
	origin, err := o.Origin()
	if err != nil {
		return err
	}
	return h.dispatcher.CheckChaining(origin, services.Candidate{
		Driver:             d,
		ActiveMissions:     len(active),
		CurrentDestination: lastDestination(active),
	})
}
