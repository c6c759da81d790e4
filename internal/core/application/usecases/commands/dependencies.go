// Package commands contains the operations that change dispatch state. Every
// handler validates its command, runs inside one unit of work with the touched
// aggregates row-locked, and triggers side effects (ack monitor, route
// recalculation, redispatch) only after a successful commit.
package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/ports"
)

type (
	// OfferWatcher runs the ack monitor of an offered order.
	OfferWatcher interface {
		Watch(orderID, driverID kernel.UUID)
		Stop(orderID kernel.UUID)
	}

	// RouteScheduler queues an asynchronous route recalculation.
	RouteScheduler interface {
		Schedule(orderID kernel.UUID, view route.View)
	}

	// OptimizerCalls tracks in-flight optimizer calls so that deleting or
	// reassigning an order cancels them.
	OptimizerCalls interface {
		Begin(parent context.Context, orderID kernel.UUID) (context.Context, func())
		Cancel(orderID kernel.UUID)
	}

	// DispatchRecorder receives dispatch outcomes for metrics.
	DispatchRecorder interface {
		OfferIssued()
		OfferResolved(outcome string)
		Escalated()
		NoCandidates()
		PlanApplied(view route.View)
		PlanDiscarded(view route.View)
	}

	// OrderDispatchHandler is what follow-up dispatching needs from DispatchOrderCommandHandler.
	OrderDispatchHandler interface {
		Handle(ctx context.Context, cmd DispatchOrderCommand) error
	}
)

// Offer outcomes reported to DispatchRecorder.OfferResolved.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRefused     = "refused"
	OutcomeExpired     = "expired"
	OutcomeUnreachable = "unreachable"
)

// NopRecorder discards every measurement.
type NopRecorder struct{}

func (NopRecorder) OfferIssued()             {}
func (NopRecorder) OfferResolved(string)     {}
func (NopRecorder) Escalated()               {}
func (NopRecorder) NoCandidates()            {}
func (NopRecorder) PlanApplied(route.View)   {}
func (NopRecorder) PlanDiscarded(route.View) {}

// inUnitOfWork runs fn in a fresh transaction and commits when it returns nil.
// The deferred rollback is a no-op after a commit.
func inUnitOfWork(ctx context.Context, factory ports.UnitOfWorkFactory, fn func(uow ports.UnitOfWork) error) error {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err := fn(uow); err != nil {
		return err
	}

	return uow.Commit(ctx)
}

// redispatch offers the order again right away. Orders that cannot be offered
// now are left to the dispatch job.
func redispatch(ctx context.Context, dispatcher OrderDispatchHandler, orderID kernel.UUID) error {
	if dispatcher == nil {
		return nil
	}
	cmd, err := NewDispatchOrderCommand(orderID)
	if err != nil {
		return err
	}
	err = dispatcher.Handle(ctx, cmd)
	if isExpectedDispatchOutcome(err) {
		return nil
	}
	return err
}
