package commands

import (
	"context"
	"errors"
	"fmt"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
)

// ErrRouteRecalculationFailed is recoverable: the last execution order stays in
// place and the next structural change triggers another attempt.
var ErrRouteRecalculationFailed = errors.New("route recalculation failed")

const defaultVehicleProfile = "driving-car"

// RecalculateRouteCommandHandler snapshots the virtual state, calls the optimizer
// outside of any transaction and writes the plan back under the order lock. A
// plan computed for an older structureVersion is discarded.
type RecalculateRouteCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	optimizer  ports.RouteOptimizer
	locations  ports.LocationBuffer
	calls      OptimizerCalls
	recorder   DispatchRecorder
	cfg        services.DispatchConfig
	clock      kernel.Clock
}

func NewRecalculateRouteCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	optimizer ports.RouteOptimizer,
	locations ports.LocationBuffer,
	calls OptimizerCalls,
	recorder DispatchRecorder,
	cfg services.DispatchConfig,
	clock kernel.Clock,
) RecalculateRouteCommandHandler {
	return RecalculateRouteCommandHandler{
		uowFactory: uowFactory,
		optimizer:  optimizer,
		locations:  locations,
		calls:      calls,
		recorder:   recorder,
		cfg:        cfg,
		clock:      clock,
	}
}

type routeSnapshot struct {
	state   route.VirtualState
	vehicle route.Vehicle
}

func (h RecalculateRouteCommandHandler) Handle(ctx context.Context, cmd RecalculateRouteCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	snap, err := h.snapshot(ctx, cmd)
	if err != nil || len(snap.state.Stops) == 0 {
		return err
	}

	callCtx, release := h.calls.Begin(ctx, cmd.OrderID())
	defer release()

	plan, err := h.solve(callCtx, snap)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRouteRecalculationFailed, err)
	}

	stale := false
	err = inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		locked, err := lockOrder(ctx, uow, cmd.OrderID())
		if err != nil {
			return err
		}
		err = locked.order.ApplyPlan(cmd.View(), plan, snap.state.StructureVersion, h.clock.Now())
		if errors.Is(err, order.ErrStalePlan) {
			stale = true
			return nil
		}
		if err != nil {
			return err
		}

		if active := locked.missions.Active(); cmd.View() == route.DriverView && active != nil {
			if err = active.ApplyPlan(plan); err != nil {
				return err
			}
			if err = uow.MissionRepository().Update(ctx, active); err != nil {
				return err
			}
		}
		return uow.OrderRepository().Update(ctx, locked.order)
	})
	if err != nil {
		return err
	}

	if stale {
		h.recorder.PlanDiscarded(cmd.View())
		return nil
	}
	h.recorder.PlanApplied(cmd.View())
	return nil
}

func (h RecalculateRouteCommandHandler) snapshot(ctx context.Context, cmd RecalculateRouteCommand) (routeSnapshot, error) {
	var snap routeSnapshot
	err := inUnitOfWork(ctx, h.uowFactory, func(uow ports.UnitOfWork) error {
		o, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
		if err != nil {
			return err
		}

		snap.vehicle = route.Vehicle{ID: o.ID().String(), Profile: defaultVehicleProfile}
		var start *kernel.GeoPoint
		if driverID := o.AssignedDriverID(); driverID != nil {
			d, err := uow.DriverRepository().Get(ctx, *driverID)
			if err != nil {
				return err
			}
			snap.vehicle = d.Vehicle()

			latest, err := h.locations.Latest(ctx, *driverID)
			if err != nil {
				return err
			}
			if latest != nil {
				start = &latest.Point
			}
		}

		snap.state = o.VirtualState(cmd.View(), start)
		return nil
	})
	return snap, err
}

// solve calls the optimizer and retries once without flexible stops. A cancelled
// call (order deleted or reassigned) is not retried.
func (h RecalculateRouteCommandHandler) solve(ctx context.Context, snap routeSnapshot) (route.Plan, error) {
	plan, err := h.calculate(ctx, snap.state, snap.vehicle)
	if err == nil {
		return plan, nil
	}
	if ctx.Err() != nil {
		return route.Plan{}, err
	}

	simplified, ok := snap.state.Simplified()
	if !ok {
		return route.Plan{}, err
	}
	plan, retryErr := h.calculate(ctx, simplified, snap.vehicle)
	if retryErr != nil {
		return route.Plan{}, errors.Join(err, retryErr)
	}
	return plan, nil
}

func (h RecalculateRouteCommandHandler) calculate(
	ctx context.Context, state route.VirtualState, vehicle route.Vehicle,
) (route.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.OptimizerTimeout())
	defer cancel()
	return h.optimizer.Calculate(ctx, state, vehicle)
}
