package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/mission"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
)

// ReasonNotAssignedDriver rejects execution calls from anyone but the assigned driver.
const ReasonNotAssignedDriver = "NOT_ASSIGNED_DRIVER"

// lockedOrder is an order together with all of its missions, row-locked.
type lockedOrder struct {
	order    *order.Order
	missions mission.Scope
}

func lockOrder(ctx context.Context, uow ports.UnitOfWork, orderID kernel.UUID) (lockedOrder, error) {
	o, err := uow.OrderRepository().GetForUpdate(ctx, orderID)
	if err != nil {
		return lockedOrder{}, err
	}
	missions, err := uow.MissionRepository().ListByOrderForUpdate(ctx, orderID)
	if err != nil {
		return lockedOrder{}, err
	}
	return lockedOrder{order: o, missions: missions}, nil
}

func checkAssignedDriver(o *order.Order, driverID kernel.UUID) error {
	assigned := o.AssignedDriverID()
	if assigned == nil || !assigned.IsEqual(driverID) {
		return errs.NewRuleViolationError(ReasonNotAssignedDriver,
			fmt.Sprintf("driver %s does not execute order %s", driverID, o.ID()))
	}
	return nil
}

// applyMerge rebinds the missions after a checkpoint. New steps go to the active
// mission, whose destination follows the new last stop.
func applyMerge(o *order.Order, missions mission.Scope, res order.MergeResult) error {
	active := missions.Active()
	for _, m := range missions {
		if !m.IsActive() {
			continue
		}
		var added []kernel.UUID
		if m == active {
			added = res.AddedSteps
		}
		m.Rebind(res.ReplacedSteps, added, res.RemovedSteps)
	}
	if active == nil {
		return nil
	}
	destination, err := o.Destination()
	if err != nil {
		return err
	}
	return active.SetDestination(destination)
}

// applyOutcome carries a stop transition over to the missions and the driver,
// then persists everything but the order.
func applyOutcome(
	ctx context.Context, uow ports.UnitOfWork, locked lockedOrder, outcome order.ExecutionOutcome, now time.Time,
) error {
	o := locked.order
	active := locked.missions.Active()

	if outcome.MissionStarted && active != nil {
		if err := active.Start(now); err != nil {
			return err
		}
	}
	if outcome.Merge.Changed {
		if err := applyMerge(o, locked.missions, outcome.Merge); err != nil {
			return err
		}
	}
	if outcome.OrderFinished {
		for _, m := range locked.missions {
			if !m.IsActive() {
				continue
			}
			var err error
			if o.Status() == order.Completed {
				err = m.Complete(now)
			} else {
				err = m.Fail("ORDER_FAILED", now)
			}
			if err != nil {
				return err
			}
		}
	}

	missionRepo := uow.MissionRepository()
	for _, m := range locked.missions {
		if err := missionRepo.Update(ctx, m); err != nil {
			return err
		}
	}

	if outcome.OrderFinished && o.AssignedDriverID() != nil {
		return settleDriver(ctx, uow, *o.AssignedDriverID())
	}
	return nil
}

// settleDriver completes a pending work-mode transition once the driver has no
// active mission left.
func settleDriver(ctx context.Context, uow ports.UnitOfWork, driverID kernel.UUID) error {
	driverRepo := uow.DriverRepository()
	d, err := driverRepo.GetForUpdate(ctx, driverID)
	if err != nil {
		return err
	}
	active, err := uow.MissionRepository().ListActiveByDriver(ctx, driverID)
	if err != nil {
		return err
	}
	if !d.SettleWorkMode(len(active)) {
		return nil
	}
	return driverRepo.Update(ctx, d)
}

// freezeOnCorruption takes an order out of automatic processing when its state
// contradicts itself. err is returned unchanged.
func freezeOnCorruption(ctx context.Context, factory ports.UnitOfWorkFactory, orderID kernel.UUID, err error) error {
	if !errors.Is(err, errs.ErrDataCorruption) {
		return err
	}
	ferr := inUnitOfWork(ctx, factory, func(uow ports.UnitOfWork) error {
		return uow.OrderRepository().MarkFrozen(ctx, orderID, err.Error())
	})
	return errors.Join(err, ferr)
}
