package order

import (
	"errors"
	"sort"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/pkg/errs"
)

// ErrStalePlan is returned when a plan was computed for an older structure.
var ErrStalePlan = errors.New("optimizer plan is stale")

type placedStop struct {
	stop      *Stop
	step      *Step
	stepOrder int
}

// DriverExecutionList is what the driver executes: canonical rows plus originals
// flagged for deletion. Sequenced stops come first by executionOrder, the rest
// follow in display order.
func (o *Order) DriverExecutionList() []*Stop {
	placed := o.driverStops()
	out := make([]*Stop, 0, len(placed))
	for _, p := range placed {
		out = append(out, p.stop)
	}
	return out
}

func (o *Order) driverStops() []placedStop {
	var placed []placedStop
	for _, st := range o.steps {
		if !st.revision.VisibleToDriver() {
			continue
		}
		for _, s := range st.stops {
			if s.revision.VisibleToDriver() {
				placed = append(placed, placedStop{stop: s, step: st, stepOrder: st.displayOrder})
			}
		}
	}
	sort.SliceStable(placed, func(i, j int) bool {
		a, b := placed[i].stop, placed[j].stop
		if (a.executionOrder == nil) != (b.executionOrder == nil) {
			return a.executionOrder != nil
		}
		if a.executionOrder != nil && *a.executionOrder != *b.executionOrder {
			return *a.executionOrder < *b.executionOrder
		}
		if placed[i].stepOrder != placed[j].stepOrder {
			return placed[i].stepOrder < placed[j].stepOrder
		}
		return a.displayOrder < b.displayOrder
	})
	return placed
}

// clientStops is the intended future structure: replacements and additions
// substituted, deletions hidden.
func (o *Order) clientStops() []placedStop {
	var placed []placedStop
	for _, st := range o.steps {
		if !st.revision.VisibleToClient() {
			continue
		}
		children := st.stops
		if st.revision.Kind() == PendingReplacement {
			if orig := o.findStep(*st.revision.originalID); orig != nil {
				children = append(append([]*Stop{}, orig.stops...), st.stops...)
			}
		}
		for _, s := range children {
			if s.revision.VisibleToClient() {
				placed = append(placed, placedStop{stop: s, step: st, stepOrder: st.displayOrder})
			}
		}
	}
	sort.SliceStable(placed, func(i, j int) bool {
		if placed[i].stepOrder != placed[j].stepOrder {
			return placed[i].stepOrder < placed[j].stepOrder
		}
		return placed[i].stop.displayOrder < placed[j].stop.displayOrder
	})
	return placed
}

// VirtualState snapshots the order for the optimizer. Executed stops are excluded;
// start is the driver's last known position, nil when unknown.
func (o *Order) VirtualState(view route.View, start *kernel.GeoPoint) route.VirtualState {
	placed := o.driverStops()
	if view == route.ClientView {
		placed = o.clientStops()
	}
	vs := route.VirtualState{
		OrderID:          o.id,
		View:             view,
		StructureVersion: o.structureVersion,
		Start:            start,
	}
	for _, p := range placed {
		if p.stop.IsTerminal() {
			continue
		}
		vs.Stops = append(vs.Stops, route.VirtualStop{
			StopID:         p.stop.id,
			StepID:         p.step.id,
			Kind:           p.stop.kind.String(),
			Address:        p.stop.address,
			Point:          p.stop.point,
			ServiceSeconds: p.stop.serviceSeconds,
			Flexible:       p.stop.flexible,
			Linked:         p.step.linked,
			DisplayOrder:   p.stop.displayOrder,
		})
	}
	return vs
}

// ApplyPlan writes an optimizer result computed for structureVersion. Only a DRIVER
// view plan changes executionOrder; a CLIENT view plan refreshes the ETA and geometry.
// Driver stops the plan left out keep their relative order after the sequenced ones.
func (o *Order) ApplyPlan(view route.View, plan route.Plan, structureVersion int64, now time.Time) error {
	if structureVersion != o.structureVersion {
		return ErrStalePlan
	}

	if view == route.DriverView {
		list := o.DriverExecutionList()
		byID := make(map[kernel.UUID]*Stop, len(list))
		for _, s := range list {
			byID[s.id] = s
		}
		for _, seq := range plan.Sequence {
			if s, ok := byID[seq.StopID]; !ok || s.IsTerminal() {
				return errs.NewInvariantViolationError("plan", "stop "+seq.StopID.String()+" is not executable")
			}
		}
		// Executed stops keep their positions ahead of the new sequence.
		position := 0
		for _, s := range list {
			if s.IsTerminal() && s.executionOrder != nil && *s.executionOrder > position {
				position = *s.executionOrder
			}
		}
		for _, seq := range plan.Sequence {
			position++
			p := position
			byID[seq.StopID].executionOrder = &p
		}
		for _, s := range list {
			if !plan.Covers(s.id) && !s.IsTerminal() {
				position++
				p := position
				s.executionOrder = &p
			}
		}
	}

	arrival := now.Add(time.Duration(plan.DurationSeconds) * time.Second)
	o.eta = ETA{DurationSeconds: plan.DurationSeconds, DistanceMeters: plan.DistanceMeters, ArrivalAt: &arrival}
	o.routeGeometry = plan.Geometry
	o.raiseForDriver(now, EventRouteUpdated, true, map[string]any{
		"view":            view.String(),
		"durationSeconds": plan.DurationSeconds,
		"distanceMeters":  plan.DistanceMeters,
	})
	return nil
}

// Origin is the point of the first stop still to execute.
func (o *Order) Origin() (kernel.GeoPoint, error) {
	for _, s := range o.DriverExecutionList() {
		if !s.IsTerminal() {
			return s.point, nil
		}
	}
	return kernel.GeoPoint{}, errs.NewRuleViolationError(ReasonNoStops, "order has nothing to execute")
}

// Destination is the point of the last stop of the execution list.
func (o *Order) Destination() (kernel.GeoPoint, error) {
	list := o.DriverExecutionList()
	if len(list) == 0 {
		return kernel.GeoPoint{}, errs.NewRuleViolationError(ReasonNoStops, "order has nothing to execute")
	}
	return list[len(list)-1].point, nil
}

// UnfinishedStepIDs are the canonical steps a new mission binds to.
func (o *Order) UnfinishedStepIDs() []kernel.UUID {
	var ids []kernel.UUID
	for _, st := range o.steps {
		if !st.revision.VisibleToDriver() {
			continue
		}
		if s := st.Status(); s == StepCompleted || s == StepFailed {
			continue
		}
		ids = append(ids, st.id)
	}
	return ids
}
