package order

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// Waypoint is one raw location of an order request. Waypoints sharing a GroupKey
// become one Step; each waypoint becomes one Stop carrying one Action.
type Waypoint struct {
	GroupKey       string
	Kind           Kind
	Address        string
	Point          kernel.GeoPoint
	ServiceSeconds int
	Flexible       bool
	// Linked marks the whole group as linked when any of its waypoints sets it.
	Linked      bool
	Description string
	// Proofs overrides the default verification when non-nil; an empty slice means none.
	Proofs []ProofType
}

func (w Waypoint) validate(i int) error {
	var joined error
	if w.Kind == UnknownKind {
		joined = errors.Join(joined, errs.NewValueIsRequiredError(fmt.Sprintf("waypoints[%d].kind", i)))
	}
	if err := w.Point.Validate(); err != nil {
		joined = errors.Join(joined, errs.NewValueIsInvalidErrorWithCause(fmt.Sprintf("waypoints[%d].point", i), err))
	}
	if w.ServiceSeconds < 0 {
		joined = errors.Join(joined, errs.NewValueIsOutOfRangeError(
			fmt.Sprintf("waypoints[%d].serviceSeconds", i), w.ServiceSeconds, 0, "unbounded"))
	}
	return joined
}

// Decompose builds the order structure from waypoints. Groups become steps in order
// of first appearance, stops are numbered sequentially inside each step.
func (o *Order) Decompose(waypoints []Waypoint, policy ProofPolicy, now time.Time) error {
	if len(o.steps) > 0 {
		return errs.NewInvariantViolationError("order "+o.id.String(), "order is already decomposed")
	}
	if len(waypoints) == 0 {
		return errs.NewValueIsRequiredError("waypoints")
	}
	var joined error
	for i, w := range waypoints {
		joined = errors.Join(joined, w.validate(i))
	}
	if joined != nil {
		return joined
	}

	groups := make(map[string]*Step)
	var steps []*Step
	for _, w := range waypoints {
		st, ok := groups[w.GroupKey]
		if !ok {
			st = newStep(len(steps)+1, false, CanonicalRevision())
			groups[w.GroupKey] = st
			steps = append(steps, st)
		}
		st.linked = st.linked || w.Linked

		stop, err := buildStop(st.id, w, len(st.stops)+1, CanonicalRevision(), policy)
		if err != nil {
			return err
		}
		st.stops = append(st.stops, stop)
	}

	o.steps = steps
	o.structureVersion++
	o.raise(now, EventStructureChanged, nil, true, map[string]any{"steps": len(steps), "stops": len(waypoints)})
	return nil
}

// buildStop creates a stop with its single action and proofs, all carrying rev.
func buildStop(stepID kernel.UUID, w Waypoint, displayOrder int, rev Revision, policy ProofPolicy) (*Stop, error) {
	stop := newStop(stepID, w, displayOrder, rev)
	proofs, err := policy.NewProofs(w.Proofs)
	if err != nil {
		return nil, err
	}
	stop.actions = []*Action{newAction(stop.id, w.Kind, w.Description, proofs, rev)}
	return stop, nil
}
