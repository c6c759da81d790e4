package order

import (
	"sort"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// MergeResult describes what a checkpoint merge changed, so the active mission can be
// rebound and the route recalculated.
type MergeResult struct {
	Changed bool
	// ReplacedSteps maps a purged original step to its promoted replacement.
	ReplacedSteps map[kernel.UUID]kernel.UUID
	AddedSteps    []kernel.UUID
	RemovedSteps  []kernel.UUID
}

// MergeCheckpoint promotes pending rows and purges delete-required rows. It runs only
// when no stop is ARRIVED. Rows whose original already executed keep the original:
// executed history is never rewritten. A second call is a no-op.
func (o *Order) MergeCheckpoint(now time.Time) (MergeResult, error) {
	for _, st := range o.steps {
		if s := st.arrivedStop(); s != nil {
			return MergeResult{}, errs.NewInvariantViolationError("order "+o.id.String(),
				"stop "+s.id.String()+" is ARRIVED; merge waits for a checkpoint")
		}
	}
	if !o.HasPendingChanges() {
		return MergeResult{}, nil
	}

	res := MergeResult{ReplacedSteps: map[kernel.UUID]kernel.UUID{}}
	if err := o.mergeSteps(&res); err != nil {
		return MergeResult{}, err
	}
	added := map[kernel.UUID]bool{}
	for _, st := range o.steps {
		if err := mergeStops(st, added); err != nil {
			return MergeResult{}, err
		}
		for _, s := range st.stops {
			if err := mergeActions(s); err != nil {
				return MergeResult{}, err
			}
		}
	}
	o.renumber(added)

	res.Changed = true
	o.structureVersion++
	o.raiseForDriver(now, EventStructureMerged, true, map[string]any{
		"addedSteps":    len(res.AddedSteps),
		"removedSteps":  len(res.RemovedSteps),
		"replacedSteps": len(res.ReplacedSteps),
	})
	return res, nil
}

func (o *Order) mergeSteps(res *MergeResult) error {
	replaced := map[kernel.UUID]bool{}
	for _, st := range o.steps {
		if st.revision.Kind() != PendingReplacement {
			continue
		}
		orig := o.findStep(*st.revision.originalID)
		if orig == nil {
			return errs.NewCorruptionError("step "+st.id.String(), "replacement without original")
		}
		for _, s := range orig.stops {
			s.stepID = st.id
		}
		st.stops = append(orig.stops, st.stops...)
		orig.stops = nil
		st.revision = CanonicalRevision()
		replaced[orig.id] = true
		res.ReplacedSteps[orig.id] = st.id
	}

	kept := make([]*Step, 0, len(o.steps))
	for _, st := range o.steps {
		switch {
		case replaced[st.id]:
			continue
		case st.revision.Kind() == PendingAddition:
			st.revision = CanonicalRevision()
			res.AddedSteps = append(res.AddedSteps, st.id)
		case st.revision.Kind() == PendingDeletion:
			if !st.hasExecutedStop() {
				res.RemovedSteps = append(res.RemovedSteps, st.id)
				continue
			}
			// Executed stops stay; the rest of the step goes.
			st.revision = CanonicalRevision()
			executed := st.stops[:0]
			for _, s := range st.stops {
				if s.status != StopPending {
					executed = append(executed, s)
				}
			}
			st.stops = executed
		}
		kept = append(kept, st)
	}
	o.steps = kept
	return nil
}

func mergeStops(st *Step, added map[kernel.UUID]bool) error {
	drop := map[kernel.UUID]bool{}
	for _, s := range st.stops {
		if s.revision.Kind() != PendingReplacement {
			continue
		}
		orig := st.findStop(*s.revision.originalID)
		if orig == nil {
			return errs.NewCorruptionError("stop "+s.id.String(), "replacement without original")
		}
		if orig.IsTerminal() {
			drop[s.id] = true
			orig.revision = CanonicalRevision()
			continue
		}
		for _, a := range orig.actions {
			a.stopID = s.id
		}
		s.actions = append(orig.actions, s.actions...)
		orig.actions = nil
		s.revision = CanonicalRevision()
		drop[orig.id] = true
	}

	kept := make([]*Stop, 0, len(st.stops))
	for _, s := range st.stops {
		if drop[s.id] {
			continue
		}
		switch s.revision.Kind() {
		case PendingAddition:
			s.revision = CanonicalRevision()
			added[s.id] = true
		case PendingDeletion:
			if !s.IsTerminal() {
				continue
			}
			s.revision = CanonicalRevision()
		case Canonical, PendingReplacement:
		}
		kept = append(kept, s)
	}
	st.stops = kept
	return nil
}

func mergeActions(s *Stop) error {
	drop := map[kernel.UUID]bool{}
	for _, a := range s.actions {
		if a.revision.Kind() != PendingReplacement {
			continue
		}
		orig := s.findAction(*a.revision.originalID)
		if orig == nil {
			return errs.NewCorruptionError("action "+a.id.String(), "replacement without original")
		}
		if orig.IsTerminal() {
			drop[a.id] = true
			orig.revision = CanonicalRevision()
			continue
		}
		a.revision = CanonicalRevision()
		drop[orig.id] = true
	}

	kept := make([]*Action, 0, len(s.actions))
	for _, a := range s.actions {
		if drop[a.id] {
			continue
		}
		switch a.revision.Kind() {
		case PendingAddition:
			a.revision = CanonicalRevision()
		case PendingDeletion:
			if !a.IsTerminal() {
				continue
			}
			a.revision = CanonicalRevision()
		case Canonical, PendingReplacement:
		}
		kept = append(kept, a)
	}
	s.actions = kept
	return nil
}

// renumber makes displayOrder sequential again. A stop inserted after X shares its
// number with the stop that followed X and goes first.
func (o *Order) renumber(added map[kernel.UUID]bool) {
	sort.SliceStable(o.steps, func(i, j int) bool {
		return o.steps[i].displayOrder < o.steps[j].displayOrder
	})
	for i, st := range o.steps {
		st.displayOrder = i + 1
		sort.SliceStable(st.stops, func(a, b int) bool {
			x, y := st.stops[a], st.stops[b]
			if x.displayOrder != y.displayOrder {
				return x.displayOrder < y.displayOrder
			}
			return added[x.id] && !added[y.id]
		})
		for j, s := range st.stops {
			s.displayOrder = j + 1
		}
	}
}
