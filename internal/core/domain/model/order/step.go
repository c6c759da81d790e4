package order

import (
	"fmt"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// StepStatus is derived from the step's driver-visible stops.
type StepStatus int

const (
	StepPending StepStatus = iota + 1
	StepInProgress
	StepCompleted
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "PENDING"
	case StepInProgress:
		return "IN_PROGRESS"
	case StepCompleted:
		return "COMPLETED"
	case StepFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Step is a logical group of stops. Linked steps are executed contiguously by one
// driver.
type Step struct {
	id           kernel.UUID
	displayOrder int
	linked       bool
	revision     Revision
	stops        []*Stop
}

func newStep(displayOrder int, linked bool, rev Revision) *Step {
	return &Step{id: kernel.NewUUID(), displayOrder: displayOrder, linked: linked, revision: rev}
}

type RestoreStepParams struct {
	ID           kernel.UUID
	DisplayOrder int
	Linked       bool
	Revision     Revision
	Stops        []*Stop
}

func RestoreStep(p RestoreStepParams) (*Step, error) {
	if err := p.ID.Validate(); err != nil {
		return nil, err
	}
	for _, s := range p.Stops {
		if !s.stepID.IsEqual(p.ID) {
			return nil, errs.NewCorruptionError("step "+p.ID.String(),
				fmt.Sprintf("stop %s belongs to step %s", s.id, s.stepID))
		}
	}
	return &Step{
		id:           p.ID,
		displayOrder: p.DisplayOrder,
		linked:       p.Linked,
		revision:     p.Revision,
		stops:        p.Stops,
	}, nil
}

func (s *Step) ID() kernel.UUID    { return s.id }
func (s *Step) DisplayOrder() int  { return s.displayOrder }
func (s *Step) Linked() bool       { return s.linked }
func (s *Step) Revision() Revision { return s.revision }

func (s *Step) Stops() []*Stop {
	out := make([]*Stop, len(s.stops))
	copy(out, s.stops)
	return out
}

func (s *Step) Status() StepStatus {
	var total, completed, failed, started int
	for _, st := range s.stops {
		if !st.revision.VisibleToDriver() {
			continue
		}
		total++
		switch st.status {
		case StopCompleted:
			completed++
			started++
		case StopFailed:
			failed++
			started++
		case StopArrived:
			started++
		case StopPending, UnknownStopStatus:
		}
	}
	switch {
	case total == 0 || started == 0:
		return StepPending
	case completed == total:
		return StepCompleted
	case completed+failed == total:
		return StepFailed
	default:
		return StepInProgress
	}
}

// isPartiallyExecuted reports a step some of whose stops ran and some did not.
func (s *Step) isPartiallyExecuted() bool {
	return s.Status() == StepInProgress
}

func (s *Step) hasExecutedStop() bool {
	for _, st := range s.stops {
		if st.status != StopPending {
			return true
		}
	}
	return false
}

func (s *Step) findStop(id kernel.UUID) *Stop {
	for _, st := range s.stops {
		if st.id.IsEqual(id) {
			return st
		}
	}
	return nil
}

func (s *Step) replacementOf(id kernel.UUID) *Stop {
	for _, st := range s.stops {
		if st.revision.IsReplacementOf(id) {
			return st
		}
	}
	return nil
}

func (s *Step) removeStop(id kernel.UUID) {
	kept := s.stops[:0]
	for _, st := range s.stops {
		if !st.id.IsEqual(id) {
			kept = append(kept, st)
		}
	}
	s.stops = kept
}

func (s *Step) maxStopDisplayOrder() int {
	maxOrder := 0
	for _, st := range s.stops {
		if st.displayOrder > maxOrder {
			maxOrder = st.displayOrder
		}
	}
	return maxOrder
}

// replacement returns a pending copy of the step; stops stay on the original until
// the merge re-parents them.
func (s *Step) replacement() *Step {
	r := &Step{
		id:           kernel.NewUUID(),
		displayOrder: s.displayOrder,
		linked:       s.linked,
		revision:     ReplacementOf(s.id),
	}
	s.revision = DeletionRevision()
	return r
}

func (s *Step) arrivedStop() *Stop {
	for _, st := range s.stops {
		if st.status == StopArrived {
			return st
		}
	}
	return nil
}
