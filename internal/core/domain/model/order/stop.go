package order

import (
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// StopStatus is PENDING → ARRIVED → COMPLETED | FAILED, with FAILED also reachable
// from PENDING.
type StopStatus int

const (
	UnknownStopStatus StopStatus = iota
	StopPending
	StopArrived
	StopCompleted
	StopFailed
)

func (s StopStatus) String() string {
	switch s {
	case StopPending:
		return "PENDING"
	case StopArrived:
		return "ARRIVED"
	case StopCompleted:
		return "COMPLETED"
	case StopFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func ParseStopStatus(s string) (StopStatus, error) {
	for _, st := range []StopStatus{StopPending, StopArrived, StopCompleted, StopFailed} {
		if st.String() == s {
			return st, nil
		}
	}
	return UnknownStopStatus, errs.NewValueIsInvalidErrorWithCause("stop status",
		fmt.Errorf("%q is not a valid stop status", s))
}

// StopChanges carries the fields UpdateStop may modify. Nil fields are left as is.
type StopChanges struct {
	Address        *string
	Point          *kernel.GeoPoint
	ServiceSeconds *int
	Flexible       *bool
}

func (c StopChanges) validate() error {
	if c.Point != nil {
		if err := c.Point.Validate(); err != nil {
			return err
		}
	}
	if c.ServiceSeconds != nil && *c.ServiceSeconds < 0 {
		return errs.NewValueIsOutOfRangeError("service seconds", *c.ServiceSeconds, 0, "unbounded")
	}
	return nil
}

// Stop is a physical location visit.
type Stop struct {
	id             kernel.UUID
	stepID         kernel.UUID
	kind           Kind
	address        string
	point          kernel.GeoPoint
	serviceSeconds int
	flexible       bool
	displayOrder   int
	executionOrder *int
	status         StopStatus
	arrivedAt      *time.Time
	completedAt    *time.Time
	failureReason  string
	revision       Revision
	actions        []*Action
}

func newStop(stepID kernel.UUID, wp Waypoint, displayOrder int, rev Revision) *Stop {
	return &Stop{
		id:             kernel.NewUUID(),
		stepID:         stepID,
		kind:           wp.Kind,
		address:        wp.Address,
		point:          wp.Point,
		serviceSeconds: wp.ServiceSeconds,
		flexible:       wp.Flexible,
		displayOrder:   displayOrder,
		status:         StopPending,
		revision:       rev,
	}
}

type RestoreStopParams struct {
	ID             kernel.UUID
	StepID         kernel.UUID
	Kind           Kind
	Address        string
	Point          kernel.GeoPoint
	ServiceSeconds int
	Flexible       bool
	DisplayOrder   int
	ExecutionOrder *int
	Status         StopStatus
	ArrivedAt      *time.Time
	CompletedAt    *time.Time
	FailureReason  string
	Revision       Revision
	Actions        []*Action
}

func RestoreStop(p RestoreStopParams) (*Stop, error) {
	if err := p.ID.Validate(); err != nil {
		return nil, err
	}
	if err := p.Point.Validate(); err != nil {
		return nil, err
	}
	if p.Status == UnknownStopStatus {
		return nil, errs.NewValueIsRequiredError("stop status")
	}
	for _, a := range p.Actions {
		if !a.stopID.IsEqual(p.ID) {
			return nil, errs.NewCorruptionError("stop "+p.ID.String(), "action "+a.id.String()+" belongs to another stop")
		}
	}
	return &Stop{
		id:             p.ID,
		stepID:         p.StepID,
		kind:           p.Kind,
		address:        p.Address,
		point:          p.Point,
		serviceSeconds: p.ServiceSeconds,
		flexible:       p.Flexible,
		displayOrder:   p.DisplayOrder,
		executionOrder: p.ExecutionOrder,
		status:         p.Status,
		arrivedAt:      p.ArrivedAt,
		completedAt:    p.CompletedAt,
		failureReason:  p.FailureReason,
		revision:       p.Revision,
		actions:        p.Actions,
	}, nil
}

func (s *Stop) ID() kernel.UUID         { return s.id }
func (s *Stop) StepID() kernel.UUID     { return s.stepID }
func (s *Stop) Kind() Kind              { return s.kind }
func (s *Stop) Address() string         { return s.address }
func (s *Stop) Point() kernel.GeoPoint  { return s.point }
func (s *Stop) ServiceSeconds() int     { return s.serviceSeconds }
func (s *Stop) Flexible() bool          { return s.flexible }
func (s *Stop) DisplayOrder() int       { return s.displayOrder }
func (s *Stop) ExecutionOrder() *int    { return s.executionOrder }
func (s *Stop) Status() StopStatus      { return s.status }
func (s *Stop) ArrivedAt() *time.Time   { return s.arrivedAt }
func (s *Stop) CompletedAt() *time.Time { return s.completedAt }
func (s *Stop) FailureReason() string   { return s.failureReason }
func (s *Stop) Revision() Revision      { return s.revision }

func (s *Stop) Actions() []*Action {
	out := make([]*Action, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *Stop) IsTerminal() bool {
	return s.status == StopCompleted || s.status == StopFailed
}

func (s *Stop) arrive(now time.Time) error {
	if s.status != StopPending {
		return errs.NewRuleViolationError(ReasonInvalidTransition,
			fmt.Sprintf("stop %s is %s, cannot arrive", s.id, s.status))
	}
	t := now
	s.status = StopArrived
	s.arrivedAt = &t
	return nil
}

// complete requires every driver-visible action to be completed. Actions without
// proofs complete with the stop.
func (s *Stop) complete(now time.Time) error {
	if s.status != StopArrived {
		return errs.NewRuleViolationError(ReasonStopNotArrived,
			fmt.Sprintf("stop %s is %s", s.id, s.status))
	}
	for _, a := range s.actions {
		if !a.revision.VisibleToDriver() {
			continue
		}
		a.completeIfVerified(now)
		if a.status != ActionCompleted {
			return errs.NewRuleViolationError(ReasonProofsPending,
				fmt.Sprintf("action %s has unverified proofs", a.id))
		}
	}
	t := now
	s.status = StopCompleted
	s.completedAt = &t
	return nil
}

func (s *Stop) fail(reason string, now time.Time) error {
	if s.IsTerminal() {
		return errs.NewRuleViolationError(ReasonInvalidTransition,
			fmt.Sprintf("stop %s is already %s", s.id, s.status))
	}
	for _, a := range s.actions {
		a.fail()
	}
	t := now
	s.status = StopFailed
	s.completedAt = &t
	s.failureReason = reason
	return nil
}

func (s *Stop) apply(c StopChanges) {
	if c.Address != nil {
		s.address = *c.Address
	}
	if c.Point != nil {
		s.point = *c.Point
	}
	if c.ServiceSeconds != nil {
		s.serviceSeconds = *c.ServiceSeconds
	}
	if c.Flexible != nil {
		s.flexible = *c.Flexible
	}
}

// replacement returns a pending copy of the stop and flags the stop PendingDeletion.
// Actions stay on the original until the merge re-parents them.
func (s *Stop) replacement() *Stop {
	r := &Stop{
		id:             kernel.NewUUID(),
		stepID:         s.stepID,
		kind:           s.kind,
		address:        s.address,
		point:          s.point,
		serviceSeconds: s.serviceSeconds,
		flexible:       s.flexible,
		displayOrder:   s.displayOrder,
		executionOrder: s.executionOrder,
		status:         StopPending,
		revision:       ReplacementOf(s.id),
	}
	s.revision = DeletionRevision()
	return r
}

func (s *Stop) findAction(id kernel.UUID) *Action {
	for _, a := range s.actions {
		if a.id.IsEqual(id) {
			return a
		}
	}
	return nil
}

func (s *Stop) replacementOf(id kernel.UUID) *Action {
	for _, a := range s.actions {
		if a.revision.IsReplacementOf(id) {
			return a
		}
	}
	return nil
}

func (s *Stop) removeAction(id kernel.UUID) {
	kept := s.actions[:0]
	for _, a := range s.actions {
		if !a.id.IsEqual(id) {
			kept = append(kept, a)
		}
	}
	s.actions = kept
}
