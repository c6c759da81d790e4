package order

import (
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// ActionStatus is PENDING → COMPLETED | FAILED.
type ActionStatus int

const (
	UnknownActionStatus ActionStatus = iota
	ActionPending
	ActionCompleted
	ActionFailed
)

func (s ActionStatus) String() string {
	switch s {
	case ActionPending:
		return "PENDING"
	case ActionCompleted:
		return "COMPLETED"
	case ActionFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func ParseActionStatus(s string) (ActionStatus, error) {
	for _, st := range []ActionStatus{ActionPending, ActionCompleted, ActionFailed} {
		if st.String() == s {
			return st, nil
		}
	}
	return UnknownActionStatus, errs.NewValueIsInvalidErrorWithCause("action status",
		fmt.Errorf("%q is not a valid action status", s))
}

// Action is the work performed at a stop.
type Action struct {
	id          kernel.UUID
	stopID      kernel.UUID
	kind        Kind
	description string
	status      ActionStatus
	proofs      []*ActionProof
	revision    Revision
	completedAt *time.Time
}

func newAction(stopID kernel.UUID, kind Kind, description string, proofs []*ActionProof, rev Revision) *Action {
	return &Action{
		id:          kernel.NewUUID(),
		stopID:      stopID,
		kind:        kind,
		description: description,
		status:      ActionPending,
		proofs:      proofs,
		revision:    rev,
	}
}

type RestoreActionParams struct {
	ID          kernel.UUID
	StopID      kernel.UUID
	Kind        Kind
	Description string
	Status      ActionStatus
	Proofs      []*ActionProof
	Revision    Revision
	CompletedAt *time.Time
}

func RestoreAction(p RestoreActionParams) (*Action, error) {
	if err := p.ID.Validate(); err != nil {
		return nil, err
	}
	if p.Kind == UnknownKind {
		return nil, errs.NewValueIsRequiredError("action kind")
	}
	if p.Status == UnknownActionStatus {
		return nil, errs.NewValueIsRequiredError("action status")
	}
	return &Action{
		id:          p.ID,
		stopID:      p.StopID,
		kind:        p.Kind,
		description: p.Description,
		status:      p.Status,
		proofs:      p.Proofs,
		revision:    p.Revision,
		completedAt: p.CompletedAt,
	}, nil
}

func (a *Action) ID() kernel.UUID         { return a.id }
func (a *Action) StopID() kernel.UUID     { return a.stopID }
func (a *Action) Kind() Kind              { return a.kind }
func (a *Action) Description() string     { return a.description }
func (a *Action) Status() ActionStatus    { return a.status }
func (a *Action) Revision() Revision      { return a.revision }
func (a *Action) CompletedAt() *time.Time { return a.completedAt }

func (a *Action) Proofs() []*ActionProof {
	out := make([]*ActionProof, len(a.proofs))
	copy(out, a.proofs)
	return out
}

func (a *Action) IsTerminal() bool {
	return a.status == ActionCompleted || a.status == ActionFailed
}

// AllProofsVerified is vacuously true for an action without proofs.
func (a *Action) AllProofsVerified() bool {
	for _, p := range a.proofs {
		if !p.IsVerified() {
			return false
		}
	}
	return true
}

func (a *Action) findProof(id kernel.UUID) (*ActionProof, error) {
	for _, p := range a.proofs {
		if p.id.IsEqual(id) {
			return p, nil
		}
	}
	return nil, errs.NewObjectNotFoundError("proofID", id)
}

func (a *Action) submitProof(proofID kernel.UUID, value string, now time.Time, maxOTP int) (ProofOutcome, error) {
	if a.IsTerminal() {
		return 0, errs.NewRuleViolationError(ReasonProofSettled, fmt.Sprintf("action %s is %s", a.id, a.status))
	}
	proof, err := a.findProof(proofID)
	if err != nil {
		return 0, err
	}
	outcome, err := proof.submit(value, now, maxOTP)
	if err != nil {
		return 0, err
	}
	a.completeIfVerified(now)
	return outcome, nil
}

func (a *Action) verifyProof(proofID kernel.UUID, approved bool, now time.Time) (ProofOutcome, error) {
	if a.IsTerminal() {
		return 0, errs.NewRuleViolationError(ReasonProofSettled, fmt.Sprintf("action %s is %s", a.id, a.status))
	}
	proof, err := a.findProof(proofID)
	if err != nil {
		return 0, err
	}
	outcome, err := proof.verify(approved, now)
	if err != nil {
		return 0, err
	}
	a.completeIfVerified(now)
	return outcome, nil
}

func (a *Action) completeIfVerified(now time.Time) {
	if a.status == ActionPending && a.AllProofsVerified() {
		t := now
		a.status = ActionCompleted
		a.completedAt = &t
	}
}

func (a *Action) fail() {
	if a.status == ActionPending {
		a.status = ActionFailed
	}
}

// replacement copies the action as a pending replacement; the original is flagged.
func (a *Action) replacement() *Action {
	proofs := make([]*ActionProof, 0, len(a.proofs))
	for _, p := range a.proofs {
		proofs = append(proofs, p.clone())
	}
	r := newAction(a.stopID, a.kind, a.description, proofs, ReplacementOf(a.id))
	a.revision = DeletionRevision()
	return r
}
