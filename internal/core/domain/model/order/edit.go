package order

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// ExecutionScope tells the order which of its steps an ACCEPTED or IN_PROGRESS
// mission governs. Rows under governed steps are edited through shadow copies.
type ExecutionScope interface {
	GovernsStep(stepID kernel.UUID) bool
	HasActiveMission() bool
}

type noMission struct{}

func (noMission) GovernsStep(kernel.UUID) bool { return false }
func (noMission) HasActiveMission() bool       { return false }

// Edit is one structural patch operation.
type Edit interface {
	Name() string
	apply(o *Order, c editContext) error
}

type editContext struct {
	scope  ExecutionScope
	policy ProofPolicy
}

// ApplyStructuralEdit applies patch in order. On error the aggregate is left partially
// modified and must be discarded with its transaction.
func (o *Order) ApplyStructuralEdit(patch []Edit, scope ExecutionScope, policy ProofPolicy, now time.Time) error {
	if len(patch) == 0 {
		return errs.NewValueIsRequiredError("patch")
	}
	if o.status.IsFinal() {
		return errs.NewRuleViolationError(ReasonOrderFinished, fmt.Sprintf("order is %s", o.status))
	}
	if scope == nil {
		scope = noMission{}
	}
	c := editContext{scope: scope, policy: policy}
	for i, e := range patch {
		if err := e.apply(o, c); err != nil {
			return fmt.Errorf("edit %d (%s): %w", i, e.Name(), err)
		}
	}
	o.structureVersion++
	o.raise(now, EventStructureChanged, nil, true, map[string]any{
		"edits":             len(patch),
		"hasPendingChanges": o.HasPendingChanges(),
	})
	return nil
}

// AddStep appends a new step built from waypoints.
type AddStep struct {
	Waypoints []Waypoint
	Linked    bool
}

func (AddStep) Name() string { return "AddStep" }

func (e AddStep) apply(o *Order, c editContext) error {
	if len(e.Waypoints) == 0 {
		return errs.NewValueIsRequiredError("waypoints")
	}
	var joined error
	for i, w := range e.Waypoints {
		joined = errors.Join(joined, w.validate(i))
	}
	if joined != nil {
		return joined
	}

	rev := CanonicalRevision()
	if c.scope.HasActiveMission() {
		rev = AdditionRevision()
	}
	step := newStep(o.maxStepDisplayOrder()+1, e.Linked, rev)
	for i, w := range e.Waypoints {
		stop, err := buildStop(step.id, w, i+1, rev, c.policy)
		if err != nil {
			return err
		}
		step.stops = append(step.stops, stop)
	}
	o.steps = append(o.steps, step)
	return nil
}

// RemoveStep removes a step and everything under it.
type RemoveStep struct {
	StepID kernel.UUID
}

func (RemoveStep) Name() string { return "RemoveStep" }

func (e RemoveStep) apply(o *Order, c editContext) error {
	step := o.findStep(e.StepID)
	if step == nil {
		return errs.NewObjectNotFoundError("stepID", e.StepID)
	}

	switch step.revision.Kind() {
	case PendingAddition:
		o.removeStep(step.id)
		return nil
	case PendingReplacement:
		orig := o.findStep(*step.revision.originalID)
		if orig != nil {
			if err := checkStepRemovable(orig); err != nil {
				return err
			}
		}
		o.removeStep(step.id)
		return nil
	case PendingDeletion:
		if r := o.stepReplacementOf(step.id); r != nil {
			o.removeStep(r.id)
		}
		return nil
	case Canonical:
	}

	if err := checkStepRemovable(step); err != nil {
		return err
	}
	if o.governs(step, c.scope) {
		step.revision = DeletionRevision()
		return nil
	}
	o.removeStep(step.id)
	return nil
}

// UpdateStep changes whether the step is linked.
type UpdateStep struct {
	StepID kernel.UUID
	Linked bool
}

func (UpdateStep) Name() string { return "UpdateStep" }

func (e UpdateStep) apply(o *Order, c editContext) error {
	step := o.findStep(e.StepID)
	if step == nil {
		return errs.NewObjectNotFoundError("stepID", e.StepID)
	}

	switch step.revision.Kind() {
	case PendingAddition, PendingReplacement:
		step.linked = e.Linked
		return nil
	case PendingDeletion:
		r := o.stepReplacementOf(step.id)
		if r == nil {
			return errs.NewInvariantViolationError("step "+step.id.String(), "step is being removed")
		}
		r.linked = e.Linked
		return nil
	case Canonical:
	}

	if arrived := step.arrivedStop(); arrived != nil {
		return errs.NewInvariantViolationError("step "+step.id.String(),
			fmt.Sprintf("stop %s is under an active action", arrived.id))
	}
	if !o.governs(step, c.scope) {
		step.linked = e.Linked
		return nil
	}
	r := step.replacement()
	r.linked = e.Linked
	o.steps = append(o.steps, r)
	return nil
}

// AddStop inserts a stop into a step, after AfterStopID or at the end.
type AddStop struct {
	StepID      kernel.UUID
	AfterStopID *kernel.UUID
	Waypoint    Waypoint
}

func (AddStop) Name() string { return "AddStop" }

func (e AddStop) apply(o *Order, c editContext) error {
	if err := e.Waypoint.validate(0); err != nil {
		return err
	}
	step, err := o.anchorStep(e.StepID)
	if err != nil {
		return err
	}

	position := step.maxStopDisplayOrder() + 1
	if e.AfterStopID != nil {
		after := step.findStop(*e.AfterStopID)
		if after == nil {
			return errs.NewObjectNotFoundError("afterStopID", *e.AfterStopID)
		}
		position = after.displayOrder + 1
	}

	pending := step.revision.Kind() == PendingAddition || o.governs(step, c.scope)
	rev := CanonicalRevision()
	if pending {
		rev = AdditionRevision()
	}
	stop, err := buildStop(step.id, e.Waypoint, position, rev, c.policy)
	if err != nil {
		return err
	}
	if !pending {
		for _, s := range step.stops {
			if s.displayOrder >= position {
				s.displayOrder++
			}
		}
	}
	step.stops = append(step.stops, stop)
	return nil
}

// UpdateStop changes address, point, service time or flexibility of a stop.
type UpdateStop struct {
	StopID  kernel.UUID
	Changes StopChanges
}

func (UpdateStop) Name() string { return "UpdateStop" }

func (e UpdateStop) apply(o *Order, c editContext) error {
	if err := e.Changes.validate(); err != nil {
		return err
	}
	step, stop := o.locateStop(e.StopID)
	if stop == nil {
		return errs.NewObjectNotFoundError("stopID", e.StopID)
	}

	switch stop.revision.Kind() {
	case PendingAddition, PendingReplacement:
		stop.apply(e.Changes)
		return nil
	case PendingDeletion:
		r := step.replacementOf(stop.id)
		if r == nil {
			return errs.NewInvariantViolationError("stop "+stop.id.String(), "stop is being removed")
		}
		r.apply(e.Changes)
		return nil
	case Canonical:
	}

	if err := checkStopEditable(stop); err != nil {
		return err
	}
	if step.revision.Kind() == PendingAddition || !o.governs(step, c.scope) {
		stop.apply(e.Changes)
		return nil
	}
	r := stop.replacement()
	r.apply(e.Changes)
	step.stops = append(step.stops, r)
	return nil
}

// RemoveStop removes a stop and its actions.
type RemoveStop struct {
	StopID kernel.UUID
}

func (RemoveStop) Name() string { return "RemoveStop" }

func (e RemoveStop) apply(o *Order, c editContext) error {
	step, stop := o.locateStop(e.StopID)
	if stop == nil {
		return errs.NewObjectNotFoundError("stopID", e.StopID)
	}

	switch stop.revision.Kind() {
	case PendingAddition:
		step.removeStop(stop.id)
		return nil
	case PendingReplacement:
		if orig := step.findStop(*stop.revision.originalID); orig != nil {
			if err := checkStopEditable(orig); err != nil {
				return err
			}
		}
		step.removeStop(stop.id)
		return nil
	case PendingDeletion:
		if r := step.replacementOf(stop.id); r != nil {
			step.removeStop(r.id)
		}
		return nil
	case Canonical:
	}

	if err := checkStopEditable(stop); err != nil {
		return err
	}
	if o.governs(step, c.scope) {
		stop.revision = DeletionRevision()
		return nil
	}
	step.removeStop(stop.id)
	if len(step.stops) == 0 {
		o.removeStep(step.id)
	}
	return nil
}

// AddAction attaches a new action to a stop.
type AddAction struct {
	StopID      kernel.UUID
	Kind        Kind
	Description string
	// Proofs overrides the default verification when non-nil.
	Proofs []ProofType
}

func (AddAction) Name() string { return "AddAction" }

func (e AddAction) apply(o *Order, c editContext) error {
	if e.Kind == UnknownKind {
		return errs.NewValueIsRequiredError("kind")
	}
	step, stop := o.locateStop(e.StopID)
	if stop == nil {
		return errs.NewObjectNotFoundError("stopID", e.StopID)
	}
	// Children hang off the original until the replacement is merged.
	if stop.revision.Kind() == PendingReplacement {
		if orig := step.findStop(*stop.revision.originalID); orig != nil {
			stop = orig
		}
	} else if stop.revision.Kind() == PendingDeletion && step.replacementOf(stop.id) == nil {
		return errs.NewInvariantViolationError("stop "+stop.id.String(), "stop is being removed")
	}
	if err := checkStopEditable(stop); err != nil {
		return err
	}

	pending := stop.revision.Kind() == PendingAddition || step.revision.Kind() == PendingAddition ||
		o.governs(step, c.scope)
	rev := CanonicalRevision()
	if pending {
		rev = AdditionRevision()
	}
	proofs, err := c.policy.NewProofs(e.Proofs)
	if err != nil {
		return err
	}
	stop.actions = append(stop.actions, newAction(stop.id, e.Kind, e.Description, proofs, rev))
	return nil
}

// UpdateAction changes an action's description.
type UpdateAction struct {
	ActionID    kernel.UUID
	Description string
}

func (UpdateAction) Name() string { return "UpdateAction" }

func (e UpdateAction) apply(o *Order, c editContext) error {
	step, stop, action := o.locateAction(e.ActionID)
	if action == nil {
		return errs.NewObjectNotFoundError("actionID", e.ActionID)
	}
	if err := checkStopEditable(stop); err != nil {
		return err
	}

	switch action.revision.Kind() {
	case PendingAddition, PendingReplacement:
		action.description = e.Description
		return nil
	case PendingDeletion:
		r := stop.replacementOf(action.id)
		if r == nil {
			return errs.NewInvariantViolationError("action "+action.id.String(), "action is being removed")
		}
		r.description = e.Description
		return nil
	case Canonical:
	}

	if action.IsTerminal() {
		return errs.NewInvariantViolationError("action "+action.id.String(),
			fmt.Sprintf("action is already %s", action.status))
	}
	if step.revision.Kind() == PendingAddition || !o.governs(step, c.scope) {
		action.description = e.Description
		return nil
	}
	r := action.replacement()
	r.description = e.Description
	stop.actions = append(stop.actions, r)
	return nil
}

// RemoveAction removes an action and its proofs.
type RemoveAction struct {
	ActionID kernel.UUID
}

func (RemoveAction) Name() string { return "RemoveAction" }

func (e RemoveAction) apply(o *Order, c editContext) error {
	step, stop, action := o.locateAction(e.ActionID)
	if action == nil {
		return errs.NewObjectNotFoundError("actionID", e.ActionID)
	}
	if err := checkStopEditable(stop); err != nil {
		return err
	}

	switch action.revision.Kind() {
	case PendingAddition, PendingReplacement:
		stop.removeAction(action.id)
		return nil
	case PendingDeletion:
		if r := stop.replacementOf(action.id); r != nil {
			stop.removeAction(r.id)
		}
		return nil
	case Canonical:
	}

	if action.IsTerminal() {
		return errs.NewInvariantViolationError("action "+action.id.String(),
			fmt.Sprintf("action is already %s", action.status))
	}
	if o.governs(step, c.scope) {
		action.revision = DeletionRevision()
		return nil
	}
	stop.removeAction(action.id)
	return nil
}

// checkStopEditable rejects edits on a stop under an active action (ARRIVED) or
// already executed.
func checkStopEditable(stop *Stop) error {
	switch stop.status {
	case StopArrived:
		return errs.NewInvariantViolationError("stop "+stop.id.String(), "stop is under an active action")
	case StopCompleted, StopFailed:
		return errs.NewInvariantViolationError("stop "+stop.id.String(),
			fmt.Sprintf("stop is already %s", stop.status))
	case StopPending, UnknownStopStatus:
	}
	return nil
}

func checkStepRemovable(step *Step) error {
	for _, s := range step.stops {
		if err := checkStopEditable(s); err != nil {
			return err
		}
	}
	return nil
}

// governs decides whether rows under step are edited through shadow copies.
func (o *Order) governs(step *Step, scope ExecutionScope) bool {
	switch step.revision.Kind() {
	case PendingAddition:
		return false
	case PendingReplacement:
		return scope.GovernsStep(*step.revision.originalID)
	case Canonical, PendingDeletion:
		return scope.GovernsStep(step.id)
	}
	return false
}

// anchorStep resolves the row children attach to: a pending replacement step
// resolves to its original.
func (o *Order) anchorStep(id kernel.UUID) (*Step, error) {
	step := o.findStep(id)
	if step == nil {
		return nil, errs.NewObjectNotFoundError("stepID", id)
	}
	if step.revision.Kind() == PendingReplacement {
		if orig := o.findStep(*step.revision.originalID); orig != nil {
			return orig, nil
		}
		return nil, errs.NewCorruptionError("step "+step.id.String(), "replacement without original")
	}
	if step.revision.Kind() == PendingDeletion && o.stepReplacementOf(step.id) == nil {
		return nil, errs.NewInvariantViolationError("step "+step.id.String(), "step is being removed")
	}
	return step, nil
}

func (o *Order) findStep(id kernel.UUID) *Step {
	for _, s := range o.steps {
		if s.id.IsEqual(id) {
			return s
		}
	}
	return nil
}

func (o *Order) stepReplacementOf(id kernel.UUID) *Step {
	for _, s := range o.steps {
		if s.revision.IsReplacementOf(id) {
			return s
		}
	}
	return nil
}

func (o *Order) locateStop(id kernel.UUID) (*Step, *Stop) {
	for _, st := range o.steps {
		if s := st.findStop(id); s != nil {
			return st, s
		}
	}
	return nil, nil
}

func (o *Order) locateAction(id kernel.UUID) (*Step, *Stop, *Action) {
	for _, st := range o.steps {
		for _, s := range st.stops {
			if a := s.findAction(id); a != nil {
				return st, s, a
			}
		}
	}
	return nil, nil, nil
}

func (o *Order) removeStep(id kernel.UUID) {
	kept := o.steps[:0]
	for _, s := range o.steps {
		if !s.id.IsEqual(id) {
			kept = append(kept, s)
		}
	}
	o.steps = kept
}

func (o *Order) maxStepDisplayOrder() int {
	maxOrder := 0
	for _, s := range o.steps {
		if s.displayOrder > maxOrder {
			maxOrder = s.displayOrder
		}
	}
	return maxOrder
}
