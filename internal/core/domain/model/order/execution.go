package order

import (
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// ExecutionOutcome reports the side effects of a stop transition the caller must
// propagate to the mission and driver.
type ExecutionOutcome struct {
	MissionStarted bool
	Merge          MergeResult
	OrderFinished  bool
}

// ArriveAtStop marks the driver at a stop. Only one stop may be ARRIVED, and a
// started linked step must be finished before another step begins.
func (o *Order) ArriveAtStop(stopID kernel.UUID, now time.Time) (ExecutionOutcome, error) {
	if err := o.checkExecuting(); err != nil {
		return ExecutionOutcome{}, err
	}
	target, err := o.driverStop(stopID)
	if err != nil {
		return ExecutionOutcome{}, err
	}
	for _, p := range o.driverStops() {
		if p.stop.status == StopArrived {
			return ExecutionOutcome{}, errs.NewRuleViolationError(ReasonStopAlreadyActive,
				fmt.Sprintf("stop %s is ARRIVED", p.stop.id))
		}
	}
	for _, st := range o.steps {
		if st.linked && st.revision.VisibleToDriver() && st.isPartiallyExecuted() &&
			!st.id.IsEqual(target.step.id) {
			return ExecutionOutcome{}, errs.NewRuleViolationError(ReasonLinkedStepIncomplete,
				fmt.Sprintf("linked step %s must be finished first", st.id))
		}
	}
	if err := target.stop.arrive(now); err != nil {
		return ExecutionOutcome{}, err
	}

	out := ExecutionOutcome{MissionStarted: o.startIfAssigned()}
	o.raiseForDriver(now, EventStopArrived, true, map[string]any{"stopId": stopID.String()})
	return out, nil
}

// CompleteStop completes an ARRIVED stop, merges pending changes at the checkpoint
// and finishes the order when nothing is left.
func (o *Order) CompleteStop(stopID kernel.UUID, now time.Time) (ExecutionOutcome, error) {
	if err := o.checkExecuting(); err != nil {
		return ExecutionOutcome{}, err
	}
	target, err := o.driverStop(stopID)
	if err != nil {
		return ExecutionOutcome{}, err
	}
	if err := target.stop.complete(now); err != nil {
		return ExecutionOutcome{}, err
	}
	o.raiseForDriver(now, EventStopCompleted, true, map[string]any{"stopId": stopID.String()})
	return o.afterStopSettled(now)
}

// FailStop fails a PENDING or ARRIVED stop with its actions.
func (o *Order) FailStop(stopID kernel.UUID, reason string, now time.Time) (ExecutionOutcome, error) {
	if err := o.checkExecuting(); err != nil {
		return ExecutionOutcome{}, err
	}
	target, err := o.driverStop(stopID)
	if err != nil {
		return ExecutionOutcome{}, err
	}
	if err := target.stop.fail(reason, now); err != nil {
		return ExecutionOutcome{}, err
	}
	started := o.startIfAssigned()
	o.raiseForDriver(now, EventStopFailed, true, map[string]any{"stopId": stopID.String(), "reason": reason})
	out, err := o.afterStopSettled(now)
	out.MissionStarted = started
	return out, err
}

func (o *Order) afterStopSettled(now time.Time) (ExecutionOutcome, error) {
	merge, err := o.MergeCheckpoint(now)
	if err != nil {
		return ExecutionOutcome{}, err
	}
	return ExecutionOutcome{Merge: merge, OrderFinished: o.finishIfDone(now)}, nil
}

// SubmitProof records evidence for a proof of an action at the ARRIVED stop.
func (o *Order) SubmitProof(actionID, proofID kernel.UUID, value string, maxOTPAttempts int, now time.Time) (ProofOutcome, error) {
	if err := o.checkExecuting(); err != nil {
		return 0, err
	}
	stop, action, err := o.driverAction(actionID)
	if err != nil {
		return 0, err
	}
	if stop.status != StopArrived {
		return 0, errs.NewRuleViolationError(ReasonStopNotArrived, fmt.Sprintf("stop %s is %s", stop.id, stop.status))
	}
	outcome, err := action.submitProof(proofID, value, now, maxOTPAttempts)
	if err != nil {
		return 0, err
	}
	o.raiseForDriver(now, EventProofSubmitted, true, map[string]any{
		"actionId": actionID.String(),
		"proofId":  proofID.String(),
		"outcome":  outcome.String(),
	})
	return outcome, nil
}

// VerifyProof is the operator decision on a SUBMITTED proof.
func (o *Order) VerifyProof(actionID, proofID kernel.UUID, approved bool, now time.Time) (ProofOutcome, error) {
	if err := o.checkExecuting(); err != nil {
		return 0, err
	}
	stop, action, err := o.driverAction(actionID)
	if err != nil {
		return 0, err
	}
	if stop.IsTerminal() {
		return 0, errs.NewRuleViolationError(ReasonProofSettled, fmt.Sprintf("stop %s is %s", stop.id, stop.status))
	}
	outcome, err := action.verifyProof(proofID, approved, now)
	if err != nil {
		return 0, err
	}
	o.raiseForDriver(now, EventProofSubmitted, true, map[string]any{
		"actionId": actionID.String(),
		"proofId":  proofID.String(),
		"outcome":  outcome.String(),
	})
	return outcome, nil
}

func (o *Order) checkExecuting() error {
	if !o.status.HasMission() {
		return errs.NewRuleViolationError(ReasonInvalidTransition,
			fmt.Sprintf("order is %s, not executing", o.status))
	}
	return nil
}

func (o *Order) driverStop(id kernel.UUID) (placedStop, error) {
	for _, p := range o.driverStops() {
		if p.stop.id.IsEqual(id) {
			return p, nil
		}
	}
	return placedStop{}, errs.NewObjectNotFoundError("stopID", id)
}

func (o *Order) driverAction(id kernel.UUID) (*Stop, *Action, error) {
	for _, p := range o.driverStops() {
		for _, a := range p.stop.actions {
			if a.id.IsEqual(id) && a.revision.VisibleToDriver() {
				return p.stop, a, nil
			}
		}
	}
	return nil, nil, errs.NewObjectNotFoundError("actionID", id)
}

func (o *Order) startIfAssigned() bool {
	if o.status != Assigned {
		return false
	}
	o.status = InProgress
	return true
}

// finishIfDone closes the order once every driver stop is terminal and nothing is
// pending: COMPLETED when all completed, FAILED otherwise.
func (o *Order) finishIfDone(now time.Time) bool {
	if o.status != InProgress || o.HasPendingChanges() {
		return false
	}
	list := o.DriverExecutionList()
	if len(list) == 0 {
		return false
	}
	allCompleted := true
	for _, s := range list {
		if !s.IsTerminal() {
			return false
		}
		allCompleted = allCompleted && s.status == StopCompleted
	}
	if allCompleted {
		o.status = Completed
		o.raiseForDriver(now, EventCompleted, true, nil)
	} else {
		o.status = Failed
		o.raiseForDriver(now, EventFailed, true, nil)
	}
	return true
}
