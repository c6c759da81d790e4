package driver

import (
	"fmt"

	"dispatch/internal/pkg/errs"
)

// WorkMode says on whose behalf a driver works. The two *To* values are transitions
// waiting for the last active mission to finish.
type WorkMode int

const (
	UnknownMode WorkMode = iota
	// Independent drivers receive GLOBAL orders.
	Independent
	// Enterprise drivers receive INTERNAL orders of their company.
	Enterprise
	IndependentToEnterprise
	EnterpriseToIndependent
)

func getWorkModeStrings() map[WorkMode]string {
	return map[WorkMode]string{
		UnknownMode:             "UNKNOWN",
		Independent:             "IDEP",
		Enterprise:              "ETP",
		IndependentToEnterprise: "IDEP_TO_ETP",
		EnterpriseToIndependent: "ETP_TO_IDEP",
	}
}

func (m WorkMode) String() string {
	if s, ok := getWorkModeStrings()[m]; ok {
		return s
	}
	return "UNKNOWN"
}

func ParseWorkMode(s string) (WorkMode, error) {
	for mode, name := range getWorkModeStrings() {
		if name == s && mode != UnknownMode {
			return mode, nil
		}
	}
	return UnknownMode, errs.NewValueIsInvalidErrorWithCause("work mode", fmt.Errorf("%q is not a valid work mode", s))
}

func (m WorkMode) Validate() error {
	if _, ok := workModeTable()[m]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("work mode", fmt.Errorf("%d is not a valid work mode", m))
	}
	return nil
}

// CanReceiveNewMissions is false while transitioning.
func (m WorkMode) CanReceiveNewMissions() bool {
	return m == Independent || m == Enterprise
}

func (m WorkMode) IsTransitioning() bool {
	return m == IndependentToEnterprise || m == EnterpriseToIndependent
}

// modeMove is the outcome of requesting a target mode, depending on whether the
// driver still has active missions.
type modeMove struct {
	idle WorkMode
	busy WorkMode
}

// workModeTable is the single transition table: current mode → requested mode → outcome.
func workModeTable() map[WorkMode]map[WorkMode]modeMove {
	return map[WorkMode]map[WorkMode]modeMove{
		Independent: {
			Independent: {idle: Independent, busy: Independent},
			Enterprise:  {idle: Enterprise, busy: IndependentToEnterprise},
		},
		Enterprise: {
			Enterprise:  {idle: Enterprise, busy: Enterprise},
			Independent: {idle: Independent, busy: EnterpriseToIndependent},
		},
		IndependentToEnterprise: {
			Enterprise:  {idle: Enterprise, busy: IndependentToEnterprise},
			Independent: {idle: Independent, busy: Independent},
		},
		EnterpriseToIndependent: {
			Independent: {idle: Independent, busy: EnterpriseToIndependent},
			Enterprise:  {idle: Enterprise, busy: Enterprise},
		},
	}
}

// Next returns the mode reached when target is requested.
func (m WorkMode) Next(target WorkMode, hasActiveMissions bool) (WorkMode, error) {
	moves, ok := workModeTable()[m]
	if !ok {
		return m, errs.NewValueIsInvalidError("current work mode")
	}
	move, ok := moves[target]
	if !ok {
		return m, errs.NewValueIsInvalidErrorWithCause("target work mode",
			fmt.Errorf("%s cannot be requested", target))
	}
	if hasActiveMissions {
		return move.busy, nil
	}
	return move.idle, nil
}

// Settled is the mode a transition ends in.
func (m WorkMode) Settled() WorkMode {
	switch m {
	case IndependentToEnterprise:
		return Enterprise
	case EnterpriseToIndependent:
		return Independent
	case UnknownMode, Independent, Enterprise:
	}
	return m
}
