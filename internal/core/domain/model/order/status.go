package order

import (
	"fmt"

	"dispatch/internal/pkg/errs"
)

// Status represents the lifecycle state of an order.
//
// State transitions:
//
//	Pending ──> Offered ──> AckPending ──> Assigned ──> InProgress ──> Completed | Failed
//	   ^           │             │             │
//	   └───────────┴─────────────┴─────────────┘  (refusal, timeout or reassignment)
//	Offered | AckPending ──> Escalated ──> Pending  (operator redispatch)
//	any non-final ──> Cancelled
type Status int

const (
	// Unknown helps catch uninitialized Status values.
	Unknown Status = iota

	// Pending orders wait for a dispatch cycle (UNASSIGNED).
	Pending

	// Offered orders are held by exactly one driver until the offer expires.
	Offered

	// AckPending means the driver device has been pinged but has not acknowledged yet.
	AckPending

	// Assigned orders have an accepted mission (ACCEPTED).
	Assigned

	// InProgress orders have a mission whose driver reached the first stop.
	InProgress

	// Completed is final: every stop completed.
	Completed

	// Failed is final: every stop is terminal and at least one failed.
	Failed

	// Escalated orders exhausted automatic retries and wait for an operator.
	Escalated

	// Cancelled is final: the order was deleted.
	Cancelled
)

func getStatusStrings() map[Status]string {
	return map[Status]string{
		Unknown:    "UNKNOWN",
		Pending:    "PENDING",
		Offered:    "OFFERED",
		AckPending: "ACK_PENDING",
		Assigned:   "ASSIGNED",
		InProgress: "IN_PROGRESS",
		Completed:  "COMPLETED",
		Failed:     "FAILED",
		Escalated:  "ESCALATED",
		Cancelled:  "CANCELLED",
	}
}

// statusTransitions is the single source of truth for allowed moves.
func statusTransitions() map[Status][]Status {
	//nolint:exhaustive // final statuses have no outgoing transitions
	return map[Status][]Status{
		Pending:    {Offered, Escalated, Cancelled},
		Offered:    {AckPending, Assigned, Pending, Escalated, Cancelled},
		AckPending: {Assigned, Pending, Escalated, Cancelled},
		Assigned:   {InProgress, Pending, Cancelled},
		InProgress: {Completed, Failed, Cancelled},
		Escalated:  {Pending, Cancelled},
	}
}

// ParseStatus converts the persisted name back into a Status.
func ParseStatus(s string) (Status, error) {
	for status, name := range getStatusStrings() {
		if name == s && status != Unknown {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a valid order status", s))
}

func (s Status) Validate() error {
	if _, ok := statusTransitions()[s]; ok {
		return nil
	}
	if s == Completed || s == Failed || s == Cancelled {
		return nil
	}
	return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%d is not a valid status", s))
}

func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "UNKNOWN"
}

// IsFinal reports whether no further transition is possible.
func (s Status) IsFinal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// IsOffering reports whether an offer is outstanding.
func (s Status) IsOffering() bool {
	return s == Offered || s == AckPending
}

// HasMission reports whether an accepted mission governs the order.
func (s Status) HasMission() bool {
	return s == Assigned || s == InProgress
}

// CanTransitionTo checks the transition table without side effects.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions()[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo returns next when the move is allowed.
func (s Status) TransitionTo(next Status) (Status, error) {
	if !s.CanTransitionTo(next) {
		return s, errs.NewRuleViolationError(ReasonInvalidTransition,
			fmt.Sprintf("order cannot move from %s to %s", s, next))
	}
	return next, nil
}

// AssignmentMode decides which drivers are eligible for an order.
type AssignmentMode int

const (
	UnknownMode AssignmentMode = iota
	// Global orders go to independent drivers.
	Global
	// Internal orders go to enterprise drivers of the order's company.
	Internal
	// Target orders go to a single named driver.
	Target
)

func (m AssignmentMode) String() string {
	switch m {
	case Global:
		return "GLOBAL"
	case Internal:
		return "INTERNAL"
	case Target:
		return "TARGET"
	default:
		return "UNKNOWN"
	}
}

func ParseAssignmentMode(s string) (AssignmentMode, error) {
	switch s {
	case "GLOBAL":
		return Global, nil
	case "INTERNAL":
		return Internal, nil
	case "TARGET":
		return Target, nil
	default:
		return UnknownMode, errs.NewValueIsInvalidErrorWithCause("assignment mode",
			fmt.Errorf("%q is not one of GLOBAL, INTERNAL, TARGET", s))
	}
}

// Kind classifies stops and actions.
type Kind int

const (
	UnknownKind Kind = iota
	Pickup
	Delivery
	Service
)

func (k Kind) String() string {
	switch k {
	case Pickup:
		return "PICKUP"
	case Delivery:
		return "DELIVERY"
	case Service:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "PICKUP":
		return Pickup, nil
	case "DELIVERY":
		return Delivery, nil
	case "SERVICE":
		return Service, nil
	default:
		return UnknownKind, errs.NewValueIsInvalidErrorWithCause("kind",
			fmt.Errorf("%q is not one of PICKUP, DELIVERY, SERVICE", s))
	}
}
