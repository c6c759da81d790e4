// Package mission holds the Mission aggregate: the portion of an order a driver
// accepted, with its optimized route.
package mission

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"

	"github.com/paulmach/orb"
)

// ErrMissionIsNotConstructed is returned when a Mission was not built by NewMission or RestoreMission.
var ErrMissionIsNotConstructed = errors.New("Mission must be created via NewMission constructor")

// Status is ASSIGNED → IN_PROGRESS → COMPLETED | FAILED.
type Status int

const (
	Unknown Status = iota
	Assigned
	InProgress
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Assigned:
		return "ASSIGNED"
	case InProgress:
		return "IN_PROGRESS"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{Assigned, InProgress, Completed, Failed} {
		if st.String() == s {
			return st, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("mission status", fmt.Errorf("%q is not a valid status", s))
}

// IsActive reports an accepted or in-progress mission.
func (s Status) IsActive() bool {
	return s == Assigned || s == InProgress
}

// Mission binds a driver to a set of order steps.
type Mission struct {
	id                kernel.UUID
	orderID           kernel.UUID
	driverID          kernel.UUID
	stepIDs           []kernel.UUID
	status            Status
	destination       kernel.GeoPoint
	optimizedData     json.RawMessage
	estimatedDuration int
	estimatedDistance int
	routeGeometry     orb.LineString
	acceptedAt        time.Time
	startedAt         *time.Time
	finishedAt        *time.Time
	failureReason     string
	guard             guard.ConstructorGuard
}

// NewMission is created when a driver accepts an offer.
func NewMission(id, orderID, driverID kernel.UUID, stepIDs []kernel.UUID, destination kernel.GeoPoint, now time.Time) (*Mission, error) {
	if err := errors.Join(id.Validate(), orderID.Validate(), driverID.Validate(), destination.Validate()); err != nil {
		return nil, err
	}
	if len(stepIDs) == 0 {
		return nil, errs.NewValueIsRequiredError("stepIDs")
	}
	return &Mission{
		id:          id,
		orderID:     orderID,
		driverID:    driverID,
		stepIDs:     append([]kernel.UUID(nil), stepIDs...),
		status:      Assigned,
		destination: destination,
		acceptedAt:  now,
		guard:       guard.NewConstructorGuard(),
	}, nil
}

type RestoreParams struct {
	ID                kernel.UUID
	OrderID           kernel.UUID
	DriverID          kernel.UUID
	StepIDs           []kernel.UUID
	Status            Status
	Destination       kernel.GeoPoint
	OptimizedData     json.RawMessage
	EstimatedDuration int
	EstimatedDistance int
	RouteGeometry     orb.LineString
	AcceptedAt        time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
	FailureReason     string
}

func RestoreMission(p RestoreParams) (*Mission, error) {
	if err := errors.Join(p.ID.Validate(), p.OrderID.Validate(), p.DriverID.Validate()); err != nil {
		return nil, err
	}
	if p.Status == Unknown {
		return nil, errs.NewValueIsRequiredError("mission status")
	}
	return &Mission{
		id:                p.ID,
		orderID:           p.OrderID,
		driverID:          p.DriverID,
		stepIDs:           p.StepIDs,
		status:            p.Status,
		destination:       p.Destination,
		optimizedData:     p.OptimizedData,
		estimatedDuration: p.EstimatedDuration,
		estimatedDistance: p.EstimatedDistance,
		routeGeometry:     p.RouteGeometry,
		acceptedAt:        p.AcceptedAt,
		startedAt:         p.StartedAt,
		finishedAt:        p.FinishedAt,
		failureReason:     p.FailureReason,
		guard:             guard.NewConstructorGuard(),
	}, nil
}

func (m *Mission) Validate() error {
	if m == nil {
		return ErrMissionIsNotConstructed
	}
	return m.guard.Validate(ErrMissionIsNotConstructed)
}

func (m *Mission) ID() kernel.UUID                { return m.id }
func (m *Mission) OrderID() kernel.UUID           { return m.orderID }
func (m *Mission) DriverID() kernel.UUID          { return m.driverID }
func (m *Mission) Status() Status                 { return m.status }
func (m *Mission) Destination() kernel.GeoPoint   { return m.destination }
func (m *Mission) OptimizedData() json.RawMessage { return m.optimizedData }
func (m *Mission) EstimatedDuration() int         { return m.estimatedDuration }
func (m *Mission) EstimatedDistance() int         { return m.estimatedDistance }
func (m *Mission) RouteGeometry() orb.LineString  { return m.routeGeometry }
func (m *Mission) AcceptedAt() time.Time          { return m.acceptedAt }
func (m *Mission) StartedAt() *time.Time          { return m.startedAt }
func (m *Mission) FinishedAt() *time.Time         { return m.finishedAt }
func (m *Mission) FailureReason() string          { return m.failureReason }

func (m *Mission) StepIDs() []kernel.UUID {
	return append([]kernel.UUID(nil), m.stepIDs...)
}

func (m *Mission) IsActive() bool {
	return m.status.IsActive()
}

// GovernsStep reports whether the active mission executes stepID.
func (m *Mission) GovernsStep(stepID kernel.UUID) bool {
	if !m.IsActive() {
		return false
	}
	for _, id := range m.stepIDs {
		if id.IsEqual(stepID) {
			return true
		}
	}
	return false
}

func (m *Mission) HasActiveMission() bool {
	return m.IsActive()
}

// Start moves ASSIGNED to IN_PROGRESS on the first stop transition. Starting an
// in-progress mission is a no-op.
func (m *Mission) Start(now time.Time) error {
	switch m.status {
	case InProgress:
		return nil
	case Assigned:
		t := now
		m.status = InProgress
		m.startedAt = &t
		return nil
	case Unknown, Completed, Failed:
	}
	return errs.NewRuleViolationError("INVALID_TRANSITION", fmt.Sprintf("mission is %s", m.status))
}

func (m *Mission) Complete(now time.Time) error {
	if m.status != InProgress {
		return errs.NewRuleViolationError("INVALID_TRANSITION", fmt.Sprintf("mission is %s", m.status))
	}
	t := now
	m.status = Completed
	m.finishedAt = &t
	return nil
}

// Fail closes an active mission, e.g. on reassignment or when the order failed.
func (m *Mission) Fail(reason string, now time.Time) error {
	if !m.IsActive() {
		return errs.NewRuleViolationError("INVALID_TRANSITION", fmt.Sprintf("mission is %s", m.status))
	}
	t := now
	m.status = Failed
	m.finishedAt = &t
	m.failureReason = reason
	return nil
}

// Rebind follows a checkpoint merge: replaced steps are swapped for their
// replacements, removed steps dropped, added steps bound.
func (m *Mission) Rebind(replaced map[kernel.UUID]kernel.UUID, added, removed []kernel.UUID) {
	gone := make(map[kernel.UUID]bool, len(removed))
	for _, id := range removed {
		gone[id] = true
	}
	bound := make(map[kernel.UUID]bool, len(m.stepIDs))
	next := make([]kernel.UUID, 0, len(m.stepIDs)+len(added))
	for _, id := range m.stepIDs {
		if r, ok := replaced[id]; ok {
			id = r
		}
		if gone[id] || bound[id] {
			continue
		}
		bound[id] = true
		next = append(next, id)
	}
	for _, id := range added {
		if !bound[id] {
			bound[id] = true
			next = append(next, id)
		}
	}
	m.stepIDs = next
}

func (m *Mission) SetDestination(p kernel.GeoPoint) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.destination = p
	return nil
}

// ApplyPlan stores the optimizer answer for the mission's slice.
func (m *Mission) ApplyPlan(plan route.Plan) error {
	data, err := json.Marshal(planDocument(plan))
	if err != nil {
		return fmt.Errorf("encode optimized data: %w", err)
	}
	m.optimizedData = data
	m.estimatedDuration = plan.DurationSeconds
	m.estimatedDistance = plan.DistanceMeters
	m.routeGeometry = plan.Geometry
	return nil
}

type planStop struct {
	StopID         string `json:"stopId"`
	Position       int    `json:"position"`
	ArrivalSeconds int    `json:"arrivalSeconds"`
}

type planDoc struct {
	Sequence        []planStop `json:"sequence"`
	DurationSeconds int        `json:"durationSeconds"`
	DistanceMeters  int        `json:"distanceMeters"`
}

func planDocument(plan route.Plan) planDoc {
	doc := planDoc{DurationSeconds: plan.DurationSeconds, DistanceMeters: plan.DistanceMeters}
	for _, s := range plan.Sequence {
		doc.Sequence = append(doc.Sequence, planStop{
			StopID:         s.StopID.String(),
			Position:       s.Position,
			ArrivalSeconds: s.ArrivalSeconds,
		})
	}
	return doc
}

// Scope combines the missions of one order into the view the order's structural
// edits need.
type Scope []*Mission

func (s Scope) GovernsStep(stepID kernel.UUID) bool {
	for _, m := range s {
		if m.GovernsStep(stepID) {
			return true
		}
	}
	return false
}

func (s Scope) HasActiveMission() bool {
	for _, m := range s {
		if m.IsActive() {
			return true
		}
	}
	return false
}

// Active returns the first active mission, nil when none.
func (s Scope) Active() *Mission {
	for _, m := range s {
		if m.IsActive() {
			return m
		}
	}
	return nil
}
