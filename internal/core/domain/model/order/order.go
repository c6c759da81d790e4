package order

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"

	"github.com/paulmach/orb"
)

var (
	// ErrOrderIsNotConstructed is returned when an Order was not built by NewOrder or RestoreOrder.
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder constructor")
)

// Offer is the outstanding proposal of the order to one driver.
type Offer struct {
	DriverID       kernel.UUID
	OfferedAt      time.Time
	ExpiresAt      time.Time
	AcknowledgedAt *time.Time
}

// IsExpired reports whether the offer can no longer be accepted at now.
func (f Offer) IsExpired(now time.Time) bool {
	return !now.Before(f.ExpiresAt)
}

// ETA is the latest optimizer estimate for the order.
type ETA struct {
	DurationSeconds int
	DistanceMeters  int
	ArrivalAt       *time.Time
}

// Order is the aggregate root of a delivery request. It owns its steps, stops,
// actions and proofs, the dispatch state machine and the offer.
//
// Order follows these invariants:
//   - TARGET orders name a target driver, INTERNAL orders name a company
//   - At most one offer is outstanding, held by exactly one driver
//   - A driver that refused, timed out or was unreachable is never offered the
//     same order again automatically
//   - version increases on every change; structureVersion on every structural change
type Order struct {
	id               kernel.UUID
	companyID        *kernel.UUID
	status           Status
	priority         int
	mode             AssignmentMode
	targetDriverID   *kernel.UUID
	attemptCount     int
	metadata         map[string]any
	routeGeometry    orb.LineString
	eta              ETA
	offer            *Offer
	triedDrivers     []kernel.UUID
	nextDispatchAt   *time.Time
	frozen           bool
	frozenReason     string
	assignedDriverID *kernel.UUID
	missionID        *kernel.UUID
	version          int64
	structureVersion int64
	createdAt        time.Time
	updatedAt        time.Time
	steps            []*Step
	events           []kernel.DomainEvent
	guard            guard.ConstructorGuard
}

// NewOrderParams are the creation inputs of an order.
type NewOrderParams struct {
	ID             kernel.UUID
	CompanyID      *kernel.UUID
	Priority       int
	Mode           AssignmentMode
	TargetDriverID *kernel.UUID
	Metadata       map[string]any
	Now            time.Time
}

// NewOrder creates a PENDING order with no structure. Decompose must follow.
//
// Returns a joined error listing every invalid parameter.
func NewOrder(p NewOrderParams) (*Order, error) {
	o := &Order{
		status:    Pending,
		metadata:  p.Metadata,
		createdAt: p.Now,
		updatedAt: p.Now,
		guard:     guard.NewConstructorGuard(),
	}
	if o.metadata == nil {
		o.metadata = map[string]any{}
	}

	if err := errors.Join(
		o.setID(p.ID),
		o.setPriority(p.Priority),
		o.setAssignment(p.Mode, p.CompanyID, p.TargetDriverID),
	); err != nil {
		return nil, err
	}

	o.raise(p.Now, EventCreated, nil, true, map[string]any{"mode": p.Mode.String()})
	return o, nil
}

// RestoreOrderParams mirror the persisted order row.
type RestoreOrderParams struct {
	ID               kernel.UUID
	CompanyID        *kernel.UUID
	Status           Status
	Priority         int
	Mode             AssignmentMode
	TargetDriverID   *kernel.UUID
	AttemptCount     int
	Metadata         map[string]any
	RouteGeometry    orb.LineString
	ETA              ETA
	Offer            *Offer
	TriedDrivers     []kernel.UUID
	NextDispatchAt   *time.Time
	Frozen           bool
	FrozenReason     string
	AssignedDriverID *kernel.UUID
	MissionID        *kernel.UUID
	Version          int64
	StructureVersion int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Steps            []*Step
}

// RestoreOrder reconstructs an order from storage. Contradictions between the offer
// and the status are reported as data corruption.
func RestoreOrder(p RestoreOrderParams) (*Order, error) {
	o := &Order{
		status:           p.Status,
		attemptCount:     p.AttemptCount,
		metadata:         p.Metadata,
		routeGeometry:    p.RouteGeometry,
		eta:              p.ETA,
		offer:            p.Offer,
		triedDrivers:     p.TriedDrivers,
		nextDispatchAt:   p.NextDispatchAt,
		frozen:           p.Frozen,
		frozenReason:     p.FrozenReason,
		assignedDriverID: p.AssignedDriverID,
		missionID:        p.MissionID,
		version:          p.Version,
		structureVersion: p.StructureVersion,
		createdAt:        p.CreatedAt,
		updatedAt:        p.UpdatedAt,
		steps:            p.Steps,
		guard:            guard.NewConstructorGuard(),
	}
	if o.metadata == nil {
		o.metadata = map[string]any{}
	}

	if err := errors.Join(
		o.setID(p.ID),
		o.setPriority(p.Priority),
		o.setAssignment(p.Mode, p.CompanyID, p.TargetDriverID),
		p.Status.Validate(),
	); err != nil {
		return nil, err
	}
	if p.Status.IsOffering() != (p.Offer != nil) {
		return nil, errs.NewCorruptionError("order "+p.ID.String(),
			fmt.Sprintf("status %s does not match offer presence", p.Status))
	}
	if p.Status.HasMission() && (p.MissionID == nil || p.AssignedDriverID == nil) {
		return nil, errs.NewCorruptionError("order "+p.ID.String(),
			fmt.Sprintf("status %s without a mission", p.Status))
	}
	return o, nil
}

func (o *Order) Validate() error {
	if o == nil {
		return ErrOrderIsNotConstructed
	}
	return o.guard.Validate(ErrOrderIsNotConstructed)
}

func (o *Order) IsEqual(other *Order) bool {
	return other != nil && o.id.IsEqual(other.id)
}

func (o *Order) ID() kernel.UUID { return o.id }

func (o *Order) CompanyID() *kernel.UUID { return o.companyID }

func (o *Order) Status() Status { return o.status }

func (o *Order) Priority() int { return o.priority }

func (o *Order) AssignmentMode() AssignmentMode { return o.mode }

func (o *Order) TargetDriverID() *kernel.UUID { return o.targetDriverID }

func (o *Order) AttemptCount() int { return o.attemptCount }

func (o *Order) Metadata() map[string]any { return o.metadata }

func (o *Order) RouteGeometry() orb.LineString { return o.routeGeometry }

func (o *Order) ETA() ETA { return o.eta }

// Offer returns a copy of the outstanding offer, nil when none.
func (o *Order) Offer() *Offer {
	if o.offer == nil {
		return nil
	}
	cp := *o.offer
	return &cp
}

func (o *Order) TriedDrivers() []kernel.UUID {
	out := make([]kernel.UUID, len(o.triedDrivers))
	copy(out, o.triedDrivers)
	return out
}

func (o *Order) NextDispatchAt() *time.Time { return o.nextDispatchAt }

func (o *Order) IsFrozen() bool { return o.frozen }

func (o *Order) FrozenReason() string { return o.frozenReason }

func (o *Order) AssignedDriverID() *kernel.UUID { return o.assignedDriverID }

func (o *Order) MissionID() *kernel.UUID { return o.missionID }

func (o *Order) Version() int64 { return o.version }

func (o *Order) StructureVersion() int64 { return o.structureVersion }

func (o *Order) CreatedAt() time.Time { return o.createdAt }

func (o *Order) UpdatedAt() time.Time { return o.updatedAt }

// HasPendingChanges reports rows waiting for the next checkpoint merge.
func (o *Order) HasPendingChanges() bool {
	for _, st := range o.steps {
		if st.revision.Kind() != Canonical {
			return true
		}
		for _, s := range st.stops {
			if s.revision.Kind() != Canonical {
				return true
			}
			for _, a := range s.actions {
				if a.revision.Kind() != Canonical {
					return true
				}
			}
		}
	}
	return false
}

// Steps returns every row including pending ones, in display order.
func (o *Order) Steps() []*Step {
	out := make([]*Step, len(o.steps))
	copy(out, o.steps)
	return out
}

// HasTried reports whether driverID already refused, timed out or was unreachable.
func (o *Order) HasTried(driverID kernel.UUID) bool {
	for _, id := range o.triedDrivers {
		if id.IsEqual(driverID) {
			return true
		}
	}
	return false
}

// CheckDispatchable verifies the order may be offered at now.
func (o *Order) CheckDispatchable(now time.Time) error {
	if o.frozen {
		return errs.NewRuleViolationError(ReasonOrderFrozen, o.frozenReason)
	}
	if o.status != Pending {
		return errs.NewRuleViolationError(ReasonNotDispatchable,
			fmt.Sprintf("order is %s", o.status))
	}
	if o.nextDispatchAt != nil && now.Before(*o.nextDispatchAt) {
		return errs.NewRuleViolationError(ReasonNotDispatchable,
			fmt.Sprintf("order backs off until %s", o.nextDispatchAt.Format(time.RFC3339)))
	}
	if len(o.DriverExecutionList()) == 0 {
		return errs.NewRuleViolationError(ReasonNoStops, "order has nothing to execute")
	}
	return nil
}

// OfferTo proposes the order to driverID until now+timeout.
func (o *Order) OfferTo(driverID kernel.UUID, now time.Time, timeout time.Duration) error {
	if err := driverID.Validate(); err != nil {
		return err
	}
	if err := o.CheckDispatchable(now); err != nil {
		return err
	}
	if o.HasTried(driverID) {
		return errs.NewRuleViolationError(ReasonNotDispatchable,
			fmt.Sprintf("driver %s already tried", driverID))
	}
	next, err := o.status.TransitionTo(Offered)
	if err != nil {
		return err
	}
	o.status = next
	o.offer = &Offer{DriverID: driverID, OfferedAt: now, ExpiresAt: now.Add(timeout)}
	o.nextDispatchAt = nil

	id := driverID
	o.raise(now, EventOffered, &id, false, map[string]any{
		"expiresAt": o.offer.ExpiresAt.Format(time.RFC3339Nano),
	})
	return nil
}

// MarkPinged moves OFFERED to ACK_PENDING after the first liveness ping.
// It reports whether anything changed.
func (o *Order) MarkPinged(driverID kernel.UUID, now time.Time) bool {
	if o.status != Offered || !o.isOfferHolder(driverID) {
		return false
	}
	o.status = AckPending
	o.touch(now)
	return true
}

// Acknowledge records that the driver device received the offer.
func (o *Order) Acknowledge(driverID kernel.UUID, now time.Time) error {
	if err := o.checkOfferHolder(driverID); err != nil {
		return err
	}
	if o.offer.AcknowledgedAt == nil {
		t := now
		o.offer.AcknowledgedAt = &t
		o.touch(now)
	}
	return nil
}

// Accept hands the order to driverID under missionID. The caller holds the order row lock.
func (o *Order) Accept(driverID, missionID kernel.UUID, now time.Time) error {
	if err := o.checkOfferHolder(driverID); err != nil {
		return err
	}
	if o.offer.IsExpired(now) {
		return errs.NewRuleViolationError(ReasonOfferExpired,
			fmt.Sprintf("offer expired at %s", o.offer.ExpiresAt.Format(time.RFC3339)))
	}
	next, err := o.status.TransitionTo(Assigned)
	if err != nil {
		return err
	}
	d, m := driverID, missionID
	o.status = next
	o.offer = nil
	o.assignedDriverID = &d
	o.missionID = &m
	o.raiseForDriver(now, EventAssigned, true, map[string]any{"driverId": driverID.String()})
	return nil
}

// Refuse records an explicit refusal by the offer holder.
func (o *Order) Refuse(driverID kernel.UUID, now time.Time, maxAutoRetries int) error {
	if err := o.checkOfferHolder(driverID); err != nil {
		return err
	}
	o.failOffer(now, "REFUSED", maxAutoRetries)
	return nil
}

// ExpireOffer withdraws an offer whose window has closed. Safe to call repeatedly;
// the bool is false when there was nothing to expire.
func (o *Order) ExpireOffer(now time.Time, maxAutoRetries int) bool {
	if o.offer == nil || !o.status.IsOffering() || !o.offer.IsExpired(now) {
		return false
	}
	o.failOffer(now, "TIMEOUT", maxAutoRetries)
	return true
}

// MarkUnreachable withdraws the offer of a driver whose device never acknowledged.
// Acknowledged offers are left to the expiry timer.
func (o *Order) MarkUnreachable(driverID kernel.UUID, now time.Time, maxAutoRetries int) bool {
	if !o.isOfferHolder(driverID) || o.offer.AcknowledgedAt != nil {
		return false
	}
	o.failOffer(now, "UNREACHABLE", maxAutoRetries)
	return true
}

func (o *Order) failOffer(now time.Time, reason string, maxAutoRetries int) {
	holder := o.offer.DriverID
	o.attemptCount++
	if !o.HasTried(holder) {
		o.triedDrivers = append(o.triedDrivers, holder)
	}
	o.offer = nil

	o.raise(now, EventOfferCancelled, &holder, false, map[string]any{"reason": reason})

	if o.attemptCount <= maxAutoRetries {
		o.status = Pending
		o.nextDispatchAt = nil
		o.touch(now)
		return
	}
	o.status = Escalated
	o.raise(now, EventEscalated, nil, true, map[string]any{
		"attempts": o.attemptCount,
		"reason":   reason,
	})
}

// DeferDispatch pushes the next dispatch attempt to until (no candidates found).
func (o *Order) DeferDispatch(until time.Time) {
	if o.status != Pending {
		return
	}
	t := until
	o.nextDispatchAt = &t
	o.touch(until)
}

// Redispatch is the operator override: attempts, tried drivers, escalation and
// freeze are cleared and the order returns to PENDING. An ASSIGNED order loses its
// mission, which the caller fails.
func (o *Order) Redispatch(now time.Time) error {
	if o.status.IsFinal() || o.status == InProgress {
		return errs.NewRuleViolationError(ReasonInvalidTransition,
			fmt.Sprintf("order is %s and cannot be redispatched", o.status))
	}
	if o.status != Pending {
		next, err := o.status.TransitionTo(Pending)
		if err != nil {
			return err
		}
		if o.offer != nil {
			holder := o.offer.DriverID
			o.raise(now, EventOfferCancelled, &holder, false, map[string]any{"reason": "REDISPATCHED"})
		}
		if o.status.HasMission() {
			o.raiseForDriver(now, EventOfferCancelled, false, map[string]any{"reason": "REASSIGNED"})
		}
		o.status = next
	}
	o.offer = nil
	o.attemptCount = 0
	o.triedDrivers = nil
	o.nextDispatchAt = nil
	o.frozen = false
	o.frozenReason = ""
	o.assignedDriverID = nil
	o.missionID = nil
	o.raise(now, EventRedispatched, nil, true, nil)
	return nil
}

// Freeze stops automatic processing after data corruption. Only Redispatch unfreezes.
func (o *Order) Freeze(reason string, now time.Time) {
	if o.frozen {
		return
	}
	o.frozen = true
	o.frozenReason = reason
	o.raise(now, EventFrozen, nil, true, map[string]any{"reason": reason})
}

// Cancel marks the order CANCELLED before its deletion.
func (o *Order) Cancel(now time.Time) error {
	next, err := o.status.TransitionTo(Cancelled)
	if err != nil {
		return err
	}
	var offered *kernel.UUID
	if o.offer != nil {
		id := o.offer.DriverID
		offered = &id
	}
	o.status = next
	o.offer = nil
	if offered != nil {
		o.raise(now, EventOfferCancelled, offered, false, map[string]any{"reason": "DELETED"})
	}
	o.raiseForDriver(now, EventDeleted, true, nil)
	return nil
}

func (o *Order) isOfferHolder(driverID kernel.UUID) bool {
	return o.offer != nil && o.status.IsOffering() && o.offer.DriverID.IsEqual(driverID)
}

func (o *Order) checkOfferHolder(driverID kernel.UUID) error {
	if !o.isOfferHolder(driverID) {
		return errs.NewRuleViolationError(ReasonNotOfferHolder,
			fmt.Sprintf("driver %s does not hold the offer of order %s", driverID, o.id))
	}
	return nil
}

func (o *Order) touch(now time.Time) {
	o.version++
	o.updatedAt = now
}

func (o *Order) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	return nil
}

func (o *Order) setPriority(priority int) error {
	if priority < 0 {
		return errs.NewValueIsInvalidErrorWithCause("priority", fmt.Errorf("%d is negative", priority))
	}
	o.priority = priority
	return nil
}

func (o *Order) setAssignment(mode AssignmentMode, companyID, targetDriverID *kernel.UUID) error {
	switch mode {
	case Global:
	case Internal:
		if companyID == nil {
			return errs.NewValueIsRequiredErrorWithCause("companyID", errors.New("INTERNAL orders need a company"))
		}
	case Target:
		if targetDriverID == nil {
			return errs.NewValueIsRequiredErrorWithCause("targetDriverID", errors.New("TARGET orders need a driver"))
		}
	case UnknownMode:
		return errs.NewValueIsRequiredError("assignment mode")
	default:
		return errs.NewValueIsInvalidError("assignment mode")
	}
	o.mode = mode
	o.companyID = companyID
	if mode == Target {
		o.targetDriverID = targetDriverID
	}
	return nil
}
