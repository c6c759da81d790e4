package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/zone"
	"dispatch/internal/pkg/errs"
)

// Eligibility reason codes.
const (
	ReasonDriverOffline          = "DRIVER_OFFLINE"
	ReasonDriverTransitioning    = "DRIVER_TRANSITIONING"
	ReasonAssignmentMismatch     = "ASSIGNMENT_MODE_MISMATCH"
	ReasonAlreadyTried           = "ALREADY_TRIED"
	ReasonOutsideActiveZone      = "OUTSIDE_ACTIVE_ZONE"
	ReasonOutsideSearchRadius    = "OUTSIDE_SEARCH_RADIUS"
	ReasonChainingDisabled       = "CHAINING_DISABLED"
	ReasonConcurrentMissionCap   = "CONCURRENT_MISSION_CAP"
	ReasonChainingRadiusExceeded = "CHAINING_RADIUS_EXCEEDED"
)

var ErrNoCandidates = errors.New("no eligible driver")

// Candidate is a driver seen from the dispatcher: live position, workload and the
// zone the driver restricted themselves to.
type Candidate struct {
	Driver             *driver.Driver
	Position           kernel.GeoPoint
	ActiveMissions     int
	OpenOffers         int
	CurrentDestination *kernel.GeoPoint
	ActiveZone         *zone.Zone
}

// Ranked is an eligible candidate with its distance to the order origin.
type Ranked struct {
	Candidate
	DistanceKm float64
}

// Rejection explains why a candidate was skipped.
type Rejection struct {
	DriverID kernel.UUID
	Code     string
}

type OrderDispatcher struct {
	cfg DispatchConfig
}

func NewOrderDispatcher(cfg DispatchConfig) *OrderDispatcher {
	return &OrderDispatcher{cfg: cfg}
}

// CheckEligibility returns a RuleViolationError carrying the first reason the
// candidate cannot receive the order. Transitioning drivers are rejected before
// any other rule.
func (d *OrderDispatcher) CheckEligibility(o *order.Order, c Candidate) error {
	if o == nil || c.Driver == nil {
		return errs.NewValueIsRequiredError("order and driver")
	}
	drv := c.Driver
	if drv.WorkMode().IsTransitioning() {
		return errs.NewRuleViolationError(ReasonDriverTransitioning, drv.WorkMode().String())
	}
	if !drv.IsOnline() {
		return errs.NewRuleViolationError(ReasonDriverOffline, "")
	}
	if err := d.checkAssignment(o, drv); err != nil {
		return err
	}
	if o.HasTried(drv.ID()) {
		return errs.NewRuleViolationError(ReasonAlreadyTried, "")
	}

	origin, err := o.Origin()
	if err != nil {
		return err
	}
	if drv.ActiveZoneID() != nil {
		if c.ActiveZone == nil || !c.ActiveZone.IsActive() || !c.ActiveZone.Contains(origin) {
			return errs.NewRuleViolationError(ReasonOutsideActiveZone, "")
		}
	}
	km, err := c.Position.DistanceKm(origin)
	if err != nil {
		return err
	}
	if km > d.cfg.SearchRadiusKm() {
		return errs.NewRuleViolationError(ReasonOutsideSearchRadius,
			fmt.Sprintf("%.2fkm from pickup", km))
	}
	return d.CheckChaining(origin, c)
}

func (d *OrderDispatcher) checkAssignment(o *order.Order, drv *driver.Driver) error {
	mismatch := func(msg string) error {
		return errs.NewRuleViolationError(ReasonAssignmentMismatch, msg)
	}
	switch o.AssignmentMode() {
	case order.Global:
		if drv.WorkMode() != driver.Independent {
			return mismatch("global orders go to independent drivers")
		}
	case order.Internal:
		if drv.WorkMode() != driver.Enterprise || !drv.BelongsTo(o.CompanyID()) {
			return mismatch("internal orders go to the company's enterprise drivers")
		}
	case order.Target:
		if o.TargetDriverID() == nil || !o.TargetDriverID().IsEqual(drv.ID()) {
			return mismatch("order targets another driver")
		}
	default:
		return mismatch("unknown assignment mode")
	}
	return nil
}

// CheckChaining gates a second mission: it must start within MaxDirectRadiusKm of
// where the current one ends. Offers still awaiting an answer count toward the
// concurrent mission cap.
func (d *OrderDispatcher) CheckChaining(origin kernel.GeoPoint, c Candidate) error {
	load := c.ActiveMissions + c.OpenOffers
	if load == 0 {
		return nil
	}
	if !d.cfg.AllowChaining() {
		return errs.NewRuleViolationError(ReasonChainingDisabled, "")
	}
	if load >= d.cfg.MaxConcurrentMissions() {
		return errs.NewRuleViolationError(ReasonConcurrentMissionCap,
			fmt.Sprintf("%d active missions, %d open offers", c.ActiveMissions, c.OpenOffers))
	}
	if c.ActiveMissions == 0 {
		return nil
	}
	if c.CurrentDestination == nil {
		return errs.NewRuleViolationError(ReasonChainingRadiusExceeded, "current destination unknown")
	}
	km, err := c.CurrentDestination.DistanceKm(origin)
	if err != nil {
		return err
	}
	if km > d.cfg.MaxDirectRadiusKm() {
		return errs.NewRuleViolationError(ReasonChainingRadiusExceeded,
			fmt.Sprintf("%.2fkm from current destination", km))
	}
	return nil
}

// Rank filters pool down to eligible candidates ordered by distance to the origin,
// then by fewer active missions, then by driver id.
func (d *OrderDispatcher) Rank(o *order.Order, pool []Candidate) ([]Ranked, []Rejection, error) {
	origin, err := o.Origin()
	if err != nil {
		return nil, nil, err
	}

	var ranked []Ranked
	var rejected []Rejection
	for _, c := range pool {
		if c.Driver == nil {
			continue
		}
		if err := d.CheckEligibility(o, c); err != nil {
			var rv *errs.RuleViolationError
			if !errors.As(err, &rv) {
				return nil, nil, err
			}
			rejected = append(rejected, Rejection{DriverID: c.Driver.ID(), Code: rv.Code})
			continue
		}
		km, err := c.Position.DistanceKm(origin)
		if err != nil {
			return nil, nil, err
		}
		ranked = append(ranked, Ranked{Candidate: c, DistanceKm: km})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.ActiveMissions != b.ActiveMissions {
			return a.ActiveMissions < b.ActiveMissions
		}
		return a.Driver.ID().String() < b.Driver.ID().String()
	})
	return ranked, rejected, nil
}

// Dispatch offers o to the best candidate. With nobody eligible the order backs off
// for RetryBackoff and ErrNoCandidates is returned.
func (d *OrderDispatcher) Dispatch(o *order.Order, pool []Candidate, now time.Time) (Ranked, error) {
	if err := o.CheckDispatchable(now); err != nil {
		return Ranked{}, err
	}
	ranked, _, err := d.Rank(o, pool)
	if err != nil {
		return Ranked{}, err
	}
	if len(ranked) == 0 {
		o.DeferDispatch(now.Add(d.cfg.RetryBackoff()))
		return Ranked{}, ErrNoCandidates
	}
	best := ranked[0]
	if err := o.OfferTo(best.Driver.ID(), now, d.cfg.OfferTimeout()); err != nil {
		return Ranked{}, err
	}
	return best, nil
}

// Config exposes the configuration the dispatcher was built with.
func (d *OrderDispatcher) Config() DispatchConfig { return d.cfg }
