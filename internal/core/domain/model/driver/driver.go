// Package driver holds the Driver aggregate and its work-mode state machine.
package driver

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

const defaultVehicleProfile = "driving-car"

var (
	ErrNameIsRequired         = errs.NewValueIsRequiredError("name")
	ErrDriverIsNotConstructed = errors.New("Driver must be created via NewDriver constructor")
)

// Driver is a person able to execute missions.
//
// Business rules:
//   - Enterprise work needs a company
//   - A work-mode change requested with active missions waits in a transition mode,
//     during which no new mission is offered
type Driver struct {
	id             kernel.UUID
	companyID      *kernel.UUID
	name           string
	workMode       WorkMode
	online         bool
	activeZoneID   *kernel.UUID
	vehicleProfile string
	capacity       int
	guard          guard.ConstructorGuard
}

func NewDriver(id kernel.UUID, name string, companyID *kernel.UUID, mode WorkMode) (*Driver, error) {
	d := &Driver{vehicleProfile: defaultVehicleProfile, guard: guard.NewConstructorGuard()}
	if err := errors.Join(
		d.setID(id),
		d.setName(name),
		d.setWorkMode(mode, companyID),
	); err != nil {
		return nil, err
	}
	return d, nil
}

type RestoreParams struct {
	ID             kernel.UUID
	CompanyID      *kernel.UUID
	Name           string
	WorkMode       WorkMode
	Online         bool
	ActiveZoneID   *kernel.UUID
	VehicleProfile string
	Capacity       int
}

func RestoreDriver(p RestoreParams) (*Driver, error) {
	d, err := NewDriver(p.ID, p.Name, p.CompanyID, p.WorkMode)
	if err != nil {
		return nil, err
	}
	d.online = p.Online
	d.activeZoneID = p.ActiveZoneID
	d.capacity = p.Capacity
	if p.VehicleProfile != "" {
		d.vehicleProfile = p.VehicleProfile
	}
	return d, nil
}

func (d *Driver) Validate() error {
	if d == nil {
		return ErrDriverIsNotConstructed
	}
	return d.guard.Validate(ErrDriverIsNotConstructed)
}

func (d *Driver) ID() kernel.UUID { return d.id }

func (d *Driver) CompanyID() *kernel.UUID { return d.companyID }

func (d *Driver) Name() string { return d.name }

func (d *Driver) WorkMode() WorkMode { return d.workMode }

func (d *Driver) IsOnline() bool { return d.online }

func (d *Driver) ActiveZoneID() *kernel.UUID { return d.activeZoneID }

func (d *Driver) VehicleProfile() string { return d.vehicleProfile }

func (d *Driver) Capacity() int { return d.capacity }

func (d *Driver) CanReceiveNewMissions() bool {
	return d.workMode.CanReceiveNewMissions()
}

// BelongsTo reports whether the driver works for companyID.
func (d *Driver) BelongsTo(companyID *kernel.UUID) bool {
	return d.companyID != nil && companyID != nil && d.companyID.IsEqual(*companyID)
}

// Vehicle describes the driver's vehicle to the route optimizer.
func (d *Driver) Vehicle() route.Vehicle {
	return route.Vehicle{ID: d.id.String(), Profile: d.vehicleProfile, Capacity: d.capacity}
}

// RequestWorkMode applies the transition table. activeMissions is the number of the
// driver's ASSIGNED or IN_PROGRESS missions.
func (d *Driver) RequestWorkMode(target WorkMode, activeMissions int) error {
	if target == Enterprise && d.companyID == nil {
		return errs.NewRuleViolationError("COMPANY_REQUIRED", "enterprise work needs a company")
	}
	next, err := d.workMode.Next(target, activeMissions > 0)
	if err != nil {
		return err
	}
	d.workMode = next
	return nil
}

// SettleWorkMode completes a pending transition once no mission is active. The bool
// reports whether the mode changed.
func (d *Driver) SettleWorkMode(activeMissions int) bool {
	if activeMissions > 0 || !d.workMode.IsTransitioning() {
		return false
	}
	d.workMode = d.workMode.Settled()
	return true
}

func (d *Driver) GoOnline() { d.online = true }

func (d *Driver) GoOffline() { d.online = false }

// SetActiveZone restricts the driver to zoneID; nil lifts the restriction.
func (d *Driver) SetActiveZone(zoneID *kernel.UUID) {
	d.activeZoneID = zoneID
}

func (d *Driver) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	d.id = id
	return nil
}

func (d *Driver) setName(name string) error {
	if name == "" {
		return ErrNameIsRequired
	}
	d.name = name
	return nil
}

func (d *Driver) setWorkMode(mode WorkMode, companyID *kernel.UUID) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	if (mode == Enterprise || mode == EnterpriseToIndependent || mode == IndependentToEnterprise) && companyID == nil {
		return errs.NewValueIsRequiredErrorWithCause("companyID", errors.New("enterprise drivers need a company"))
	}
	d.workMode = mode
	d.companyID = companyID
	return nil
}

// SetVehicle changes the routing profile (e.g. "cycling-regular") and capacity.
func (d *Driver) SetVehicle(profile string, capacity int) error {
	if profile == "" {
		return errs.NewValueIsRequiredError("vehicle profile")
	}
	if capacity < 0 {
		return errs.NewValueIsOutOfRangeError("capacity", capacity, 0, "unbounded")
	}
	d.vehicleProfile = profile
	d.capacity = capacity
	return nil
}
