// Package zone holds geographic zones used to restrict and locate drivers.
package zone

import (
	"errors"
	"fmt"
	"sort"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// OwnerType is PLATFORM, COMPANY or DRIVER.
type OwnerType int

const (
	UnknownOwner OwnerType = iota
	Platform
	Company
	DriverOwned
)

func (o OwnerType) String() string {
	switch o {
	case Platform:
		return "PLATFORM"
	case Company:
		return "COMPANY"
	case DriverOwned:
		return "DRIVER"
	default:
		return "UNKNOWN"
	}
}

func ParseOwnerType(s string) (OwnerType, error) {
	for _, o := range []OwnerType{Platform, Company, DriverOwned} {
		if o.String() == s {
			return o, nil
		}
	}
	return UnknownOwner, errs.NewValueIsInvalidErrorWithCause("owner type", fmt.Errorf("%q is not a valid owner", s))
}

// Zone is a named region with static driver assignments.
type Zone struct {
	id        kernel.UUID
	name      string
	ownerType OwnerType
	ownerID   *kernel.UUID
	shape     Shape
	active    bool
	driverIDs []kernel.UUID
}

func NewZone(id kernel.UUID, name string, ownerType OwnerType, ownerID *kernel.UUID, shape Shape) (*Zone, error) {
	var joined error
	joined = errors.Join(joined, id.Validate())
	if name == "" {
		joined = errors.Join(joined, errs.NewValueIsRequiredError("name"))
	}
	if ownerType == UnknownOwner {
		joined = errors.Join(joined, errs.NewValueIsRequiredError("owner type"))
	}
	if ownerType != Platform && ownerType != UnknownOwner && ownerID == nil {
		joined = errors.Join(joined, errs.NewValueIsRequiredError("ownerID"))
	}
	if shape.Kind() == UnknownShape {
		joined = errors.Join(joined, errs.NewValueIsRequiredError("shape"))
	}
	if joined != nil {
		return nil, joined
	}
	return &Zone{id: id, name: name, ownerType: ownerType, ownerID: ownerID, shape: shape, active: true}, nil
}

// RestoreZone rebuilds a zone from storage.
func RestoreZone(id kernel.UUID, name string, ownerType OwnerType, ownerID *kernel.UUID, shape Shape,
	active bool, driverIDs []kernel.UUID,
) (*Zone, error) {
	z, err := NewZone(id, name, ownerType, ownerID, shape)
	if err != nil {
		return nil, err
	}
	z.active = active
	z.driverIDs = driverIDs
	return z, nil
}

func (z *Zone) ID() kernel.UUID { return z.id }

func (z *Zone) Name() string { return z.name }

func (z *Zone) OwnerType() OwnerType { return z.ownerType }

func (z *Zone) OwnerID() *kernel.UUID { return z.ownerID }

func (z *Zone) Shape() Shape { return z.shape }

func (z *Zone) IsActive() bool { return z.active }

func (z *Zone) DriverIDs() []kernel.UUID {
	return append([]kernel.UUID(nil), z.driverIDs...)
}

func (z *Zone) Contains(p kernel.GeoPoint) bool {
	return z.active && z.shape.Contains(p)
}

// AssignDriver adds a static assignment; assigning twice is a no-op.
func (z *Zone) AssignDriver(driverID kernel.UUID) {
	if z.IsAssigned(driverID) {
		return
	}
	z.driverIDs = append(z.driverIDs, driverID)
}

func (z *Zone) IsAssigned(driverID kernel.UUID) bool {
	for _, id := range z.driverIDs {
		if id.IsEqual(driverID) {
			return true
		}
	}
	return false
}

func (z *Zone) Deactivate() { z.active = false }

// MostSpecific picks the smallest active zone containing p, nil when none does.
func MostSpecific(zones []*Zone, p kernel.GeoPoint) *Zone {
	var matching []*Zone
	for _, z := range zones {
		if z.Contains(p) {
			matching = append(matching, z)
		}
	}
	if len(matching) == 0 {
		return nil
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].shape.AreaKm2() < matching[j].shape.AreaKm2()
	})
	return matching[0]
}
