// Package route holds the values exchanged with the external route optimizer: the
// virtual state of an order sent as input and the plan returned as output.
package route

import (
	"dispatch/internal/core/domain/model/kernel"

	"github.com/paulmach/orb"
)

// View selects which revision of an order's structure a virtual state reflects.
type View int

const (
	// DriverView contains only what the driver is executing right now.
	DriverView View = iota + 1
	// ClientView substitutes pending replacements and additions and hides pending deletions.
	ClientView
)

func (v View) String() string {
	switch v {
	case DriverView:
		return "DRIVER"
	case ClientView:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// ParseView accepts "DRIVER" or "CLIENT"; anything else falls back to DriverView.
func ParseView(s string) View {
	if s == "CLIENT" {
		return ClientView
	}
	return DriverView
}

// VirtualStop is one waypoint of the optimizer input.
type VirtualStop struct {
	StopID         kernel.UUID
	StepID         kernel.UUID
	Kind           string
	Address        string
	Point          kernel.GeoPoint
	ServiceSeconds int
	// Flexible stops may be dropped from a simplified request.
	Flexible bool
	// Linked stops of one step must stay contiguous in the sequence.
	Linked       bool
	DisplayOrder int
}

// VirtualState is the computed snapshot of an order's intended structure.
type VirtualState struct {
	OrderID          kernel.UUID
	View             View
	StructureVersion int64
	Start            *kernel.GeoPoint
	Stops            []VirtualStop
}

// Simplified drops flexible stops. The bool result is false when nothing could be dropped.
func (s VirtualState) Simplified() (VirtualState, bool) {
	kept := make([]VirtualStop, 0, len(s.Stops))
	for _, st := range s.Stops {
		if !st.Flexible {
			kept = append(kept, st)
		}
	}
	if len(kept) == len(s.Stops) || len(kept) == 0 {
		return s, false
	}
	out := s
	out.Stops = kept
	return out, true
}

// Vehicle describes what the driver operates, as understood by the optimizer.
type Vehicle struct {
	ID       string
	Profile  string
	Capacity int
}

// SequencedStop is one entry of the optimizer's answer.
type SequencedStop struct {
	StopID         kernel.UUID
	Position       int
	ArrivalSeconds int
}

// Plan is the optimizer's answer for a virtual state.
type Plan struct {
	Sequence        []SequencedStop
	Geometry        orb.LineString
	DurationSeconds int
	DistanceMeters  int
}

// Covers reports whether the plan sequences stopID.
func (p Plan) Covers(stopID kernel.UUID) bool {
	for _, s := range p.Sequence {
		if s.StopID.IsEqual(stopID) {
			return true
		}
	}
	return false
}
