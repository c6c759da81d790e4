package order

import (
	"time"

	"dispatch/internal/core/domain/model/kernel"
)

// Event names published on the driver and global channels.
const (
	EventCreated          = "order.created"
	EventOffered          = "order.offered"
	EventOfferCancelled   = "order.offer_cancelled"
	EventAssigned         = "order.assigned"
	EventEscalated        = "order.escalated"
	EventRedispatched     = "order.redispatched"
	EventFrozen           = "order.frozen"
	EventStructureChanged = "order.structure_changed"
	EventStructureMerged  = "order.structure_merged"
	EventRouteUpdated     = "order.route_updated"
	EventStopArrived      = "order.stop_arrived"
	EventStopCompleted    = "order.stop_completed"
	EventStopFailed       = "order.stop_failed"
	EventProofSubmitted   = "order.proof_submitted"
	EventCompleted        = "order.completed"
	EventFailed           = "order.failed"
	EventDeleted          = "order.deleted"
)

// raise bumps the version and records an event carrying it as sequence.
func (o *Order) raise(now time.Time, name string, driverID *kernel.UUID, global bool, data map[string]any) {
	o.touch(now)
	o.events = append(o.events, kernel.DomainEvent{
		Name:        name,
		AggregateID: o.id,
		MissionID:   o.missionID,
		DriverID:    driverID,
		Global:      global,
		Sequence:    o.version,
		OccurredAt:  now,
		Data:        data,
	})
}

// raiseForDriver routes to the mission's driver, falling back to the global channel
// when the order has no driver.
func (o *Order) raiseForDriver(now time.Time, name string, global bool, data map[string]any) {
	o.raise(now, name, o.assignedDriverID, global || o.assignedDriverID == nil, data)
}

// Events returns the events recorded since the last ClearEvents.
func (o *Order) Events() []kernel.DomainEvent {
	out := make([]kernel.DomainEvent, len(o.events))
	copy(out, o.events)
	return out
}

func (o *Order) ClearEvents() {
	o.events = nil
}
