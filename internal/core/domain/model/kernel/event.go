package kernel

import "time"

// DomainEvent is a fact recorded by an aggregate during a transaction and published
// after commit. Sequence is the aggregate version at the time of the change, so
// consumers can order and de-duplicate per aggregate.
type DomainEvent struct {
	Name        string
	AggregateID UUID
	MissionID   *UUID
	// DriverID routes the event to the driver's private channel. Global events are
	// also (or only) emitted to the global channel.
	DriverID   *UUID
	Global     bool
	Sequence   int64
	OccurredAt time.Time
	Data       map[string]any
}
