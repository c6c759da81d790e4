// Package nats publishes domain events on NATS subjects: one subject per driver
// and one global subject for operators.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"

	"github.com/nats-io/nats.go"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Envelope is the wire format of every event. Consumers de-duplicate on
// (orderId, sequence).
type Envelope struct {
	Event      string         `json:"event"`
	OrderID    string         `json:"orderId"`
	MissionID  string         `json:"missionId,omitempty"`
	DriverID   string         `json:"driverId,omitempty"`
	Sequence   int64          `json:"sequence"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

// Connect dials NATS with reconnects enabled forever; publishing during a
// reconnect is buffered by the client.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

type EventPublisher struct {
	conn   Conn
	prefix string
}

// NewEventPublisher publishes under prefix, e.g. "dispatch" gives
// "dispatch.driver.<id>" and "dispatch.global".
func NewEventPublisher(conn Conn, prefix string) *EventPublisher {
	return &EventPublisher{conn: conn, prefix: prefix}
}

func (p *EventPublisher) DriverSubject(driverID kernel.UUID) string {
	return p.prefix + ".driver." + driverID.String()
}

func (p *EventPublisher) GlobalSubject() string {
	return p.prefix + ".global"
}

func (p *EventPublisher) EmitToDriver(_ context.Context, driverID kernel.UUID, event kernel.DomainEvent) error {
	return p.publish(p.DriverSubject(driverID), event)
}

func (p *EventPublisher) EmitToGlobal(_ context.Context, event kernel.DomainEvent) error {
	return p.publish(p.GlobalSubject(), event)
}

func (p *EventPublisher) publish(subject string, event kernel.DomainEvent) error {
	data, err := json.Marshal(toEnvelope(event))
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Name, err)
	}
	if err = p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s on %s: %w", event.Name, subject, err)
	}
	return nil
}

func toEnvelope(event kernel.DomainEvent) Envelope {
	env := Envelope{
		Event:      event.Name,
		OrderID:    event.AggregateID.String(),
		Sequence:   event.Sequence,
		OccurredAt: event.OccurredAt,
		Data:       event.Data,
	}
	if event.MissionID != nil {
		env.MissionID = event.MissionID.String()
	}
	if event.DriverID != nil {
		env.DriverID = event.DriverID.String()
	}
	return env
}
