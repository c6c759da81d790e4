package nats_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	nats_adapter "dispatch/internal/adapters/out/nats"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConn struct {
	mock.Mock
}

func (m *MockConn) Publish(subject string, data []byte) error {
	return m.Called(subject, data).Error(0)
}

func TestEventPublisher_EmitToDriver(t *testing.T) {
	conn := new(MockConn)
	publisher := nats_adapter.NewEventPublisher(conn, "dispatch")
	driverID := kernel.NewUUID()
	event := kernel.DomainEvent{
		Name:        "order.offered",
		AggregateID: kernel.NewUUID(),
		DriverID:    &driverID,
		Sequence:    4,
		OccurredAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Data:        map[string]any{"expiresAt": "2025-03-01T10:00:15Z"},
	}

	var sent []byte
	conn.On("Publish", "dispatch.driver."+driverID.String(), mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]byte) }).
		Return(nil).Once()

	require.NoError(t, publisher.EmitToDriver(t.Context(), driverID, event))

	var env nats_adapter.Envelope
	require.NoError(t, json.Unmarshal(sent, &env))
	assert.Equal(t, "order.offered", env.Event)
	assert.Equal(t, event.AggregateID.String(), env.OrderID)
	assert.Equal(t, driverID.String(), env.DriverID)
	assert.Empty(t, env.MissionID)
	assert.Equal(t, int64(4), env.Sequence)
	assert.Equal(t, "2025-03-01T10:00:15Z", env.Data["expiresAt"])
	conn.AssertExpectations(t)
}

func TestEventPublisher_EmitToGlobal_WrapsConnError(t *testing.T) {
	conn := new(MockConn)
	publisher := nats_adapter.NewEventPublisher(conn, "dispatch")
	closed := errors.New("nats: connection closed")
	conn.On("Publish", "dispatch.global", mock.Anything).Return(closed).Once()

	err := publisher.EmitToGlobal(t.Context(), kernel.DomainEvent{Name: "order.deleted", AggregateID: kernel.NewUUID()})

	require.ErrorIs(t, err, closed)
	assert.Contains(t, err.Error(), "order.deleted")
}
