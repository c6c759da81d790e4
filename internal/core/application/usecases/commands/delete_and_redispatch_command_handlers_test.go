package commands_test

import (
	"errors"
	"testing"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/mission"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// assignedOrder is accepted by d; the returned mission is the one the accept created.
func assignedOrder(t *testing.T, d *driver.Driver) (*order.Order, *mission.Mission) {
	t.Helper()
	o := offeredOrder(t, d.ID())
	m, err := mission.NewMission(kernel.NewUUID(), o.ID(), d.ID(), o.UnfinishedStepIDs(), mustPoint(t, 48.86, 2.36), t0)
	require.NoError(t, err)
	require.NoError(t, o.Accept(d.ID(), m.ID(), t0.Add(time.Second)))
	o.ClearEvents()
	return o, m
}

func TestDeleteOrderCommandHandler_Handle_CancelsAndCleansUp(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	o, m := assignedOrder(t, d)
	factory := newUoWFactory()
	watcher := new(MockOfferWatcher)
	calls := new(MockOptimizerCalls)
	acks := new(MockAckStore)

	factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	factory.uow.missions.On("ListByOrderForUpdate", ctx, o.ID()).Return([]*mission.Mission{m}, nil).Once()
	factory.uow.orders.On("Delete", ctx, o).Return(nil).Once()
	factory.uow.drivers.On("GetForUpdate", ctx, d.ID()).Return(d, nil).Once()
	factory.uow.missions.On("ListActiveByDriver", ctx, d.ID()).Return([]*mission.Mission{}, nil).Once()
	calls.On("Cancel", o.ID()).Once()
	watcher.On("Stop", o.ID()).Once()
	acks.On("Clear", ctx, o.ID()).Return(nil).Once()

	cmd, err := commands.NewDeleteOrderCommand(o.ID())
	require.NoError(t, err)
	require.NoError(t, commands.NewDeleteOrderCommandHandler(factory, watcher, calls, acks, fixedClock(t0)).Handle(ctx, cmd))

	assert.Equal(t, order.Cancelled, o.Status())
	require.NotEmpty(t, o.Events())
	assert.Equal(t, order.EventDeleted, o.Events()[len(o.Events())-1].Name)
	factory.assertCommitted(t)
	factory.uow.orders.AssertExpectations(t)
	calls.AssertExpectations(t)
	watcher.AssertExpectations(t)
	acks.AssertExpectations(t)
}

func TestDeleteOrderCommandHandler_Handle_UnknownOrder(t *testing.T) {
	ctx := t.Context()
	id := kernel.NewUUID()
	factory := newUoWFactory()
	calls := new(MockOptimizerCalls)

	factory.uow.orders.On("GetForUpdate", ctx, id).Return(nil, errs.NewObjectNotFoundError("order", id)).Once()

	cmd, err := commands.NewDeleteOrderCommand(id)
	require.NoError(t, err)
	err = commands.NewDeleteOrderCommandHandler(factory, new(MockOfferWatcher), calls, new(MockAckStore), fixedClock(t0)).
		Handle(ctx, cmd)

	require.ErrorIs(t, err, errs.ErrObjectNotFound)
	factory.assertNotCommitted(t)
	calls.AssertNotCalled(t, "Cancel", mock.Anything)
}

func TestRedispatchOrderCommandHandler_Handle_FailsMissionAndOffersAgain(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	o, m := assignedOrder(t, d)
	factory := newUoWFactory()
	watcher := new(MockOfferWatcher)
	calls := new(MockOptimizerCalls)
	acks := new(MockAckStore)
	dispatcher := new(MockDispatcher)

	factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	factory.uow.missions.On("ListByOrderForUpdate", ctx, o.ID()).Return([]*mission.Mission{m}, nil).Once()
	factory.uow.missions.On("Update", ctx, m).Return(nil).Once()
	factory.uow.drivers.On("GetForUpdate", ctx, d.ID()).Return(d, nil).Once()
	factory.uow.missions.On("ListActiveByDriver", ctx, d.ID()).Return([]*mission.Mission{}, nil).Once()
	factory.uow.orders.On("Update", ctx, o).Return(nil).Once()
	watcher.On("Stop", o.ID()).Once()
	calls.On("Cancel", o.ID()).Once()
	acks.On("Clear", ctx, o.ID()).Return(nil).Once()
	dispatcher.On("Handle", ctx, o.ID()).Return(services.ErrNoCandidates).Once()

	cmd, err := commands.NewRedispatchOrderCommand(o.ID())
	require.NoError(t, err)
	err = commands.NewRedispatchOrderCommandHandler(factory, watcher, calls, acks, dispatcher, fixedClock(t0.Add(time.Minute))).
		Handle(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, order.Pending, o.Status())
	assert.Nil(t, o.AssignedDriverID())
	assert.Equal(t, 0, o.AttemptCount())
	assert.False(t, m.IsActive())
	assert.Equal(t, "REASSIGNED", m.FailureReason())
	factory.assertCommitted(t)
	dispatcher.AssertExpectations(t)
	calls.AssertExpectations(t)
}

func TestRedispatchOrderCommandHandler_Handle_DispatchFailureSurfaces(t *testing.T) {
	ctx := t.Context()
	o := pendingOrder(t, nil)
	factory := newUoWFactory()
	watcher := new(MockOfferWatcher)
	calls := new(MockOptimizerCalls)
	acks := new(MockAckStore)
	dispatcher := new(MockDispatcher)

	factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	factory.uow.missions.On("ListByOrderForUpdate", ctx, o.ID()).Return([]*mission.Mission{}, nil).Once()
	factory.uow.orders.On("Update", ctx, o).Return(nil).Once()
	watcher.On("Stop", o.ID()).Once()
	calls.On("Cancel", o.ID()).Once()
	acks.On("Clear", ctx, o.ID()).Return(nil).Once()
	dispatcher.On("Handle", ctx, o.ID()).Return(errors.New("redis down")).Once()

	cmd, err := commands.NewRedispatchOrderCommand(o.ID())
	require.NoError(t, err)
	err = commands.NewRedispatchOrderCommandHandler(factory, watcher, calls, acks, dispatcher, fixedClock(t0)).
		Handle(ctx, cmd)

	require.EqualError(t, err, "redis down")
	factory.assertCommitted(t)
}
