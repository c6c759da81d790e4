package commands_test

import (
	"errors"
	"testing"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/mission"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type acceptFixture struct {
	factory   *MockUoWFactory
	watcher   *MockOfferWatcher
	scheduler *MockRouteScheduler
	recorder  *MockRecorder
	handler   commands.AcceptOfferCommandHandler
}

func newAcceptFixture(at time.Time) acceptFixture {
	f := acceptFixture{
		factory:   newUoWFactory(),
		watcher:   new(MockOfferWatcher),
		scheduler: new(MockRouteScheduler),
		recorder:  new(MockRecorder),
	}
	f.handler = commands.NewAcceptOfferCommandHandler(f.factory, services.NewOrderDispatcher(services.DefaultDispatchConfig()),
		f.watcher, f.scheduler, f.recorder, fixedClock(at))
	return f
}

func TestAcceptOfferCommandHandler_Handle_Success(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	o := offeredOrder(t, d.ID())
	f := newAcceptFixture(t0.Add(5 * time.Second))

	f.factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	f.factory.uow.drivers.On("GetForUpdate", ctx, d.ID()).Return(d, nil).Once()
	f.factory.uow.missions.On("ListActiveByDriver", ctx, d.ID()).Return([]*mission.Mission{}, nil).Once()
	f.factory.uow.missions.On("Add", ctx, mock.AnythingOfType("*mission.Mission")).Return(nil).Once()
	f.factory.uow.orders.On("Update", ctx, o).Return(nil).Once()
	f.watcher.On("Stop", o.ID()).Once()
	f.recorder.On("OfferResolved", commands.OutcomeAccepted).Once()
	f.scheduler.On("Schedule", o.ID(), route.DriverView).Once()

	cmd, err := commands.NewAcceptOfferCommand(o.ID(), d.ID())
	require.NoError(t, err)
	require.NoError(t, f.handler.Handle(ctx, cmd))

	assert.Equal(t, order.Assigned, o.Status())
	require.NotNil(t, o.AssignedDriverID())
	assert.Equal(t, d.ID(), *o.AssignedDriverID())
	require.NotNil(t, o.MissionID())
	f.factory.assertCommitted(t)
	f.factory.uow.missions.AssertExpectations(t)
	f.watcher.AssertExpectations(t)
	f.scheduler.AssertExpectations(t)
	f.recorder.AssertExpectations(t)
}

func TestAcceptOfferCommandHandler_Handle_SecondAcceptLoses(t *testing.T) {
	ctx := t.Context()
	winner := onlineDriver(t)
	loser := onlineDriver(t)
	o := offeredOrder(t, winner.ID())
	require.NoError(t, o.Accept(winner.ID(), kernel.NewUUID(), t0.Add(time.Second)))
	f := newAcceptFixture(t0.Add(2 * time.Second))

	f.factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	f.factory.uow.drivers.On("GetForUpdate", ctx, loser.ID()).Return(loser, nil).Once()

	cmd, err := commands.NewAcceptOfferCommand(o.ID(), loser.ID())
	require.NoError(t, err)
	err = f.handler.Handle(ctx, cmd)

	var rv *errs.RuleViolationError
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, order.ReasonNotOfferHolder, rv.Code)
	f.factory.assertNotCommitted(t)
	f.factory.uow.missions.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	f.scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestAcceptOfferCommandHandler_Handle_ExpiredOffer(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	o := offeredOrder(t, d.ID())
	f := newAcceptFixture(t0.Add(time.Minute))

	f.factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	f.factory.uow.drivers.On("GetForUpdate", ctx, d.ID()).Return(d, nil).Once()

	cmd, err := commands.NewAcceptOfferCommand(o.ID(), d.ID())
	require.NoError(t, err)
	err = f.handler.Handle(ctx, cmd)

	var rv *errs.RuleViolationError
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, order.ReasonOfferExpired, rv.Code)
	f.factory.assertNotCommitted(t)
}

func activeMission(t *testing.T, driverID kernel.UUID, destination kernel.GeoPoint) *mission.Mission {
	t.Helper()
	m, err := mission.NewMission(kernel.NewUUID(), kernel.NewUUID(), driverID,
		[]kernel.UUID{kernel.NewUUID()}, destination, t0.Add(-time.Hour))
	require.NoError(t, err)
	return m
}

func TestAcceptOfferCommandHandler_Handle_WorkloadRechecked(t *testing.T) {
	tests := []struct {
		name   string
		active func(t *testing.T, driverID kernel.UUID) []*mission.Mission
		code   string
	}{
		{
			name: "cap reached by missions accepted since the offer",
			active: func(t *testing.T, driverID kernel.UUID) []*mission.Mission {
				near := mustPoint(t, 48.85, 2.35)
				return []*mission.Mission{activeMission(t, driverID, near), activeMission(t, driverID, near)}
			},
			code: services.ReasonConcurrentMissionCap,
		},
		{
			name: "current mission ends beyond the direct radius",
			active: func(t *testing.T, driverID kernel.UUID) []*mission.Mission {
				return []*mission.Mission{activeMission(t, driverID, mustPoint(t, 49.30, 2.35))}
			},
			code: services.ReasonChainingRadiusExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			d := onlineDriver(t)
			o := offeredOrder(t, d.ID())
			f := newAcceptFixture(t0.Add(5 * time.Second))

			f.factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
			f.factory.uow.drivers.On("GetForUpdate", ctx, d.ID()).Return(d, nil).Once()
			f.factory.uow.missions.On("ListActiveByDriver", ctx, d.ID()).Return(tt.active(t, d.ID()), nil).Once()

			cmd, err := commands.NewAcceptOfferCommand(o.ID(), d.ID())
			require.NoError(t, err)
			err = f.handler.Handle(ctx, cmd)

			var rv *errs.RuleViolationError
			require.ErrorAs(t, err, &rv)
			assert.Equal(t, tt.code, rv.Code)
			f.factory.assertNotCommitted(t)
			f.factory.uow.missions.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
			f.watcher.AssertNotCalled(t, "Stop", mock.Anything)
		})
	}
}

func TestAcceptOfferCommandHandler_Handle_ValidationError(t *testing.T) {
	f := newAcceptFixture(t0)

	err := f.handler.Handle(t.Context(), commands.AcceptOfferCommand{})

	require.ErrorIs(t, err, commands.ErrAcceptOfferCommandIsNotConstructed)
	f.factory.AssertNotCalled(t, "Create")
}

func TestAcceptOfferCommandHandler_Handle_BeginError(t *testing.T) {
	ctx := t.Context()
	uow := &MockUoW{}
	uow.On("Begin", ctx).Return(errors.New("begin error")).Once()
	factory := &MockUoWFactory{uow: uow}
	factory.On("Create").Return().Once()
	handler := commands.NewAcceptOfferCommandHandler(factory, services.NewOrderDispatcher(services.DefaultDispatchConfig()),
		new(MockOfferWatcher), new(MockRouteScheduler), commands.NopRecorder{}, fixedClock(t0))

	cmd, err := commands.NewAcceptOfferCommand(kernel.NewUUID(), kernel.NewUUID())
	require.NoError(t, err)

	require.EqualError(t, handler.Handle(ctx, cmd), "begin error")
	uow.AssertNotCalled(t, "Commit", mock.Anything)
}
