package commands_test

import (
	"errors"
	"testing"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/location"
	"dispatch/internal/core/domain/model/mission"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/domain/services"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recalculateFixture struct {
	factory   *MockUoWFactory
	optimizer *MockOptimizer
	locations *MockLocationBuffer
	calls     *MockOptimizerCalls
	recorder  *MockRecorder
	handler   commands.RecalculateRouteCommandHandler
}

func newRecalculateFixture() recalculateFixture {
	f := recalculateFixture{
		factory:   newUoWFactory(),
		optimizer: new(MockOptimizer),
		locations: new(MockLocationBuffer),
		calls:     new(MockOptimizerCalls),
		recorder:  new(MockRecorder),
	}
	f.calls.On("Begin", mock.Anything, mock.Anything).Maybe()
	f.handler = commands.NewRecalculateRouteCommandHandler(f.factory, f.optimizer, f.locations, f.calls,
		f.recorder, services.DefaultDispatchConfig(), fixedClock(t0))
	return f
}

// planFor sequences every stop of state in the given order.
func planFor(state route.VirtualState) route.Plan {
	plan := route.Plan{DurationSeconds: 900, DistanceMeters: 4200}
	for i, s := range state.Stops {
		plan.Sequence = append(plan.Sequence, route.SequencedStop{StopID: s.StopID, Position: i + 1, ArrivalSeconds: 300 * (i + 1)})
		plan.Geometry = append(plan.Geometry, orb.Point{s.Point.Lng(), s.Point.Lat()})
	}
	return plan
}

func TestRecalculateRouteCommandHandler_Handle_DriverPlanApplied(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	o, m := assignedOrder(t, d)
	f := newRecalculateFixture()
	here := mustPoint(t, 48.84, 2.34)
	state := o.VirtualState(route.DriverView, &here)
	plan := planFor(state)

	f.factory.uow.orders.On("Get", ctx, o.ID()).Return(o, nil).Once()
	f.factory.uow.drivers.On("Get", ctx, d.ID()).Return(d, nil).Once()
	f.locations.On("Latest", ctx, d.ID()).Return(&location.Position{DriverID: d.ID(), Point: here}, nil).Once()
	f.optimizer.On("Calculate", mock.Anything, state, d.Vehicle()).Return(plan, nil).Once()
	f.factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	f.factory.uow.missions.On("ListByOrderForUpdate", ctx, o.ID()).Return([]*mission.Mission{m}, nil).Once()
	f.factory.uow.missions.On("Update", ctx, m).Return(nil).Once()
	f.factory.uow.orders.On("Update", ctx, o).Return(nil).Once()
	f.recorder.On("PlanApplied", route.DriverView).Once()

	cmd, err := commands.NewRecalculateRouteCommand(o.ID(), route.DriverView)
	require.NoError(t, err)
	require.NoError(t, f.handler.Handle(ctx, cmd))

	assert.Equal(t, 900, o.ETA().DurationSeconds)
	assert.Equal(t, 4200, o.ETA().DistanceMeters)
	for i, s := range o.DriverExecutionList() {
		require.NotNil(t, s.ExecutionOrder())
		assert.Equal(t, i+1, *s.ExecutionOrder())
	}
	f.optimizer.AssertExpectations(t)
	f.calls.AssertCalled(t, "Begin", ctx, o.ID())
	f.recorder.AssertExpectations(t)
}

func TestRecalculateRouteCommandHandler_Handle_StalePlanDiscarded(t *testing.T) {
	ctx := t.Context()
	o := pendingOrder(t, nil)
	f := newRecalculateFixture()
	address := "edited meanwhile"

	f.factory.uow.orders.On("Get", ctx, o.ID()).Return(o, nil).Once()
	f.optimizer.On("Calculate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			state := args.Get(1).(route.VirtualState)
			require.NoError(t, o.ApplyStructuralEdit([]order.Edit{
				order.UpdateStop{StopID: state.Stops[0].StopID, Changes: order.StopChanges{Address: &address}},
			}, nil, order.ProofPolicy{}, t0))
		}).
		Return(route.Plan{DurationSeconds: 60}, nil).Once()
	f.factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	f.factory.uow.missions.On("ListByOrderForUpdate", ctx, o.ID()).Return([]*mission.Mission{}, nil).Once()
	f.recorder.On("PlanDiscarded", route.ClientView).Once()

	cmd, err := commands.NewRecalculateRouteCommand(o.ID(), route.ClientView)
	require.NoError(t, err)
	require.NoError(t, f.handler.Handle(ctx, cmd))

	assert.Zero(t, o.ETA().DurationSeconds)
	f.factory.uow.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.recorder.AssertExpectations(t)
}

func TestRecalculateRouteCommandHandler_Handle_OptimizerFailure(t *testing.T) {
	ctx := t.Context()
	o := pendingOrder(t, nil)
	f := newRecalculateFixture()

	f.factory.uow.orders.On("Get", ctx, o.ID()).Return(o, nil).Once()
	f.optimizer.On("Calculate", mock.Anything, mock.Anything, mock.Anything).
		Return(route.Plan{}, errors.New("upstream 503")).Once()

	cmd, err := commands.NewRecalculateRouteCommand(o.ID(), route.ClientView)
	require.NoError(t, err)
	err = f.handler.Handle(ctx, cmd)

	require.ErrorIs(t, err, commands.ErrRouteRecalculationFailed)
	assert.Contains(t, err.Error(), "upstream 503")
	f.factory.uow.orders.AssertNotCalled(t, "GetForUpdate", mock.Anything, mock.Anything)
	f.recorder.AssertNotCalled(t, "PlanApplied", mock.Anything)
	f.recorder.AssertNotCalled(t, "PlanDiscarded", mock.Anything)
}
