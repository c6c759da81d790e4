package commands_test

import (
	"testing"

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

func TestEditOrderStructureCommandHandler_Handle_GovernedStopGetsShadow(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	o, m := assignedOrder(t, d)
	target := o.DriverExecutionList()[1]
	address := "12 Quai de Valmy"
	factory := newUoWFactory()
	scheduler := new(MockRouteScheduler)

	factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	factory.uow.missions.On("ListByOrderForUpdate", ctx, o.ID()).Return([]*mission.Mission{m}, nil).Once()
	factory.uow.orders.On("Update", ctx, o).Return(nil).Once()
	scheduler.On("Schedule", o.ID(), route.ClientView).Once()

	cmd, err := commands.NewEditOrderStructureCommand(o.ID(), []order.Edit{
		order.UpdateStop{StopID: target.ID(), Changes: order.StopChanges{Address: &address}},
	})
	require.NoError(t, err)
	handler := commands.NewEditOrderStructureCommandHandler(factory, scheduler, services.DefaultDispatchConfig(), fixedClock(t0))
	require.NoError(t, handler.Handle(ctx, cmd))

	assert.True(t, o.HasPendingChanges())
	assert.Equal(t, "B", o.DriverExecutionList()[1].Address(), "the driver keeps the canonical stop")
	assert.Equal(t, address, o.VirtualState(route.ClientView, nil).Stops[1].Address)
	factory.assertCommitted(t)
	factory.uow.missions.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	scheduler.AssertExpectations(t)
	scheduler.AssertNotCalled(t, "Schedule", o.ID(), route.DriverView)
}

func TestEditOrderStructureCommandHandler_Handle_FinishedOrderRejected(t *testing.T) {
	ctx := t.Context()
	o := pendingOrder(t, nil)
	require.NoError(t, o.Cancel(t0))
	address := "x"
	factory := newUoWFactory()
	scheduler := new(MockRouteScheduler)

	factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	factory.uow.missions.On("ListByOrderForUpdate", ctx, o.ID()).Return([]*mission.Mission{}, nil).Once()

	cmd, err := commands.NewEditOrderStructureCommand(o.ID(), []order.Edit{
		order.UpdateStop{StopID: o.DriverExecutionList()[0].ID(), Changes: order.StopChanges{Address: &address}},
	})
	require.NoError(t, err)
	err = commands.NewEditOrderStructureCommandHandler(factory, scheduler, services.DefaultDispatchConfig(), fixedClock(t0)).
		Handle(ctx, cmd)

	var violation *errs.RuleViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, order.ReasonOrderFinished, violation.Code)
	factory.assertNotCommitted(t)
	scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestNewEditOrderStructureCommand_EditsRequired(t *testing.T) {
	_, err := commands.NewEditOrderStructureCommand(kernel.NewUUID(), nil)

	require.ErrorIs(t, err, commands.ErrEditsAreRequired)
}

func TestMergeCheckpointCommandHandler_Handle_PromotesPendingChanges(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	o, m := assignedOrder(t, d)
	address := "12 Quai de Valmy"
	require.NoError(t, o.ApplyStructuralEdit([]order.Edit{
		order.UpdateStop{StopID: o.DriverExecutionList()[1].ID(), Changes: order.StopChanges{Address: &address}},
	}, mission.Scope{m}, order.ProofPolicy{}, t0))
	factory := newUoWFactory()
	scheduler := new(MockRouteScheduler)

	factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	factory.uow.missions.On("ListByOrderForUpdate", ctx, o.ID()).Return([]*mission.Mission{m}, nil).Once()
	factory.uow.missions.On("Update", ctx, m).Return(nil).Once()
	factory.uow.orders.On("Update", ctx, o).Return(nil).Once()
	scheduler.On("Schedule", o.ID(), route.DriverView).Once()
	scheduler.On("Schedule", o.ID(), route.ClientView).Once()

	cmd, err := commands.NewMergeCheckpointCommand(o.ID())
	require.NoError(t, err)
	res, err := commands.NewMergeCheckpointCommandHandler(factory, scheduler, fixedClock(t0)).Handle(ctx, cmd)
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.False(t, o.HasPendingChanges())
	assert.Equal(t, address, o.DriverExecutionList()[1].Address())
	for _, replacement := range res.ReplacedSteps {
		assert.True(t, m.GovernsStep(replacement))
	}
	factory.assertCommitted(t)
	scheduler.AssertExpectations(t)
}

func TestMergeCheckpointCommandHandler_Handle_NothingPending(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	o, m := assignedOrder(t, d)
	factory := newUoWFactory()
	scheduler := new(MockRouteScheduler)

	factory.uow.orders.On("GetForUpdate", ctx, o.ID()).Return(o, nil).Once()
	factory.uow.missions.On("ListByOrderForUpdate", ctx, o.ID()).Return([]*mission.Mission{m}, nil).Once()

	cmd, err := commands.NewMergeCheckpointCommand(o.ID())
	require.NoError(t, err)
	res, err := commands.NewMergeCheckpointCommandHandler(factory, scheduler, fixedClock(t0)).Handle(ctx, cmd)
	require.NoError(t, err)

	assert.False(t, res.Changed)
	factory.uow.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}
