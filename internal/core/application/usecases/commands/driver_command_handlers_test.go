package commands_test

import (
	"testing"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/mission"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func driverActiveMission(t *testing.T, driverID kernel.UUID) *mission.Mission {
	t.Helper()
	m, err := mission.NewMission(kernel.NewUUID(), kernel.NewUUID(), driverID,
		[]kernel.UUID{kernel.NewUUID()}, mustPoint(t, 48.86, 2.36), t0)
	require.NoError(t, err)
	return m
}

func TestDriverCommandHandler_Create(t *testing.T) {
	ctx := t.Context()
	factory := newUoWFactory()
	var added *driver.Driver
	factory.uow.drivers.On("Add", ctx, mock.AnythingOfType("*driver.Driver")).
		Run(func(args mock.Arguments) { added = args.Get(1).(*driver.Driver) }).
		Return(nil).Once()

	cmd, err := commands.NewCreateDriverCommand(kernel.NewUUID(), "Ann", nil, driver.Independent, "cycling-regular", 2)
	require.NoError(t, err)

	require.NoError(t, commands.NewDriverCommandHandler(factory).Create(ctx, cmd))
	require.NotNil(t, added)
	assert.Equal(t, "cycling-regular", added.VehicleProfile())
	assert.Equal(t, 2, added.Capacity())
	factory.assertCommitted(t)
}

func TestNewCreateDriverCommand_MissingNameAndMode(t *testing.T) {
	cmd, err := commands.NewCreateDriverCommand(kernel.NewUUID(), "", nil, driver.UnknownMode, "", 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrValueIsRequired)
	assert.ErrorIs(t, cmd.Validate(), commands.ErrCreateDriverCommandIsNotConstructed)
}

func TestDriverCommandHandler_ChangeWorkMode_BusyDriverTransitions(t *testing.T) {
	ctx := t.Context()
	company := kernel.NewUUID()
	d, err := driver.NewDriver(kernel.NewUUID(), "Ann", &company, driver.Independent)
	require.NoError(t, err)
	factory := newUoWFactory()

	factory.uow.drivers.On("GetForUpdate", ctx, d.ID()).Return(d, nil).Once()
	factory.uow.missions.On("ListActiveByDriver", ctx, d.ID()).
		Return([]*mission.Mission{driverActiveMission(t, d.ID())}, nil).Once()
	factory.uow.drivers.On("Update", ctx, d).Return(nil).Once()

	cmd, err := commands.NewChangeWorkModeCommand(d.ID(), driver.Enterprise)
	require.NoError(t, err)

	mode, err := commands.NewDriverCommandHandler(factory).ChangeWorkMode(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, driver.IndependentToEnterprise, mode)
	assert.False(t, d.CanReceiveNewMissions())
}

func TestDriverCommandHandler_ChangeWorkMode_IdleDriverSwitches(t *testing.T) {
	ctx := t.Context()
	company := kernel.NewUUID()
	d, err := driver.NewDriver(kernel.NewUUID(), "Ann", &company, driver.Enterprise)
	require.NoError(t, err)
	factory := newUoWFactory()

	factory.uow.drivers.On("GetForUpdate", ctx, d.ID()).Return(d, nil).Once()
	factory.uow.missions.On("ListActiveByDriver", ctx, d.ID()).Return([]*mission.Mission{}, nil).Once()
	factory.uow.drivers.On("Update", ctx, d).Return(nil).Once()

	cmd, err := commands.NewChangeWorkModeCommand(d.ID(), driver.Independent)
	require.NoError(t, err)

	mode, err := commands.NewDriverCommandHandler(factory).ChangeWorkMode(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, driver.Independent, mode)
}

func TestNewChangeWorkModeCommand_TransitionModeIsNotRequestable(t *testing.T) {
	_, err := commands.NewChangeWorkModeCommand(kernel.NewUUID(), driver.EnterpriseToIndependent)

	assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
}

func TestDriverCommandHandler_SetAvailability_UnknownZone(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	zoneID := kernel.NewUUID()
	factory := newUoWFactory()

	factory.uow.drivers.On("GetForUpdate", ctx, d.ID()).Return(d, nil).Once()
	factory.uow.zones.On("Get", ctx, zoneID).Return(nil, errs.NewObjectNotFoundError("zone", zoneID.String())).Once()

	cmd, err := commands.NewSetDriverAvailabilityCommand(d.ID(), false, &zoneID)
	require.NoError(t, err)

	err = commands.NewDriverCommandHandler(factory).SetAvailability(ctx, cmd)

	require.ErrorIs(t, err, errs.ErrObjectNotFound)
	assert.True(t, d.IsOnline())
	factory.uow.drivers.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDriverCommandHandler_SetAvailability_GoesOfflineWithoutZone(t *testing.T) {
	ctx := t.Context()
	d := onlineDriver(t)
	factory := newUoWFactory()

	factory.uow.drivers.On("GetForUpdate", ctx, d.ID()).Return(d, nil).Once()
	factory.uow.drivers.On("Update", ctx, d).Return(nil).Once()

	cmd, err := commands.NewSetDriverAvailabilityCommand(d.ID(), false, nil)
	require.NoError(t, err)

	require.NoError(t, commands.NewDriverCommandHandler(factory).SetAvailability(ctx, cmd))
	assert.False(t, d.IsOnline())
	assert.Nil(t, d.ActiveZoneID())
}
