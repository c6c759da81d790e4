package commands_test

import (
	"testing"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/zone"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func circleZone(t *testing.T) *zone.Zone {
	t.Helper()
	shape, err := zone.NewCircle(mustPoint(t, 48.85, 2.35), 3)
	require.NoError(t, err)
	z, err := zone.NewZone(kernel.NewUUID(), "Center", zone.Platform, nil, shape)
	require.NoError(t, err)
	return z
}

func TestZoneCommandHandler_Create(t *testing.T) {
	ctx := t.Context()
	factory := newUoWFactory()
	factory.uow.zones.On("Add", ctx, mock.AnythingOfType("*zone.Zone")).Return(nil).Once()

	shape, err := zone.NewCircle(mustPoint(t, 48.85, 2.35), 3)
	require.NoError(t, err)
	cmd, err := commands.NewCreateZoneCommand(kernel.NewUUID(), "Center", zone.Platform, nil, shape)
	require.NoError(t, err)

	require.NoError(t, commands.NewZoneCommandHandler(factory).Create(ctx, cmd))
	factory.assertCommitted(t)
}

func TestZoneCommandHandler_AssignDriver(t *testing.T) {
	ctx := t.Context()
	z := circleZone(t)
	d := onlineDriver(t)
	factory := newUoWFactory()

	factory.uow.drivers.On("Get", ctx, d.ID()).Return(d, nil).Once()
	factory.uow.zones.On("Get", ctx, z.ID()).Return(z, nil).Once()
	factory.uow.zones.On("Update", ctx, z).Return(nil).Once()

	cmd, err := commands.NewAssignZoneDriverCommand(z.ID(), d.ID())
	require.NoError(t, err)

	require.NoError(t, commands.NewZoneCommandHandler(factory).AssignDriver(ctx, cmd))
	assert.True(t, z.IsAssigned(d.ID()))
}

func TestZoneCommandHandler_AssignDriver_UnknownDriver(t *testing.T) {
	ctx := t.Context()
	z := circleZone(t)
	driverID := kernel.NewUUID()
	factory := newUoWFactory()

	factory.uow.drivers.On("Get", ctx, driverID).
		Return(nil, errs.NewObjectNotFoundError("driver", driverID.String())).Once()

	cmd, err := commands.NewAssignZoneDriverCommand(z.ID(), driverID)
	require.NoError(t, err)

	err = commands.NewZoneCommandHandler(factory).AssignDriver(ctx, cmd)

	require.ErrorIs(t, err, errs.ErrObjectNotFound)
	factory.uow.zones.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	factory.assertNotCommitted(t)
}
