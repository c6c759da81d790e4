package commands_test

import (
	"errors"
	"testing"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/location"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRecordPositionCommandHandler_Handle(t *testing.T) {
	ctx := t.Context()
	buffer := new(MockLocationBuffer)
	driverID := kernel.NewUUID()

	cmd, err := commands.NewRecordPositionCommand(driverID, 48.85, 2.35, 90, t0)
	require.NoError(t, err)
	buffer.On("Record", ctx, cmd.Position()).Return(nil).Once()

	require.NoError(t, commands.NewRecordPositionCommandHandler(buffer).Handle(ctx, cmd))
	buffer.AssertExpectations(t)
}

func TestNewRecordPositionCommand_Invalid(t *testing.T) {
	_, err := commands.NewRecordPositionCommand(kernel.NewUUID(), 91, 2.35, 360, time.Time{})

	require.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
	require.ErrorIs(t, err, errs.ErrValueIsRequired)
}

func TestFlushLocationsCommandHandler_Handle(t *testing.T) {
	ctx := t.Context()
	p, err := location.NewPosition(kernel.NewUUID(), 48.85, 2.35, 0, t0)
	require.NoError(t, err)
	batch := []location.Position{p}

	t.Run("writes the drained batch and completes the flush", func(t *testing.T) {
		buffer := new(MockLocationBuffer)
		history := new(MockLocationHistory)
		buffer.On("BeginFlush", ctx).Return(batch, nil).Once()
		history.On("InsertBatch", ctx, batch).Return(nil).Once()
		buffer.On("CompleteFlush", ctx).Return(nil).Once()

		n, err := commands.NewFlushLocationsCommandHandler(buffer, history).Handle(ctx, commands.NewFlushLocationsCommand())
		require.NoError(t, err)

		assert.Equal(t, 1, n)
		buffer.AssertExpectations(t)
		history.AssertExpectations(t)
	})

	t.Run("empty buffer skips the database", func(t *testing.T) {
		buffer := new(MockLocationBuffer)
		history := new(MockLocationHistory)
		buffer.On("BeginFlush", ctx).Return([]location.Position{}, nil).Once()

		n, err := commands.NewFlushLocationsCommandHandler(buffer, history).Handle(ctx, commands.NewFlushLocationsCommand())
		require.NoError(t, err)

		assert.Zero(t, n)
		history.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
		buffer.AssertNotCalled(t, "CompleteFlush", mock.Anything)
	})

	t.Run("failed insert keeps the batch for the next run", func(t *testing.T) {
		buffer := new(MockLocationBuffer)
		history := new(MockLocationHistory)
		buffer.On("BeginFlush", ctx).Return(batch, nil).Once()
		history.On("InsertBatch", ctx, batch).Return(errors.New("connection reset")).Once()

		_, err := commands.NewFlushLocationsCommandHandler(buffer, history).Handle(ctx, commands.NewFlushLocationsCommand())

		require.ErrorContains(t, err, "connection reset")
		buffer.AssertNotCalled(t, "CompleteFlush", mock.Anything)
	})
}
