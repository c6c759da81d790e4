package commands_test

import (
	"errors"
	"testing"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDispatchPendingOrdersCommandHandler_Handle(t *testing.T) {
	ctx := t.Context()
	offered, lonely, taken, broken := kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID()
	factory := newUoWFactory()
	dispatcher := new(MockDispatcher)

	factory.uow.orders.On("ListDueForDispatch", ctx, t0, mock.AnythingOfType("int")).
		Return([]kernel.UUID{offered, lonely, taken, broken}, nil).Once()
	dispatcher.On("Handle", ctx, offered).Return(nil).Once()
	dispatcher.On("Handle", ctx, lonely).Return(services.ErrNoCandidates).Once()
	dispatcher.On("Handle", ctx, taken).Return(errs.NewRuleViolationError("NOT_PENDING", "already offered")).Once()
	dispatcher.On("Handle", ctx, broken).Return(errors.New("connection reset")).Once()

	handler := commands.NewDispatchPendingOrdersCommandHandler(factory, dispatcher, fixedClock(t0))
	n, err := handler.Handle(ctx, commands.NewDispatchPendingOrdersCommand())

	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, services.ErrNoCandidates)
	assert.Equal(t, 1, n)
	dispatcher.AssertExpectations(t)
}

func TestDispatchPendingOrdersCommandHandler_Handle_NothingDue(t *testing.T) {
	ctx := t.Context()
	factory := newUoWFactory()
	dispatcher := new(MockDispatcher)

	factory.uow.orders.On("ListDueForDispatch", ctx, t0, mock.AnythingOfType("int")).
		Return([]kernel.UUID{}, nil).Once()

	handler := commands.NewDispatchPendingOrdersCommandHandler(factory, dispatcher, fixedClock(t0))
	n, err := handler.Handle(ctx, commands.NewDispatchPendingOrdersCommand())

	require.NoError(t, err)
	assert.Zero(t, n)
	dispatcher.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestDispatchPendingOrdersCommandHandler_Handle_NotConstructed(t *testing.T) {
	handler := commands.NewDispatchPendingOrdersCommandHandler(newUoWFactory(), new(MockDispatcher), fixedClock(t0))

	_, err := handler.Handle(t.Context(), commands.DispatchPendingOrdersCommand{})

	assert.ErrorIs(t, err, commands.ErrDispatchPendingOrdersCommandIsNotConstructed)
}
