package commands

import (
	"context"
	"fmt"

	"dispatch/internal/core/ports"
)

// FlushLocationsCommandHandler drains the buffered positions into the history.
// When the insert fails the drained batch stays aside in the buffer and is
// flushed first next time.
type FlushLocationsCommandHandler struct {
	buffer  ports.LocationBuffer
	history ports.LocationHistoryRepository
}

func NewFlushLocationsCommandHandler(
	buffer ports.LocationBuffer, history ports.LocationHistoryRepository,
) FlushLocationsCommandHandler {
	return FlushLocationsCommandHandler{buffer: buffer, history: history}
}

// Handle returns the number of rows written.
func (h FlushLocationsCommandHandler) Handle(ctx context.Context, cmd FlushLocationsCommand) (int, error) {
	if err := cmd.Validate(); err != nil {
		return 0, err
	}

	positions, err := h.buffer.BeginFlush(ctx)
	if err != nil {
		return 0, fmt.Errorf("drain location buffer: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	if err = h.history.InsertBatch(ctx, positions); err != nil {
		return 0, fmt.Errorf("insert location history: %w", err)
	}
	if err = h.buffer.CompleteFlush(ctx); err != nil {
		return len(positions), fmt.Errorf("complete location flush: %w", err)
	}
	return len(positions), nil
}
