package commands

import (
	"context"

	"dispatch/internal/core/ports"
)

// RecordPositionCommandHandler writes only to the location buffer; the database
// sees positions at flush time.
type RecordPositionCommandHandler struct {
	buffer ports.LocationBuffer
}

func NewRecordPositionCommandHandler(buffer ports.LocationBuffer) RecordPositionCommandHandler {
	return RecordPositionCommandHandler{buffer: buffer}
}

func (h RecordPositionCommandHandler) Handle(ctx context.Context, cmd RecordPositionCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return h.buffer.Record(ctx, cmd.Position())
}
