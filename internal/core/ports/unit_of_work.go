package ports

import (
	"context"
)

// UnitOfWorkFactory creates a fresh UnitOfWork per command.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UnitOfWork is a business transaction. Domain events of the aggregates updated
// through its repositories are published in commit order once Commit succeeds.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() OrderRepository
	MissionRepository() MissionRepository
	DriverRepository() DriverRepository
	ZoneRepository() ZoneRepository
}
