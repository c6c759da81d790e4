// Package postgres provides the GORM-based Unit of Work of the dispatch engine.
// A unit of work wraps one database transaction, hands out repositories bound to
// it and publishes the domain events of the aggregates it tracked once the
// transaction is committed.
//
// Usage:
//
//	uow := factory.Create()
//	if err := uow.Begin(ctx); err != nil {
//	    return err
//	}
//	defer func() { _ = uow.Rollback(ctx) }()
//
//	o, err := uow.OrderRepository().GetForUpdate(ctx, orderID)
//	if err != nil {
//	    return err
//	}
//	if err := o.Accept(driverID, now); err != nil {
//	    return err
//	}
//	if err := uow.OrderRepository().Update(ctx, o); err != nil {
//	    return err
//	}
//
//	return uow.Commit(ctx) // publishes order.assigned
//
// Events are never published for a rolled back transaction, and a failed
// publication never undoes a commit: consumers recover missed events by
// re-reading the order, whose version is the event sequence.
package postgres

import (
	"context"

	"dispatch/internal/adapters/out/postgres/driverrepo"
	"dispatch/internal/adapters/out/postgres/missionrepo"
	"dispatch/internal/adapters/out/postgres/orderrepo"
	"dispatch/internal/adapters/out/postgres/zonerepo"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// eventSource is implemented by aggregates that record domain events.
type eventSource interface {
	Events() []kernel.DomainEvent
	ClearEvents()
}

// trackedAggregate is an aggregate written during the unit of work.
type trackedAggregate struct {
	ID        kernel.UUID
	Aggregate any
}

// GormUnitOfWorkFactory creates a fresh unit of work per business operation.
type GormUnitOfWorkFactory struct {
	db        *gorm.DB
	publisher ports.EventPublisher
	logger    zerolog.Logger
}

// NewGormUnitOfWorkFactory returns a factory whose units of work publish through
// publisher. A nil publisher drops events.
func NewGormUnitOfWorkFactory(db *gorm.DB, publisher ports.EventPublisher, logger zerolog.Logger) *GormUnitOfWorkFactory {
	return &GormUnitOfWorkFactory{
		db:        db,
		publisher: publisher,
		logger:    logger.With().Str("component", "unit_of_work").Logger(),
	}
}

func (f *GormUnitOfWorkFactory) Create() ports.UnitOfWork {
	return &GormUnitOfWork{
		db:                f.db,
		publisher:         f.publisher,
		logger:            f.logger,
		trackedAggregates: make([]trackedAggregate, 0),
	}
}

// GormUnitOfWork is not safe for concurrent use; every goroutine creates its own.
type GormUnitOfWork struct {
	db                *gorm.DB
	tx                *gorm.DB
	publisher         ports.EventPublisher
	logger            zerolog.Logger
	trackedAggregates []trackedAggregate
}

// Begin starts the transaction. Calling it again while a transaction is open is a no-op.
func (uow *GormUnitOfWork) Begin(ctx context.Context) error {
	if uow.tx != nil {
		return nil
	}

	uow.tx = uow.db.WithContext(ctx).Begin()
	if uow.tx.Error != nil {
		err := uow.tx.Error
		uow.tx = nil
		return err
	}

	return nil
}

// Commit commits the transaction and then publishes the tracked events in the
// order the aggregates were first written.
func (uow *GormUnitOfWork) Commit(ctx context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := uow.tx.Commit().Error
	uow.tx = nil
	if err != nil {
		uow.trackedAggregates = uow.trackedAggregates[:0]
		return err
	}

	uow.publishTracked(ctx)
	return nil
}

// Rollback discards the transaction and forgets the tracked aggregates.
func (uow *GormUnitOfWork) Rollback(_ context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := uow.tx.Rollback().Error
	uow.tx = nil
	uow.trackedAggregates = uow.trackedAggregates[:0]
	return err
}

func (uow *GormUnitOfWork) OrderRepository() ports.OrderRepository {
	return orderrepo.NewGormOrderRepository(uow.conn(), uow)
}

func (uow *GormUnitOfWork) MissionRepository() ports.MissionRepository {
	return missionrepo.NewGormMissionRepository(uow.conn())
}

func (uow *GormUnitOfWork) DriverRepository() ports.DriverRepository {
	return driverrepo.NewGormDriverRepository(uow.conn())
}

func (uow *GormUnitOfWork) ZoneRepository() ports.ZoneRepository {
	return zonerepo.NewGormZoneRepository(uow.conn())
}

// TrackAggregate registers an aggregate written through a repository. An
// aggregate written twice keeps its first position.
func (uow *GormUnitOfWork) TrackAggregate(id kernel.UUID, aggregate any) {
	for i := range uow.trackedAggregates {
		if uow.trackedAggregates[i].ID == id {
			uow.trackedAggregates[i].Aggregate = aggregate
			return
		}
	}
	uow.trackedAggregates = append(uow.trackedAggregates, trackedAggregate{
		ID:        id,
		Aggregate: aggregate,
	})
}

// conn returns the open transaction, or the pool when none is open.
func (uow *GormUnitOfWork) conn() *gorm.DB {
	if uow.tx != nil {
		return uow.tx
	}
	return uow.db
}

func (uow *GormUnitOfWork) publishTracked(ctx context.Context) {
	tracked := uow.trackedAggregates
	uow.trackedAggregates = make([]trackedAggregate, 0)

	for _, t := range tracked {
		source, ok := t.Aggregate.(eventSource)
		if !ok {
			continue
		}
		for _, event := range source.Events() {
			uow.publish(ctx, event)
		}
		source.ClearEvents()
	}
}

func (uow *GormUnitOfWork) publish(ctx context.Context, event kernel.DomainEvent) {
	if uow.publisher == nil {
		return
	}

	if event.DriverID != nil {
		if err := uow.publisher.EmitToDriver(ctx, *event.DriverID, event); err != nil {
			uow.logPublishFailure(err, event, "driver")
		}
	}
	if event.Global || event.DriverID == nil {
		if err := uow.publisher.EmitToGlobal(ctx, event); err != nil {
			uow.logPublishFailure(err, event, "global")
		}
	}
}

func (uow *GormUnitOfWork) logPublishFailure(err error, event kernel.DomainEvent, channel string) {
	uow.logger.Error().
		Err(err).
		Str("event", event.Name).
		Str("order_id", event.AggregateID.String()).
		Int64("sequence", event.Sequence).
		Str("channel", channel).
		Msg("failed to publish domain event")
}
