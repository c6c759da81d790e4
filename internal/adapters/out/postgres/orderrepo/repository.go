package orderrepo

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/adapters/out/postgres/pgconv"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

// aggregateTracker defines the interface for tracking aggregates.
type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

func NewGormOrderRepository(db *gorm.DB, tracker aggregateTracker) *GormOrderRepository {
	return &GormOrderRepository{
		db:      db,
		tracker: tracker,
	}
}

// Add saves a new order with its whole structure.
func (r *GormOrderRepository) Add(ctx context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto, rows := fromDomain(aggregate)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(&dto).Error; err != nil {
		return err
	}
	if err := r.upsertStructure(db, rows); err != nil {
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Update writes the order row and synchronizes the structure tables: rows that no
// longer exist in the aggregate are deleted, the others upserted.
func (r *GormOrderRepository) Update(ctx context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto, rows := fromDomain(aggregate)
	db := r.db.WithContext(ctx)
	result := db.Model(&OrderDTO{}).
		Omit(clause.Associations).
		Where("id = ?", dto.ID).
		Select("*").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("order", aggregate.ID().String())
	}

	if err := r.pruneStructure(db, dto.ID, rows); err != nil {
		return err
	}
	if err := r.upsertStructure(db, rows); err != nil {
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

func (r *GormOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return r.load(r.db.WithContext(ctx), id)
}

// GetForUpdate takes the row lock first, then loads the structure. Children are
// only ever written under the order's lock, so they need no lock of their own.
func (r *GormOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	db := r.db.WithContext(ctx)
	var locked OrderDTO
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&locked, "id = ?", id.Bytes()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("order", id.String())
		}
		return nil, err
	}

	return r.load(db, id)
}

// Delete removes the order row; the structure follows through ON DELETE CASCADE.
func (r *GormOrderRepository) Delete(ctx context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Delete(&OrderDTO{}, "id = ?", aggregate.ID().Bytes())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("order", aggregate.ID().String())
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// MarkFrozen bypasses the aggregate, which may not be restorable.
func (r *GormOrderRepository) MarkFrozen(ctx context.Context, id kernel.UUID, reason string) error {
	result := r.db.WithContext(ctx).Model(&OrderDTO{}).
		Where("id = ?", id.Bytes()).
		Updates(map[string]any{
			"frozen":        true,
			"frozen_reason": reason,
			"version":       gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("order", id.String())
	}
	return nil
}

func (r *GormOrderRepository) ListDueForDispatch(ctx context.Context, now time.Time, limit int) ([]kernel.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&OrderDTO{}).
		Where("status = ? AND NOT frozen", order.Pending.String()).
		Where("next_dispatch_at IS NULL OR next_dispatch_at <= ?", now).
		Order("priority DESC").
		Order("created_at").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return toKernelIDs(ids)
}

func (r *GormOrderRepository) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]kernel.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&OrderDTO{}).
		Where("status IN ? AND NOT frozen", []string{order.Offered.String(), order.AckPending.String()}).
		Where("offer_expires_at <= ?", now).
		Order("offer_expires_at").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return toKernelIDs(ids)
}

func (r *GormOrderRepository) CountOpenOffersByDrivers(
	ctx context.Context, driverIDs []kernel.UUID,
) (map[kernel.UUID]int, error) {
	counts := make(map[kernel.UUID]int, len(driverIDs))
	if len(driverIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		OfferDriverID uuid.UUID
		OpenOffers    int
	}
	err := r.db.WithContext(ctx).Model(&OrderDTO{}).
		Select("offer_driver_id, COUNT(*) AS open_offers").
		Where("status IN ? AND offer_driver_id IN ?",
			[]string{order.Offered.String(), order.AckPending.String()}, pgconv.UUIDs(driverIDs)).
		Group("offer_driver_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		id, idErr := pgconv.FromUUID(row.OfferDriverID)
		if idErr != nil {
			return nil, idErr
		}
		counts[id] = row.OpenOffers
	}
	return counts, nil
}

func (r *GormOrderRepository) load(db *gorm.DB, id kernel.UUID) (*order.Order, error) {
	var dto OrderDTO
	err := db.
		Preload("Steps", orderedBy("display_order")).
		Preload("Steps.Stops", orderedBy("display_order")).
		Preload("Steps.Stops.Actions", orderedBy("position")).
		Preload("Steps.Stops.Actions.Proofs", orderedBy("position")).
		First(&dto, "id = ?", id.Bytes()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("order", id.String())
		}
		return nil, err
	}
	return toDomain(dto)
}

// pruneStructure deletes rows purged from the aggregate, deepest tables first.
func (r *GormOrderRepository) pruneStructure(db *gorm.DB, orderID uuid.UUID, rows structureRows) error {
	proofIDs := make([]uuid.UUID, 0, len(rows.proofs))
	for _, p := range rows.proofs {
		proofIDs = append(proofIDs, p.ID)
	}
	actionIDs := make([]uuid.UUID, 0, len(rows.actions))
	for _, a := range rows.actions {
		actionIDs = append(actionIDs, a.ID)
	}
	stopIDs := make([]uuid.UUID, 0, len(rows.stops))
	for _, s := range rows.stops {
		stopIDs = append(stopIDs, s.ID)
	}
	stepIDs := make([]uuid.UUID, 0, len(rows.steps))
	for _, s := range rows.steps {
		stepIDs = append(stepIDs, s.ID)
	}

	return errors.Join(
		deleteMissing(db, &ProofDTO{}, orderID, proofIDs),
		deleteMissing(db, &ActionDTO{}, orderID, actionIDs),
		deleteMissing(db, &StopDTO{}, orderID, stopIDs),
		deleteMissing(db, &StepDTO{}, orderID, stepIDs),
	)
}

func deleteMissing(db *gorm.DB, model any, orderID uuid.UUID, keep []uuid.UUID) error {
	q := db.Where("order_id = ?", orderID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	return q.Delete(model).Error
}

func (r *GormOrderRepository) upsertStructure(db *gorm.DB, rows structureRows) error {
	upsert := db.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true})
	if len(rows.steps) > 0 {
		if err := upsert.Create(&rows.steps).Error; err != nil {
			return err
		}
	}
	if len(rows.stops) > 0 {
		if err := upsert.Create(&rows.stops).Error; err != nil {
			return err
		}
	}
	if len(rows.actions) > 0 {
		if err := upsert.Create(&rows.actions).Error; err != nil {
			return err
		}
	}
	if len(rows.proofs) > 0 {
		if err := upsert.Create(&rows.proofs).Error; err != nil {
			return err
		}
	}
	return nil
}

func orderedBy(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(column)
	}
}

func toKernelIDs(raw []uuid.UUID) ([]kernel.UUID, error) {
	ids := make([]kernel.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := kernel.UUIDFromBytes(r[:])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func errInconsistentOffer(id uuid.UUID) error {
	return errs.NewCorruptionError("order "+id.String(), "offer driver without offer window")
}
