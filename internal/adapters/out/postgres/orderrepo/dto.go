// Package orderrepo persists the order aggregate. The structure is stored as four
// child tables (steps, stops, actions, proofs) sharing the order_id column, and each
// structural row carries the revision columns original_id, is_pending_change and
// is_delete_required of the shadow-copy model.
package orderrepo

import (
	"time"

	"dispatch/internal/adapters/out/postgres/pgconv"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/paulmach/orb"
)

// OrderDTO is the orders row.
type OrderDTO struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	CompanyID      *uuid.UUID     `gorm:"type:uuid;index"`
	Status         string         `gorm:"type:varchar(20);not null;index:idx_orders_dispatch,priority:1"`
	Priority       int            `gorm:"not null"`
	AssignmentMode string         `gorm:"type:varchar(10);not null"`
	TargetDriverID *uuid.UUID     `gorm:"type:uuid"`
	AttemptCount   int            `gorm:"not null"`
	Metadata       map[string]any `gorm:"type:jsonb;serializer:json"`
	RouteGeometry  orb.LineString `gorm:"type:jsonb;serializer:json"`

	ETADurationSeconds int
	ETADistanceMeters  int
	ETAArrivalAt       *time.Time

	OfferDriverID       *uuid.UUID `gorm:"type:uuid;index"`
	OfferedAt           *time.Time
	OfferExpiresAt      *time.Time `gorm:"index"`
	OfferAcknowledgedAt *time.Time

	TriedDrivers     pq.StringArray `gorm:"type:text[]"`
	NextDispatchAt   *time.Time     `gorm:"index:idx_orders_dispatch,priority:2"`
	Frozen           bool           `gorm:"not null;default:false"`
	FrozenReason     string         `gorm:"type:text"`
	AssignedDriverID *uuid.UUID     `gorm:"type:uuid;index"`
	MissionID        *uuid.UUID     `gorm:"type:uuid"`
	Version          int64          `gorm:"not null"`
	StructureVersion int64          `gorm:"not null"`
	CreatedAt        time.Time      `gorm:"not null"`
	UpdatedAt        time.Time      `gorm:"not null"`

	Steps []StepDTO `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderDTO) TableName() string {
	return "orders"
}

// RevisionDTO is embedded in every structural row.
type RevisionDTO struct {
	OriginalID       *uuid.UUID `gorm:"type:uuid"`
	IsPendingChange  bool       `gorm:"not null;default:false"`
	IsDeleteRequired bool       `gorm:"not null;default:false"`
}

type StepDTO struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey"`
	OrderID      uuid.UUID   `gorm:"type:uuid;not null;index"`
	DisplayOrder int         `gorm:"not null"`
	Linked       bool        `gorm:"not null"`
	Revision     RevisionDTO `gorm:"embedded"`

	Stops []StopDTO `gorm:"foreignKey:StepID;constraint:OnDelete:CASCADE"`
}

func (StepDTO) TableName() string {
	return "order_steps"
}

type StopDTO struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	StepID         uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Kind           string    `gorm:"type:varchar(10);not null"`
	Address        string    `gorm:"type:text"`
	Lat            float64   `gorm:"not null"`
	Lng            float64   `gorm:"not null"`
	ServiceSeconds int
	Flexible       bool
	DisplayOrder   int `gorm:"not null"`
	ExecutionOrder *int
	Status         string `gorm:"type:varchar(20);not null"`
	ArrivedAt      *time.Time
	CompletedAt    *time.Time
	FailureReason  string      `gorm:"type:text"`
	Revision       RevisionDTO `gorm:"embedded"`

	Actions []ActionDTO `gorm:"foreignKey:StopID;constraint:OnDelete:CASCADE"`
}

func (StopDTO) TableName() string {
	return "order_stops"
}

type ActionDTO struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	StopID      uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Position    int       `gorm:"not null"`
	Kind        string    `gorm:"type:varchar(10);not null"`
	Description string    `gorm:"type:text"`
	Status      string    `gorm:"type:varchar(20);not null"`
	CompletedAt *time.Time
	Revision    RevisionDTO `gorm:"embedded"`

	Proofs []ProofDTO `gorm:"foreignKey:ActionID;constraint:OnDelete:CASCADE"`
}

func (ActionDTO) TableName() string {
	return "order_actions"
}

type ProofDTO struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ActionID       uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Position       int       `gorm:"not null"`
	Type           string    `gorm:"type:varchar(20);not null"`
	ExpectedValue  string    `gorm:"type:text"`
	SubmittedValue string    `gorm:"type:text"`
	Attempts       int       `gorm:"not null"`
	Status         string    `gorm:"type:varchar(20);not null"`
	VerifiedAt     *time.Time
}

func (ProofDTO) TableName() string {
	return "action_proofs"
}

// Models lists every table of the aggregate for AutoMigrate, parents first.
func Models() []any {
	return []any{&OrderDTO{}, &StepDTO{}, &StopDTO{}, &ActionDTO{}, &ProofDTO{}}
}

// structureRows is the aggregate flattened per table, used to upsert the children
// without gorm's association saving.
type structureRows struct {
	steps   []StepDTO
	stops   []StopDTO
	actions []ActionDTO
	proofs  []ProofDTO
}

func fromDomain(o *order.Order) (OrderDTO, structureRows) {
	orderID := o.ID().Bytes()
	dto := OrderDTO{
		ID:                 orderID,
		CompanyID:          pgconv.NullableUUID(o.CompanyID()),
		Status:             o.Status().String(),
		Priority:           o.Priority(),
		AssignmentMode:     o.AssignmentMode().String(),
		TargetDriverID:     pgconv.NullableUUID(o.TargetDriverID()),
		AttemptCount:       o.AttemptCount(),
		Metadata:           o.Metadata(),
		RouteGeometry:      o.RouteGeometry(),
		ETADurationSeconds: o.ETA().DurationSeconds,
		ETADistanceMeters:  o.ETA().DistanceMeters,
		ETAArrivalAt:       o.ETA().ArrivalAt,
		TriedDrivers:       pgconv.UUIDArray(o.TriedDrivers()),
		NextDispatchAt:     o.NextDispatchAt(),
		Frozen:             o.IsFrozen(),
		FrozenReason:       o.FrozenReason(),
		AssignedDriverID:   pgconv.NullableUUID(o.AssignedDriverID()),
		MissionID:          pgconv.NullableUUID(o.MissionID()),
		Version:            o.Version(),
		StructureVersion:   o.StructureVersion(),
		CreatedAt:          o.CreatedAt(),
		UpdatedAt:          o.UpdatedAt(),
	}
	if offer := o.Offer(); offer != nil {
		driverID := offer.DriverID.Bytes()
		offeredAt, expiresAt := offer.OfferedAt, offer.ExpiresAt
		dto.OfferDriverID = &driverID
		dto.OfferedAt = &offeredAt
		dto.OfferExpiresAt = &expiresAt
		dto.OfferAcknowledgedAt = offer.AcknowledgedAt
	}

	var rows structureRows
	for _, st := range o.Steps() {
		stepID := st.ID().Bytes()
		rows.steps = append(rows.steps, StepDTO{
			ID:           stepID,
			OrderID:      orderID,
			DisplayOrder: st.DisplayOrder(),
			Linked:       st.Linked(),
			Revision:     revisionFromDomain(st.Revision()),
		})
		for _, sp := range st.Stops() {
			stopID := sp.ID().Bytes()
			rows.stops = append(rows.stops, StopDTO{
				ID:             stopID,
				StepID:         stepID,
				OrderID:        orderID,
				Kind:           sp.Kind().String(),
				Address:        sp.Address(),
				Lat:            sp.Point().Lat(),
				Lng:            sp.Point().Lng(),
				ServiceSeconds: sp.ServiceSeconds(),
				Flexible:       sp.Flexible(),
				DisplayOrder:   sp.DisplayOrder(),
				ExecutionOrder: sp.ExecutionOrder(),
				Status:         sp.Status().String(),
				ArrivedAt:      sp.ArrivedAt(),
				CompletedAt:    sp.CompletedAt(),
				FailureReason:  sp.FailureReason(),
				Revision:       revisionFromDomain(sp.Revision()),
			})
			for i, a := range sp.Actions() {
				actionID := a.ID().Bytes()
				rows.actions = append(rows.actions, ActionDTO{
					ID:          actionID,
					StopID:      stopID,
					OrderID:     orderID,
					Position:    i,
					Kind:        a.Kind().String(),
					Description: a.Description(),
					Status:      a.Status().String(),
					CompletedAt: a.CompletedAt(),
					Revision:    revisionFromDomain(a.Revision()),
				})
				for j, p := range a.Proofs() {
					rows.proofs = append(rows.proofs, ProofDTO{
						ID:             p.ID().Bytes(),
						ActionID:       actionID,
						OrderID:        orderID,
						Position:       j,
						Type:           p.Type().String(),
						ExpectedValue:  p.ExpectedValue(),
						SubmittedValue: p.SubmittedValue(),
						Attempts:       p.Attempts(),
						Status:         p.Status().String(),
						VerifiedAt:     p.VerifiedAt(),
					})
				}
			}
		}
	}
	return dto, rows
}

func revisionFromDomain(r order.Revision) RevisionDTO {
	return RevisionDTO{
		OriginalID:       pgconv.NullableUUID(r.OriginalID()),
		IsPendingChange:  r.IsPendingChange(),
		IsDeleteRequired: r.IsDeleteRequired(),
	}
}

func revisionToDomain(dto RevisionDTO) (order.Revision, error) {
	originalID, err := pgconv.FromNullableUUID(dto.OriginalID)
	if err != nil {
		return order.Revision{}, err
	}
	return order.RevisionFromColumns(originalID, dto.IsPendingChange, dto.IsDeleteRequired)
}

// toDomain expects the children preloaded and sorted.
func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}
	mode, err := order.ParseAssignmentMode(dto.AssignmentMode)
	if err != nil {
		return nil, err
	}
	companyID, err := pgconv.FromNullableUUID(dto.CompanyID)
	if err != nil {
		return nil, err
	}
	targetDriverID, err := pgconv.FromNullableUUID(dto.TargetDriverID)
	if err != nil {
		return nil, err
	}
	assignedDriverID, err := pgconv.FromNullableUUID(dto.AssignedDriverID)
	if err != nil {
		return nil, err
	}
	missionID, err := pgconv.FromNullableUUID(dto.MissionID)
	if err != nil {
		return nil, err
	}
	tried, err := pgconv.FromUUIDArray(dto.TriedDrivers)
	if err != nil {
		return nil, err
	}
	offer, err := offerToDomain(dto)
	if err != nil {
		return nil, err
	}

	steps := make([]*order.Step, 0, len(dto.Steps))
	for _, stepDTO := range dto.Steps {
		st, stepErr := stepToDomain(stepDTO)
		if stepErr != nil {
			return nil, stepErr
		}
		steps = append(steps, st)
	}

	return order.RestoreOrder(order.RestoreOrderParams{
		ID:             id,
		CompanyID:      companyID,
		Status:         status,
		Priority:       dto.Priority,
		Mode:           mode,
		TargetDriverID: targetDriverID,
		AttemptCount:   dto.AttemptCount,
		Metadata:       dto.Metadata,
		RouteGeometry:  dto.RouteGeometry,
		ETA: order.ETA{
			DurationSeconds: dto.ETADurationSeconds,
			DistanceMeters:  dto.ETADistanceMeters,
			ArrivalAt:       dto.ETAArrivalAt,
		},
		Offer:            offer,
		TriedDrivers:     tried,
		NextDispatchAt:   dto.NextDispatchAt,
		Frozen:           dto.Frozen,
		FrozenReason:     dto.FrozenReason,
		AssignedDriverID: assignedDriverID,
		MissionID:        missionID,
		Version:          dto.Version,
		StructureVersion: dto.StructureVersion,
		CreatedAt:        dto.CreatedAt,
		UpdatedAt:        dto.UpdatedAt,
		Steps:            steps,
	})
}

func offerToDomain(dto OrderDTO) (*order.Offer, error) {
	if dto.OfferDriverID == nil {
		return nil, nil
	}
	if dto.OfferedAt == nil || dto.OfferExpiresAt == nil {
		return nil, errInconsistentOffer(dto.ID)
	}
	driverID, err := pgconv.FromUUID(*dto.OfferDriverID)
	if err != nil {
		return nil, err
	}
	return &order.Offer{
		DriverID:       driverID,
		OfferedAt:      *dto.OfferedAt,
		ExpiresAt:      *dto.OfferExpiresAt,
		AcknowledgedAt: dto.OfferAcknowledgedAt,
	}, nil
}

func stepToDomain(dto StepDTO) (*order.Step, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	rev, err := revisionToDomain(dto.Revision)
	if err != nil {
		return nil, err
	}
	stops := make([]*order.Stop, 0, len(dto.Stops))
	for _, stopDTO := range dto.Stops {
		sp, stopErr := stopToDomain(stopDTO)
		if stopErr != nil {
			return nil, stopErr
		}
		stops = append(stops, sp)
	}
	return order.RestoreStep(order.RestoreStepParams{
		ID:           id,
		DisplayOrder: dto.DisplayOrder,
		Linked:       dto.Linked,
		Revision:     rev,
		Stops:        stops,
	})
}

func stopToDomain(dto StopDTO) (*order.Stop, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	stepID, err := pgconv.FromUUID(dto.StepID)
	if err != nil {
		return nil, err
	}
	kind, err := order.ParseKind(dto.Kind)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStopStatus(dto.Status)
	if err != nil {
		return nil, err
	}
	point, err := kernel.NewGeoPoint(dto.Lat, dto.Lng)
	if err != nil {
		return nil, err
	}
	rev, err := revisionToDomain(dto.Revision)
	if err != nil {
		return nil, err
	}
	actions := make([]*order.Action, 0, len(dto.Actions))
	for _, actionDTO := range dto.Actions {
		a, actionErr := actionToDomain(actionDTO)
		if actionErr != nil {
			return nil, actionErr
		}
		actions = append(actions, a)
	}
	return order.RestoreStop(order.RestoreStopParams{
		ID:             id,
		StepID:         stepID,
		Kind:           kind,
		Address:        dto.Address,
		Point:          point,
		ServiceSeconds: dto.ServiceSeconds,
		Flexible:       dto.Flexible,
		DisplayOrder:   dto.DisplayOrder,
		ExecutionOrder: dto.ExecutionOrder,
		Status:         status,
		ArrivedAt:      dto.ArrivedAt,
		CompletedAt:    dto.CompletedAt,
		FailureReason:  dto.FailureReason,
		Revision:       rev,
		Actions:        actions,
	})
}

func actionToDomain(dto ActionDTO) (*order.Action, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	stopID, err := pgconv.FromUUID(dto.StopID)
	if err != nil {
		return nil, err
	}
	kind, err := order.ParseKind(dto.Kind)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseActionStatus(dto.Status)
	if err != nil {
		return nil, err
	}
	rev, err := revisionToDomain(dto.Revision)
	if err != nil {
		return nil, err
	}
	proofs := make([]*order.ActionProof, 0, len(dto.Proofs))
	for _, proofDTO := range dto.Proofs {
		p, proofErr := proofToDomain(proofDTO)
		if proofErr != nil {
			return nil, proofErr
		}
		proofs = append(proofs, p)
	}
	return order.RestoreAction(order.RestoreActionParams{
		ID:          id,
		StopID:      stopID,
		Kind:        kind,
		Description: dto.Description,
		Status:      status,
		Proofs:      proofs,
		Revision:    rev,
		CompletedAt: dto.CompletedAt,
	})
}

func proofToDomain(dto ProofDTO) (*order.ActionProof, error) {
	id, err := pgconv.FromUUID(dto.ID)
	if err != nil {
		return nil, err
	}
	proofType, err := order.ParseProofType(dto.Type)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseProofStatus(dto.Status)
	if err != nil {
		return nil, err
	}
	return order.RestoreActionProof(order.RestoreProofParams{
		ID:             id,
		Type:           proofType,
		ExpectedValue:  dto.ExpectedValue,
		SubmittedValue: dto.SubmittedValue,
		Attempts:       dto.Attempts,
		Status:         status,
		VerifiedAt:     dto.VerifiedAt,
	})
}
