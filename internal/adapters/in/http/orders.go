package http

import (
	"net/http"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/route"

	"github.com/labstack/echo/v4"
)

type WaypointRequest struct {
	GroupKey       string   `json:"groupKey"`
	Kind           string   `json:"kind" validate:"required,oneof=PICKUP DELIVERY SERVICE"`
	Address        string   `json:"address"`
	Lat            *float64 `json:"lat" validate:"required"`
	Lng            *float64 `json:"lng" validate:"required"`
	ServiceSeconds int      `json:"serviceSeconds" validate:"min=0"`
	Flexible       bool     `json:"flexible"`
	Linked         bool     `json:"linked"`
	Description    string   `json:"description"`
	// Proofs replaces the default verification when present; [] means none.
	Proofs []string `json:"proofs"`
}

type CreateOrderRequest struct {
	OrderID        *string           `json:"orderId" validate:"omitempty,uuid"`
	CompanyID      *string           `json:"companyId" validate:"omitempty,uuid"`
	Priority       int               `json:"priority"`
	Mode           string            `json:"mode" validate:"required,oneof=GLOBAL INTERNAL TARGET"`
	TargetDriverID *string           `json:"targetDriverId" validate:"omitempty,uuid"`
	Metadata       map[string]any    `json:"metadata"`
	Waypoints      []WaypointRequest `json:"waypoints" validate:"required,min=1,dive"`
}

type CreateOrderResponse struct {
	ID string `json:"id"`
}

func (r WaypointRequest) toDomain() (order.Waypoint, error) {
	kind, err := order.ParseKind(r.Kind)
	if err != nil {
		return order.Waypoint{}, err
	}
	point, err := kernel.NewGeoPoint(*r.Lat, *r.Lng)
	if err != nil {
		return order.Waypoint{}, err
	}
	w := order.Waypoint{
		GroupKey:       r.GroupKey,
		Kind:           kind,
		Address:        r.Address,
		Point:          point,
		ServiceSeconds: r.ServiceSeconds,
		Flexible:       r.Flexible,
		Linked:         r.Linked,
		Description:    r.Description,
	}
	if r.Proofs != nil {
		w.Proofs = make([]order.ProofType, 0, len(r.Proofs))
		for _, p := range r.Proofs {
			t, err := order.ParseProofType(p)
			if err != nil {
				return order.Waypoint{}, err
			}
			w.Proofs = append(w.Proofs, t)
		}
	}
	return w, nil
}

// CreateOrder handles POST /api/v1/orders.
func (s *Server) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	orderID := kernel.NewUUID()
	if id, err := optionalID(req.OrderID); err != nil {
		return err
	} else if id != nil {
		orderID = *id
	}
	companyID, err := optionalID(req.CompanyID)
	if err != nil {
		return err
	}
	targetID, err := optionalID(req.TargetDriverID)
	if err != nil {
		return err
	}
	mode, err := order.ParseAssignmentMode(req.Mode)
	if err != nil {
		return err
	}
	waypoints := make([]order.Waypoint, 0, len(req.Waypoints))
	for _, w := range req.Waypoints {
		wp, err := w.toDomain()
		if err != nil {
			return err
		}
		waypoints = append(waypoints, wp)
	}

	cmd, err := commands.NewCreateOrderCommand(commands.CreateOrderParams{
		OrderID:        orderID,
		CompanyID:      companyID,
		Priority:       req.Priority,
		Mode:           mode,
		TargetDriverID: targetID,
		Metadata:       req.Metadata,
		Waypoints:      waypoints,
	})
	if err != nil {
		return err
	}
	if err := s.h.CreateOrder.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, CreateOrderResponse{ID: orderID.String()})
}

type ActiveOrderResponse struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	Priority         int       `json:"priority"`
	AttemptCount     int       `json:"attemptCount"`
	AssignedDriverID *string   `json:"assignedDriverId,omitempty"`
	Frozen           bool      `json:"frozen"`
	CreatedAt        time.Time `json:"createdAt"`
}

// GetActiveOrders handles GET /api/v1/orders.
func (s *Server) GetActiveOrders(c echo.Context) error {
	rows, err := s.h.GetActiveOrders.Handle(c.Request().Context(), queries.NewGetActiveOrdersQuery())
	if err != nil {
		return err
	}

	response := make([]ActiveOrderResponse, len(rows))
	for i, r := range rows {
		response[i] = ActiveOrderResponse{
			ID:               r.ID.String(),
			Status:           r.Status,
			Priority:         r.Priority,
			AttemptCount:     r.AttemptCount,
			AssignedDriverID: idString(r.AssignedDriverID),
			Frozen:           r.Frozen,
			CreatedAt:        r.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, response)
}

type OrderStopResponse struct {
	ID               string  `json:"id"`
	StepID           string  `json:"stepId"`
	StepDisplayOrder int     `json:"stepDisplayOrder"`
	DisplayOrder     int     `json:"displayOrder"`
	ExecutionOrder   *int    `json:"executionOrder,omitempty"`
	Kind             string  `json:"kind"`
	Address          string  `json:"address"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	Status           string  `json:"status"`
	Revision         string  `json:"revision"`
}

type ETAResponse struct {
	DurationSeconds int        `json:"durationSeconds"`
	DistanceMeters  int        `json:"distanceMeters"`
	ArrivalAt       *time.Time `json:"arrivalAt,omitempty"`
}

type OrderResponse struct {
	ID                string              `json:"id"`
	CompanyID         *string             `json:"companyId,omitempty"`
	Status            string              `json:"status"`
	Priority          int                 `json:"priority"`
	AssignmentMode    string              `json:"assignmentMode"`
	AttemptCount      int                 `json:"attemptCount"`
	AssignedDriverID  *string             `json:"assignedDriverId,omitempty"`
	MissionID         *string             `json:"missionId,omitempty"`
	OfferDriverID     *string             `json:"offerDriverId,omitempty"`
	OfferExpiresAt    *time.Time          `json:"offerExpiresAt,omitempty"`
	Frozen            bool                `json:"frozen"`
	FrozenReason      string              `json:"frozenReason,omitempty"`
	HasPendingChanges bool                `json:"hasPendingChanges"`
	Version           int64               `json:"version"`
	StructureVersion  int64               `json:"structureVersion"`
	ETA               ETAResponse         `json:"eta"`
	CreatedAt         time.Time           `json:"createdAt"`
	Stops             []OrderStopResponse `json:"stops"`
}

// GetOrder handles GET /api/v1/orders/:orderId.
func (s *Server) GetOrder(c echo.Context) error {
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return err
	}
	query, err := queries.NewGetOrderQuery(orderID)
	if err != nil {
		return err
	}
	v, err := s.h.GetOrder.Handle(c.Request().Context(), query)
	if err != nil {
		return err
	}

	response := OrderResponse{
		ID:                v.ID.String(),
		CompanyID:         idString(v.CompanyID),
		Status:            v.Status,
		Priority:          v.Priority,
		AssignmentMode:    v.AssignmentMode,
		AttemptCount:      v.AttemptCount,
		AssignedDriverID:  idString(v.AssignedDriverID),
		MissionID:         idString(v.MissionID),
		OfferDriverID:     idString(v.OfferDriverID),
		OfferExpiresAt:    v.OfferExpiresAt,
		Frozen:            v.Frozen,
		FrozenReason:      v.FrozenReason,
		HasPendingChanges: v.HasPendingChanges,
		Version:           v.Version,
		StructureVersion:  v.StructureVersion,
		ETA: ETAResponse{
			DurationSeconds: v.ETA.DurationSeconds,
			DistanceMeters:  v.ETA.DistanceMeters,
			ArrivalAt:       v.ETA.ArrivalAt,
		},
		CreatedAt: v.CreatedAt,
		Stops:     make([]OrderStopResponse, len(v.Stops)),
	}
	for i, st := range v.Stops {
		response.Stops[i] = OrderStopResponse{
			ID:               st.ID.String(),
			StepID:           st.StepID.String(),
			StepDisplayOrder: st.StepDisplayOrder,
			DisplayOrder:     st.DisplayOrder,
			ExecutionOrder:   st.ExecutionOrder,
			Kind:             st.Kind,
			Address:          st.Address,
			Lat:              st.Lat,
			Lng:              st.Lng,
			Status:           st.Status,
			Revision:         st.Revision,
		}
	}
	return c.JSON(http.StatusOK, response)
}

// DeleteOrder handles DELETE /api/v1/orders/:orderId.
func (s *Server) DeleteOrder(c echo.Context) error {
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return err
	}
	cmd, err := commands.NewDeleteOrderCommand(orderID)
	if err != nil {
		return err
	}
	if err := s.h.DeleteOrder.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RedispatchOrder handles POST /api/v1/orders/:orderId/redispatch.
func (s *Server) RedispatchOrder(c echo.Context) error {
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return err
	}
	cmd, err := commands.NewRedispatchOrderCommand(orderID)
	if err != nil {
		return err
	}
	if err := s.h.RedispatchOrder.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

type MergeResponse struct {
	Changed       bool              `json:"changed"`
	ReplacedSteps map[string]string `json:"replacedSteps,omitempty"`
	AddedSteps    []string          `json:"addedSteps,omitempty"`
	RemovedSteps  []string          `json:"removedSteps,omitempty"`
}

func toMergeResponse(m order.MergeResult) MergeResponse {
	r := MergeResponse{
		Changed:      m.Changed,
		AddedSteps:   kernel.UUIDsToStrings(m.AddedSteps),
		RemovedSteps: kernel.UUIDsToStrings(m.RemovedSteps),
	}
	if len(m.ReplacedSteps) > 0 {
		r.ReplacedSteps = make(map[string]string, len(m.ReplacedSteps))
		for from, to := range m.ReplacedSteps {
			r.ReplacedSteps[from.String()] = to.String()
		}
	}
	return r
}

// MergeCheckpoint handles POST /api/v1/orders/:orderId/merge.
func (s *Server) MergeCheckpoint(c echo.Context) error {
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return err
	}
	cmd, err := commands.NewMergeCheckpointCommand(orderID)
	if err != nil {
		return err
	}
	result, err := s.h.MergeCheckpoint.Handle(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMergeResponse(result))
}

// RecalculateRoute handles POST /api/v1/orders/:orderId/route?view=CLIENT. It
// runs the optimizer synchronously; the default view is DRIVER.
func (s *Server) RecalculateRoute(c echo.Context) error {
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return err
	}
	cmd, err := commands.NewRecalculateRouteCommand(orderID, route.ParseView(c.QueryParam("view")))
	if err != nil {
		return err
	}
	if err := s.h.RecalculateRoute.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type VerifyProofRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

type ProofOutcomeResponse struct {
	Outcome string `json:"outcome"`
}

// VerifyProof handles POST /api/v1/orders/:orderId/actions/:actionId/proofs/:proofId/verify.
func (s *Server) VerifyProof(c echo.Context) error {
	var req VerifyProofRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return err
	}
	actionID, err := pathID(c, "actionId")
	if err != nil {
		return err
	}
	proofID, err := pathID(c, "proofId")
	if err != nil {
		return err
	}

	cmd, err := commands.NewVerifyProofCommand(orderID, actionID, proofID, *req.Approved)
	if err != nil {
		return err
	}
	outcome, err := s.h.Proofs.Verify(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProofOutcomeResponse{Outcome: outcome.String()})
}
