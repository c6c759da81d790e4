package http

import (
	"net/http"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/labstack/echo/v4"
)

const (
	opAddStep      = "ADD_STEP"
	opUpdateStep   = "UPDATE_STEP"
	opRemoveStep   = "REMOVE_STEP"
	opAddStop      = "ADD_STOP"
	opUpdateStop   = "UPDATE_STOP"
	opRemoveStop   = "REMOVE_STOP"
	opAddAction    = "ADD_ACTION"
	opUpdateAction = "UPDATE_ACTION"
	opRemoveAction = "REMOVE_ACTION"
)

type StopChangesRequest struct {
	Address        *string  `json:"address"`
	Lat            *float64 `json:"lat" validate:"required_with=Lng"`
	Lng            *float64 `json:"lng" validate:"required_with=Lat"`
	ServiceSeconds *int     `json:"serviceSeconds" validate:"omitempty,min=0"`
	Flexible       *bool    `json:"flexible"`
}

// EditRequest is one patch operation. Which fields are read depends on Op.
type EditRequest struct {
	Op          string              `json:"op" validate:"required,oneof=ADD_STEP UPDATE_STEP REMOVE_STEP ADD_STOP UPDATE_STOP REMOVE_STOP ADD_ACTION UPDATE_ACTION REMOVE_ACTION"`
	StepID      *string             `json:"stepId" validate:"omitempty,uuid"`
	StopID      *string             `json:"stopId" validate:"omitempty,uuid"`
	ActionID    *string             `json:"actionId" validate:"omitempty,uuid"`
	AfterStopID *string             `json:"afterStopId" validate:"omitempty,uuid"`
	Linked      bool                `json:"linked"`
	Waypoints   []WaypointRequest   `json:"waypoints" validate:"omitempty,dive"`
	Waypoint    *WaypointRequest    `json:"waypoint"`
	Changes     *StopChangesRequest `json:"changes"`
	Kind        string              `json:"kind" validate:"omitempty,oneof=PICKUP DELIVERY SERVICE"`
	Description string              `json:"description"`
	Proofs      []string            `json:"proofs"`
}

type EditStructureRequest struct {
	Edits []EditRequest `json:"edits" validate:"required,min=1,dive"`
}

func requiredID(name string, s *string) (kernel.UUID, error) {
	id, err := optionalID(s)
	if err != nil {
		return kernel.UUID{}, err
	}
	if id == nil {
		return kernel.UUID{}, echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	return *id, nil
}

func parseProofs(values []string) ([]order.ProofType, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]order.ProofType, 0, len(values))
	for _, v := range values {
		t, err := order.ParseProofType(v)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r StopChangesRequest) toDomain() (order.StopChanges, error) {
	changes := order.StopChanges{
		Address:        r.Address,
		ServiceSeconds: r.ServiceSeconds,
		Flexible:       r.Flexible,
	}
	if r.Lat != nil && r.Lng != nil {
		p, err := kernel.NewGeoPoint(*r.Lat, *r.Lng)
		if err != nil {
			return order.StopChanges{}, err
		}
		changes.Point = &p
	}
	return changes, nil
}

func (r EditRequest) toDomain() (order.Edit, error) {
	switch r.Op {
	case opAddStep:
		if len(r.Waypoints) == 0 {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "waypoints are required")
		}
		waypoints := make([]order.Waypoint, 0, len(r.Waypoints))
		for _, w := range r.Waypoints {
			wp, err := w.toDomain()
			if err != nil {
				return nil, err
			}
			waypoints = append(waypoints, wp)
		}
		return order.AddStep{Waypoints: waypoints, Linked: r.Linked}, nil

	case opUpdateStep:
		stepID, err := requiredID("stepId", r.StepID)
		if err != nil {
			return nil, err
		}
		return order.UpdateStep{StepID: stepID, Linked: r.Linked}, nil

	case opRemoveStep:
		stepID, err := requiredID("stepId", r.StepID)
		if err != nil {
			return nil, err
		}
		return order.RemoveStep{StepID: stepID}, nil

	case opAddStop:
		stepID, err := requiredID("stepId", r.StepID)
		if err != nil {
			return nil, err
		}
		if r.Waypoint == nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "waypoint is required")
		}
		after, err := optionalID(r.AfterStopID)
		if err != nil {
			return nil, err
		}
		wp, err := r.Waypoint.toDomain()
		if err != nil {
			return nil, err
		}
		return order.AddStop{StepID: stepID, AfterStopID: after, Waypoint: wp}, nil

	case opUpdateStop:
		stopID, err := requiredID("stopId", r.StopID)
		if err != nil {
			return nil, err
		}
		if r.Changes == nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "changes are required")
		}
		changes, err := r.Changes.toDomain()
		if err != nil {
			return nil, err
		}
		return order.UpdateStop{StopID: stopID, Changes: changes}, nil

	case opRemoveStop:
		stopID, err := requiredID("stopId", r.StopID)
		if err != nil {
			return nil, err
		}
		return order.RemoveStop{StopID: stopID}, nil

	case opAddAction:
		stopID, err := requiredID("stopId", r.StopID)
		if err != nil {
			return nil, err
		}
		kind, err := order.ParseKind(r.Kind)
		if err != nil {
			return nil, err
		}
		proofs, err := parseProofs(r.Proofs)
		if err != nil {
			return nil, err
		}
		return order.AddAction{StopID: stopID, Kind: kind, Description: r.Description, Proofs: proofs}, nil

	case opUpdateAction:
		actionID, err := requiredID("actionId", r.ActionID)
		if err != nil {
			return nil, err
		}
		return order.UpdateAction{ActionID: actionID, Description: r.Description}, nil

	case opRemoveAction:
		actionID, err := requiredID("actionId", r.ActionID)
		if err != nil {
			return nil, err
		}
		return order.RemoveAction{ActionID: actionID}, nil
	}
	return nil, echo.NewHTTPError(http.StatusBadRequest, "unknown op "+r.Op)
}

// EditOrderStructure handles PATCH /api/v1/orders/:orderId/structure. The
// patch is applied atomically: one failing edit rejects all of them.
func (s *Server) EditOrderStructure(c echo.Context) error {
	var req EditStructureRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return err
	}

	edits := make([]order.Edit, 0, len(req.Edits))
	for _, r := range req.Edits {
		edit, err := r.toDomain()
		if err != nil {
			return err
		}
		edits = append(edits, edit)
	}

	cmd, err := commands.NewEditOrderStructureCommand(orderID, edits)
	if err != nil {
		return err
	}
	if err := s.h.EditStructure.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
