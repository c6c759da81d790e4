package http

import (
	"net/http"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/labstack/echo/v4"
)

type CreateDriverRequest struct {
	DriverID       *string `json:"driverId" validate:"omitempty,uuid"`
	Name           string  `json:"name" validate:"required"`
	CompanyID      *string `json:"companyId" validate:"omitempty,uuid"`
	WorkMode       string  `json:"workMode" validate:"required,oneof=IDEP ETP"`
	VehicleProfile string  `json:"vehicleProfile"`
	Capacity       int     `json:"capacity" validate:"min=0"`
}

type CreateDriverResponse struct {
	ID string `json:"id"`
}

// CreateDriver handles POST /api/v1/drivers.
func (s *Server) CreateDriver(c echo.Context) error {
	var req CreateDriverRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	driverID := kernel.NewUUID()
	if id, err := optionalID(req.DriverID); err != nil {
		return err
	} else if id != nil {
		driverID = *id
	}
	companyID, err := optionalID(req.CompanyID)
	if err != nil {
		return err
	}
	mode, err := driver.ParseWorkMode(req.WorkMode)
	if err != nil {
		return err
	}

	cmd, err := commands.NewCreateDriverCommand(driverID, req.Name, companyID, mode, req.VehicleProfile, req.Capacity)
	if err != nil {
		return err
	}
	if err := s.h.Drivers.Create(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, CreateDriverResponse{ID: driverID.String()})
}

type DriverResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	CompanyID      *string `json:"companyId,omitempty"`
	WorkMode       string  `json:"workMode"`
	Online         bool    `json:"online"`
	ActiveMissions int     `json:"activeMissions"`
}

// GetDrivers handles GET /api/v1/drivers.
func (s *Server) GetDrivers(c echo.Context) error {
	rows, err := s.h.GetAllDrivers.Handle(c.Request().Context(), queries.NewGetAllDriversQuery())
	if err != nil {
		return err
	}

	response := make([]DriverResponse, len(rows))
	for i, d := range rows {
		response[i] = DriverResponse{
			ID:             d.ID.String(),
			Name:           d.Name,
			CompanyID:      idString(d.CompanyID),
			WorkMode:       d.WorkMode,
			Online:         d.Online,
			ActiveMissions: d.ActiveMissions,
		}
	}
	return c.JSON(http.StatusOK, response)
}

type ChangeWorkModeRequest struct {
	WorkMode string `json:"workMode" validate:"required,oneof=IDEP ETP"`
}

type WorkModeResponse struct {
	WorkMode string `json:"workMode"`
}

// ChangeWorkMode handles PUT /api/v1/drivers/:driverId/work-mode. A driver with
// active missions ends up in a transition mode, which the response reports.
func (s *Server) ChangeWorkMode(c echo.Context) error {
	var req ChangeWorkModeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	driverID, err := pathID(c, "driverId")
	if err != nil {
		return err
	}
	target, err := driver.ParseWorkMode(req.WorkMode)
	if err != nil {
		return err
	}

	cmd, err := commands.NewChangeWorkModeCommand(driverID, target)
	if err != nil {
		return err
	}
	mode, err := s.h.Drivers.ChangeWorkMode(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, WorkModeResponse{WorkMode: mode.String()})
}

type SetAvailabilityRequest struct {
	Online       *bool   `json:"online" validate:"required"`
	ActiveZoneID *string `json:"activeZoneId" validate:"omitempty,uuid"`
}

// SetAvailability handles PUT /api/v1/drivers/:driverId/availability.
func (s *Server) SetAvailability(c echo.Context) error {
	var req SetAvailabilityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	driverID, err := pathID(c, "driverId")
	if err != nil {
		return err
	}
	zoneID, err := optionalID(req.ActiveZoneID)
	if err != nil {
		return err
	}

	cmd, err := commands.NewSetDriverAvailabilityCommand(driverID, *req.Online, zoneID)
	if err != nil {
		return err
	}
	if err := s.h.Drivers.SetAvailability(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type RecordPositionRequest struct {
	Lat        *float64   `json:"lat" validate:"required"`
	Lng        *float64   `json:"lng" validate:"required"`
	Heading    float64    `json:"heading"`
	RecordedAt *time.Time `json:"recordedAt"`
}

// RecordPosition handles POST /api/v1/drivers/:driverId/positions. Samples
// without a timestamp are stamped on receipt.
func (s *Server) RecordPosition(c echo.Context) error {
	var req RecordPositionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	driverID, err := pathID(c, "driverId")
	if err != nil {
		return err
	}
	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	cmd, err := commands.NewRecordPositionCommand(driverID, *req.Lat, *req.Lng, req.Heading, recordedAt)
	if err != nil {
		return err
	}
	if err := s.h.RecordPosition.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

// driverOrderIDs reads the driverId and orderId path parameters.
func driverOrderIDs(c echo.Context) (kernel.UUID, kernel.UUID, error) {
	driverID, err := pathID(c, "driverId")
	if err != nil {
		return kernel.UUID{}, kernel.UUID{}, err
	}
	orderID, err := pathID(c, "orderId")
	if err != nil {
		return kernel.UUID{}, kernel.UUID{}, err
	}
	return driverID, orderID, nil
}

// AckOffer handles POST /api/v1/drivers/:driverId/offers/:orderId/ack.
func (s *Server) AckOffer(c echo.Context) error {
	driverID, orderID, err := driverOrderIDs(c)
	if err != nil {
		return err
	}
	cmd, err := commands.NewAckOfferCommand(orderID, driverID)
	if err != nil {
		return err
	}
	if err := s.h.AckOffer.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// PingOffer handles POST /api/v1/drivers/:driverId/offers/:orderId/ping.
func (s *Server) PingOffer(c echo.Context) error {
	driverID, orderID, err := driverOrderIDs(c)
	if err != nil {
		return err
	}
	cmd, err := commands.NewRecordOfferPingCommand(orderID, driverID)
	if err != nil {
		return err
	}
	if err := s.h.PingOffer.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AcceptOffer handles POST /api/v1/drivers/:driverId/offers/:orderId/accept.
func (s *Server) AcceptOffer(c echo.Context) error {
	driverID, orderID, err := driverOrderIDs(c)
	if err != nil {
		return err
	}
	cmd, err := commands.NewAcceptOfferCommand(orderID, driverID)
	if err != nil {
		return err
	}
	if err := s.h.AcceptOffer.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RefuseOffer handles POST /api/v1/drivers/:driverId/offers/:orderId/refuse.
func (s *Server) RefuseOffer(c echo.Context) error {
	driverID, orderID, err := driverOrderIDs(c)
	if err != nil {
		return err
	}
	cmd, err := commands.NewRefuseOfferCommand(orderID, driverID)
	if err != nil {
		return err
	}
	if err := s.h.RefuseOffer.Handle(c.Request().Context(), cmd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type ExecutionProofResponse struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
}

type ExecutionActionResponse struct {
	ID          string                   `json:"id"`
	Kind        string                   `json:"kind"`
	Description string                   `json:"description"`
	Status      string                   `json:"status"`
	Proofs      []ExecutionProofResponse `json:"proofs"`
}

type ExecutionStopResponse struct {
	ID             string                    `json:"id"`
	StepID         string                    `json:"stepId"`
	ExecutionOrder *int                      `json:"executionOrder,omitempty"`
	Kind           string                    `json:"kind"`
	Address        string                    `json:"address"`
	Lat            float64                   `json:"lat"`
	Lng            float64                   `json:"lng"`
	Status         string                    `json:"status"`
	Actions        []ExecutionActionResponse `json:"actions"`
}

// GetExecutionList handles GET /api/v1/drivers/:driverId/orders/:orderId/stops.
func (s *Server) GetExecutionList(c echo.Context) error {
	driverID, orderID, err := driverOrderIDs(c)
	if err != nil {
		return err
	}
	query, err := queries.NewGetDriverExecutionListQuery(orderID, driverID)
	if err != nil {
		return err
	}
	stops, err := s.h.GetExecutionList.Handle(c.Request().Context(), query)
	if err != nil {
		return err
	}

	response := make([]ExecutionStopResponse, len(stops))
	for i, st := range stops {
		actions := make([]ExecutionActionResponse, len(st.Actions))
		for j, a := range st.Actions {
			proofs := make([]ExecutionProofResponse, len(a.Proofs))
			for k, p := range a.Proofs {
				proofs[k] = ExecutionProofResponse{
					ID:       p.ID.String(),
					Type:     p.Type,
					Status:   p.Status,
					Attempts: p.Attempts,
				}
			}
			actions[j] = ExecutionActionResponse{
				ID:          a.ID.String(),
				Kind:        a.Kind,
				Description: a.Description,
				Status:      a.Status,
				Proofs:      proofs,
			}
		}
		response[i] = ExecutionStopResponse{
			ID:             st.ID.String(),
			StepID:         st.StepID.String(),
			ExecutionOrder: st.ExecutionOrder,
			Kind:           st.Kind,
			Address:        st.Address,
			Lat:            st.Lat,
			Lng:            st.Lng,
			Status:         st.Status,
			Actions:        actions,
		}
	}
	return c.JSON(http.StatusOK, response)
}

type ExecutionOutcomeResponse struct {
	MissionStarted bool          `json:"missionStarted"`
	OrderFinished  bool          `json:"orderFinished"`
	Merge          MergeResponse `json:"merge"`
}

func toExecutionOutcome(o order.ExecutionOutcome) ExecutionOutcomeResponse {
	return ExecutionOutcomeResponse{
		MissionStarted: o.MissionStarted,
		OrderFinished:  o.OrderFinished,
		Merge:          toMergeResponse(o.Merge),
	}
}

// stopIDs reads the driverId, orderId and stopId path parameters.
func stopIDs(c echo.Context) (driverID, orderID, stopID kernel.UUID, err error) {
	if driverID, orderID, err = driverOrderIDs(c); err != nil {
		return
	}
	stopID, err = pathID(c, "stopId")
	return
}

// ArriveAtStop handles POST .../stops/:stopId/arrive.
func (s *Server) ArriveAtStop(c echo.Context) error {
	driverID, orderID, stopID, err := stopIDs(c)
	if err != nil {
		return err
	}
	cmd, err := commands.NewArriveAtStopCommand(orderID, driverID, stopID)
	if err != nil {
		return err
	}
	outcome, err := s.h.Stops.ArriveAtStop(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toExecutionOutcome(outcome))
}

// CompleteStop handles POST .../stops/:stopId/complete.
func (s *Server) CompleteStop(c echo.Context) error {
	driverID, orderID, stopID, err := stopIDs(c)
	if err != nil {
		return err
	}
	cmd, err := commands.NewCompleteStopCommand(orderID, driverID, stopID)
	if err != nil {
		return err
	}
	outcome, err := s.h.Stops.CompleteStop(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toExecutionOutcome(outcome))
}

type FailStopRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// FailStop handles POST .../stops/:stopId/fail.
func (s *Server) FailStop(c echo.Context) error {
	var req FailStopRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	driverID, orderID, stopID, err := stopIDs(c)
	if err != nil {
		return err
	}
	cmd, err := commands.NewFailStopCommand(orderID, driverID, stopID, req.Reason)
	if err != nil {
		return err
	}
	outcome, err := s.h.Stops.FailStop(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toExecutionOutcome(outcome))
}

type SubmitProofRequest struct {
	Value string `json:"value" validate:"required"`
}

// SubmitProof handles POST .../actions/:actionId/proofs/:proofId. OTP values are
// checked at once; other proof types wait for an operator.
func (s *Server) SubmitProof(c echo.Context) error {
	var req SubmitProofRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	driverID, orderID, err := driverOrderIDs(c)
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

	cmd, err := commands.NewSubmitProofCommand(orderID, driverID, actionID, proofID, req.Value)
	if err != nil {
		return err
	}
	outcome, err := s.h.Proofs.Submit(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProofOutcomeResponse{Outcome: outcome.String()})
}
