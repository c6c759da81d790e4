// Package http is the inbound REST adapter used by the driver app and the
// operators' console. Handlers translate requests into commands and queries and
// never touch aggregates directly.
package http

import (
	"net/http"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Handlers groups the use cases served over HTTP.
type Handlers struct {
	CreateOrder      commands.CreateOrderCommandHandler
	DeleteOrder      commands.DeleteOrderCommandHandler
	RedispatchOrder  commands.RedispatchOrderCommandHandler
	EditStructure    commands.EditOrderStructureCommandHandler
	MergeCheckpoint  commands.MergeCheckpointCommandHandler
	RecalculateRoute commands.RecalculateRouteCommandHandler
	AckOffer         commands.AckOfferCommandHandler
	PingOffer        commands.RecordOfferPingCommandHandler
	AcceptOffer      commands.AcceptOfferCommandHandler
	RefuseOffer      commands.RefuseOfferCommandHandler
	Stops            commands.StopCommandHandler
	Proofs           commands.ProofCommandHandler
	Drivers          commands.DriverCommandHandler
	Zones            commands.ZoneCommandHandler
	RecordPosition   commands.RecordPositionCommandHandler

	GetOrder         queries.GetOrderQueryHandler
	GetActiveOrders  queries.GetActiveOrdersQueryHandler
	GetAllDrivers    queries.GetAllDriversQueryHandler
	GetExecutionList queries.GetDriverExecutionListQueryHandler
	FindZone         queries.FindZoneQueryHandler
	GetZoneDrivers   queries.GetZoneDriversQueryHandler
}

// Server implements the REST API on top of Handlers.
type Server struct {
	h      Handlers
	logger zerolog.Logger
}

func NewServer(h Handlers, logger zerolog.Logger) *Server {
	return &Server{h: h, logger: logger.With().Str("component", "http").Logger()}
}

// NewEcho builds the echo instance with the request validator, error handler,
// access log and every route registered. gatherer serves /metrics. The API
// group checks parameters against the OpenAPI contract, browsable under
// /swagger/.
func (s *Server) NewEcho(gatherer prometheus.Gatherer) (*echo.Echo, error) {
	contract, err := loadContract()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.OFF)
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = NewErrorHandler(s.logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Debug()
			if v.Status >= http.StatusInternalServerError {
				event = s.logger.Warn()
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy")
	})
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	s.Register(e.Group("/api/v1", validateParameters(contract.router)))
	return e, nil
}

// Register mounts the API routes on g.
func (s *Server) Register(g *echo.Group) {
	orders := g.Group("/orders")
	orders.POST("", s.CreateOrder)
	orders.GET("", s.GetActiveOrders)
	orders.GET("/:orderId", s.GetOrder)
	orders.DELETE("/:orderId", s.DeleteOrder)
	orders.POST("/:orderId/redispatch", s.RedispatchOrder)
	orders.PATCH("/:orderId/structure", s.EditOrderStructure)
	orders.POST("/:orderId/merge", s.MergeCheckpoint)
	orders.POST("/:orderId/route", s.RecalculateRoute)
	orders.POST("/:orderId/actions/:actionId/proofs/:proofId/verify", s.VerifyProof)

	drivers := g.Group("/drivers")
	drivers.POST("", s.CreateDriver)
	drivers.GET("", s.GetDrivers)
	drivers.PUT("/:driverId/work-mode", s.ChangeWorkMode)
	drivers.PUT("/:driverId/availability", s.SetAvailability)
	drivers.POST("/:driverId/positions", s.RecordPosition)
	drivers.POST("/:driverId/offers/:orderId/ack", s.AckOffer)
	drivers.POST("/:driverId/offers/:orderId/ping", s.PingOffer)
	drivers.POST("/:driverId/offers/:orderId/accept", s.AcceptOffer)
	drivers.POST("/:driverId/offers/:orderId/refuse", s.RefuseOffer)
	drivers.GET("/:driverId/orders/:orderId/stops", s.GetExecutionList)
	drivers.POST("/:driverId/orders/:orderId/stops/:stopId/arrive", s.ArriveAtStop)
	drivers.POST("/:driverId/orders/:orderId/stops/:stopId/complete", s.CompleteStop)
	drivers.POST("/:driverId/orders/:orderId/stops/:stopId/fail", s.FailStop)
	drivers.POST("/:driverId/orders/:orderId/actions/:actionId/proofs/:proofId", s.SubmitProof)

	zones := g.Group("/zones")
	zones.POST("", s.CreateZone)
	zones.GET("/lookup", s.FindZone)
	zones.GET("/:zoneId/drivers", s.GetZoneDrivers)
	zones.POST("/:zoneId/drivers", s.AssignZoneDriver)
}
