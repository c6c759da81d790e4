package cmd

import (
	"context"
	"fmt"

	httpin "dispatch/internal/adapters/in/http"
	natsout "dispatch/internal/adapters/out/nats"
	"dispatch/internal/adapters/out/ors"
	"dispatch/internal/adapters/out/postgres"
	"dispatch/internal/adapters/out/postgres/locationrepo"
	"dispatch/internal/adapters/out/postgres/settingsrepo"
	"dispatch/internal/adapters/out/postgres/zonerepo"
	redisout "dispatch/internal/adapters/out/redis"
	"dispatch/internal/core/application/dispatch"
	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/jobs"
	"dispatch/internal/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const flushLockName = "location-flush"

// CompositionRoot owns every long-lived component of the process.
type CompositionRoot struct {
	cfg    Config
	logger zerolog.Logger

	gormDB   *gorm.DB
	redis    *redis.Client
	nats     *nats.Conn
	registry *prometheus.Registry

	dispatchCfg services.DispatchConfig
	clock       kernel.Clock
	uowFactory  ports.UnitOfWorkFactory
	locations   *redisout.LocationBuffer
	acks        *redisout.AckStore
	publisher   *natsout.EventPublisher
	optimizer   ports.RouteOptimizer
	geocoder    ports.ReverseGeocoder
	recorder    *metrics.DispatchMetrics

	calls     *dispatch.OptimizerCalls
	monitor   *dispatch.AckMonitor
	scheduler *dispatch.RouteScheduler
	jobs      *jobs.JobManager
	echo      *echo.Echo
}

// deferredWatcher lets handlers built before the ack monitor start it; the
// monitor itself needs those handlers.
type deferredWatcher struct {
	monitor *dispatch.AckMonitor
}

func (w *deferredWatcher) Watch(orderID, driverID kernel.UUID) { w.monitor.Watch(orderID, driverID) }
func (w *deferredWatcher) Stop(orderID kernel.UUID)            { w.monitor.Stop(orderID) }

// NewCompositionRoot connects to every backing service and wires the handlers.
// On error the connections opened so far are closed.
func NewCompositionRoot(ctx context.Context, cfg Config, logger zerolog.Logger) (root *CompositionRoot, err error) {
	c := &CompositionRoot{cfg: cfg, logger: logger, clock: kernel.SystemClock()}
	defer func() {
		if err != nil {
			err = multierr.Append(err, c.close())
		}
	}()

	if err = c.connect(ctx); err != nil {
		return nil, err
	}
	if c.dispatchCfg, err = c.loadDispatchConfig(ctx); err != nil {
		return nil, err
	}
	if err = c.wire(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CompositionRoot) connect(ctx context.Context) error {
	db, err := gorm.Open(gormpg.Open(c.cfg.DB.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	c.gormDB = db

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(c.cfg.DB.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.cfg.DB.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(c.cfg.DB.ConnMaxLifetime)

	if err = postgres.Migrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	c.redis, err = redisout.New(ctx, redisout.Config{
		URL:          c.cfg.Redis.URL,
		Addr:         c.cfg.Redis.Addr,
		Password:     c.cfg.Redis.Password,
		DB:           c.cfg.Redis.DB,
		PoolSize:     c.cfg.Redis.PoolSize,
		DialTimeout:  c.cfg.Redis.DialTimeout,
		ReadTimeout:  c.cfg.Redis.ReadTimeout,
		WriteTimeout: c.cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return err
	}

	c.nats, err = natsout.Connect(c.cfg.NATS.URL, "dispatch")
	return err
}

// loadDispatchConfig applies the persisted overrides to the environment defaults.
func (c *CompositionRoot) loadDispatchConfig(ctx context.Context) (services.DispatchConfig, error) {
	overrides, err := settingsrepo.NewGormSettingsRepository(c.gormDB).LoadDispatchSettings(ctx)
	if err != nil {
		return services.DispatchConfig{}, fmt.Errorf("load dispatch settings: %w", err)
	}
	settings, err := c.cfg.Dispatch.Settings().Override(overrides)
	if err != nil {
		return services.DispatchConfig{}, fmt.Errorf("dispatch settings: %w", err)
	}
	cfg, err := services.NewDispatchConfig(settings)
	if err != nil {
		return services.DispatchConfig{}, fmt.Errorf("dispatch settings: %w", err)
	}
	if len(overrides) > 0 {
		c.logger.Info().Int("overrides", len(overrides)).Msg("dispatch settings overridden from database")
	}
	return cfg, nil
}

func (c *CompositionRoot) wire() error {
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.recorder = metrics.NewDispatchMetrics(c.registry)

	c.publisher = natsout.NewEventPublisher(c.nats, c.cfg.NATS.SubjectPrefix)
	c.uowFactory = postgres.NewGormUnitOfWorkFactory(c.gormDB, c.publisher, c.logger)
	c.locations = redisout.NewLocationBuffer(c.redis)
	c.acks = redisout.NewAckStore(c.redis)

	orsClient, err := ors.NewClient(ors.Config{
		BaseURL: c.cfg.ORS.BaseURL,
		APIKey:  c.cfg.ORS.APIKey,
		Profile: c.cfg.ORS.Profile,
		Timeout: c.cfg.ORS.Timeout,
	})
	if err != nil {
		return err
	}
	c.optimizer = metrics.InstrumentOptimizer(ors.NewOptimizer(orsClient), c.registry)
	c.geocoder = ors.NewGeocoder(orsClient)

	c.calls = dispatch.NewOptimizerCalls()
	watcher := &deferredWatcher{}

	dispatchOrder := c.createDispatchOrderCommandHandler(watcher)
	c.monitor = dispatch.NewAckMonitor(
		commands.NewRecordOfferPingCommandHandler(c.uowFactory, c.clock),
		commands.NewMarkDriverUnreachableCommandHandler(c.uowFactory, dispatchOrder, c.recorder, c.dispatchCfg, c.clock),
		c.acks, c.publisher, c.dispatchCfg, c.clock, c.logger,
	)
	watcher.monitor = c.monitor

	c.scheduler = dispatch.NewRouteScheduler(c.createRecalculateRouteCommandHandler(),
		c.cfg.Jobs.RouteWorkers, c.cfg.Jobs.RouteQueueSize, c.logger)

	c.echo, err = httpin.NewServer(c.createHandlers(watcher, c.scheduler, dispatchOrder), c.logger).NewEcho(c.registry)
	if err != nil {
		return err
	}

	c.jobs, err = c.createJobManager(watcher, dispatchOrder)
	return err
}

func (c *CompositionRoot) createDispatchOrderCommandHandler(watcher commands.OfferWatcher) *commands.DispatchOrderCommandHandler {
	return commands.NewDispatchOrderCommandHandler(c.uowFactory, c.locations,
		services.NewOrderDispatcher(c.dispatchCfg), watcher, c.recorder, c.clock)
}

func (c *CompositionRoot) createRecalculateRouteCommandHandler() commands.RecalculateRouteCommandHandler {
	return commands.NewRecalculateRouteCommandHandler(c.uowFactory, c.optimizer, c.locations, c.calls,
		c.recorder, c.dispatchCfg, c.clock)
}

func (c *CompositionRoot) createHandlers(
	watcher commands.OfferWatcher, scheduler commands.RouteScheduler, dispatchOrder commands.OrderDispatchHandler,
) httpin.Handlers {
	return httpin.Handlers{
		CreateOrder:      commands.NewCreateOrderCommandHandler(c.uowFactory, c.geocoder, c.dispatchCfg, c.clock),
		DeleteOrder:      commands.NewDeleteOrderCommandHandler(c.uowFactory, watcher, c.calls, c.acks, c.clock),
		RedispatchOrder:  commands.NewRedispatchOrderCommandHandler(c.uowFactory, watcher, c.calls, c.acks, dispatchOrder, c.clock),
		EditStructure:    commands.NewEditOrderStructureCommandHandler(c.uowFactory, scheduler, c.dispatchCfg, c.clock),
		MergeCheckpoint:  commands.NewMergeCheckpointCommandHandler(c.uowFactory, scheduler, c.clock),
		RecalculateRoute: c.createRecalculateRouteCommandHandler(),
		AckOffer:         commands.NewAckOfferCommandHandler(c.uowFactory, c.acks, watcher, c.dispatchCfg, c.clock),
		PingOffer:        commands.NewRecordOfferPingCommandHandler(c.uowFactory, c.clock),
		AcceptOffer:      commands.NewAcceptOfferCommandHandler(c.uowFactory, services.NewOrderDispatcher(c.dispatchCfg),
			watcher, scheduler, c.recorder, c.clock),
		RefuseOffer:      commands.NewRefuseOfferCommandHandler(c.uowFactory, watcher, dispatchOrder, c.recorder, c.dispatchCfg, c.clock),
		Stops:            commands.NewStopCommandHandler(c.uowFactory, scheduler, c.clock),
		Proofs:           commands.NewProofCommandHandler(c.uowFactory, c.dispatchCfg, c.clock),
		Drivers:          commands.NewDriverCommandHandler(c.uowFactory),
		Zones:            commands.NewZoneCommandHandler(c.uowFactory),
		RecordPosition:   commands.NewRecordPositionCommandHandler(c.locations),

		GetOrder:         queries.NewGetOrderQueryHandler(c.gormDB),
		GetActiveOrders:  queries.NewGetActiveOrdersQueryHandler(c.gormDB),
		GetAllDrivers:    queries.NewGetAllDriversQueryHandler(c.gormDB),
		GetExecutionList: queries.NewGetDriverExecutionListQueryHandler(c.gormDB),
		FindZone:         queries.NewFindZoneQueryHandler(zonerepo.NewGormZoneRepository(c.gormDB)),
		GetZoneDrivers:   queries.NewGetZoneDriversQueryHandler(c.gormDB),
	}
}

func (c *CompositionRoot) createJobManager(
	watcher commands.OfferWatcher, dispatchOrder commands.OrderDispatchHandler,
) (*jobs.JobManager, error) {
	flushLock, err := redisout.NewLock(c.redis, flushLockName, c.cfg.Jobs.FlushLockTTL)
	if err != nil {
		return nil, err
	}

	manager := jobs.NewJobManager(c.logger, metrics.NewCronJobMetrics(c.registry))
	manager.Register(
		jobs.NewDispatchJob(commands.NewDispatchPendingOrdersCommandHandler(c.uowFactory, dispatchOrder, c.clock)),
		c.cfg.Jobs.DispatchInterval,
	)
	manager.Register(
		jobs.NewOfferExpiryJob(commands.NewExpireOffersCommandHandler(c.uowFactory, watcher, dispatchOrder,
			c.recorder, c.dispatchCfg, c.clock)),
		c.cfg.Jobs.OfferExpiryInterval,
	)
	manager.Register(
		jobs.WithLock(jobs.NewLocationFlushJob(commands.NewFlushLocationsCommandHandler(c.locations,
			locationrepo.NewGormLocationHistoryRepository(c.gormDB))), flushLock),
		c.dispatchCfg.LocationFlushInterval(),
	)
	return manager, nil
}

// Echo is the HTTP server with every route registered.
func (c *CompositionRoot) Echo() *echo.Echo { return c.echo }

// StartBackground starts the route workers and the scheduled jobs.
func (c *CompositionRoot) StartBackground(ctx context.Context) error {
	c.scheduler.Start(ctx)
	return c.jobs.StartAll()
}

// Shutdown stops the HTTP server, background work and connections, in that
// order, and reports every failure.
func (c *CompositionRoot) Shutdown(ctx context.Context) error {
	var err error
	if c.echo != nil {
		err = multierr.Append(err, c.echo.Shutdown(ctx))
	}
	if c.jobs != nil {
		err = multierr.Append(err, c.jobs.StopAll(ctx))
	}
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	if c.monitor != nil {
		c.monitor.Shutdown()
	}
	return multierr.Append(err, c.close())
}

func (c *CompositionRoot) close() error {
	var err error
	if c.nats != nil {
		err = multierr.Append(err, c.nats.Drain())
	}
	if c.redis != nil {
		err = multierr.Append(err, c.redis.Close())
	}
	if c.gormDB != nil {
		if sqlDB, dbErr := c.gormDB.DB(); dbErr == nil {
			err = multierr.Append(err, sqlDB.Close())
		}
	}
	return err
}
