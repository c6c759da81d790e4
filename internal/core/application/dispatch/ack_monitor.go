package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/rs/zerolog"
)

// EventOfferPing is the liveness ping sent to the offer holder's device.
const EventOfferPing = "order.ping"

type (
	offerPingHandler interface {
		Handle(ctx context.Context, cmd commands.RecordOfferPingCommand) error
	}

	unreachableHandler interface {
		Handle(ctx context.Context, cmd commands.MarkDriverUnreachableCommand) error
	}
)

type watch struct {
	driverID kernel.UUID
	cancel   context.CancelFunc
}

// AckMonitor pings the holder of each offer every PingInterval, up to
// MaxPingAttempts times. The first ping moves the order to ACK_PENDING; when the
// window closes without an ack the driver is marked unreachable. At most one
// monitor runs per order: watching again replaces the previous monitor.
type AckMonitor struct {
	pings       offerPingHandler
	unreachable unreachableHandler
	acks        ports.AckStore
	publisher   ports.EventPublisher
	cfg         services.DispatchConfig
	clock       kernel.Clock
	logger      zerolog.Logger

	root     context.Context
	shutdown context.CancelFunc
	mu       sync.Mutex
	watches  map[kernel.UUID]*watch
	wg       sync.WaitGroup
}

func NewAckMonitor(
	pings offerPingHandler,
	unreachable unreachableHandler,
	acks ports.AckStore,
	publisher ports.EventPublisher,
	cfg services.DispatchConfig,
	clock kernel.Clock,
	logger zerolog.Logger,
) *AckMonitor {
	root, shutdown := context.WithCancel(context.Background())
	return &AckMonitor{
		pings:       pings,
		unreachable: unreachable,
		acks:        acks,
		publisher:   publisher,
		cfg:         cfg,
		clock:       clock,
		logger:      logger.With().Str("component", "ack_monitor").Logger(),
		root:        root,
		shutdown:    shutdown,
		watches:     make(map[kernel.UUID]*watch),
	}
}

// Watch starts monitoring the offer of orderID held by driverID.
func (m *AckMonitor) Watch(orderID, driverID kernel.UUID) {
	ctx, cancel := context.WithCancel(m.root)
	w := &watch{driverID: driverID, cancel: cancel}

	m.mu.Lock()
	if previous, ok := m.watches[orderID]; ok {
		previous.cancel()
	}
	m.watches[orderID] = w
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release(orderID, w)
		m.run(ctx, orderID, driverID)
	}()
}

// Stop cancels the monitor of orderID, if any. The pings stop immediately.
func (m *AckMonitor) Stop(orderID kernel.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watches[orderID]; ok {
		w.cancel()
		delete(m.watches, orderID)
	}
}

// Active reports the number of running monitors.
func (m *AckMonitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

// Shutdown cancels every monitor and waits for them to return.
func (m *AckMonitor) Shutdown() {
	m.shutdown()
	m.wg.Wait()
}

func (m *AckMonitor) release(orderID kernel.UUID, w *watch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.watches[orderID]; ok && current == w {
		delete(m.watches, orderID)
	}
	w.cancel()
}

func (m *AckMonitor) run(ctx context.Context, orderID, driverID kernel.UUID) {
	log := m.logger.With().Str("order_id", orderID.String()).Str("driver_id", driverID.String()).Logger()
	maxAttempts := m.cfg.MaxPingAttempts()

	ticker := time.NewTicker(m.cfg.PingInterval())
	defer ticker.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if m.isAcked(ctx, orderID, driverID, log) {
			return
		}

		m.ping(ctx, orderID, driverID, attempt, maxAttempts, log)
		if attempt == 1 && !m.recordFirstPing(ctx, orderID, driverID, log) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	if m.isAcked(ctx, orderID, driverID, log) || ctx.Err() != nil {
		return
	}

	cmd, err := commands.NewMarkDriverUnreachableCommand(orderID, driverID)
	if err != nil {
		log.Error().Err(err).Msg("failed to build unreachable command")
		return
	}
	if err = m.unreachable.Handle(ctx, cmd); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("failed to mark driver unreachable")
		return
	}
	log.Info().Int("pings", maxAttempts).Msg("offer holder unreachable")
}

func (m *AckMonitor) isAcked(ctx context.Context, orderID, driverID kernel.UUID, log zerolog.Logger) bool {
	acked, err := m.acks.IsAcked(ctx, orderID, driverID)
	if err != nil {
		log.Warn().Err(err).Msg("ack store unavailable")
		return false
	}
	return acked
}

func (m *AckMonitor) ping(ctx context.Context, orderID, driverID kernel.UUID, attempt, maxAttempts int, log zerolog.Logger) {
	id := driverID
	event := kernel.DomainEvent{
		Name:        EventOfferPing,
		AggregateID: orderID,
		DriverID:    &id,
		OccurredAt:  m.clock.Now(),
		Data: map[string]any{
			"attempt":     attempt,
			"maxAttempts": maxAttempts,
		},
	}
	if err := m.publisher.EmitToDriver(ctx, driverID, event); err != nil {
		log.Warn().Err(err).Int("attempt", attempt).Msg("failed to send offer ping")
	}
}

// recordFirstPing reports whether monitoring should continue. An order that is
// no longer offered to the driver ends the monitor.
func (m *AckMonitor) recordFirstPing(ctx context.Context, orderID, driverID kernel.UUID, log zerolog.Logger) bool {
	cmd, err := commands.NewRecordOfferPingCommand(orderID, driverID)
	if err != nil {
		log.Error().Err(err).Msg("failed to build ping command")
		return false
	}
	err = m.pings.Handle(ctx, cmd)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errs.ErrObjectNotFound), errors.Is(err, errs.ErrRuleViolation):
		log.Debug().Err(err).Msg("offer resolved before first ping")
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		log.Warn().Err(err).Msg("failed to record offer ping")
		return true
	}
}
