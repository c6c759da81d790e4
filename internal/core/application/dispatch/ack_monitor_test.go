package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"dispatch/internal/core/application/dispatch"
	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offeredOrder is the in-memory side of the monitor's command handlers.
type offeredOrder struct {
	mu    sync.Mutex
	order *order.Order
	done  chan struct{}
}

func (o *offeredOrder) recordPing(driverID kernel.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.order.MarkPinged(driverID, time.Now())
}

func (o *offeredOrder) markUnreachable(driverID kernel.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.order.MarkUnreachable(driverID, time.Now(), 0)
	close(o.done)
}

type pingHandler struct {
	target *offeredOrder
	mu     sync.Mutex
	calls  int
}

func (h *pingHandler) Handle(_ context.Context, cmd commands.RecordOfferPingCommand) error {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	h.target.recordPing(cmd.DriverID())
	return nil
}

func (h *pingHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type unreachableHandler struct {
	target *offeredOrder
}

func (h *unreachableHandler) Handle(_ context.Context, cmd commands.MarkDriverUnreachableCommand) error {
	h.target.markUnreachable(cmd.DriverID())
	return nil
}

type ackStore struct {
	mu    sync.Mutex
	acked map[kernel.UUID]bool
}

func newAckStore() *ackStore {
	return &ackStore{acked: make(map[kernel.UUID]bool)}
}

func (s *ackStore) MarkAcked(_ context.Context, orderID, _ kernel.UUID, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked[orderID] = true
	return nil
}

func (s *ackStore) IsAcked(_ context.Context, orderID, _ kernel.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acked[orderID], nil
}

func (s *ackStore) Clear(_ context.Context, orderID kernel.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.acked, orderID)
	return nil
}

type pingRecorder struct {
	mu     sync.Mutex
	events []kernel.DomainEvent
}

func (p *pingRecorder) EmitToDriver(_ context.Context, _ kernel.UUID, event kernel.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *pingRecorder) EmitToGlobal(context.Context, kernel.DomainEvent) error {
	return nil
}

func (p *pingRecorder) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func fastConfig(t *testing.T) services.DispatchConfig {
	t.Helper()
	s := services.DefaultDispatchSettings()
	s.PingInterval = 5 * time.Millisecond
	s.MaxPingAttempts = 10
	cfg, err := services.NewDispatchConfig(s)
	require.NoError(t, err)
	return cfg
}

func newOfferedOrder(t *testing.T, driverID kernel.UUID) *offeredOrder {
	t.Helper()
	now := time.Now()
	o, err := order.NewOrder(order.NewOrderParams{ID: kernel.NewUUID(), Priority: 1, Mode: order.Global, Now: now})
	require.NoError(t, err)
	p, err := kernel.NewGeoPoint(48.85, 2.35)
	require.NoError(t, err)
	require.NoError(t, o.Decompose([]order.Waypoint{
		{GroupKey: "g", Kind: order.Pickup, Address: "A", Point: p},
		{GroupKey: "g", Kind: order.Delivery, Address: "B", Point: p},
	}, order.ProofPolicy{OTPLength: 6}, now))
	require.NoError(t, o.OfferTo(driverID, now, time.Minute))
	return &offeredOrder{order: o, done: make(chan struct{})}
}

func TestAckMonitor_SilentDriver_TenPingsThenOfferCancelled(t *testing.T) {
	driverID := kernel.NewUUID()
	target := newOfferedOrder(t, driverID)
	pings := &pingHandler{target: target}
	publisher := &pingRecorder{}
	monitor := dispatch.NewAckMonitor(pings, &unreachableHandler{target: target}, newAckStore(), publisher,
		fastConfig(t), kernel.SystemClock(), zerolog.Nop())
	defer monitor.Shutdown()

	monitor.Watch(target.order.ID(), driverID)

	select {
	case <-target.done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver was never marked unreachable")
	}

	assert.Equal(t, 10, publisher.Count())
	assert.Equal(t, 1, pings.Calls(), "only the first ping is recorded")
	target.mu.Lock()
	defer target.mu.Unlock()
	assert.Nil(t, target.order.Offer())
	assert.Equal(t, 1, target.order.AttemptCount())
	assert.True(t, target.order.HasTried(driverID))
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	for i, e := range publisher.events {
		assert.Equal(t, dispatch.EventOfferPing, e.Name)
		assert.Equal(t, i+1, e.Data["attempt"])
	}
}

func TestAckMonitor_FirstPingMovesOrderToAckPending(t *testing.T) {
	driverID := kernel.NewUUID()
	target := newOfferedOrder(t, driverID)
	pings := &pingHandler{target: target}
	monitor := dispatch.NewAckMonitor(pings, &unreachableHandler{target: target}, newAckStore(), &pingRecorder{},
		fastConfig(t), kernel.SystemClock(), zerolog.Nop())
	defer monitor.Shutdown()

	monitor.Watch(target.order.ID(), driverID)

	require.Eventually(t, func() bool { return pings.Calls() == 1 }, time.Second, time.Millisecond)
	monitor.Stop(target.order.ID())
	target.mu.Lock()
	defer target.mu.Unlock()
	assert.Equal(t, order.AckPending, target.order.Status())
}

func TestAckMonitor_StopCancelsPings(t *testing.T) {
	driverID := kernel.NewUUID()
	target := newOfferedOrder(t, driverID)
	publisher := &pingRecorder{}
	monitor := dispatch.NewAckMonitor(&pingHandler{target: target}, &unreachableHandler{target: target}, newAckStore(),
		publisher, fastConfig(t), kernel.SystemClock(), zerolog.Nop())
	defer monitor.Shutdown()

	monitor.Watch(target.order.ID(), driverID)
	require.Eventually(t, func() bool { return publisher.Count() >= 2 }, time.Second, time.Millisecond)
	monitor.Stop(target.order.ID())
	require.Eventually(t, func() bool { return monitor.Active() == 0 }, time.Second, time.Millisecond)
	sent := publisher.Count()

	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, sent, publisher.Count(), "no ping after stop")
	assert.Less(t, sent, 10)
	select {
	case <-target.done:
		t.Fatal("a stopped monitor must not mark the driver unreachable")
	default:
	}
}

func TestAckMonitor_AckSeenInStoreEndsMonitor(t *testing.T) {
	driverID := kernel.NewUUID()
	target := newOfferedOrder(t, driverID)
	acks := newAckStore()
	publisher := &pingRecorder{}
	monitor := dispatch.NewAckMonitor(&pingHandler{target: target}, &unreachableHandler{target: target}, acks,
		publisher, fastConfig(t), kernel.SystemClock(), zerolog.Nop())
	defer monitor.Shutdown()

	monitor.Watch(target.order.ID(), driverID)
	require.Eventually(t, func() bool { return publisher.Count() >= 1 }, time.Second, time.Millisecond)
	require.NoError(t, acks.MarkAcked(context.Background(), target.order.ID(), driverID, time.Minute))

	require.Eventually(t, func() bool { return monitor.Active() == 0 }, time.Second, time.Millisecond)
	select {
	case <-target.done:
		t.Fatal("an acknowledged offer must not be cancelled")
	default:
	}
}

func TestAckMonitor_WatchReplacesPreviousMonitor(t *testing.T) {
	first := kernel.NewUUID()
	target := newOfferedOrder(t, first)
	monitor := dispatch.NewAckMonitor(&pingHandler{target: target}, &unreachableHandler{target: target}, newAckStore(),
		&pingRecorder{}, fastConfig(t), kernel.SystemClock(), zerolog.Nop())
	defer monitor.Shutdown()

	monitor.Watch(target.order.ID(), first)
	monitor.Watch(target.order.ID(), kernel.NewUUID())

	assert.Equal(t, 1, monitor.Active())
}
