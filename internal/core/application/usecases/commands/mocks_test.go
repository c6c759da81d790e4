package commands_test

import (
	"context"
	"testing"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/location"
	"dispatch/internal/core/domain/model/mission"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/domain/model/zone"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) kernel.Clock {
	return kernel.ClockFunc(func() time.Time { return at })
}

type MockOrderRepository struct{ mock.Mock }

func (m *MockOrderRepository) Add(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) Update(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) Delete(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) MarkFrozen(ctx context.Context, id kernel.UUID, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockOrderRepository) ListDueForDispatch(ctx context.Context, now time.Time, limit int) ([]kernel.UUID, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]kernel.UUID), args.Error(1)
}

func (m *MockOrderRepository) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]kernel.UUID, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]kernel.UUID), args.Error(1)
}

func (m *MockOrderRepository) CountOpenOffersByDrivers(ctx context.Context, ids []kernel.UUID) (map[kernel.UUID]int, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[kernel.UUID]int), args.Error(1)
}

type MockMissionRepository struct{ mock.Mock }

func (m *MockMissionRepository) Add(ctx context.Context, ms *mission.Mission) error {
	return m.Called(ctx, ms).Error(0)
}

func (m *MockMissionRepository) Update(ctx context.Context, ms *mission.Mission) error {
	return m.Called(ctx, ms).Error(0)
}

func (m *MockMissionRepository) Get(ctx context.Context, id kernel.UUID) (*mission.Mission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mission.Mission), args.Error(1)
}

func (m *MockMissionRepository) ListByOrderForUpdate(ctx context.Context, orderID kernel.UUID) ([]*mission.Mission, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*mission.Mission), args.Error(1)
}

func (m *MockMissionRepository) ListActiveByDriver(ctx context.Context, driverID kernel.UUID) ([]*mission.Mission, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*mission.Mission), args.Error(1)
}

func (m *MockMissionRepository) CountActiveByDrivers(ctx context.Context, ids []kernel.UUID) (map[kernel.UUID]int, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[kernel.UUID]int), args.Error(1)
}

type MockDriverRepository struct{ mock.Mock }

func (m *MockDriverRepository) Add(ctx context.Context, d *driver.Driver) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDriverRepository) Update(ctx context.Context, d *driver.Driver) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDriverRepository) Get(ctx context.Context, id kernel.UUID) (*driver.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driver.Driver), args.Error(1)
}

func (m *MockDriverRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*driver.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driver.Driver), args.Error(1)
}

func (m *MockDriverRepository) GetMany(ctx context.Context, ids []kernel.UUID) ([]*driver.Driver, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*driver.Driver), args.Error(1)
}

type MockZoneRepository struct{ mock.Mock }

func (m *MockZoneRepository) Add(ctx context.Context, z *zone.Zone) error {
	return m.Called(ctx, z).Error(0)
}

func (m *MockZoneRepository) Update(ctx context.Context, z *zone.Zone) error {
	return m.Called(ctx, z).Error(0)
}

func (m *MockZoneRepository) Get(ctx context.Context, id kernel.UUID) (*zone.Zone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zone.Zone), args.Error(1)
}

func (m *MockZoneRepository) ListActiveCovering(ctx context.Context, p kernel.GeoPoint) ([]*zone.Zone, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*zone.Zone), args.Error(1)
}

type MockUoW struct {
	mock.Mock
	orders   *MockOrderRepository
	missions *MockMissionRepository
	drivers  *MockDriverRepository
	zones    *MockZoneRepository
}

func (m *MockUoW) Begin(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *MockUoW) Commit(ctx context.Context) error   { return m.Called(ctx).Error(0) }
func (m *MockUoW) Rollback(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockUoW) OrderRepository() ports.OrderRepository     { return m.orders }
func (m *MockUoW) MissionRepository() ports.MissionRepository { return m.missions }
func (m *MockUoW) DriverRepository() ports.DriverRepository   { return m.drivers }
func (m *MockUoW) ZoneRepository() ports.ZoneRepository       { return m.zones }

// MockUoWFactory hands out the same unit of work for every Create, so the
// repository expectations of a test span all of a handler's transactions.
type MockUoWFactory struct {
	mock.Mock
	uow *MockUoW
}

func (m *MockUoWFactory) Create() ports.UnitOfWork {
	m.Called()
	return m.uow
}

func newUoWFactory() *MockUoWFactory {
	uow := &MockUoW{
		orders:   new(MockOrderRepository),
		missions: new(MockMissionRepository),
		drivers:  new(MockDriverRepository),
		zones:    new(MockZoneRepository),
	}
	uow.On("Begin", mock.Anything).Return(nil).Maybe()
	uow.On("Commit", mock.Anything).Return(nil).Maybe()
	uow.On("Rollback", mock.Anything).Return(nil).Maybe()

	factory := &MockUoWFactory{uow: uow}
	factory.On("Create").Return().Maybe()
	return factory
}

func (m *MockUoWFactory) assertCommitted(t *testing.T) {
	t.Helper()
	m.uow.AssertCalled(t, "Commit", mock.Anything)
}

func (m *MockUoWFactory) assertNotCommitted(t *testing.T) {
	t.Helper()
	m.uow.AssertNotCalled(t, "Commit", mock.Anything)
}

type MockOfferWatcher struct{ mock.Mock }

func (m *MockOfferWatcher) Watch(orderID, driverID kernel.UUID) { m.Called(orderID, driverID) }
func (m *MockOfferWatcher) Stop(orderID kernel.UUID)            { m.Called(orderID) }

type MockRouteScheduler struct{ mock.Mock }

func (m *MockRouteScheduler) Schedule(orderID kernel.UUID, view route.View) { m.Called(orderID, view) }

type MockOptimizerCalls struct{ mock.Mock }

func (m *MockOptimizerCalls) Begin(parent context.Context, orderID kernel.UUID) (context.Context, func()) {
	m.Called(parent, orderID)
	return parent, func() {}
}

func (m *MockOptimizerCalls) Cancel(orderID kernel.UUID) { m.Called(orderID) }

type MockDispatcher struct{ mock.Mock }

func (m *MockDispatcher) Handle(ctx context.Context, cmd commands.DispatchOrderCommand) error {
	return m.Called(ctx, cmd.OrderID()).Error(0)
}

type MockRecorder struct{ mock.Mock }

func (m *MockRecorder) OfferIssued()                  { m.Called() }
func (m *MockRecorder) OfferResolved(outcome string)  { m.Called(outcome) }
func (m *MockRecorder) Escalated()                    { m.Called() }
func (m *MockRecorder) NoCandidates()                 { m.Called() }
func (m *MockRecorder) PlanApplied(view route.View)   { m.Called(view) }
func (m *MockRecorder) PlanDiscarded(view route.View) { m.Called(view) }

type MockOptimizer struct{ mock.Mock }

func (m *MockOptimizer) Calculate(ctx context.Context, state route.VirtualState, vehicle route.Vehicle) (route.Plan, error) {
	args := m.Called(ctx, state, vehicle)
	return args.Get(0).(route.Plan), args.Error(1)
}

type MockAckStore struct{ mock.Mock }

func (m *MockAckStore) MarkAcked(ctx context.Context, orderID, driverID kernel.UUID, ttl time.Duration) error {
	return m.Called(ctx, orderID, driverID, ttl).Error(0)
}

func (m *MockAckStore) IsAcked(ctx context.Context, orderID, driverID kernel.UUID) (bool, error) {
	args := m.Called(ctx, orderID, driverID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAckStore) Clear(ctx context.Context, orderID kernel.UUID) error {
	return m.Called(ctx, orderID).Error(0)
}

type MockLocationBuffer struct{ mock.Mock }

func (m *MockLocationBuffer) Record(ctx context.Context, p location.Position) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockLocationBuffer) Latest(ctx context.Context, driverID kernel.UUID) (*location.Position, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*location.Position), args.Error(1)
}

func (m *MockLocationBuffer) Nearby(
	ctx context.Context, center kernel.GeoPoint, radiusKm float64, limit int,
) ([]location.Nearby, error) {
	args := m.Called(ctx, center, radiusKm, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]location.Nearby), args.Error(1)
}

func (m *MockLocationBuffer) BeginFlush(ctx context.Context) ([]location.Position, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]location.Position), args.Error(1)
}

func (m *MockLocationBuffer) CompleteFlush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockLocationHistory struct{ mock.Mock }

func (m *MockLocationHistory) InsertBatch(ctx context.Context, positions []location.Position) error {
	return m.Called(ctx, positions).Error(0)
}

type MockGeocoder struct{ mock.Mock }

func (m *MockGeocoder) ReverseGeocode(ctx context.Context, p kernel.GeoPoint) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func mustPoint(t *testing.T, lat, lng float64) kernel.GeoPoint {
	t.Helper()
	p, err := kernel.NewGeoPoint(lat, lng)
	require.NoError(t, err)
	return p
}

// pendingOrder is a GLOBAL order with one pickup and one delivery.
func pendingOrder(t *testing.T, proofs []order.ProofType) *order.Order {
	t.Helper()
	o, err := order.NewOrder(order.NewOrderParams{ID: kernel.NewUUID(), Priority: 1, Mode: order.Global, Now: t0})
	require.NoError(t, err)
	require.NoError(t, o.Decompose([]order.Waypoint{
		{GroupKey: "g", Kind: order.Pickup, Address: "A", Point: mustPoint(t, 48.85, 2.35), Proofs: proofs},
		{GroupKey: "g", Kind: order.Delivery, Address: "B", Point: mustPoint(t, 48.86, 2.36), Proofs: proofs},
	}, order.ProofPolicy{OTPLength: 6}, t0))
	o.ClearEvents()
	return o
}

func offeredOrder(t *testing.T, driverID kernel.UUID) *order.Order {
	t.Helper()
	o := pendingOrder(t, []order.ProofType{})
	require.NoError(t, o.OfferTo(driverID, t0, 15*time.Second))
	o.ClearEvents()
	return o
}

func onlineDriver(t *testing.T) *driver.Driver {
	t.Helper()
	d, err := driver.NewDriver(kernel.NewUUID(), "Ann", nil, driver.Independent)
	require.NoError(t, err)
	d.GoOnline()
	return d
}

func configWithRetries(t *testing.T, retries int) services.DispatchConfig {
	t.Helper()
	s := services.DefaultDispatchSettings()
	s.MaxAutoRetries = retries
	cfg, err := services.NewDispatchConfig(s)
	require.NoError(t, err)
	return cfg
}
