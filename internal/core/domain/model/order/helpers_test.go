package order_test

import (
	"testing"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

const offerTimeout = 15 * time.Second

type missionScope struct {
	steps []kernel.UUID
}

func (s missionScope) GovernsStep(id kernel.UUID) bool {
	for _, step := range s.steps {
		if step.IsEqual(id) {
			return true
		}
	}
	return false
}

func (s missionScope) HasActiveMission() bool {
	return len(s.steps) > 0
}

func mustPoint(t *testing.T, lat, lng float64) kernel.GeoPoint {
	t.Helper()
	p, err := kernel.NewGeoPoint(lat, lng)
	require.NoError(t, err)
	return p
}

func waypoints(t *testing.T, group string, n int) []order.Waypoint {
	t.Helper()
	out := make([]order.Waypoint, 0, n)
	for i := range n {
		kind := order.Delivery
		if i == 0 {
			kind = order.Pickup
		}
		out = append(out, order.Waypoint{
			GroupKey: group,
			Kind:     kind,
			Address:  "stop",
			Point:    mustPoint(t, 48.85+float64(i)*0.01, 2.35),
		})
	}
	return out
}

// newOrder returns a decomposed GLOBAL order whose actions need no proof.
func newOrder(t *testing.T, wps []order.Waypoint) *order.Order {
	t.Helper()
	o, err := order.NewOrder(order.NewOrderParams{ID: kernel.NewUUID(), Mode: order.Global, Now: t0})
	require.NoError(t, err)
	require.NoError(t, o.Decompose(wps, order.ProofPolicy{}, t0))
	return o
}

// assigned offers and accepts o, returning the scope of the resulting mission.
func assigned(t *testing.T, o *order.Order) (kernel.UUID, missionScope) {
	t.Helper()
	driverID := kernel.NewUUID()
	require.NoError(t, o.OfferTo(driverID, t0, offerTimeout))
	require.NoError(t, o.Accept(driverID, kernel.NewUUID(), t0.Add(time.Second)))
	return driverID, missionScope{steps: o.UnfinishedStepIDs()}
}

func runStop(t *testing.T, o *order.Order, s *order.Stop) order.ExecutionOutcome {
	t.Helper()
	_, err := o.ArriveAtStop(s.ID(), t0)
	require.NoError(t, err)
	out, err := o.CompleteStop(s.ID(), t0)
	require.NoError(t, err)
	return out
}
