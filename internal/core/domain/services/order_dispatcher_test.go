package services_test

import (
	"testing"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/zone"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func point(t *testing.T, lat, lng float64) kernel.GeoPoint {
	t.Helper()
	p, err := kernel.NewGeoPoint(lat, lng)
	require.NoError(t, err)
	return p
}

func newOrder(t *testing.T, params order.NewOrderParams) *order.Order {
	t.Helper()
	params.ID = kernel.NewUUID()
	params.Now = now
	if params.Mode == order.UnknownMode {
		params.Mode = order.Global
	}
	o, err := order.NewOrder(params)
	require.NoError(t, err)
	require.NoError(t, o.Decompose([]order.Waypoint{
		{GroupKey: "a", Kind: order.Pickup, Address: "pickup", Point: point(t, 48.85, 2.35)},
		{GroupKey: "a", Kind: order.Delivery, Address: "drop", Point: point(t, 48.87, 2.35)},
	}, order.ProofPolicy{}, now))
	return o
}

func onlineDriver(t *testing.T, mode driver.WorkMode, companyID *kernel.UUID) *driver.Driver {
	t.Helper()
	d, err := driver.NewDriver(kernel.NewUUID(), "driver", companyID, mode)
	require.NoError(t, err)
	d.GoOnline()
	return d
}

func candidate(t *testing.T, d *driver.Driver, lat, lng float64) services.Candidate {
	return services.Candidate{Driver: d, Position: point(t, lat, lng)}
}

func requireReason(t *testing.T, err error, code string) {
	t.Helper()
	var rv *errs.RuleViolationError
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, code, rv.Code)
}

func TestOrderDispatcher_CheckEligibility(t *testing.T) {
	dispatcher := services.NewOrderDispatcher(services.DefaultDispatchConfig())

	t.Run("should accept nearby independent driver for global order", func(t *testing.T) {
		o := newOrder(t, order.NewOrderParams{})
		c := candidate(t, onlineDriver(t, driver.Independent, nil), 48.851, 2.35)

		assert.NoError(t, dispatcher.CheckEligibility(o, c))
	})

	t.Run("should never offer to transitioning drivers", func(t *testing.T) {
		companyID := kernel.NewUUID()
		for _, target := range []driver.WorkMode{driver.Enterprise, driver.Independent} {
			start := driver.Independent
			if target == driver.Independent {
				start = driver.Enterprise
			}
			d := onlineDriver(t, start, &companyID)
			require.NoError(t, d.RequestWorkMode(target, 1))
			require.True(t, d.WorkMode().IsTransitioning())

			for _, mode := range []order.AssignmentMode{order.Global, order.Internal} {
				o := newOrder(t, order.NewOrderParams{Mode: mode, CompanyID: &companyID})
				requireReason(t, dispatcher.CheckEligibility(o, candidate(t, d, 48.85, 2.35)),
					services.ReasonDriverTransitioning)
			}
		}
	})

	t.Run("should reject offline drivers", func(t *testing.T) {
		o := newOrder(t, order.NewOrderParams{})
		d := onlineDriver(t, driver.Independent, nil)
		d.GoOffline()

		requireReason(t, dispatcher.CheckEligibility(o, candidate(t, d, 48.85, 2.35)), services.ReasonDriverOffline)
	})

	t.Run("should match assignment mode", func(t *testing.T) {
		companyID := kernel.NewUUID()
		other := kernel.NewUUID()
		independent := onlineDriver(t, driver.Independent, nil)
		employee := onlineDriver(t, driver.Enterprise, &companyID)
		outsider := onlineDriver(t, driver.Enterprise, &other)

		global := newOrder(t, order.NewOrderParams{Mode: order.Global})
		requireReason(t, dispatcher.CheckEligibility(global, candidate(t, employee, 48.85, 2.35)),
			services.ReasonAssignmentMismatch)

		internal := newOrder(t, order.NewOrderParams{Mode: order.Internal, CompanyID: &companyID})
		assert.NoError(t, dispatcher.CheckEligibility(internal, candidate(t, employee, 48.85, 2.35)))
		requireReason(t, dispatcher.CheckEligibility(internal, candidate(t, outsider, 48.85, 2.35)),
			services.ReasonAssignmentMismatch)
		requireReason(t, dispatcher.CheckEligibility(internal, candidate(t, independent, 48.85, 2.35)),
			services.ReasonAssignmentMismatch)

		targetID := independent.ID()
		target := newOrder(t, order.NewOrderParams{Mode: order.Target, TargetDriverID: &targetID})
		assert.NoError(t, dispatcher.CheckEligibility(target, candidate(t, independent, 48.85, 2.35)))
		requireReason(t, dispatcher.CheckEligibility(target, candidate(t, employee, 48.85, 2.35)),
			services.ReasonAssignmentMismatch)
	})

	t.Run("should honour the active zone", func(t *testing.T) {
		o := newOrder(t, order.NewOrderParams{})
		shape, err := zone.NewCircle(point(t, 48.70, 2.35), 2)
		require.NoError(t, err)
		z, err := zone.NewZone(kernel.NewUUID(), "south", zone.Platform, nil, shape)
		require.NoError(t, err)
		zoneID := z.ID()

		d := onlineDriver(t, driver.Independent, nil)
		d.SetActiveZone(&zoneID)
		c := candidate(t, d, 48.85, 2.35)
		c.ActiveZone = z

		requireReason(t, dispatcher.CheckEligibility(o, c), services.ReasonOutsideActiveZone)
	})

	t.Run("should reject drivers outside the search radius", func(t *testing.T) {
		o := newOrder(t, order.NewOrderParams{})
		c := candidate(t, onlineDriver(t, driver.Independent, nil), 49.10, 2.35)

		requireReason(t, dispatcher.CheckEligibility(o, c), services.ReasonOutsideSearchRadius)
	})

	t.Run("should reject already tried drivers", func(t *testing.T) {
		o := newOrder(t, order.NewOrderParams{})
		d := onlineDriver(t, driver.Independent, nil)
		require.NoError(t, o.OfferTo(d.ID(), now, 15*time.Second))
		require.NoError(t, o.Refuse(d.ID(), now, 2))

		requireReason(t, dispatcher.CheckEligibility(o, candidate(t, d, 48.85, 2.35)), services.ReasonAlreadyTried)
	})
}

func TestOrderDispatcher_Chaining(t *testing.T) {
	dispatcher := services.NewOrderDispatcher(services.DefaultDispatchConfig())
	o := newOrder(t, order.NewOrderParams{})

	busy := func(destLat float64, missions int) services.Candidate {
		c := candidate(t, onlineDriver(t, driver.Independent, nil), 48.86, 2.35)
		dest := point(t, destLat, 2.35)
		c.ActiveMissions = missions
		c.CurrentDestination = &dest
		return c
	}

	t.Run("should allow a second mission starting near the current destination", func(t *testing.T) {
		assert.NoError(t, dispatcher.CheckEligibility(o, busy(48.855, 1)))
	})

	t.Run("should reject a second mission beyond the direct radius", func(t *testing.T) {
		requireReason(t, dispatcher.CheckEligibility(o, busy(48.90, 1)), services.ReasonChainingRadiusExceeded)
	})

	t.Run("should cap concurrent missions", func(t *testing.T) {
		requireReason(t, dispatcher.CheckEligibility(o, busy(48.85, 2)), services.ReasonConcurrentMissionCap)
	})

	t.Run("should reject chaining when disabled", func(t *testing.T) {
		settings := services.DefaultDispatchSettings()
		settings.AllowChaining = false
		cfg, err := services.NewDispatchConfig(settings)
		require.NoError(t, err)

		err = services.NewOrderDispatcher(cfg).CheckEligibility(o, busy(48.85, 1))
		requireReason(t, err, services.ReasonChainingDisabled)
	})

	t.Run("should count open offers toward the cap", func(t *testing.T) {
		c := busy(48.855, 1)
		c.OpenOffers = 1
		requireReason(t, dispatcher.CheckEligibility(o, c), services.ReasonConcurrentMissionCap)
	})

	t.Run("should allow a driver with one open offer and no mission", func(t *testing.T) {
		c := candidate(t, onlineDriver(t, driver.Independent, nil), 48.86, 2.35)
		c.OpenOffers = 1
		assert.NoError(t, dispatcher.CheckEligibility(o, c))
	})
}

func TestOrderDispatcher_CheckChaining(t *testing.T) {
	dispatcher := services.NewOrderDispatcher(services.DefaultDispatchConfig())
	origin := point(t, 48.85, 2.35)
	d := onlineDriver(t, driver.Independent, nil)

	t.Run("should pass a free driver", func(t *testing.T) {
		assert.NoError(t, dispatcher.CheckChaining(origin, services.Candidate{Driver: d}))
	})

	t.Run("should reject an unknown current destination", func(t *testing.T) {
		err := dispatcher.CheckChaining(origin, services.Candidate{Driver: d, ActiveMissions: 1})
		requireReason(t, err, services.ReasonChainingRadiusExceeded)
	})

	t.Run("should reject a driver at the cap", func(t *testing.T) {
		dest := point(t, 48.85, 2.35)
		err := dispatcher.CheckChaining(origin, services.Candidate{Driver: d, ActiveMissions: 2, CurrentDestination: &dest})
		requireReason(t, err, services.ReasonConcurrentMissionCap)
	})
}

func TestOrderDispatcher_Dispatch(t *testing.T) {
	cfg := services.DefaultDispatchConfig()
	dispatcher := services.NewOrderDispatcher(cfg)

	t.Run("should offer to the closest driver", func(t *testing.T) {
		o := newOrder(t, order.NewOrderParams{})
		far := candidate(t, onlineDriver(t, driver.Independent, nil), 48.90, 2.35)
		near := candidate(t, onlineDriver(t, driver.Independent, nil), 48.851, 2.35)
		offline := candidate(t, onlineDriver(t, driver.Independent, nil), 48.85, 2.35)
		offline.Driver.GoOffline()

		best, err := dispatcher.Dispatch(o, []services.Candidate{far, near, offline}, now)

		require.NoError(t, err)
		assert.True(t, best.Driver.ID().IsEqual(near.Driver.ID()))
		assert.Equal(t, order.Offered, o.Status())
		require.NotNil(t, o.Offer())
		assert.True(t, o.Offer().DriverID.IsEqual(near.Driver.ID()))
		assert.Equal(t, now.Add(cfg.OfferTimeout()), o.Offer().ExpiresAt)
	})

	t.Run("should break distance ties by workload", func(t *testing.T) {
		o := newOrder(t, order.NewOrderParams{})
		loaded := candidate(t, onlineDriver(t, driver.Independent, nil), 48.85, 2.35)
		dest := point(t, 48.85, 2.35)
		loaded.ActiveMissions = 1
		loaded.CurrentDestination = &dest
		free := candidate(t, onlineDriver(t, driver.Independent, nil), 48.85, 2.35)

		ranked, rejected, err := dispatcher.Rank(o, []services.Candidate{loaded, free})

		require.NoError(t, err)
		assert.Empty(t, rejected)
		require.Len(t, ranked, 2)
		assert.True(t, ranked[0].Driver.ID().IsEqual(free.Driver.ID()))
	})

	t.Run("should back off when nobody is eligible", func(t *testing.T) {
		o := newOrder(t, order.NewOrderParams{})

		_, err := dispatcher.Dispatch(o, nil, now)

		assert.ErrorIs(t, err, services.ErrNoCandidates)
		assert.Equal(t, order.Pending, o.Status())
		require.NotNil(t, o.NextDispatchAt())
		assert.Equal(t, now.Add(cfg.RetryBackoff()), *o.NextDispatchAt())

		_, err = dispatcher.Dispatch(o, nil, now.Add(time.Second))
		assert.ErrorIs(t, err, errs.ErrRuleViolation)
	})
}

func TestDispatchConfig(t *testing.T) {
	t.Run("should expose defaults", func(t *testing.T) {
		cfg := services.DefaultDispatchConfig()

		assert.Equal(t, 15*time.Second, cfg.OfferTimeout())
		assert.Equal(t, 20*time.Second, cfg.AckWindow())
		assert.Equal(t, 2, cfg.MaxAutoRetries())
		assert.Equal(t, []order.ProofType{order.OTP}, cfg.ProofPolicy().DefaultVerification)
	})

	t.Run("should apply persisted overrides", func(t *testing.T) {
		s, err := services.DefaultDispatchSettings().Override(map[string]string{
			"offer_timeout":  "30s",
			"allow_chaining": "false",
		})
		require.NoError(t, err)

		cfg, err := services.NewDispatchConfig(s)
		require.NoError(t, err)
		assert.Equal(t, 30*time.Second, cfg.OfferTimeout())
		assert.False(t, cfg.AllowChaining())
	})

	t.Run("should reject unknown keys and bad values", func(t *testing.T) {
		_, err := services.DefaultDispatchSettings().Override(map[string]string{
			"offer_timeot": "30s",
			"otp_length":   "six",
		})
		assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
	})

	t.Run("should report every invalid value", func(t *testing.T) {
		s := services.DefaultDispatchSettings()
		s.OfferTimeout = 0
		s.OTPLength = 2

		_, err := services.NewDispatchConfig(s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "offerTimeout")
		assert.Contains(t, err.Error(), "otpLength")
	})
}
