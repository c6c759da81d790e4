package kernel_test

import (
	"testing"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeoPoint(t *testing.T) {
	t.Run("valid coordinates", func(t *testing.T) {
		p, err := kernel.NewGeoPoint(48.8566, 2.3522)

		require.NoError(t, err)
		require.NoError(t, p.Validate())
		assert.InDelta(t, 48.8566, p.Lat(), 1e-9)
		assert.InDelta(t, 2.3522, p.Lng(), 1e-9)
		assert.Equal(t, orb.Point{2.3522, 48.8566}, p.Orb())
	})

	t.Run("latitude out of range", func(t *testing.T) {
		_, err := kernel.NewGeoPoint(91, 0)

		require.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
		assert.Contains(t, err.Error(), "lat")
	})

	t.Run("both coordinates out of range are reported together", func(t *testing.T) {
		_, err := kernel.NewGeoPoint(-100, 200)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "lat")
		assert.Contains(t, err.Error(), "lng")
	})
}

func TestGeoPoint_ZeroValue(t *testing.T) {
	var p kernel.GeoPoint
	other, _ := kernel.NewGeoPoint(0, 0)

	require.ErrorIs(t, p.Validate(), errs.ErrValueIsRequired)

	_, err := p.DistanceKm(other)
	require.Error(t, err)
}

func TestGeoPoint_DistanceKm(t *testing.T) {
	paris, _ := kernel.NewGeoPoint(48.8566, 2.3522)
	london, _ := kernel.NewGeoPoint(51.5074, -0.1278)

	d, err := paris.DistanceKm(london)
	require.NoError(t, err)
	assert.InDelta(t, 343.5, d, 2.0)

	back, err := london.DistanceKm(paris)
	require.NoError(t, err)
	assert.InDelta(t, d, back, 1e-9)

	self, err := paris.DistanceKm(paris)
	require.NoError(t, err)
	assert.InDelta(t, 0, self, 1e-9)
}

func TestGeoPointFromOrb(t *testing.T) {
	p, err := kernel.GeoPointFromOrb(orb.Point{-73.9857, 40.7484})

	require.NoError(t, err)
	assert.InDelta(t, 40.7484, p.Lat(), 1e-9)
	assert.InDelta(t, -73.9857, p.Lng(), 1e-9)
}
