package ors_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"dispatch/internal/adapters/out/ors"
	"dispatch/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocoder_ReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/reverse", r.URL.Path)
		assert.Equal(t, "2.35", r.URL.Query().Get("point.lon"))
		assert.Equal(t, "48.85", r.URL.Query().Get("point.lat"))
		assert.Equal(t, "1", r.URL.Query().Get("size"))
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[{"type":"Feature",
			"geometry":{"type":"Point","coordinates":[2.35,48.85]},
			"properties":{"label":"4 Rue de Rivoli, Paris, France"}}]}`)
	}))
	t.Cleanup(srv.Close)

	label, err := ors.NewGeocoder(newClient(t, srv)).ReverseGeocode(t.Context(), mustPoint(t, 48.85, 2.35))
	require.NoError(t, err)
	assert.Equal(t, "4 Rue de Rivoli, Paris, France", label)
}

func TestGeocoder_ReverseGeocode_NoFeature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type":"FeatureCollection","features":[]}`)
	}))
	t.Cleanup(srv.Close)

	_, err := ors.NewGeocoder(newClient(t, srv)).ReverseGeocode(t.Context(), mustPoint(t, 0.5, 0.5))
	assert.ErrorIs(t, err, ports.ErrAddressNotFound)
}
