package ors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"

	"github.com/paulmach/orb/geojson"
)

// Geocoder implements ports.ReverseGeocoder with ORS /geocode/reverse.
type Geocoder struct {
	client *Client
}

func NewGeocoder(client *Client) *Geocoder {
	return &Geocoder{client: client}
}

// ReverseGeocode returns the label of the closest feature to p.
func (g *Geocoder) ReverseGeocode(ctx context.Context, p kernel.GeoPoint) (string, error) {
	endpoint := g.client.baseURL + "/geocode/reverse"
	resp, err := g.client.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := g.client.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("point.lon", strconv.FormatFloat(p.Lng(), 'f', -1, 64))
		q.Set("point.lat", strconv.FormatFloat(p.Lat(), 'f', -1, 64))
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode %s: %w", p, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read geocode response: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return "", fmt.Errorf("decode geocode response: %w", err)
	}
	if len(fc.Features) == 0 {
		return "", ports.ErrAddressNotFound
	}

	label := fc.Features[0].Properties.MustString("label", "")
	if label == "" {
		return "", ports.ErrAddressNotFound
	}
	return label, nil
}
