package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/route"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type optimizationJob struct {
	ID       int       `json:"id"`
	Location []float64 `json:"location"`
	Service  int       `json:"service,omitempty"`
}

type optimizationVehicle struct {
	ID       int       `json:"id"`
	Profile  string    `json:"profile"`
	Start    []float64 `json:"start"`
	Capacity []int     `json:"capacity,omitempty"`
}

type optimizationRequest struct {
	Jobs     []optimizationJob     `json:"jobs"`
	Vehicles []optimizationVehicle `json:"vehicles"`
}

type optimizationResponse struct {
	Code       int `json:"code"`
	Unassigned []struct {
		ID int `json:"id"`
	} `json:"unassigned"`
	Routes []struct {
		Steps []struct {
			Type    string `json:"type"`
			Job     int    `json:"job"`
			ID      int    `json:"id"`
			Arrival int    `json:"arrival"`
		} `json:"steps"`
	} `json:"routes"`
}

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

var ErrUnassignedStops = errors.New("optimizer left stops unassigned")

// Optimizer implements ports.RouteOptimizer on top of the ORS optimization and
// directions endpoints.
type Optimizer struct {
	client *Client
}

func NewOptimizer(client *Client) *Optimizer {
	return &Optimizer{client: client}
}

// Calculate sequences the stops of state. Stops sharing a linked step are kept
// contiguous, grouped where the first of them was placed.
func (o *Optimizer) Calculate(ctx context.Context, state route.VirtualState, vehicle route.Vehicle) (route.Plan, error) {
	if len(state.Stops) == 0 {
		return route.Plan{}, nil
	}

	start := state.Stops[0].Point
	if state.Start != nil {
		start = *state.Start
	}

	order, arrivals, err := o.optimize(ctx, state, start, vehicle)
	if err != nil {
		return route.Plan{}, err
	}
	order = keepLinkedTogether(state.Stops, order)

	plan := route.Plan{Sequence: make([]route.SequencedStop, 0, len(order))}
	coords := [][]float64{lngLat(start)}
	for i, idx := range order {
		stop := state.Stops[idx]
		plan.Sequence = append(plan.Sequence, route.SequencedStop{
			StopID:         stop.StopID,
			Position:       i + 1,
			ArrivalSeconds: arrivals[idx],
		})
		coords = append(coords, lngLat(stop.Point))
	}

	geometry, distance, duration, err := o.directions(ctx, coords, profileOf(vehicle, o.client.profile))
	if err != nil {
		return route.Plan{}, err
	}
	plan.Geometry = geometry
	plan.DistanceMeters = distance
	plan.DurationSeconds = duration
	return plan, nil
}

// optimize returns stop indexes in visiting order and the arrival offset of each.
func (o *Optimizer) optimize(
	ctx context.Context,
	state route.VirtualState,
	start kernel.GeoPoint,
	vehicle route.Vehicle,
) ([]int, map[int]int, error) {
	body := optimizationRequest{
		Jobs: make([]optimizationJob, 0, len(state.Stops)),
		Vehicles: []optimizationVehicle{{
			ID:      1,
			Profile: profileOf(vehicle, o.client.profile),
			Start:   lngLat(start),
		}},
	}
	if vehicle.Capacity > 0 {
		body.Vehicles[0].Capacity = []int{vehicle.Capacity}
	}
	// ORS job ids are 1-based indexes into state.Stops.
	for i, s := range state.Stops {
		body.Jobs = append(body.Jobs, optimizationJob{
			ID:       i + 1,
			Location: lngLat(s.Point),
			Service:  s.ServiceSeconds,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal optimization request: %w", err)
	}

	endpoint := o.client.baseURL + "/optimization"
	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		return o.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, nil, fmt.Errorf("optimization request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded optimizationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, nil, fmt.Errorf("decode optimization response: %w", err)
	}
	if decoded.Code != 0 {
		return nil, nil, fmt.Errorf("optimization returned code %d", decoded.Code)
	}
	if len(decoded.Unassigned) > 0 {
		return nil, nil, fmt.Errorf("%w: %d of %d", ErrUnassignedStops, len(decoded.Unassigned), len(state.Stops))
	}

	order := make([]int, 0, len(state.Stops))
	arrivals := make(map[int]int, len(state.Stops))
	for _, r := range decoded.Routes {
		for _, step := range r.Steps {
			if step.Type != "job" {
				continue
			}
			id := step.ID
			if id == 0 {
				id = step.Job
			}
			idx := id - 1
			if idx < 0 || idx >= len(state.Stops) {
				return nil, nil, fmt.Errorf("optimization returned unknown job %d", id)
			}
			if _, seen := arrivals[idx]; seen {
				continue
			}
			order = append(order, idx)
			arrivals[idx] = step.Arrival
		}
	}
	if len(order) != len(state.Stops) {
		return nil, nil, fmt.Errorf("%w: %d of %d", ErrUnassignedStops, len(state.Stops)-len(order), len(state.Stops))
	}
	return order, arrivals, nil
}

// directions returns the road geometry through coords with its length in meters
// and duration in seconds.
func (o *Optimizer) directions(ctx context.Context, coords [][]float64, profile string) (orb.LineString, int, int, error) {
	if len(coords) < 2 {
		return nil, 0, 0, nil
	}

	payload, err := json.Marshal(directionsRequest{Coordinates: coords})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("marshal directions request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", o.client.baseURL, profile)
	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		return o.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read directions response: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode directions response: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, 0, 0, errors.New("directions returned no route")
	}

	feature := fc.Features[0]
	line, ok := feature.Geometry.(orb.LineString)
	if !ok {
		return nil, 0, 0, fmt.Errorf("directions returned %T geometry", feature.Geometry)
	}

	var distance, duration float64
	if summary, ok := feature.Properties["summary"].(map[string]any); ok {
		distance, _ = summary["distance"].(float64)
		duration, _ = summary["duration"].(float64)
	}
	return line, int(distance + 0.5), int(duration + 0.5), nil
}

// keepLinkedTogether moves every linked stop next to the first stop of its step
// that appears in order. Linked stops of a step keep their display order.
func keepLinkedTogether(stops []route.VirtualStop, order []int) []int {
	groups := make(map[kernel.UUID][]int)
	for _, idx := range order {
		s := stops[idx]
		if s.Linked {
			groups[s.StepID] = append(groups[s.StepID], idx)
		}
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			return stops[g[i]].DisplayOrder < stops[g[j]].DisplayOrder
		})
	}

	out := make([]int, 0, len(order))
	placed := make(map[kernel.UUID]bool, len(groups))
	for _, idx := range order {
		s := stops[idx]
		if !s.Linked {
			out = append(out, idx)
			continue
		}
		if placed[s.StepID] {
			continue
		}
		placed[s.StepID] = true
		out = append(out, groups[s.StepID]...)
	}
	return out
}

func profileOf(v route.Vehicle, fallback string) string {
	if v.Profile != "" {
		return v.Profile
	}
	return fallback
}

func lngLat(p kernel.GeoPoint) []float64 {
	return []float64{p.Lng(), p.Lat()}
}
