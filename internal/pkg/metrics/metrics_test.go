package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dispatch/internal/core/domain/model/route"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetrics_ExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveDuration("offer-expiry", 250*time.Millisecond)
	m.IncSuccess("offer-expiry")
	m.IncFailure("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, mfs, "dispatch_job_success_total", "job", "offer-expiry"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "dispatch_job_failure_total", "job", "unknown"))
	assert.InDelta(t, 0.25, histogramSum(t, mfs, "dispatch_job_duration_seconds", "job", "offer-expiry"), 1e-9)
}

func TestCronJobMetrics_NilRegistererIsSilent(t *testing.T) {
	m := NewCronJobMetrics(nil)
	assert.NotPanics(t, func() {
		m.ObserveDuration("x", time.Second)
		m.IncSuccess("x")
		m.IncFailure("x")
	})
}

func TestDispatchMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)
	m.OfferIssued()
	m.OfferIssued()
	m.OfferResolved("expired")
	m.Escalated()
	m.NoCandidates()
	m.PlanApplied(route.DriverView)
	m.PlanDiscarded(route.ClientView)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 2.0, counterValue(t, mfs, "dispatch_offers_issued_total", "", ""))
	assert.Equal(t, 1.0, counterValue(t, mfs, "dispatch_offers_resolved_total", "outcome", "expired"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "dispatch_escalations_total", "", ""))
	assert.Equal(t, 1.0, counterValue(t, mfs, "dispatch_no_candidates_total", "", ""))
	assert.Equal(t, 1.0, counterValue(t, mfs, "dispatch_route_plans_total", "view", "DRIVER"))
	assert.Equal(t, 1.0, counterValue(t, mfs, "dispatch_route_plans_total", "result", "discarded"))
}

type stubOptimizer struct {
	err error
}

func (s stubOptimizer) Calculate(context.Context, route.VirtualState, route.Vehicle) (route.Plan, error) {
	return route.Plan{DurationSeconds: 60}, s.err
}

func TestInstrumentedOptimizer(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := InstrumentOptimizer(stubOptimizer{}, reg)

	plan, err := ok.Calculate(t.Context(), route.VirtualState{}, route.Vehicle{})
	require.NoError(t, err)
	assert.Equal(t, 60, plan.DurationSeconds)

	wrapped := fmt.Errorf("call: %w", context.DeadlineExceeded)
	failing := &InstrumentedOptimizer{next: stubOptimizer{err: wrapped}, duration: ok.duration}
	_, err = failing.Calculate(t.Context(), route.VirtualState{}, route.Vehicle{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histogramCount(t, mfs, "dispatch_optimizer_duration_seconds", "result", "ok"))
	assert.Equal(t, uint64(1), histogramCount(t, mfs, "dispatch_optimizer_duration_seconds", "result", "timeout"))
}

func findMetric(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) *dto.Metric {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if label == "" || matchesLabel(metric.GetLabel(), label, value) {
				return metric
			}
		}
	}
	require.FailNowf(t, "metric not found", "%s{%s=%q}", name, label, value)
	return nil
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) float64 {
	return findMetric(t, mfs, name, label, value).GetCounter().GetValue()
}

func histogramSum(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) float64 {
	return findMetric(t, mfs, name, label, value).GetHistogram().GetSampleSum()
}

func histogramCount(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) uint64 {
	return findMetric(t, mfs, name, label, value).GetHistogram().GetSampleCount()
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
