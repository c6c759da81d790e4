package metrics

import (
	"dispatch/internal/core/domain/model/route"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dispatch"

// DispatchMetrics implements commands.DispatchRecorder.
type DispatchMetrics struct {
	offersIssued   prometheus.Counter
	offersResolved *prometheus.CounterVec
	escalations    prometheus.Counter
	noCandidates   prometheus.Counter
	plans          *prometheus.CounterVec
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		offersIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offers_issued_total",
			Help:      "Orders offered to a driver.",
		}),
		offersResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offers_resolved_total",
			Help:      "Offers closed, by outcome.",
		}, []string{"outcome"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Target-mode orders escalated to global dispatch.",
		}),
		noCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_candidates_total",
			Help:      "Dispatch attempts that found no eligible driver.",
		}),
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_plans_total",
			Help:      "Optimizer plans, by view and result.",
		}, []string{"view", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.offersIssued, m.offersResolved, m.escalations, m.noCandidates, m.plans)
	}
	return m
}

func (m *DispatchMetrics) OfferIssued() { m.offersIssued.Inc() }

func (m *DispatchMetrics) OfferResolved(outcome string) {
	m.offersResolved.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *DispatchMetrics) Escalated()    { m.escalations.Inc() }
func (m *DispatchMetrics) NoCandidates() { m.noCandidates.Inc() }

func (m *DispatchMetrics) PlanApplied(view route.View) {
	m.plans.WithLabelValues(view.String(), "applied").Inc()
}

// PlanDiscarded counts plans dropped because the order changed while the
// optimizer was running.
func (m *DispatchMetrics) PlanDiscarded(view route.View) {
	m.plans.WithLabelValues(view.String(), "discarded").Inc()
}
