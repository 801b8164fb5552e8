package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reelcast"

// Collectors groups the Prometheus instruments exported by the daemon.
type Collectors struct {
	StageDuration  *prometheus.HistogramVec
	Items          *prometheus.CounterVec
	FetchItems     *prometheus.CounterVec
	Publish        *prometheus.CounterVec
	Replies        *prometheus.CounterVec
	RateLimitWaits *prometheus.CounterVec
	Polls          *prometheus.CounterVec
}

// NewCollectors registers the instruments with reg. Callers own the registry so
// tests can build isolated collectors.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of stage transformer calls in seconds",
				Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage", "outcome"},
		),
		Items: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Content items that reached a terminal pipeline state",
			},
			[]string{"outcome"},
		),
		FetchItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_items_total",
				Help:      "Items seen during intake by source and result",
			},
			[]string{"source", "result"},
		),
		Publish: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_total",
				Help:      "Publish attempts by platform and outcome",
			},
			[]string{"platform", "outcome"},
		),
		Replies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replies_total",
				Help:      "Interaction outcomes by platform",
			},
			[]string{"platform", "outcome"},
		),
		RateLimitWaits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_waits_total",
				Help:      "Calls delayed by the client-side rate limiter",
			},
			[]string{"api"},
		),
		Polls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interaction_polls_total",
				Help:      "Comment polls by platform and outcome",
			},
			[]string{"platform", "outcome"},
		),
	}
}
