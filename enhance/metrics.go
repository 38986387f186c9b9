package enhance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enhancementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semprompt_enhancements_total",
		Help: "Enhancements produced, labeled by source (external or fallback).",
	}, []string{"source"})

	externalCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "semprompt_external_call_duration_seconds",
		Help:    "Wall-clock duration of model API calls.",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	externalCallFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semprompt_external_call_failures_total",
		Help: "Model API calls that errored or returned empty content.",
	})
)
