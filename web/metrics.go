package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// inFlightRequests tracks HTTP requests currently being served.
var inFlightRequests = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "semprompt_http_requests_in_flight",
	Help: "Number of HTTP requests currently being served.",
})
