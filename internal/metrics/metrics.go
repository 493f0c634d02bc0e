// Package metrics exposes Prometheus instrumentation for the signal lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signals_received_total", Help: "Signals created from inbound alerts"},
	)
	SignalsAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_analyzed_total", Help: "Signals claimed by an operator"},
		[]string{"operator"},
	)
	AnalyzeConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signal_analyze_conflicts_total", Help: "Analyze attempts rejected because the signal was already analyzed"},
	)
	ResponseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signal_response_time_seconds",
			Help:    "Seconds between signal receipt and analysis",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
	TradesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_created_total", Help: "Trades logged by operators"},
		[]string{"result"},
	)
	AlertsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alerts_rejected_total", Help: "Inbound alerts refused before signal creation"},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(SignalsReceived, SignalsAnalyzed, AnalyzeConflicts, ResponseTime, TradesCreated, AlertsRejected)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
