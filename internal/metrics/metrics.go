// Package metrics holds the Prometheus collectors for the poll scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Polls          *prometheus.CounterVec
	PollErrors     *prometheus.CounterVec
	LinesRead      *prometheus.CounterVec
	LinesForwarded *prometheus.CounterVec
	LinesDropped   *prometheus.CounterVec
	Exhausted      *prometheus.CounterVec
	JobsActive     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Polls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poplog_polls_total",
			Help: "Completed poll cycles",
		}, []string{"group"}),
		PollErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poplog_poll_errors_total",
			Help: "Poll cycles that failed with an I/O error",
		}, []string{"group"}),
		LinesRead: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poplog_lines_read_total",
			Help: "Complete lines read from job logs",
		}, []string{"group"}),
		LinesForwarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poplog_lines_forwarded_total",
			Help: "Lines forwarded to the host logger",
		}, []string{"group", "level"}),
		LinesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poplog_lines_dropped_total",
			Help: "Lines not forwarded, by reason",
		}, []string{"group", "reason"}),
		Exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poplog_budget_exhausted_total",
			Help: "Jobs retired because their message budget ran out",
		}, []string{"group"}),
		JobsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "poplog_jobs_active",
			Help: "Jobs currently being polled",
		}),
	}
}
