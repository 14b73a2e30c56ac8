// Package metrics exposes Prometheus collectors for the alerting engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuspulse_evaluations_total",
			Help: "Total rule evaluations by result",
		},
		[]string{"result"}, // result: ok, breach, metric_unavailable, error
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campuspulse_evaluation_duration_seconds",
			Help:    "Time taken to evaluate a single rule",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	NotificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuspulse_notifications_created_total",
			Help: "New alert notifications by severity",
		},
		[]string{"severity"},
	)

	NotificationsRefreshedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campuspulse_notifications_refreshed_total",
			Help: "Open notifications refreshed by repeated breaches",
		},
	)

	LeaseSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campuspulse_lease_skips_total",
			Help: "Evaluations skipped because the per-rule lease was held",
		},
	)

	DispatchIntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuspulse_dispatch_intents_total",
			Help: "Delivery intents emitted by channel",
		},
		[]string{"channel"},
	)

	OpenNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campuspulse_open_notifications",
			Help: "Current number of unresolved notifications",
		},
	)

	SchedulerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campuspulse_scheduler_ticks_total",
			Help: "Scheduler ticks executed",
		},
	)

	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuspulse_panics_recovered_total",
			Help: "Panics recovered in evaluation goroutines",
		},
		[]string{"component"},
	)
)
