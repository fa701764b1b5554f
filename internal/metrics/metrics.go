// Package metrics exposes Prometheus collectors for the repair-job core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repair_jobs_created_total",
		Help: "Jobs committed by CreateJob.",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repair_job_transitions_total",
		Help: "Committed job status transitions.",
	}, []string{"from", "to"})

	PartMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repair_part_movements_total",
		Help: "Committed stock movements by direction (withdraw, return, restore).",
	}, []string{"direction"})

	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repair_conflicts_total",
		Help: "Operations rejected with a conflict, by reason.",
	}, []string{"reason"})

	TxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repair_tx_retries_total",
		Help: "Transactions re-run after a retryable conflict.",
	})

	LowStock = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repair_low_stock_total",
		Help: "Withdrawals that left a part below its minimum stock.",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repair_notifications_total",
		Help: "Notifications processed by the worker, by outcome.",
	}, []string{"outcome"})
)
