package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler
	SchedulerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "scheduler",
		Name:      "runs_total",
		Help:      "Total task invocations started",
	}, []string{"task"})

	SchedulerSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "scheduler",
		Name:      "skipped_ticks_total",
		Help:      "Ticks skipped because the previous run of the task was still in flight",
	}, []string{"task"})

	SchedulerPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "scheduler",
		Name:      "panics_total",
		Help:      "Task runs that panicked",
	}, []string{"task"})

	SchedulerTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Subsystem: "scheduler",
		Name:      "registered_tasks",
		Help:      "Number of registered tasks",
	})

	// Ingestion
	IngestionCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "ingestion",
		Name:      "cycles_total",
		Help:      "Ingestion cycles by outcome",
	}, []string{"chain", "outcome"})

	IngestionPaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "ingestion",
		Name:      "payments_total",
		Help:      "Payment records produced by the iterator",
	}, []string{"chain"})

	IngestionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "ingestion",
		Name:      "errors_total",
		Help:      "Ingestion errors by stage",
	}, []string{"chain", "stage"})

	IngestionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "ingestion",
		Name:      "cycle_duration_seconds",
		Help:      "Ingestion cycle duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"chain"})

	// Chain manager
	ManagedChains = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Subsystem: "chain_manager",
		Name:      "chains",
		Help:      "Chains with a registered ingestion task",
	})

	ChainBuildFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "chain_manager",
		Name:      "build_failures_total",
		Help:      "Chains that could not be configured",
	}, []string{"chain"})

	// Notifications
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "notifications",
		Name:      "processed_total",
		Help:      "Notification records by handler result",
	}, []string{"type", "result"})

	NotificationsExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "notifications",
		Name:      "expired_total",
		Help:      "Notification records deleted after their TTL",
	}, []string{"type"})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "webhook",
		Name:      "deliveries_total",
		Help:      "Webhook POST attempts by status class",
	}, []string{"status"})

	// Valuation
	ValuationProviderCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "valuation",
		Name:      "provider_calls_total",
		Help:      "Calls to external price and rate providers",
	}, []string{"kind", "outcome"})

	ValuationLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "valuation",
		Name:      "lookups_total",
		Help:      "Valuation lookups by source",
	}, []string{"kind", "source"})
)
