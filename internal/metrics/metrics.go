package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TxSubmitted counts transactions accepted by the node, by kind (deploy|call)
	TxSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "manga",
		Name:      "tx_submitted_total",
		Help:      "Transactions accepted by the node.",
	}, []string{"kind"})

	// TxRejected counts submissions refused by the node, by submission kind
	TxRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "manga",
		Name:      "tx_rejected_total",
		Help:      "Transactions refused by the node before inclusion.",
	}, []string{"reason"})

	// TxFinalized counts confirmation outcomes (confirmed|failed|timeout)
	TxFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "manga",
		Name:      "tx_finalized_total",
		Help:      "Outcome of confirmation waits.",
	}, []string{"status"})

	// QueryFailures counts failed read-only calls by method
	QueryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "manga",
		Name:      "query_failures_total",
		Help:      "Failed read-only contract calls.",
	}, []string{"method"})

	// DeploymentRuns counts orchestrator runs by outcome
	DeploymentRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "manga",
		Name:      "deployment_runs_total",
		Help:      "Hub/asset deployment runs by outcome.",
	}, []string{"outcome"})

	// UnavailableMetrics counts secondary stats that degraded to unavailable
	UnavailableMetrics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "manga",
		Name:      "stats_unavailable_total",
		Help:      "Secondary statistics reported as unavailable.",
	}, []string{"metric"})
)
