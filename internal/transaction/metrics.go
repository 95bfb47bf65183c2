package transaction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "critic",
		Subsystem: "transaction",
		Name:      "commits_total",
		Help:      "Transaction commits by outcome.",
	}, []string{"outcome"})

	commitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "critic",
		Subsystem: "transaction",
		Name:      "commit_duration_seconds",
		Help:      "Wall time of transaction commits, including finalizers.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	itemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "critic",
		Subsystem: "transaction",
		Name:      "items_total",
		Help:      "Items drained by committed transactions.",
	})
)
