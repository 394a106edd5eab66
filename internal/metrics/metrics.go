// Package metrics exposes the prometheus counters and histograms the
// wallet-coordination service's ambient observability needs: lock
// contention, proposal throughput, notification fan-out.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// LockAcquireTotal counts lock acquisitions by outcome ("ok",
	// "timeout", "hold_expired").
	LockAcquireTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Subsystem: "lock",
		Name:      "acquire_total",
		Help:      "Per-wallet lock acquisitions by outcome.",
	}, []string{"outcome"})

	// LockHoldSeconds observes how long a lock was actually held.
	LockHoldSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "walletd",
		Subsystem: "lock",
		Name:      "hold_seconds",
		Help:      "Wall-clock time a per-wallet lock was held.",
		Buckets:   prometheus.DefBuckets,
	})

	// ProposalsTotal counts proposal lifecycle transitions by status.
	ProposalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Subsystem: "txsvc",
		Name:      "proposals_total",
		Help:      "Transaction proposals by terminal/transitional status.",
	}, []string{"status"})

	// NotificationsSentTotal counts broker deliveries by notification type.
	NotificationsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Notifications published by type.",
	}, []string{"type"})
)

// Register adds every collector to reg. cmd/walletd/main.go passes a
// fresh prometheus.NewRegistry().
func Register(reg prometheus.Registerer) {
	reg.MustRegister(LockAcquireTotal, LockHoldSeconds, ProposalsTotal, NotificationsSentTotal)
}
