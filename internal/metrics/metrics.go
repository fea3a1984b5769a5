// Package metrics exposes Prometheus counters for the ledger's economic
// events. Every successful operation increments exactly one counter; the
// /metrics endpoint serves them via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BetsPlaced counts accepted bets by market type.
var BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "arenad",
	Subsystem: "bets",
	Name:      "placed_total",
	Help:      "Total bets accepted, by market type.",
}, []string{"market_type"})

// BetsRejected counts rejected bet attempts by reason.
var BetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "arenad",
	Subsystem: "bets",
	Name:      "rejected_total",
	Help:      "Total bet attempts rejected, by reason.",
}, []string{"reason"})

// PointsStaked counts total points debited for bets.
var PointsStaked = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "arenad",
	Subsystem: "bets",
	Name:      "points_staked_total",
	Help:      "Total points debited for accepted bets (fee included).",
})

// MarketsResolved counts settled markets by outcome.
var MarketsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "arenad",
	Subsystem: "markets",
	Name:      "resolved_total",
	Help:      "Total markets settled, by final status.",
}, []string{"status"})

// PointsPaidOut counts total points credited to winning bettors.
var PointsPaidOut = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "arenad",
	Subsystem: "markets",
	Name:      "points_paid_out_total",
	Help:      "Total points credited to winners at settlement.",
})

// Transfers counts completed peer transfers.
var Transfers = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "arenad",
	Subsystem: "transfers",
	Name:      "completed_total",
	Help:      "Total peer-to-peer transfers completed.",
})

// TransfersRejected counts rejected transfers by reason.
var TransfersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "arenad",
	Subsystem: "transfers",
	Name:      "rejected_total",
	Help:      "Total transfer attempts rejected, by reason.",
}, []string{"reason"})

// CycleResets counts completed arena cycle resets.
var CycleResets = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "arenad",
	Subsystem: "resets",
	Name:      "completed_total",
	Help:      "Total arena cycle resets completed.",
})

// CycleResetFailures counts reset attempts that errored and will be retried.
var CycleResetFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "arenad",
	Subsystem: "resets",
	Name:      "failures_total",
	Help:      "Total arena cycle reset attempts that failed.",
})
