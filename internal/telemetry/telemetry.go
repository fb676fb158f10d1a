// Package telemetry exposes Prometheus counters and histograms around
// the elicitation driver's rounds, for optional scraping when the CLI
// is started with -metrics_addr.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RoundsTotal counts elicitation rounds (one per item asked) across
	// all simulated users and groups.
	RoundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nymelicit",
		Name:      "rounds_total",
		Help:      "Number of elicitation rounds run.",
	})

	// SimulationsPerRound records the planner's simulation budget S
	// actually spent on each round.
	SimulationsPerRound = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nymelicit",
		Name:      "simulations_per_round",
		Help:      "Number of MCTS simulations run per elicitation round.",
		Buckets:   prometheus.ExponentialBuckets(8, 2, 12),
	})

	// GroupAccuracy reports the success rate per true group, set once all
	// of that group's tries have finished.
	GroupAccuracy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nymelicit",
		Name:      "group_accuracy",
		Help:      "Fraction of elicitation tries that correctly predicted the true group.",
	}, []string{"group"})
)

func init() {
	prometheus.MustRegister(RoundsTotal, SimulationsPerRound, GroupAccuracy)
}

// Serve starts a blocking HTTP server exposing /metrics at addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
