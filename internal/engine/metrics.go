package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absweep_sweeps_total",
		Help: "Number of evaluation sweeps run.",
	})
	testsCheckedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absweep_tests_checked_total",
		Help: "Number of running tests evaluated across all sweeps.",
	})
	winnersDeclaredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absweep_winners_declared_total",
		Help: "Number of winners auto-declared by the sweep.",
	})
	testsEndedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absweep_tests_ended_total",
		Help: "Number of tests completed without a winner at their scheduled end.",
	})
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absweep_sweep_errors_total",
		Help: "Number of per-test evaluation errors.",
	})
)
