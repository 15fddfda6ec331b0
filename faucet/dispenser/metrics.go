package dispenser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispensesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faucet_dispenses_total",
		Help: "Count of successfully committed dispense transactions.",
	})
	dispenseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faucet_dispense_failures_total",
		Help: "Count of dispense requests that failed after admission.",
	})
	dispensesThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faucet_dispenses_throttled_total",
		Help: "Count of dispense requests rejected by the rate limit tracker.",
	})
)
