package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tradesStartedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrowd_trades_started_total",
		Help: "Total number of trades started by this daemon.",
	})
	tradesCompletedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrowd_trades_completed_total",
		Help: "Total number of trades that reached the completed phase.",
	})
	tradesFailedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrowd_trades_failed_total",
		Help: "Total number of trades that halted with a failure.",
	})
	tradesDisputedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrowd_trades_disputed_total",
		Help: "Total number of trades escalated to the arbitrator.",
	})
)
