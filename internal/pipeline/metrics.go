package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger_client",
		Name:      "requests_total",
		Help:      "Requests issued through the pipeline, by method and outcome.",
	}, []string{"method", "outcome"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger_client",
		Name:      "request_retries_total",
		Help:      "Retry attempts after transient failures.",
	})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger_client",
		Name:      "token_refresh_total",
		Help:      "Token refresh exchanges, by result.",
	}, []string{"result"})
)
