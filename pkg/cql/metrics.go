package cql

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess   = "success"
	statusExhausted = "exhausted"
	statusAborted   = "aborted"

	reasonTimeout = "timeout"
	reasonError   = "error"
)

// Metrics of the query executor.
type Metrics struct {
	statementsCompiled  prometheus.Counter
	compileFailures     prometheus.Counter
	requestsIssued      *prometheus.CounterVec
	requestFailures     *prometheus.CounterVec
	executions          *prometheus.CounterVec
	executionAttempts   prometheus.Histogram
	windowRows          prometheus.Histogram
	backoffSecondsTotal prometheus.Counter
}

// NewMetrics registers the executor metrics with r.
func NewMetrics(r prometheus.Registerer) *Metrics {
	return &Metrics{
		statementsCompiled: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "cql",
			Name:      "statements_compiled_total",
			Help:      "Total number of query templates compiled by the store.",
		}),
		compileFailures: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "cql",
			Name:      "statement_compile_failures_total",
			Help:      "Total number of query templates the store refused to compile.",
		}),
		requestsIssued: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cql",
			Name:      "requests_issued_total",
			Help:      "Total number of requests sent to the store, retries included.",
		}, []string{"shape"}),
		requestFailures: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cql",
			Name:      "request_failures_total",
			Help:      "Total number of requests that failed within an attempt.",
		}, []string{"reason"}),
		executions: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cql",
			Name:      "executions_total",
			Help:      "Total number of executions by final status.",
		}, []string{"shape", "status"}),
		executionAttempts: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
			Namespace: "cql",
			Name:      "execution_attempts",
			Help:      "Number of attempts an execution needed.",
			Buckets:   prometheus.LinearBuckets(1, 1, defaultMaxAttempts+1),
		}),
		windowRows: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
			Namespace: "cql",
			Name:      "window_rows",
			Help:      "Number of rows collected by a single window.",
			Buckets:   prometheus.ExponentialBuckets(1, 8, 8),
		}),
		backoffSecondsTotal: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: "cql",
			Name:      "backoff_seconds_total",
			Help:      "Total time spent waiting between attempts.",
		}),
	}
}
