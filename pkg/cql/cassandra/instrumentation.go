package cassandra

import (
	"context"
	"strings"

	"github.com/gocql/gocql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type observer struct {
	requestDuration *prometheus.HistogramVec
}

func newObserver(r prometheus.Registerer) *observer {
	return &observer{
		requestDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cassandra",
			Name:      "request_duration_seconds",
			Help:      "Time spent doing Cassandra requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"operation", "status_code"}),
	}
}

func (o *observer) ObserveQuery(_ context.Context, q gocql.ObservedQuery) {
	o.requestDuration.WithLabelValues(operation(q.Statement), statusCode(q.Err)).Observe(q.End.Sub(q.Start).Seconds())
}

func (o *observer) ObserveBatch(_ context.Context, b gocql.ObservedBatch) {
	o.requestDuration.WithLabelValues("BATCH", statusCode(b.Err)).Observe(b.End.Sub(b.Start).Seconds())
}

func operation(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

func statusCode(err error) string {
	if err != nil {
		return "500"
	}
	return "200"
}
