package log

import (
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Logger is a shared go-kit logger. Components take their logger as a
	// constructor argument; this one is for process-level code.
	Logger = log.NewNopLogger()

	plogger *prometheusLogger
)

// InitLogger initialises the global gokit logger and returns it. Lines below
// lvl are dropped; the others are written as logfmt to w and counted.
func InitLogger(lvl dslog.Level, w io.Writer, reg prometheus.Registerer) log.Logger {
	plogger = newPrometheusLogger(log.NewLogfmtLogger(log.NewSyncWriter(w)), reg)

	logger := level.NewFilter(plogger, lvl.Option)
	Logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	return Logger
}

type prometheusLogger struct {
	baseLogger  log.Logger
	logMessages *prometheus.CounterVec
}

func newPrometheusLogger(base log.Logger, reg prometheus.Registerer) *prometheusLogger {
	logMessages := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "cql",
		Name:      "log_messages_total",
		Help:      "Total number of log messages.",
	}, []string{"level"})
	// Initialise counters for all supported levels.
	for _, l := range []string{"debug", "info", "warn", "error"} {
		logMessages.WithLabelValues(l)
	}
	return &prometheusLogger{
		baseLogger:  base,
		logMessages: logMessages,
	}
}

// Log increments the appropriate Prometheus counter depending on the log level.
func (pl *prometheusLogger) Log(kv ...interface{}) error {
	pl.baseLogger.Log(kv...)
	l := "unknown"
	for i := 1; i < len(kv); i += 2 {
		if v, ok := kv[i].(level.Value); ok {
			l = v.String()
			break
		}
	}
	pl.logMessages.WithLabelValues(l).Inc()
	return nil
}

// CheckFatal prints an error and exits with error code 1 if err is non-nil.
func CheckFatal(location string, err error, logger log.Logger) {
	if err == nil {
		return
	}

	logger = level.Error(logger)
	if location != "" {
		logger = log.With(logger, "msg", "error "+location)
	}
	// %+v gets the stack trace from errors using github.com/pkg/errors
	errStr := fmt.Sprintf("%+v", err)
	fmt.Println(errStr)

	logger.Log("err", errStr)
	exit(1)
}
