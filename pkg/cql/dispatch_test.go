package cql_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/grafana/cqlstore/pkg/cql"
	"github.com/grafana/cqlstore/pkg/cql/congestion"
	"github.com/grafana/cqlstore/pkg/cql/testutils"
)

var errLimited = errors.New("limiter refused request")

// countingLimiter admits up to admit requests, or every request when admit
// is negative, and counts the outcomes it is told about.
type countingLimiter struct {
	admit     int64
	acquired  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
}

func (l *countingLimiter) Acquire(context.Context) error {
	if n := l.acquired.Inc(); l.admit >= 0 && n > l.admit {
		return errLimited
	}
	return nil
}

func (l *countingLimiter) OnSuccess() { l.successes.Inc() }
func (l *countingLimiter) OnFailure() { l.failures.Inc() }

func newLimitedExecutor(t *testing.T, s cql.Session, limiter cql.Limiter, logger log.Logger, mutate func(*cql.Config)) (*cql.Executor, *prometheus.Registry) {
	t.Helper()
	var cfg cql.Config
	flagext.DefaultValues(&cfg)
	cfg.BaseBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	reg := prometheus.NewRegistry()
	e, err := cql.NewExecutor(cfg, s, limiter, logger, reg)
	require.NoError(t, err)
	return e, reg
}

func TestDispatch_WindowRowsWarning(t *testing.T) {
	for name, tc := range map[string]struct {
		threshold int
		warned    bool
	}{
		"above threshold": {threshold: 5, warned: true},
		"at threshold":    {threshold: 10, warned: false},
	} {
		t.Run(name, func(t *testing.T) {
			s := testutils.NewSession()
			s.CreateTable("events", "id")

			var buf bytes.Buffer
			logger := log.NewLogfmtLogger(log.NewSyncWriter(&buf))
			e, _ := newLimitedExecutor(t, s, nil, logger, func(cfg *cql.Config) {
				cfg.WindowRowsWarnThreshold = tc.threshold
			})
			insertEvents(t, e, 10)

			q, err := e.NewQuery(context.Background(), cql.SelectTemplate("events"))
			require.NoError(t, err)
			require.NoError(t, q.Bind())
			res, err := q.Execute(context.Background())
			require.NoError(t, err)
			require.True(t, res.Success())
			require.Len(t, res.Rows, 10)

			out := buf.String()
			if !tc.warned {
				require.NotContains(t, out, "window returned too many rows")
				return
			}
			var line string
			for _, l := range strings.Split(out, "\n") {
				if strings.Contains(l, "window returned too many rows") {
					line = l
				}
			}
			require.NotEmpty(t, line, "no warning in %q", out)
			require.Contains(t, line, "level=warn")
			require.Contains(t, line, "rows=10")
			require.Contains(t, line, "window=1")
		})
	}
}

func TestDispatch_LimiterSeesEveryOutcome(t *testing.T) {
	s := testutils.NewSession()
	limiter := &countingLimiter{admit: -1}
	e, _ := newLimitedExecutor(t, s, limiter, log.NewNopLogger(), nil)

	s.Fault = testutils.FailTimes(1)
	q, err := e.NewQuery(context.Background(), cql.InsertTemplate("events", "id"), cql.WithWindowSize(4))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Bind(i))
	}
	res, err := q.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success())
	require.Equal(t, 2, res.Attempts)

	require.Equal(t, int64(20), limiter.acquired.Load())
	require.Equal(t, int64(10), limiter.failures.Load())
	require.Equal(t, int64(10), limiter.successes.Load())
	require.Equal(t, limiter.acquired.Load(), s.Executions())
}

func TestDispatch_LimiterRefusalAborts(t *testing.T) {
	s := testutils.NewSession()
	limiter := &countingLimiter{admit: 4}
	e, reg := newLimitedExecutor(t, s, limiter, log.NewNopLogger(), nil)

	q, err := e.NewQuery(context.Background(), cql.InsertTemplate("events", "id"), cql.WithWindowSize(4))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Bind(fmt.Sprintf("e%d", i)))
	}
	res, err := q.Execute(context.Background())
	require.True(t, errors.Is(err, errLimited), "unexpected error: %v", err)
	require.False(t, res.Success())
	// The refused window and the one after it never ran.
	require.Equal(t, 6, res.Failed)
	require.Equal(t, int64(4), s.Executions())
	require.Equal(t, 4, s.Rows("events"))
	require.Equal(t, int64(4), limiter.successes.Load())

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP cql_executions_total Total number of executions by final status.
# TYPE cql_executions_total counter
cql_executions_total{shape="write",status="aborted"} 1
`), "cql_executions_total"))
}

func TestDispatch_AIMDBacksOffOnFailures(t *testing.T) {
	var cfg congestion.Config
	flagext.DefaultValues(&cfg)
	cfg.Strategy = congestion.StrategyAIMD
	cfg.AIMD.LowerBound = 100
	ctrl := congestion.NewAIMDController(cfg, congestion.NewMetrics(prometheus.NewRegistry(), cfg.Strategy))

	s := testutils.NewSession()
	e, _ := newLimitedExecutor(t, s, ctrl, log.NewNopLogger(), nil)

	s.Fault = testutils.FailTimes(1)
	q, err := e.NewQuery(context.Background(), cql.InsertTemplate("events", "id"))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Bind(i))
	}
	res, err := q.Execute(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success())
	require.Equal(t, 4, s.Rows("events"))

	// 100 halved four times with ceil is 7, then +1 per success.
	require.Equal(t, rate.Limit(11), ctrl.Limit())
}
