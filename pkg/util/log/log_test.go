package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	var lvl dslog.Level
	require.NoError(t, lvl.Set("info"))

	var buf bytes.Buffer
	logger := InitLogger(lvl, &buf, prometheus.NewRegistry())
	require.Equal(t, Logger, logger)

	level.Debug(logger).Log("msg", "hidden")
	level.Info(logger).Log("msg", "connected", "addr", "cassandra://127.0.0.1:9042/activity")
	level.Error(logger).Log("msg", "could not execute all requests", "failed", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `msg=connected addr=cassandra://127.0.0.1:9042/activity`)
	assert.Contains(t, out, `msg="could not execute all requests" failed=2`)
	assert.Contains(t, out, `level=error`)

	assert.Equal(t, 0.0, testutil.ToFloat64(plogger.logMessages.WithLabelValues("debug")))
	assert.Equal(t, 1.0, testutil.ToFloat64(plogger.logMessages.WithLabelValues("info")))
	assert.Equal(t, 1.0, testutil.ToFloat64(plogger.logMessages.WithLabelValues("error")))
}

func TestCheckFatal(t *testing.T) {
	var code int
	orig := exit
	exit = func(c int) { code = c }
	defer func() { exit = orig }()

	var lvl dslog.Level
	require.NoError(t, lvl.Set("debug"))
	var buf bytes.Buffer
	logger := InitLogger(lvl, &buf, prometheus.NewRegistry())

	CheckFatal("loading config", nil, logger)
	require.Zero(t, code)
	require.Empty(t, buf.String())

	CheckFatal("loading config", errors.New("no keyspace"), logger)
	require.Equal(t, 1, code)
	require.Contains(t, buf.String(), `msg="error loading config" err="no keyspace"`)
}
