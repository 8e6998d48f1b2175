package cql_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/grafana/cqlstore/pkg/cql"
	"github.com/grafana/cqlstore/pkg/cql/testutils"
)

type activity map[string]interface{}

func (a activity) Columns() map[string]interface{} { return a }

func compile(t *testing.T, text string) *cql.Statement {
	t.Helper()
	stmt, err := newRegistry(testutils.NewSession()).GetOrCompile(context.Background(), text)
	require.NoError(t, err)
	return stmt
}

func TestBind(t *testing.T) {
	stmt := compile(t, cql.InsertTemplate("user_activity", "pid", "uid"))

	values := []interface{}{"p1", "u1"}
	req, err := cql.Bind(stmt, values, cql.DefaultSettings())
	require.NoError(t, err)
	require.Same(t, stmt, req.Statement())
	require.Equal(t, []interface{}{"p1", "u1"}, req.Values())
	require.Equal(t, cql.LocalQuorum, req.Settings().Consistency)
	require.True(t, req.Settings().Idempotent)

	// The request keeps its own copy of the values.
	values[0] = "changed"
	require.Equal(t, "p1", req.Values()[0])

	for _, vs := range [][]interface{}{nil, {"p1"}, {"p1", "u1", "extra"}} {
		_, err := cql.Bind(stmt, vs, cql.DefaultSettings())
		require.True(t, errors.Is(err, cql.ErrParamCount), "unexpected error: %v", err)
	}
}

func TestBindRecord(t *testing.T) {
	stmt := compile(t, cql.InsertTemplate("user_activity", "pid", "uid", "moneySpent"))

	var buf bytes.Buffer
	logger := log.NewLogfmtLogger(&buf)

	req, err := cql.BindRecord(logger, stmt, activity{"PID": "p1", "uid": "u1", "moneyspent": 12.5},
		[]string{"pid", "uid", "moneySpent"}, cql.DefaultSettings())
	require.NoError(t, err)
	require.Equal(t, []interface{}{"p1", "u1", 12.5}, req.Values())
	require.Empty(t, buf.String())

	req, err = cql.BindRecord(logger, stmt, activity{"pid": "p1", "uid": "u1"},
		[]string{"pid", "uid", "moneySpent"}, cql.DefaultSettings())
	require.NoError(t, err)
	require.Equal(t, []interface{}{"p1", "u1", nil}, req.Values())
	require.Contains(t, buf.String(), "field=moneySpent")

	_, err = cql.BindRecord(logger, stmt, activity{"pid": "p1"}, []string{"pid"}, cql.DefaultSettings())
	require.True(t, errors.Is(err, cql.ErrParamCount))
}

func TestParseConsistency(t *testing.T) {
	c, err := cql.ParseConsistency(" local_quorum ")
	require.NoError(t, err)
	require.Equal(t, cql.LocalQuorum, c)

	_, err = cql.ParseConsistency("MOST")
	require.Error(t, err)
}

func TestRow(t *testing.T) {
	r := cql.NewRow([]string{"pid", "moneyspent"}, []interface{}{"p1", 3.0})
	require.Equal(t, 2, r.Len())

	v, ok := r.Get("moneySpent")
	require.True(t, ok)
	require.Equal(t, 3.0, v)

	_, ok = r.Get("uid")
	require.False(t, ok)

	require.Panics(t, func() { cql.NewRow([]string{"a"}, nil) })
}
