package testutils

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/grafana/cqlstore/pkg/cql"
)

// ErrInjected is the error returned by requests failed through a Fault.
var ErrInjected = errors.New("injected store failure")

// Fault decides whether an execution of req fails. It is called once per
// execution and may be called concurrently.
type Fault func(req *cql.BoundRequest) error

// Session is an in-memory cql.Session. Tables are created on first write.
type Session struct {
	mtx    sync.Mutex
	tables map[string]*table

	closed     atomic.Bool
	prepares   atomic.Int64
	executions atomic.Int64
	inflight   atomic.Int64
	maxFlight  atomic.Int64

	// Fault, when set, is consulted before a request touches the data.
	Fault Fault
	// Latency, when set, delays each execution. A delay longer than the
	// request timeout makes the request time out.
	Latency func(req *cql.BoundRequest) time.Duration
	// RejectPrepare, when set, makes Prepare fail for matching templates.
	RejectPrepare func(tmpl cql.Template) error
}

func NewSession() *Session {
	return &Session{tables: map[string]*table{}}
}

// CreateTable declares the primary key of a table. Tables without a declared
// key use every inserted column as key.
func (s *Session) CreateTable(name string, key ...string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	t := s.table(name)
	for _, k := range key {
		t.key = append(t.key, strings.ToLower(k))
	}
}

type prepared struct{ text string }

func (p prepared) Query() string { return p.text }

func (s *Session) Prepare(_ context.Context, tmpl cql.Template) (cql.Prepared, error) {
	s.prepares.Inc()
	if s.RejectPrepare != nil {
		if err := s.RejectPrepare(tmpl); err != nil {
			return nil, err
		}
	}
	return prepared{text: tmpl.Text}, nil
}

func (s *Session) ExecuteAsync(ctx context.Context, req *cql.BoundRequest) cql.Future {
	s.executions.Inc()
	done := make(chan result, 1)
	go func() {
		rows, err := s.track(ctx, req)
		done <- result{rows: rows, err: err}
	}()

	return cql.FutureFunc(func(ctx context.Context) ([]cql.Row, error) {
		select {
		case r := <-done:
			return r.rows, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

type result struct {
	rows []cql.Row
	err  error
}

// track runs req while counting it as in flight. The count drops before the
// caller can observe the result.
func (s *Session) track(ctx context.Context, req *cql.BoundRequest) ([]cql.Row, error) {
	n := s.inflight.Inc()
	defer s.inflight.Dec()
	for {
		peak := s.maxFlight.Load()
		if n <= peak || s.maxFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	return s.execute(ctx, req)
}

func (s *Session) execute(ctx context.Context, req *cql.BoundRequest) ([]cql.Row, error) {
	if s.Latency != nil {
		if d := s.Latency(req); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	if s.Fault != nil {
		if err := s.Fault(req); err != nil {
			return nil, err
		}
	}

	tmpl := req.Statement().Template()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	t := s.table(tmpl.Table)
	switch tmpl.Verb {
	case "SELECT":
		return t.selectRows(tmpl.Columns, tmpl.Conditions, req.Values()), nil
	case "INSERT":
		t.upsert(tmpl.Columns, req.Values())
		return nil, nil
	case "DELETE":
		t.delete(tmpl.Conditions, req.Values())
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported statement %q", tmpl.Text)
}

func (s *Session) Closed() bool { return s.closed.Load() }

// Close makes the session refuse new executions.
func (s *Session) Close() { s.closed.Store(true) }

// Prepares returns the number of Prepare calls.
func (s *Session) Prepares() int64 { return s.prepares.Load() }

// Executions returns the number of requests executed, retries included.
func (s *Session) Executions() int64 { return s.executions.Load() }

// MaxInFlight returns the highest number of requests executing at once.
func (s *Session) MaxInFlight() int64 { return s.maxFlight.Load() }

// Rows returns the number of rows in a table.
func (s *Session) Rows(name string) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.table(name).rows)
}

func (s *Session) table(name string) *table {
	name = strings.ToLower(name)
	t, ok := s.tables[name]
	if !ok {
		t = &table{}
		s.tables[name] = t
	}
	return t
}

type table struct {
	key     []string
	columns []string
	rows    []map[string]interface{}
}

func (t *table) upsert(columns []string, values []interface{}) {
	row := make(map[string]interface{}, len(columns))
	for i, c := range columns {
		c = strings.ToLower(c)
		row[c] = values[i]
		t.addColumn(c)
	}
	key := t.key
	if len(key) == 0 {
		key = lower(columns)
	}
	for i, existing := range t.rows {
		if matches(existing, key, row) {
			for c, v := range row {
				existing[c] = v
			}
			t.rows[i] = existing
			return
		}
	}
	t.rows = append(t.rows, row)
}

func (t *table) delete(conditions []string, values []interface{}) {
	want := make(map[string]interface{}, len(conditions))
	for i, c := range conditions {
		want[strings.ToLower(c)] = values[i]
	}
	kept := t.rows[:0]
	for _, r := range t.rows {
		if !matches(r, lower(conditions), want) {
			kept = append(kept, r)
		}
	}
	t.rows = kept
}

func (t *table) selectRows(columns, conditions []string, values []interface{}) []cql.Row {
	cols := lower(columns)
	if len(cols) == 0 {
		cols = append([]string(nil), t.columns...)
	}
	want := make(map[string]interface{}, len(conditions))
	for i, c := range conditions {
		want[strings.ToLower(c)] = values[i]
	}
	out := make([]cql.Row, 0, len(t.rows))
	for _, r := range t.rows {
		if !matches(r, lower(conditions), want) {
			continue
		}
		values := make([]interface{}, len(cols))
		for i, c := range cols {
			values[i] = r[c]
		}
		out = append(out, cql.NewRow(cols, values))
	}
	return out
}

func (t *table) addColumn(c string) {
	for _, existing := range t.columns {
		if existing == c {
			return
		}
	}
	t.columns = append(t.columns, c)
}

func matches(row map[string]interface{}, key []string, want map[string]interface{}) bool {
	for _, k := range key {
		if fmt.Sprint(row[k]) != fmt.Sprint(want[k]) {
			return false
		}
	}
	return true
}

func lower(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}

// FailRandomly fails each execution independently with probability p.
func FailRandomly(p float64, seed int64) Fault {
	var mtx sync.Mutex
	rnd := rand.New(rand.NewSource(seed))
	return func(*cql.BoundRequest) error {
		mtx.Lock()
		defer mtx.Unlock()
		if rnd.Float64() < p {
			return ErrInjected
		}
		return nil
	}
}

// FailTimes fails the first n executions of every request.
func FailTimes(n int) Fault {
	var mtx sync.Mutex
	seen := map[*cql.BoundRequest]int{}
	return func(req *cql.BoundRequest) error {
		mtx.Lock()
		defer mtx.Unlock()
		seen[req]++
		if seen[req] <= n {
			return ErrInjected
		}
		return nil
	}
}

// FailWhen always fails the requests matching pred.
func FailWhen(pred func(req *cql.BoundRequest) bool) Fault {
	return func(req *cql.BoundRequest) error {
		if pred(req) {
			return ErrInjected
		}
		return nil
	}
}
