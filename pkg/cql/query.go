package cql

import (
	"context"
	"sync"
)

// Result is the outcome of a collecting execution.
type Result struct {
	Rows     []Row
	Attempts int
	// Failed is the number of requests that did not succeed, including those
	// left over by an aborted execution.
	Failed int

	success bool
}

// Success reports whether every request eventually succeeded. An aborted
// execution never succeeds.
func (r *Result) Success() bool { return r.success }

// Query holds the requests bound to one statement until they are executed.
// After an execution resolves the query is empty and can be reused.
type Query struct {
	exec     *Executor
	stmt     *Statement
	settings Settings
	window   int

	mtx     sync.Mutex
	pending []*BoundRequest
}

func (q *Query) Statement() *Statement { return q.stmt }
func (q *Query) WindowSize() int       { return q.window }

// Bind adds a request with the given values, in placeholder order.
func (q *Query) Bind(values ...interface{}) error {
	req, err := Bind(q.stmt, values, q.settings)
	if err != nil {
		return err
	}
	q.add(req)
	return nil
}

// BindRecord adds a request whose values are the named fields of rec.
// fields must be in placeholder order.
func (q *Query) BindRecord(rec Record, fields ...string) error {
	req, err := BindRecord(q.exec.logger, q.stmt, rec, fields, q.settings)
	if err != nil {
		return err
	}
	q.add(req)
	return nil
}

// Pending returns the number of requests waiting to be executed.
func (q *Query) Pending() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return len(q.pending)
}

func (q *Query) add(req *BoundRequest) {
	q.mtx.Lock()
	q.pending = append(q.pending, req)
	q.mtx.Unlock()
}

func (q *Query) take() []*BoundRequest {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	reqs := q.pending
	q.pending = nil
	return reqs
}

// Iter starts executing the pending requests and returns an iterator over
// the rows of each window. The pending requests belong to the iterator from
// now on; requests bound meanwhile go to the next execution.
func (q *Query) Iter(ctx context.Context) (*BatchIterator, error) {
	if q.exec.session.Closed() {
		return nil, ErrSessionClosed
	}
	reqs := q.take()
	if len(reqs) == 0 {
		return nil, ErrNoRequests
	}
	return newBatchIterator(ctx, q.exec, q.stmt, reqs, q.window), nil
}

// Execute runs the pending requests and collects every row. Requests failing
// past the last attempt are reported by Result.Success, not as an error; the
// rows of the requests that succeeded are returned either way.
func (q *Query) Execute(ctx context.Context) (*Result, error) {
	it, err := q.Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows []Row
	for it.Next() {
		rows = append(rows, it.At()...)
	}
	return &Result{Rows: rows, Attempts: it.Attempts(), Failed: it.Failed(), success: it.Success()}, it.Err()
}

// Stream runs the pending requests and hands the rows of every window to fn
// as soon as the window completes, in window order. It stops at the first
// error returned by fn.
func (q *Query) Stream(ctx context.Context, fn func([]Row) error) (bool, error) {
	it, err := q.Iter(ctx)
	if err != nil {
		return false, err
	}
	defer it.Close()

	for it.Next() {
		if err := fn(it.At()); err != nil {
			return false, err
		}
	}
	if err := it.Err(); err != nil {
		return false, err
	}
	return it.Success(), nil
}
