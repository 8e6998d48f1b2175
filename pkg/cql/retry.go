package cql

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-kit/log/level"
)

// maxBackoffShift keeps base<<shift from overflowing for large attempt limits.
const maxBackoffShift = 32

// backoff is a randomized exponential backoff: the delay before attempt n is
// base*2^(n-1) plus a random extra of up to the same amount. The first retry
// is immediate, since a single transient failure is common.
type backoff struct {
	base time.Duration
	max  time.Duration
}

func (b backoff) delay(attempt int) time.Duration {
	if attempt <= 2 || b.base <= 0 {
		return 0
	}
	shift := min(attempt-1, maxBackoffShift)
	exp := b.base << shift
	d := exp + time.Duration(rand.Int63n(int64(exp)))
	if b.max > 0 && d > b.max {
		d = b.max
	}
	return d
}

// wait sleeps for the delay of attempt, or until ctx is done.
func (b backoff) wait(ctx context.Context, attempt int) (time.Duration, error) {
	d := b.delay(attempt)
	if d <= 0 {
		return 0, ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.C:
		return d, nil
	}
}

// BatchIterator runs an execution one window at a time. Each call to Next
// dispatches the next window, going through the attempts of the failed
// requests until none is left or the attempts are exhausted. Nothing is sent
// to the store until Next is called.
type BatchIterator struct {
	ctx  context.Context
	exec *Executor
	stmt *Statement
	size int

	attempt int
	total   int
	queue   [][]*BoundRequest
	failed  []*BoundRequest
	cur     []Row
	err     error

	done    bool
	success bool
}

func newBatchIterator(ctx context.Context, e *Executor, stmt *Statement, reqs []*BoundRequest, size int) *BatchIterator {
	return &BatchIterator{
		ctx:     ctx,
		exec:    e,
		stmt:    stmt,
		size:    size,
		attempt: 1,
		total:   len(reqs),
		queue:   windows(reqs, size),
	}
}

// Next dispatches the next window. It returns false once the execution has
// resolved, either way; check Err and Success afterwards.
func (it *BatchIterator) Next() bool {
	if it.done {
		return false
	}
	for len(it.queue) == 0 {
		if len(it.failed) == 0 {
			it.finish(true)
			return false
		}
		// The first dispatch is not a retry: up to MaxAttempts+1 dispatches.
		if it.attempt > it.exec.cfg.MaxAttempts {
			it.finish(false)
			return false
		}
		it.attempt++
		d, err := it.exec.backoff.wait(it.ctx, it.attempt)
		if err != nil {
			it.abort(err)
			return false
		}
		if d > 0 {
			it.exec.metrics.backoffSecondsTotal.Add(d.Seconds())
			level.Info(it.exec.logger).Log("msg", "retrying failed requests", "remaining", len(it.failed),
				"attempt", it.attempt, "backoff", d, "template", it.stmt.Text())
		}
		it.queue, it.failed = windows(it.failed, it.size), nil
	}

	window := it.queue[0]
	it.queue = it.queue[1:]
	rows, failed, err := it.exec.dispatchWindow(it.ctx, it.stmt, window)
	if err != nil {
		// Nothing of the interrupted window is known to have been applied.
		it.failed = append(it.failed, window...)
		it.abort(err)
		return false
	}
	it.failed = append(it.failed, failed...)
	it.cur = rows
	return true
}

// At returns the rows collected by the last dispatched window.
func (it *BatchIterator) At() []Row { return it.cur }

// Err returns the error that stopped the execution, if any. Requests that
// still fail after the last attempt are not an error, see Success.
func (it *BatchIterator) Err() error { return it.err }

// Success reports whether every request eventually succeeded. It is only
// meaningful once Next returned false.
func (it *BatchIterator) Success() bool { return it.success }

// Attempts returns the number of attempts made so far.
func (it *BatchIterator) Attempts() int { return it.attempt }

// Failed returns the number of requests that never succeeded.
func (it *BatchIterator) Failed() int {
	if !it.done {
		return 0
	}
	n := len(it.failed)
	for _, w := range it.queue {
		n += len(w)
	}
	return n
}

// Close abandons the windows not dispatched yet.
func (it *BatchIterator) Close() error {
	if !it.done {
		it.abort(context.Canceled)
	}
	return nil
}

func (it *BatchIterator) finish(success bool) {
	it.done = true
	it.success = success
	it.cur = nil

	status := statusSuccess
	if !success {
		status = statusExhausted
		level.Error(it.exec.logger).Log("msg", "could not execute all requests", "failed", len(it.failed),
			"total", it.total, "attempts", it.attempt, "template", it.stmt.Text())
	}
	it.exec.metrics.executions.WithLabelValues(it.stmt.Shape().String(), status).Inc()
	it.exec.metrics.executionAttempts.Observe(float64(it.attempt))
}

func (it *BatchIterator) abort(err error) {
	it.done = true
	it.success = false
	it.cur = nil
	it.err = err
	it.exec.metrics.executions.WithLabelValues(it.stmt.Shape().String(), statusAborted).Inc()
	level.Warn(it.exec.logger).Log("msg", "execution aborted", "attempt", it.attempt, "template", it.stmt.Text(), "err", err)
}
