package cql

import (
	"context"
	"errors"

	"github.com/go-kit/log/level"
)

// Limiter admits requests into the store and learns from their outcome.
type Limiter interface {
	Acquire(ctx context.Context) error
	OnSuccess()
	OnFailure()
}

type noopLimiter struct{}

func (noopLimiter) Acquire(context.Context) error { return nil }
func (noopLimiter) OnSuccess()                    {}
func (noopLimiter) OnFailure()                    {}

type inflight struct {
	req    *BoundRequest
	future Future
	cancel context.CancelFunc
}

// dispatchWindow issues every request of the window at once, then waits for
// each of them up to the request timeout. Requests that time out or fail are
// returned for the next attempt; they do not stop the rest of the window.
// The only error returned is the cancellation of ctx.
func (e *Executor) dispatchWindow(ctx context.Context, stmt *Statement, window []*BoundRequest) ([]Row, []*BoundRequest, error) {
	calls := make([]inflight, 0, len(window))
	defer func() {
		for _, c := range calls {
			c.cancel()
		}
	}()

	issued := e.metrics.requestsIssued.WithLabelValues(stmt.Shape().String())
	for _, req := range window {
		if err := e.limiter.Acquire(ctx); err != nil {
			return nil, nil, err
		}
		reqCtx, cancel := context.WithCancel(ctx)
		calls = append(calls, inflight{
			req:    req,
			future: e.session.ExecuteAsync(reqCtx, req),
			cancel: cancel,
		})
		issued.Inc()
	}

	var (
		rows   []Row
		failed []*BoundRequest
	)
	for _, c := range calls {
		waitCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		res, err := c.future.Get(waitCtx)
		cancel()
		// A timed out operation may still be running on the store. Ask it
		// to stop; whatever it already wrote stays written.
		c.cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			reason := reasonError
			if errors.Is(err, context.DeadlineExceeded) {
				reason = reasonTimeout
			}
			e.metrics.requestFailures.WithLabelValues(reason).Inc()
			e.limiter.OnFailure()
			level.Debug(e.logger).Log("msg", "request failed", "template", stmt.Text(), "reason", reason, "err", err)
			failed = append(failed, c.req)
			continue
		}
		e.limiter.OnSuccess()
		rows = append(rows, res...)
	}

	e.metrics.windowRows.Observe(float64(len(rows)))
	if len(rows) > e.cfg.WindowRowsWarnThreshold {
		level.Warn(e.logger).Log("msg", "window returned too many rows, window size or partition size too large",
			"rows", len(rows), "window", len(window), "template", stmt.Text())
	}
	return rows, failed, nil
}

// windows splits reqs into consecutive slices of at most size elements.
func windows(reqs []*BoundRequest, size int) [][]*BoundRequest {
	out := make([][]*BoundRequest, 0, (len(reqs)+size-1)/size)
	for len(reqs) > 0 {
		n := min(size, len(reqs))
		out = append(out, reqs[:n:n])
		reqs = reqs[n:]
	}
	return out
}
