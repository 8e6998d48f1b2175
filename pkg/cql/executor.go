package cql

import (
	"context"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Executor runs queries against a session: it owns the statement registry
// and the dispatch and retry policy. It is safe for concurrent use.
type Executor struct {
	cfg      Config
	session  Session
	registry *Registry
	limiter  Limiter
	backoff  backoff
	settings Settings
	logger   log.Logger
	metrics  *Metrics
}

// NewExecutor returns an executor over session. limiter may be nil.
func NewExecutor(cfg Config, session Session, limiter Limiter, logger log.Logger, registerer prometheus.Registerer) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid cql config")
	}
	consistency, _ := ParseConsistency(cfg.Consistency)
	if limiter == nil {
		limiter = noopLimiter{}
	}

	metrics := NewMetrics(registerer)
	return &Executor{
		cfg:      cfg,
		session:  session,
		registry: NewRegistry(session, logger, metrics),
		limiter:  limiter,
		backoff:  backoff{base: cfg.BaseBackoff, max: cfg.MaxBackoff},
		settings: Settings{
			Consistency: consistency,
			PageSize:    cfg.PageSize,
			Idempotent:  true,
		},
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Registry returns the statement registry of the executor.
func (e *Executor) Registry() *Registry { return e.registry }

// QueryOption configures a Query.
type QueryOption func(*Query)

// WithWindowSize overrides the number of requests in flight together.
func WithWindowSize(n int) QueryOption {
	return func(q *Query) {
		if n > 0 {
			q.window = n
		}
	}
}

// WithSettings overrides the execution settings of the requests bound to the query.
func WithSettings(s Settings) QueryOption {
	return func(q *Query) {
		q.settings = s
	}
}

// NewQuery compiles text, or reuses its handle, and returns an empty query
// ready to have requests bound to it.
func (e *Executor) NewQuery(ctx context.Context, text string, opts ...QueryOption) (*Query, error) {
	stmt, err := e.registry.GetOrCompile(ctx, text)
	if err != nil {
		return nil, err
	}
	q := &Query{
		exec:     e,
		stmt:     stmt,
		settings: e.settings,
		window:   e.cfg.windowSize(stmt.Shape()),
	}
	for _, o := range opts {
		o(q)
	}
	return q, nil
}
