package cql

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Statement is a compiled template, shared by every query using the same text.
type Statement struct {
	tmpl     Template
	prepared Prepared
}

func (s *Statement) Template() Template { return s.tmpl }
func (s *Statement) Text() string       { return s.tmpl.Text }
func (s *Statement) Shape() Shape       { return s.tmpl.Shape }
func (s *Statement) Prepared() Prepared { return s.prepared }

// Registry compiles each distinct template text at most once and keeps the
// handle for its whole lifetime.
type Registry struct {
	session Session
	logger  log.Logger
	metrics *Metrics

	mtx        sync.RWMutex
	statements map[string]*Statement
	compiles   singleflight.Group
}

// NewRegistry returns an empty statement registry preparing on session.
func NewRegistry(session Session, logger log.Logger, metrics *Metrics) *Registry {
	return &Registry{
		session:    session,
		logger:     logger,
		metrics:    metrics,
		statements: map[string]*Statement{},
	}
}

// GetOrCompile returns the handle of text, compiling it on first use.
// Concurrent first uses share a single compilation.
func (r *Registry) GetOrCompile(ctx context.Context, text string) (*Statement, error) {
	if stmt, ok := r.get(text); ok {
		return stmt, nil
	}

	// Callers waiting on the same compile must not fail because the
	// first one went away.
	ctx = context.WithoutCancel(ctx)
	v, err, _ := r.compiles.Do(text, func() (interface{}, error) {
		if stmt, ok := r.get(text); ok {
			return stmt, nil
		}
		stmt, err := r.compile(ctx, text)
		if err != nil {
			return nil, err
		}
		r.mtx.Lock()
		r.statements[text] = stmt
		r.mtx.Unlock()
		return stmt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Statement), nil
}

func (r *Registry) compile(ctx context.Context, text string) (*Statement, error) {
	tmpl, err := ParseTemplate(text)
	if err != nil {
		r.metrics.compileFailures.Inc()
		level.Error(r.logger).Log("msg", "failed to parse template", "template", text, "err", err)
		return nil, err
	}
	if r.session.Closed() {
		return nil, ErrSessionClosed
	}

	prepared, err := r.session.Prepare(ctx, tmpl)
	if err != nil {
		r.metrics.compileFailures.Inc()
		level.Error(r.logger).Log("msg", "store rejected template", "template", text, "err", err)
		return nil, errors.Wrapf(ErrTemplateCompilation, "%q: %v", text, err)
	}
	r.metrics.statementsCompiled.Inc()
	level.Debug(r.logger).Log("msg", "compiled template", "template", text, "shape", tmpl.Shape)
	return &Statement{tmpl: tmpl, prepared: prepared}, nil
}

func (r *Registry) get(text string) (*Statement, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	stmt, ok := r.statements[text]
	return stmt, ok
}

// Len returns the number of compiled templates.
func (r *Registry) Len() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.statements)
}
