package cql

import (
	"context"
	"errors"
)

var (
	// ErrTemplateCompilation is returned when a query template is malformed or
	// rejected by the store. It is never retried.
	ErrTemplateCompilation = errors.New("template compilation failed")
	// ErrParamCount is returned when the number of bound values does not match
	// the number of placeholders in the template.
	ErrParamCount = errors.New("parameter count mismatch")
	// ErrNoRequests is returned when a query is executed without any bound request.
	ErrNoRequests = errors.New("no bound requests to execute")
	// ErrSessionClosed is returned when the session is not open.
	ErrSessionClosed = errors.New("session is closed")
)

// Session is the shared, long-lived handle to the store. Implementations must
// be safe for concurrent use.
type Session interface {
	// Prepare compiles a parsed template into a store-side handle.
	Prepare(ctx context.Context, tmpl Template) (Prepared, error)

	// ExecuteAsync starts executing req and returns immediately. Cancelling
	// ctx asks the store operation to stop, on a best effort basis.
	ExecuteAsync(ctx context.Context, req *BoundRequest) Future

	// Closed reports whether the session can no longer serve requests.
	Closed() bool
}

// Prepared is the opaque, store-prepared form of a template.
type Prepared interface {
	Query() string
}

// Future is the pending outcome of an asynchronous execution.
type Future interface {
	// Get waits for the execution to finish or for ctx to be done,
	// whichever happens first.
	Get(ctx context.Context) ([]Row, error)
}

// FutureFunc adapts a function to the Future interface.
type FutureFunc func(ctx context.Context) ([]Row, error)

func (f FutureFunc) Get(ctx context.Context) ([]Row, error) {
	return f(ctx)
}
