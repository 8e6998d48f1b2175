package cql

import (
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Consistency is the replica agreement a request asks the store for.
type Consistency string

const (
	Any         Consistency = "ANY"
	One         Consistency = "ONE"
	Two         Consistency = "TWO"
	Three       Consistency = "THREE"
	Quorum      Consistency = "QUORUM"
	All         Consistency = "ALL"
	LocalQuorum Consistency = "LOCAL_QUORUM"
	EachQuorum  Consistency = "EACH_QUORUM"
	LocalOne    Consistency = "LOCAL_ONE"
)

// ParseConsistency parses a consistency level name, case-insensitively.
func ParseConsistency(s string) (Consistency, error) {
	c := Consistency(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case Any, One, Two, Three, Quorum, All, LocalQuorum, EachQuorum, LocalOne:
		return c, nil
	}
	return "", fmt.Errorf("invalid consistency level %q", s)
}

// Settings are the execution settings attached to every bound request.
type Settings struct {
	Consistency Consistency
	PageSize    int
	// Idempotent marks the request as safe to run more than once. Requests
	// are retried, so only retry-safe templates may go through this path.
	Idempotent bool
}

// DefaultSettings returns LOCAL_QUORUM, a fetch size tuned for large
// result sets, and the idempotency marker.
func DefaultSettings() Settings {
	return Settings{
		Consistency: LocalQuorum,
		PageSize:    defaultPageSize,
		Idempotent:  true,
	}
}

// BoundRequest is a compiled statement plus the values of one execution.
type BoundRequest struct {
	stmt     *Statement
	values   []interface{}
	settings Settings
}

func (r *BoundRequest) Statement() *Statement  { return r.stmt }
func (r *BoundRequest) Values() []interface{} { return r.values }
func (r *BoundRequest) Settings() Settings     { return r.settings }

// Bind binds values, in placeholder order, to stmt.
func Bind(stmt *Statement, values []interface{}, settings Settings) (*BoundRequest, error) {
	if want := stmt.tmpl.Placeholders; len(values) != want {
		return nil, errors.Wrapf(ErrParamCount, "got %d values for %d placeholders in %q", len(values), want, stmt.Text())
	}
	vs := make([]interface{}, len(values))
	copy(vs, values)
	return &BoundRequest{stmt: stmt, values: vs, settings: settings}, nil
}

// Record is an application row with a statically declared column set.
type Record interface {
	// Columns returns the record's values keyed by column name.
	Columns() map[string]interface{}
}

// BindRecord binds the named fields of rec to stmt. Names are matched
// case-insensitively. A field the record does not have is bound as null.
func BindRecord(logger log.Logger, stmt *Statement, rec Record, fields []string, settings Settings) (*BoundRequest, error) {
	cols := rec.Columns()
	lower := make(map[string]interface{}, len(cols))
	for k, v := range cols {
		lower[strings.ToLower(k)] = v
	}

	values := make([]interface{}, len(fields))
	for i, f := range fields {
		v, ok := lower[strings.ToLower(f)]
		if !ok {
			level.Warn(logger).Log("msg", "record does not contain field, binding null", "field", f, "template", stmt.Text())
		}
		values[i] = v
	}
	return Bind(stmt, values, settings)
}
