package dao

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/grafana/cqlstore/pkg/cql"
)

// DAO reads and writes records of type T in a single table.
type DAO[T cql.Record] struct {
	exec    *cql.Executor
	table   string
	fromRow func(cql.Row) (T, error)
	logger  log.Logger
}

func New[T cql.Record](exec *cql.Executor, table string, fromRow func(cql.Row) (T, error), logger log.Logger) *DAO[T] {
	return &DAO[T]{
		exec:    exec,
		table:   table,
		fromRow: fromRow,
		logger:  log.With(logger, "table", table),
	}
}

// Table returns the name of the table the DAO works on.
func (d *DAO[T]) Table() string { return d.table }

// Select reads every row of the table. No field means every column. Rows
// that could not be read after the last attempt are missing from the result
// and logged.
func (d *DAO[T]) Select(ctx context.Context, fields ...string) ([]T, error) {
	q, err := d.selectQuery(ctx, fields)
	if err != nil {
		return nil, err
	}
	res, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		level.Warn(d.logger).Log("msg", "select returned partial results", "failed", res.Failed, "attempts", res.Attempts)
	}
	return d.convert(res.Rows)
}

// SelectBatches reads every row of the table one window at a time.
func (d *DAO[T]) SelectBatches(ctx context.Context, fields ...string) (*BatchIterator[T], error) {
	q, err := d.selectQuery(ctx, fields)
	if err != nil {
		return nil, err
	}
	it, err := q.Iter(ctx)
	if err != nil {
		return nil, err
	}
	return &BatchIterator[T]{inner: it, convert: d.convert}, nil
}

// SelectStream hands the records of every window to fn. It returns whether
// every request succeeded.
func (d *DAO[T]) SelectStream(ctx context.Context, fn func([]T) error, fields ...string) (bool, error) {
	it, err := d.SelectBatches(ctx, fields...)
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

// Upsert writes fields of every record. It returns len(records) when every
// write succeeded and 0 otherwise, even if some of them reached the store.
// Writing no record returns cql.ErrNoRequests.
func (d *DAO[T]) Upsert(ctx context.Context, records []T, fields ...string) (int, error) {
	return d.write(ctx, cql.InsertTemplate(d.table, fields...), records, fields)
}

// Delete removes the rows matching fields of every record. The count and the
// error on no record follow the same rules as Upsert.
func (d *DAO[T]) Delete(ctx context.Context, records []T, fields ...string) (int, error) {
	return d.write(ctx, cql.DeleteTemplate(d.table, fields...), records, fields)
}

// UpsertOne is Upsert for a single record.
func (d *DAO[T]) UpsertOne(ctx context.Context, record T, fields ...string) (int, error) {
	return d.Upsert(ctx, []T{record}, fields...)
}

// DeleteOne is Delete for a single record.
func (d *DAO[T]) DeleteOne(ctx context.Context, record T, fields ...string) (int, error) {
	return d.Delete(ctx, []T{record}, fields...)
}

func (d *DAO[T]) write(ctx context.Context, text string, records []T, fields []string) (int, error) {
	q, err := d.exec.NewQuery(ctx, text)
	if err != nil {
		return 0, err
	}
	for _, r := range records {
		if err := q.BindRecord(r, fields...); err != nil {
			return 0, err
		}
	}
	res, err := q.Execute(ctx)
	if err != nil {
		return 0, err
	}
	if !res.Success() {
		return 0, nil
	}
	return len(records), nil
}

func (d *DAO[T]) selectQuery(ctx context.Context, fields []string) (*cql.Query, error) {
	q, err := d.exec.NewQuery(ctx, cql.SelectTemplate(d.table, fields...))
	if err != nil {
		return nil, err
	}
	if err := q.Bind(); err != nil {
		return nil, err
	}
	return q, nil
}

func (d *DAO[T]) convert(rows []cql.Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		rec, err := d.fromRow(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading row of %s", d.table)
		}
		out = append(out, rec)
	}
	return out, nil
}

// BatchIterator iterates over the records of each completed window.
type BatchIterator[T cql.Record] struct {
	inner   *cql.BatchIterator
	convert func([]cql.Row) ([]T, error)

	cur []T
	err error
}

func (it *BatchIterator[T]) Next() bool {
	if it.err != nil || !it.inner.Next() {
		return false
	}
	it.cur, it.err = it.convert(it.inner.At())
	if it.err != nil {
		it.inner.Close()
		return false
	}
	return true
}

func (it *BatchIterator[T]) At() []T { return it.cur }

func (it *BatchIterator[T]) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.inner.Err()
}

func (it *BatchIterator[T]) Success() bool { return it.err == nil && it.inner.Success() }

func (it *BatchIterator[T]) Close() error { return it.inner.Close() }
