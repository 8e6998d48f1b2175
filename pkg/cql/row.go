package cql

import "strings"

// Row is one row returned by the store, with its columns in select order.
type Row struct {
	columns []string
	values  []interface{}
}

// NewRow builds a row. columns and values must have the same length.
func NewRow(columns []string, values []interface{}) Row {
	if len(columns) != len(values) {
		panic("cql: row columns and values differ in length")
	}
	return Row{columns: columns, values: values}
}

func (r Row) Columns() []string      { return r.columns }
func (r Row) Values() []interface{} { return r.values }
func (r Row) Len() int               { return len(r.columns) }

// Get returns the value of the named column. Column names are matched
// case-insensitively, as the store folds unquoted identifiers to lower case.
func (r Row) Get(name string) (interface{}, bool) {
	for i, c := range r.columns {
		if strings.EqualFold(c, name) {
			return r.values[i], true
		}
	}
	return nil, false
}
