package cql

import (
	"strings"
)

// InsertTemplate returns an upsert of fields into table.
func InsertTemplate(table string, fields ...string) string {
	placeholders := make([]string, len(fields))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return "INSERT INTO " + table + " (" + strings.Join(fields, ",") + ") VALUES (" + strings.Join(placeholders, ",") + ")"
}

// SelectTemplate returns a full scan of table. No field means every column.
func SelectTemplate(table string, fields ...string) string {
	cols := "*"
	if len(fields) > 0 {
		cols = strings.Join(fields, ", ")
	}
	return "SELECT " + cols + " FROM " + table
}

// DeleteTemplate returns a delete from table matching every field.
func DeleteTemplate(table string, fields ...string) string {
	conds := make([]string, len(fields))
	for i, f := range fields {
		conds[i] = f + "=?"
	}
	return "DELETE FROM " + table + " WHERE " + strings.Join(conds, " AND ")
}
