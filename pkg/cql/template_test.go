package cql

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	for _, tc := range []struct {
		text       string
		verb       string
		shape      Shape
		table      string
		columns    []string
		conditions []string
		params     int
	}{
		{
			text:    "INSERT INTO user_activity (pid,uid,day,moneySpent) VALUES (?,?,?,?)",
			verb:    "INSERT",
			shape:   ShapeWrite,
			table:   "user_activity",
			columns: []string{"pid", "uid", "day", "moneySpent"},
			params:  4,
		},
		{
			text:  "SELECT * FROM user_activity",
			verb:  "SELECT",
			shape: ShapeRead,
			table: "user_activity",
		},
		{
			text:    "  select pid, uid from ks.user_activity",
			verb:    "SELECT",
			shape:   ShapeRead,
			table:   "ks.user_activity",
			columns: []string{"pid", "uid"},
		},
		{
			text:       "SELECT value FROM chunks WHERE hash = ? AND range >= ? ALLOW FILTERING",
			verb:       "SELECT",
			shape:      ShapeRead,
			table:      "chunks",
			columns:    []string{"value"},
			conditions: []string{"hash", "range"},
			params:     2,
		},
		{
			text:       "DELETE FROM user_activity WHERE pid=? AND uid=?",
			verb:       "DELETE",
			shape:      ShapeWrite,
			table:      "user_activity",
			conditions: []string{"pid", "uid"},
			params:     2,
		},
		{
			text:       "UPDATE user_activity SET moneySpent = ? WHERE pid = ? AND uid = ?",
			verb:       "UPDATE",
			shape:      ShapeWrite,
			table:      "user_activity",
			columns:    []string{"moneySpent"},
			conditions: []string{"pid", "uid"},
			params:     3,
		},
		{
			text:       "SELECT * FROM notes WHERE body = 'why?' AND id = ?",
			verb:       "SELECT",
			shape:      ShapeRead,
			table:      "notes",
			conditions: []string{"body", "id"},
			params:     1,
		},
	} {
		t.Run(tc.text, func(t *testing.T) {
			tmpl, err := ParseTemplate(tc.text)
			require.NoError(t, err)
			require.Equal(t, tc.text, tmpl.Text)
			require.Equal(t, tc.verb, tmpl.Verb)
			require.Equal(t, tc.shape, tmpl.Shape)
			require.Equal(t, tc.table, tmpl.Table)
			require.Equal(t, tc.columns, emptyToNil(tmpl.Columns))
			require.Equal(t, tc.conditions, tmpl.Conditions)
			require.Equal(t, tc.params, tmpl.Placeholders)
		})
	}
}

func TestParseTemplate_Malformed(t *testing.T) {
	for _, text := range []string{
		"",
		"   ",
		"CREATE TABLE foo (id int PRIMARY KEY)",
		"SELECT * user_activity",
		"SELECT FROM user_activity",
		"INSERT user_activity (pid) VALUES (?)",
		"INSERT INTO user_activity VALUES (?)",
		"INSERT INTO user_activity (pid VALUES (?",
		"DELETE user_activity WHERE pid=?",
		"UPDATE user_activity WHERE pid=?",
		"SELECT * FROM notes WHERE body = 'unterminated",
	} {
		t.Run(text, func(t *testing.T) {
			_, err := ParseTemplate(text)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrTemplateCompilation), "unexpected error: %v", err)
		})
	}
}

func TestTemplateBuilders(t *testing.T) {
	require.Equal(t,
		"INSERT INTO user_activity (pid,uid,day,moneySpent) VALUES (?,?,?,?)",
		InsertTemplate("user_activity", "pid", "uid", "day", "moneySpent"))
	require.Equal(t, "SELECT * FROM user_activity", SelectTemplate("user_activity"))
	require.Equal(t, "SELECT pid, day FROM user_activity", SelectTemplate("user_activity", "pid", "day"))
	require.Equal(t, "DELETE FROM user_activity WHERE pid=? AND uid=?", DeleteTemplate("user_activity", "pid", "uid"))

	// Builders and the parser agree on the placeholder count.
	for _, text := range []string{
		InsertTemplate("t", "a", "b", "c"),
		SelectTemplate("t"),
		DeleteTemplate("t", "a", "b"),
	} {
		_, err := ParseTemplate(text)
		require.NoError(t, err, text)
	}
}

func emptyToNil(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	return ss
}
