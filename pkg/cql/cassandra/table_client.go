package cassandra

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/grafana/cqlstore/pkg/cql"
)

// Column of a table, with its CQL type.
type Column struct {
	Name string
	Type string
}

// TableDesc describes a table to create.
type TableDesc struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

func (s *Session) ListTables(_ context.Context) ([]string, error) {
	sess := s.current()
	if sess == nil {
		return nil, cql.ErrSessionClosed
	}
	md, err := sess.KeyspaceMetadata(s.cfg.Keyspace)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := []string{}
	for name := range md.Tables {
		result = append(result, name)
	}
	return result, nil
}

// TableExists reports whether the table exists. name may be qualified with
// a keyspace.
func (s *Session) TableExists(_ context.Context, name string) (bool, error) {
	sess := s.current()
	if sess == nil {
		return false, cql.ErrSessionClosed
	}
	keyspace, table := splitTableName(name, s.cfg.Keyspace)
	md, err := sess.KeyspaceMetadata(keyspace)
	if err != nil {
		return false, errors.WithStack(err)
	}
	_, ok := md.Tables[table]
	return ok, nil
}

func (s *Session) CreateTable(ctx context.Context, desc TableDesc) error {
	sess := s.current()
	if sess == nil {
		return cql.ErrSessionClosed
	}
	err := sess.Query(s.getCreateTableQuery(&desc)).WithContext(ctx).Exec()
	return errors.WithStack(err)
}

func (s *Session) getCreateTableQuery(desc *TableDesc) (query string) {
	columns := make([]string, 0, len(desc.Columns))
	for _, c := range desc.Columns {
		columns = append(columns, c.Name+" "+c.Type)
	}
	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s,
			PRIMARY KEY (%s)
		)`, desc.Name, strings.Join(columns, ",\n\t\t\t"), strings.Join(desc.PrimaryKey, ", "))
	if s.cfg.TableOptions != "" {
		query = fmt.Sprintf("%s WITH %s", query, s.cfg.TableOptions)
	}
	return
}
