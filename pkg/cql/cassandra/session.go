package cassandra

import (
	"context"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gocql/gocql"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/cqlstore/pkg/cql"
)

// Session is a cql.Session backed by a gocql session. It only serves
// requests while the service is running.
type Session struct {
	services.Service

	cfg      Config
	logger   log.Logger
	observer *observer

	mtx     sync.RWMutex
	session *gocql.Session
}

// NewSession returns a session service. The connection is opened when the
// service starts.
func NewSession(cfg Config, logger log.Logger, registerer prometheus.Registerer) *Session {
	s := &Session{
		cfg:      cfg,
		logger:   log.With(logger, "component", "cassandra"),
		observer: newObserver(registerer),
	}
	s.Service = services.NewBasicService(s.starting, s.running, s.stopping)
	return s
}

func (s *Session) starting(_ context.Context) error {
	if err := s.cfg.createKeyspace(); err != nil {
		return errors.Wrap(err, "creating keyspace")
	}

	cluster, err := s.cfg.cluster(s.cfg.Keyspace)
	if err != nil {
		return err
	}
	cluster.QueryObserver = s.observer
	cluster.BatchObserver = s.observer

	session, err := cluster.CreateSession()
	if err != nil {
		return errors.WithStack(err)
	}
	s.mtx.Lock()
	s.session = session
	s.mtx.Unlock()

	level.Info(s.logger).Log("msg", "connected", "addr", s.cfg.String())
	return nil
}

func (s *Session) running(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *Session) stopping(_ error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
	level.Info(s.logger).Log("msg", "disconnected", "addr", s.cfg.String())
	return nil
}

func (s *Session) current() *gocql.Session {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.session
}

// Closed reports whether the session cannot serve requests, either because
// the service is not running or because the driver closed the connection.
func (s *Session) Closed() bool {
	if s.State() != services.Running {
		return true
	}
	sess := s.current()
	return sess == nil || sess.Closed()
}

type prepared struct{ text string }

func (p prepared) Query() string { return p.text }

// Prepare checks that the table of tmpl exists when table verification is
// enabled. The driver prepares the statement on every connection on its
// first execution and caches it.
func (s *Session) Prepare(ctx context.Context, tmpl cql.Template) (cql.Prepared, error) {
	if s.cfg.VerifyTables {
		ok, err := s.TableExists(ctx, tmpl.Table)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Errorf("table %s does not exist in keyspace %s", tmpl.Table, s.cfg.Keyspace)
		}
	}
	return prepared{text: tmpl.Text}, nil
}

type result struct {
	rows []cql.Row
	err  error
}

func (s *Session) ExecuteAsync(ctx context.Context, req *cql.BoundRequest) cql.Future {
	sess := s.current()
	if sess == nil {
		return cql.FutureFunc(func(context.Context) ([]cql.Row, error) {
			return nil, cql.ErrSessionClosed
		})
	}

	done := make(chan result, 1)
	go func() {
		rows, err := execute(ctx, sess, req)
		done <- result{rows: rows, err: err}
	}()

	return cql.FutureFunc(func(ctx context.Context) ([]cql.Row, error) {
		select {
		case r := <-done:
			return r.rows, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func execute(ctx context.Context, sess *gocql.Session, req *cql.BoundRequest) ([]cql.Row, error) {
	settings := req.Settings()
	q := sess.Query(req.Statement().Text(), req.Values()...).
		WithContext(ctx).
		Idempotent(settings.Idempotent)
	if settings.Consistency != "" {
		c, err := gocql.ParseConsistencyWrapper(string(settings.Consistency))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		q = q.Consistency(c)
	}
	if settings.PageSize > 0 {
		q = q.PageSize(settings.PageSize)
	}

	if req.Statement().Shape() == cql.ShapeWrite {
		return nil, errors.WithStack(q.Exec())
	}

	iter := q.Iter()
	columns := columnNames(iter.Columns())
	maps, err := iter.SliceMap()
	if err != nil {
		iter.Close()
		return nil, errors.WithStack(err)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return rowsFromMaps(columns, maps), nil
}

func columnNames(infos []gocql.ColumnInfo) []string {
	names := make([]string, len(infos))
	for i, c := range infos {
		names[i] = c.Name
	}
	return names
}

// rowsFromMaps orders the values of every row by columns. All rows share
// the columns slice.
func rowsFromMaps(columns []string, maps []map[string]interface{}) []cql.Row {
	rows := make([]cql.Row, 0, len(maps))
	for _, m := range maps {
		values := make([]interface{}, len(columns))
		for i, c := range columns {
			values[i] = m[c]
		}
		rows = append(rows, cql.NewRow(columns, values))
	}
	return rows
}

// splitTableName returns the keyspace and the table of a possibly qualified
// table name, folded to lower case like unquoted identifiers.
func splitTableName(name, defaultKeyspace string) (string, string) {
	name = strings.ToLower(name)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return defaultKeyspace, name
}
