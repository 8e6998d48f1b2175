package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/cqlstore/pkg/cfg"
	"github.com/grafana/cqlstore/pkg/cql"
	"github.com/grafana/cqlstore/pkg/cql/cassandra"
	"github.com/grafana/cqlstore/pkg/cql/congestion"
	"github.com/grafana/cqlstore/pkg/dao"
	util_log "github.com/grafana/cqlstore/pkg/util/log"
)

func main() {
	app := kingpin.New("activity", "Manage the user activity records stored in Cassandra.")
	app.HelpFlag.Short('h')

	g := &globals{}
	app.Flag("config.file", "Configuration file to load.").StringVar(&g.configFile)
	app.Flag("config.expand-env", "Expands ${var} or $var in config according to the values of the environment variables.").BoolVar(&g.expandEnv)
	app.Flag("set", "Overrides a configuration flag, e.g. --set=-cassandra.keyspace=activity. Can be repeated.").StringsVar(&g.overrides)

	addAddCommand(app, g)
	addDeleteCommand(app, g)
	addListCommand(app, g)
	addInitSchemaCommand(app, g)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

type globals struct {
	configFile string
	expandEnv  bool
	overrides  []string
}

func (g *globals) loadConfig() (Config, error) {
	var conf Config
	fs := flag.NewFlagSet("activity", flag.ContinueOnError)
	if err := cfg.Parse(&conf, fs, g.configFile, g.expandEnv, g.overrides); err != nil {
		return conf, err
	}
	return conf, conf.Validate()
}

// store is an open connection to the activity table.
type store struct {
	session    *cassandra.Session
	activities *dao.UserActivityDAO
	logger     log.Logger
}

func (g *globals) open(ctx context.Context) (*store, error) {
	conf, err := g.loadConfig()
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}
	reg := prometheus.DefaultRegisterer
	logger := util_log.InitLogger(conf.LogLevel, os.Stderr, reg)

	session := cassandra.NewSession(conf.Cassandra, logger, reg)
	if err := services.StartAndAwaitRunning(ctx, session); err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", conf.Cassandra.String())
	}

	ctrl := congestion.NewController(conf.Congestion, congestion.NewMetrics(reg, conf.Congestion.Strategy), logger)
	exec, err := cql.NewExecutor(conf.CQL, session, ctrl, logger, reg)
	if err != nil {
		_ = services.StopAndAwaitTerminated(context.Background(), session)
		return nil, err
	}
	return &store{
		session:    session,
		activities: dao.NewUserActivityDAO(exec, logger),
		logger:     logger,
	}, nil
}

func (s *store) Close() {
	if err := services.StopAndAwaitTerminated(context.Background(), s.session); err != nil {
		fmt.Fprintln(os.Stderr, "closing session:", err)
	}
}
