package main

import (
	"flag"

	dslog "github.com/grafana/dskit/log"
	"github.com/pkg/errors"

	"github.com/grafana/cqlstore/pkg/cql"
	"github.com/grafana/cqlstore/pkg/cql/cassandra"
	"github.com/grafana/cqlstore/pkg/cql/congestion"
)

// Config is the root config of the activity tool.
type Config struct {
	LogLevel   dslog.Level       `yaml:"log_level"`
	CQL        cql.Config        `yaml:"cql"`
	Congestion congestion.Config `yaml:"congestion_control"`
	Cassandra  cassandra.Config  `yaml:"cassandra"`
}

// RegisterFlags registers flag.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.LogLevel.RegisterFlags(f)
	c.CQL.RegisterFlags(f)
	c.Congestion.RegisterFlags(f)
	c.Cassandra.RegisterFlags(f)
}

// Validate validates the config.
func (c *Config) Validate() error {
	if err := c.CQL.Validate(); err != nil {
		return errors.Wrap(err, "invalid cql config")
	}
	if err := c.Congestion.Validate(); err != nil {
		return errors.Wrap(err, "invalid congestion control config")
	}
	if err := c.Cassandra.Validate(); err != nil {
		return errors.Wrap(err, "invalid cassandra config")
	}
	return nil
}
