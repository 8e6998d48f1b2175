package cassandra

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
)

// Config for a Session.
type Config struct {
	Addresses                flagext.StringSliceCSV `yaml:"addresses"`
	Port                     int                    `yaml:"port"`
	Keyspace                 string                 `yaml:"keyspace"`
	Consistency              string                 `yaml:"consistency"`
	ReplicationFactor        int                    `yaml:"replication_factor"`
	DisableInitialHostLookup bool                   `yaml:"disable_initial_host_lookup"`
	SSL                      bool                   `yaml:"SSL"`
	HostVerification         bool                   `yaml:"host_verification"`
	CAPath                   string                 `yaml:"CA_path"`
	Auth                     bool                   `yaml:"auth"`
	Username                 string                 `yaml:"username"`
	Password                 flagext.Secret         `yaml:"password"`
	Timeout                  time.Duration          `yaml:"timeout"`
	ConnectTimeout           time.Duration          `yaml:"connect_timeout"`
	NumConnections           int                    `yaml:"num_connections"`
	TableOptions             string                 `yaml:"table_options"`
	VerifyTables             bool                   `yaml:"verify_tables"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("cassandra.", f)
}

// RegisterFlagsWithPrefix adds the flags required to config this to the given FlagSet with a specified prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	cfg.Addresses = flagext.StringSliceCSV{"127.0.0.1"}
	f.Var(&cfg.Addresses, prefix+"addresses", "Comma-separated hostnames or IPs of Cassandra instances.")
	f.IntVar(&cfg.Port, prefix+"port", 9042, "Port that Cassandra is running on")
	f.StringVar(&cfg.Keyspace, prefix+"keyspace", "", "Keyspace to use in Cassandra.")
	f.StringVar(&cfg.Consistency, prefix+"consistency", "LOCAL_QUORUM", "Consistency level for Cassandra session-level requests.")
	f.IntVar(&cfg.ReplicationFactor, prefix+"replication-factor", 3, "Replication factor to use in Cassandra.")
	f.BoolVar(&cfg.DisableInitialHostLookup, prefix+"disable-initial-host-lookup", false, "Instruct the cassandra driver to not attempt to get host info from the system.peers table.")
	f.BoolVar(&cfg.SSL, prefix+"ssl", false, "Use SSL when connecting to cassandra instances.")
	f.BoolVar(&cfg.HostVerification, prefix+"host-verification", true, "Require SSL certificate validation.")
	f.StringVar(&cfg.CAPath, prefix+"ca-path", "", "Path to certificate file to verify the peer.")
	f.BoolVar(&cfg.Auth, prefix+"auth", false, "Enable password authentication when connecting to cassandra.")
	f.StringVar(&cfg.Username, prefix+"username", "", "Username to use when connecting to cassandra.")
	f.Var(&cfg.Password, prefix+"password", "Password to use when connecting to cassandra.")
	f.DurationVar(&cfg.Timeout, prefix+"timeout", 2*time.Second, "Timeout when connecting to cassandra.")
	f.DurationVar(&cfg.ConnectTimeout, prefix+"connect-timeout", 5*time.Second, "Initial connection timeout, used during initial dial to server.")
	f.IntVar(&cfg.NumConnections, prefix+"num-connections", 2, "Number of TCP connections per host.")
	f.StringVar(&cfg.TableOptions, prefix+"table-options", "", "Table options used to create tables.")
	f.BoolVar(&cfg.VerifyTables, prefix+"verify-tables", true, "Refuse to compile query templates whose table does not exist in the keyspace.")
}

// Validate the config and returns an error if the validation doesn't pass.
func (cfg *Config) Validate() error {
	if len(cfg.Addresses) == 0 {
		return errors.New("no cassandra addresses configured")
	}
	if cfg.Keyspace == "" {
		return errors.New("no cassandra keyspace configured")
	}
	if _, err := gocql.ParseConsistencyWrapper(cfg.Consistency); err != nil {
		return errors.Wrap(err, "invalid cassandra consistency")
	}
	if cfg.Auth && cfg.Username == "" {
		return errors.New("cassandra auth is enabled but no username is configured")
	}
	if cfg.ReplicationFactor < 1 {
		return errors.New("cassandra replication factor must be at least 1")
	}
	return nil
}

// String describes the connection for diagnostics. The password is never included.
func (cfg *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cassandra://%s:%d/%s", strings.Join(cfg.Addresses, ","), cfg.Port, cfg.Keyspace)
	if cfg.Auth {
		fmt.Fprintf(&sb, " user=%s", cfg.Username)
	}
	if cfg.SSL {
		fmt.Fprintf(&sb, " ssl=true host_verification=%t", cfg.HostVerification)
	}
	return sb.String()
}

func (cfg *Config) cluster(keyspace string) (*gocql.ClusterConfig, error) {
	consistency, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cluster := gocql.NewCluster(cfg.Addresses...)
	cluster.Port = cfg.Port
	cluster.Keyspace = keyspace
	cluster.Consistency = consistency
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.ConnectTimeout
	if cfg.NumConnections > 0 {
		cluster.NumConns = cfg.NumConnections
	}
	cfg.setClusterConfig(cluster)
	return cluster, nil
}

// apply config settings to a cassandra ClusterConfig
func (cfg *Config) setClusterConfig(cluster *gocql.ClusterConfig) {
	cluster.DisableInitialHostLookup = cfg.DisableInitialHostLookup

	if cfg.SSL {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 cfg.CAPath,
			EnableHostVerification: cfg.HostVerification,
		}
	}
	if cfg.Auth {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password.String(),
		}
	}
}

// createKeyspace will create the desired keyspace if it doesn't exist.
func (cfg *Config) createKeyspace() error {
	cluster, err := cfg.cluster("system")
	if err != nil {
		return err
	}
	cluster.Timeout = 20 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return errors.WithStack(err)
	}
	defer session.Close()

	err = session.Query(fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s
		 WITH replication = {
			 'class' : 'SimpleStrategy',
			 'replication_factor' : %d
		 }`,
		cfg.Keyspace, cfg.ReplicationFactor)).Exec()
	return errors.WithStack(err)
}
