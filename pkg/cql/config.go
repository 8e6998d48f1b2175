package cql

import (
	"flag"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultRequestTimeout = time.Second
	defaultBaseBackoff    = 25 * time.Millisecond
	defaultMaxAttempts    = 15

	// Reads can return up to a full partition per request, so only a few
	// run together. Writes are cheap to acknowledge.
	defaultReadWindow  = 32
	defaultWriteWindow = 10000

	defaultWindowRowsWarnThreshold = 500000
	defaultPageSize                = 20000
)

// Config for the query executor.
type Config struct {
	RequestTimeout          time.Duration `yaml:"request_timeout"`
	BaseBackoff             time.Duration `yaml:"base_backoff"`
	MaxBackoff              time.Duration `yaml:"max_backoff"`
	MaxAttempts             int           `yaml:"max_attempts"`
	ReadWindowSize          int           `yaml:"read_window_size"`
	WriteWindowSize         int           `yaml:"write_window_size"`
	WindowRowsWarnThreshold int           `yaml:"window_rows_warn_threshold"`
	Consistency             string        `yaml:"consistency"`
	PageSize                int           `yaml:"page_size"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("cql.", f)
}

// RegisterFlagsWithPrefix adds the flags required to config this to the given FlagSet with a specified prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.RequestTimeout, prefix+"request-timeout", defaultRequestTimeout, "How long to wait for a single request before counting it as failed for the current attempt.")
	f.DurationVar(&cfg.BaseBackoff, prefix+"base-backoff", defaultBaseBackoff, "Base delay of the randomized exponential backoff between attempts.")
	f.DurationVar(&cfg.MaxBackoff, prefix+"max-backoff", 0, "Upper bound of a single backoff delay. 0 to disable.")
	f.IntVar(&cfg.MaxAttempts, prefix+"max-attempts", defaultMaxAttempts, "Number of retries of the failed requests after the first attempt before they are given up on.")
	f.IntVar(&cfg.ReadWindowSize, prefix+"read-window-size", defaultReadWindow, "Number of read requests in flight together.")
	f.IntVar(&cfg.WriteWindowSize, prefix+"write-window-size", defaultWriteWindow, "Number of write requests in flight together.")
	f.IntVar(&cfg.WindowRowsWarnThreshold, prefix+"window-rows-warn-threshold", defaultWindowRowsWarnThreshold, "Log a warning when a single window returns more rows than this.")
	f.StringVar(&cfg.Consistency, prefix+"consistency", string(LocalQuorum), "Consistency level of every request.")
	f.IntVar(&cfg.PageSize, prefix+"page-size", defaultPageSize, "Fetch size of read requests.")
}

// Validate the config and returns an error if the validation doesn't pass.
func (cfg *Config) Validate() error {
	if cfg.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if cfg.BaseBackoff < 0 || cfg.MaxBackoff < 0 {
		return errors.New("backoff must not be negative")
	}
	if cfg.MaxAttempts < 0 {
		return errors.New("max attempts must not be negative")
	}
	if cfg.ReadWindowSize < 1 || cfg.WriteWindowSize < 1 {
		return errors.New("window sizes must be at least 1")
	}
	if cfg.PageSize < 1 {
		return errors.New("page size must be at least 1")
	}
	if _, err := ParseConsistency(cfg.Consistency); err != nil {
		return err
	}
	return nil
}

// windowSize returns the default window for statements of the given shape.
func (cfg *Config) windowSize(s Shape) int {
	if s == ShapeRead {
		return cfg.ReadWindowSize
	}
	return cfg.WriteWindowSize
}
