package congestion

import (
	"flag"
	"fmt"
)

const (
	StrategyNoop = ""
	StrategyAIMD = "aimd"
)

type Config struct {
	Strategy string     `yaml:"strategy"`
	AIMD     AIMDConfig `yaml:"aimd"`
}

type AIMDConfig struct {
	LowerBound    uint    `yaml:"lower_bound"`
	UpperBound    uint    `yaml:"upper_bound"`
	BackoffFactor float64 `yaml:"backoff_factor"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.RegisterFlagsWithPrefix("cql.congestion-control.", f)
}

func (c *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.Strategy, prefix+"strategy", StrategyNoop, "Congestion control strategy to use (default: none, options: 'aimd').")
	f.UintVar(&c.AIMD.LowerBound, prefix+"strategy.aimd.start", 100, "AIMD starting throughput window size: how many requests can be sent per second (default: 100).")
	f.UintVar(&c.AIMD.UpperBound, prefix+"strategy.aimd.upper-bound", 10000, "AIMD maximum throughput window size: upper limit of requests sent per second (default: 10000).")
	f.Float64Var(&c.AIMD.BackoffFactor, prefix+"strategy.aimd.backoff-factor", 0.5, "AIMD backoff factor when upstream service is throttled to decrease number of requests sent per second (default: 0.5).")
}

func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyNoop, StrategyAIMD:
	default:
		return fmt.Errorf("unknown congestion control strategy %q", c.Strategy)
	}
	if c.Strategy != StrategyAIMD {
		return nil
	}
	if c.AIMD.LowerBound < 1 {
		return fmt.Errorf("aimd start must be at least 1")
	}
	if c.AIMD.UpperBound != 0 && c.AIMD.UpperBound < c.AIMD.LowerBound {
		return fmt.Errorf("aimd upper bound %d is below start %d", c.AIMD.UpperBound, c.AIMD.LowerBound)
	}
	if c.AIMD.BackoffFactor < 0 || c.AIMD.BackoffFactor >= 1 {
		return fmt.Errorf("aimd backoff factor must be in [0, 1)")
	}
	return nil
}
