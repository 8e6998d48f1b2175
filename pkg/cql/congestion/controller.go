package congestion

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/time/rate"

	"github.com/grafana/cqlstore/pkg/cql"
)

// Controller admits requests into the store and adapts its throughput to the
// outcome of the requests it admitted.
type Controller interface {
	cql.Limiter

	// Limit returns the current number of requests admitted per second.
	Limit() rate.Limit
}

// NewController returns the controller of the configured strategy.
func NewController(cfg Config, metrics *Metrics, logger log.Logger) Controller {
	switch cfg.Strategy {
	case StrategyAIMD, "AIMD":
		level.Info(logger).Log("msg", "congestion control enabled", "strategy", StrategyAIMD,
			"start", cfg.AIMD.LowerBound, "upper_bound", cfg.AIMD.UpperBound)
		return NewAIMDController(cfg, metrics)
	default:
		return NewNoopController(cfg)
	}
}

// AIMDController implements the Additive-Increase/Multiplicative-Decrease algorithm which is used in TCP congestion avoidance.
// https://en.wikipedia.org/wiki/Additive_increase/multiplicative_decrease
type AIMDController struct {
	metrics *Metrics

	mtx           sync.Mutex
	limiter       *rate.Limiter
	backoffFactor float64
	upperBound    rate.Limit
}

func NewAIMDController(cfg Config, metrics *Metrics) *AIMDController {
	lowerBound := rate.Limit(max(cfg.AIMD.LowerBound, 1))
	upperBound := rate.Limit(cfg.AIMD.UpperBound)

	if upperBound == 0 {
		// set to infinity if not defined
		upperBound = rate.Limit(math.Inf(1))
	}

	backoffFactor := cfg.AIMD.BackoffFactor
	if backoffFactor == 0 {
		// AIMD algorithm calls for halving rate
		backoffFactor = 0.5
	}

	a := &AIMDController{
		metrics:       metrics,
		limiter:       rate.NewLimiter(lowerBound, int(lowerBound)),
		backoffFactor: backoffFactor,
		upperBound:    upperBound,
	}
	a.updateLimitMetric()
	return a
}

// Acquire blocks until the current rate admits one more request.
func (a *AIMDController) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	a.metrics.backoffTimeNs.Add(float64(time.Since(start).Nanoseconds()))
	return nil
}

func (a *AIMDController) OnSuccess() { a.additiveIncrease() }
func (a *AIMDController) OnFailure() { a.multiplicativeDecrease() }

func (a *AIMDController) Limit() rate.Limit { return a.limiter.Limit() }

// additiveIncrease increases the number of requests per second that can be sent linearly.
// it should never exceed the defined upper bound.
func (a *AIMDController) additiveIncrease() {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	newLimit := a.limiter.Limit() + 1
	if newLimit > a.upperBound {
		newLimit = a.upperBound
	}
	a.setLimit(newLimit)
}

// multiplicativeDecrease reduces the number of requests per second that can be sent exponentially.
// it should never be set lower than 1.
func (a *AIMDController) multiplicativeDecrease() {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	newLimit := math.Ceil(math.Max(1, float64(a.limiter.Limit())*a.backoffFactor))
	a.setLimit(rate.Limit(newLimit))
}

func (a *AIMDController) setLimit(l rate.Limit) {
	a.limiter.SetLimit(l)
	a.limiter.SetBurst(int(l))
	a.updateLimitMetric()
}

func (a *AIMDController) updateLimitMetric() {
	a.metrics.currentLimit.Set(float64(a.limiter.Limit()))
}

// NoopController admits every request immediately.
type NoopController struct{}

func NewNoopController(Config) *NoopController {
	return &NoopController{}
}

func (n *NoopController) Acquire(context.Context) error { return nil }
func (n *NoopController) OnSuccess()                    {}
func (n *NoopController) OnFailure()                    {}
func (n *NoopController) Limit() rate.Limit             { return rate.Inf }
