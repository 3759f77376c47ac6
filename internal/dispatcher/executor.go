package dispatcher

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"go-antiraid/internal/logging"
	"go-antiraid/internal/metrics"
	"go-antiraid/internal/models"
)

type ExecutorConfig struct {
	MaxParallel       int
	CallTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxParallel:       8,
		CallTimeout:       5 * time.Second,
		RequestsPerSecond: 40,
		Burst:             10,
	}
}

// Task is one mitigation call. Returning ErrSkipped marks the target skipped.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// Executor fans mitigation calls out with bounded parallelism. Every call gets
// its own deadline, waits on a shared limiter and passes a circuit breaker.
type Executor struct {
	cfg     ExecutorConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	def := DefaultExecutorConfig()
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = def.MaxParallel
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst < 1 {
		cfg.Burst = def.Burst
	}

	const cbName = "platform-mitigation"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 25
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, ErrSkipped)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("[CIRCUIT BREAKER] %s: %s -> %s", name, from, to)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Executor{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: cb,
	}
}

// Run executes every task and waits for all of them. Results keep the order
// of tasks. A failed task never stops the others.
func (e *Executor) Run(ctx context.Context, action string, tasks []Task) []models.TargetResult {
	results := make([]models.TargetResult, len(tasks))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxParallel)

	for i, task := range tasks {
		g.Go(func() error {
			results[i] = e.runOne(ctx, action, task)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Executor) runOne(ctx context.Context, action string, task Task) models.TargetResult {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	res := models.TargetResult{ID: task.ID}

	if err := e.limiter.Wait(callCtx); err != nil {
		res.Err = err
		metrics.MitigationCalls.WithLabelValues(action, "failure").Inc()
		return res
	}

	_, err := e.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, task.Run(callCtx)
	})

	switch {
	case errors.Is(err, ErrSkipped):
		res.Skipped = true
		metrics.MitigationCalls.WithLabelValues(action, "skipped").Inc()
	case err != nil:
		res.Err = err
		metrics.MitigationCalls.WithLabelValues(action, "failure").Inc()
	default:
		metrics.MitigationCalls.WithLabelValues(action, "success").Inc()
	}
	return res
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
