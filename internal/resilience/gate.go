package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxBackoffShift = 10

// GateConfig configures a Gate.
type GateConfig struct {
	// Name identifies the gated service in logs.
	Name string

	// MinInterval is the minimum spacing between consecutive call starts.
	MinInterval time.Duration

	// MaxRetries is how many times a rate-limited call is retried.
	MaxRetries int

	// BaseDelay is the backoff base: retry n waits BaseDelay * 2^n.
	BaseDelay time.Duration
}

// DefaultGateConfig returns the pacing used for generative and search calls.
func DefaultGateConfig(name string) GateConfig {
	return GateConfig{
		Name:        name,
		MinInterval: time.Second,
		MaxRetries:  3,
		BaseDelay:   2 * time.Second,
	}
}

// Gate serializes and paces outbound calls to an external service. No two
// call starts are closer together than MinInterval, and rate-limit
// rejections are retried with exponential backoff. One Gate instance owns
// the last-call timestamp; share the instance between every caller that
// must respect the same pacing.
type Gate struct {
	cfg GateConfig

	mu       sync.Mutex
	lastCall time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate creates a Gate with the given config.
func NewGate(cfg GateConfig) *Gate {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &Gate{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Invoke runs fn through the gate.
func (g *Gate) Invoke(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn through the gate and returns its value. Only rate-limit
// rejections are retried, after BaseDelay * 2^n; every other error is
// returned immediately.
func Call[T any](ctx context.Context, g *Gate, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if err := g.wait(ctx); err != nil {
			return zero, err
		}
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !IsRateLimited(err) || attempt >= g.cfg.MaxRetries {
			return zero, err
		}

		delay := g.backoff(attempt)
		zap.L().Warn("resilience: rate limited, backing off",
			zap.String("service", g.cfg.Name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if g.sleep(ctx, delay) != nil {
			return zero, err
		}
	}
}

func (g *Gate) backoff(attempt int) time.Duration {
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	return g.cfg.BaseDelay << attempt
}

// wait blocks until MinInterval has passed since the previous call start,
// then records the new start.
func (g *Gate) wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastCall.IsZero() {
		if remaining := g.cfg.MinInterval - g.now().Sub(g.lastCall); remaining > 0 {
			if err := g.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	g.lastCall = g.now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
