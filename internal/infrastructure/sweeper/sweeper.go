// Package sweeper runs periodic maintenance against the ledger store.
package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Task removes stale rows and reports how many it removed.
type Task interface {
	Sweep(ctx context.Context) (int64, error)
}

// Config for Sweeper.
type Config struct {
	Name     string
	Task     Task
	Logger   zerolog.Logger
	Interval time.Duration
	Swept    prometheus.Counter // optional
}

// Sweeper calls its task on a fixed interval until the context is cancelled.
type Sweeper struct {
	name     string
	task     Task
	logger   zerolog.Logger
	interval time.Duration
	swept    prometheus.Counter
}

// New creates a Sweeper.
func New(cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Name == "" {
		cfg.Name = "sweeper"
	}

	return &Sweeper{
		name:     cfg.Name,
		task:     cfg.Task,
		logger:   cfg.Logger.With().Str("component", cfg.Name).Logger(),
		interval: cfg.Interval,
		swept:    cfg.Swept,
	}
}

// Start sweeps once immediately and then on every tick. It returns the
// context's error when cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce logs failures and keeps going; the next tick retries.
func (s *Sweeper) runOnce(ctx context.Context) {
	n, err := s.task.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("sweep failed")
		}
		return
	}

	if s.swept != nil {
		s.swept.Add(float64(n))
	}
	if n > 0 {
		s.logger.Debug().Int64("removed", n).Msg("sweep completed")
	}
}
