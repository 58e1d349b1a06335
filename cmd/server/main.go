package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/verifikat/internal/adapter/http"
	"github.com/iho/verifikat/internal/adapter/http/handler"
	"github.com/iho/verifikat/internal/adapter/http/middleware"
	"github.com/iho/verifikat/internal/app"
	"github.com/iho/verifikat/internal/infrastructure/config"
	"github.com/iho/verifikat/internal/infrastructure/logger"
	"github.com/iho/verifikat/internal/infrastructure/postgres"
	"github.com/iho/verifikat/internal/infrastructure/sweeper"
)

const rateLimiterSweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "verifikat"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL, log); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	limiter := middleware.NewRateLimiter(cfg.OpsRateLimit, cfg.OpsRateBurst).WithHits(a.Metrics.RateLimitHits)
	server := newOpsServer(cfg, httpAdapter.NewRouter(httpAdapter.RouterConfig{
		HealthHandler: handler.NewHealthHandler(a.Checks()...),
		Metrics:       a.Metrics,
		Gatherer:      reg,
		RateLimiter:   limiter,
		Logger:        log,
	}))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(sweeper.New(sweeper.Config{
			Name:     "idempotency_sweeper",
			Task:     a.Guard,
			Logger:   log,
			Interval: cfg.IdempotencySweepInterval,
			Swept:    a.Metrics.IdempotencyRecordsSwept,
		}).Start(gctx))
	})

	g.Go(func() error {
		return ignoreCanceled(sweeper.New(sweeper.Config{
			Name:     "ratelimit_sweeper",
			Task:     limiter,
			Logger:   log,
			Interval: rateLimiterSweepInterval,
		}).Start(gctx))
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting ops server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down ops server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newOpsServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
