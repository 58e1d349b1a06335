// Package app wires repositories, use cases and the service boundary for the
// server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/verifikat/internal/adapter/http/handler"
	postgresRepo "github.com/iho/verifikat/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/verifikat/internal/adapter/repository/redis"
	"github.com/iho/verifikat/internal/adapter/service"
	"github.com/iho/verifikat/internal/infrastructure/config"
	"github.com/iho/verifikat/internal/infrastructure/metrics"
	"github.com/iho/verifikat/internal/infrastructure/postgres"
	"github.com/iho/verifikat/internal/infrastructure/redis"
	"github.com/iho/verifikat/internal/usecase"
)

// App is a wired ledger.
type App struct {
	Pool    *pgxpool.Pool
	Redis   *goredis.Client // nil unless the fingerprint cache is enabled
	Metrics *metrics.Metrics
	Guard   *usecase.IdempotencyGuard
	Service *service.Service
}

// New connects to the stores and wires every use case.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*App, error) {
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info().Msg("connected to postgres")

	a := &App{Pool: pool, Metrics: metrics.NewWithRegisterer(reg)}

	var cache usecase.FingerprintCache
	if cfg.IdempotencyCache {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info().Msg("connected to redis")
		a.Redis = client
		cache = redisRepo.NewFingerprintCache(client)
	}

	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	voucherRepo := postgresRepo.NewVoucherRepository(pool)
	entryRepo := postgresRepo.NewJournalEntryRepository(pool)
	annotationRepo := postgresRepo.NewAnnotationRepository(pool)
	idempotencyRepo := postgresRepo.NewIdempotencyRepository(pool)
	totpRepo := postgresRepo.NewTOTPRepository(pool)
	logRepo := postgresRepo.NewVerificationLogRepository(pool)
	reportRepo := postgresRepo.NewReportRepository(pool)
	retrier := postgresRepo.NewRetrier(logger)
	idGen := postgresRepo.NewULIDGenerator()

	a.Guard = usecase.NewIdempotencyGuard(idempotencyRepo, cache, cfg.IdempotencyWindow,
		logger.With().Str("component", "idempotency").Logger())

	gate := usecase.NewTOTPUseCase(txManager, totpRepo, logRepo, idGen, cfg.TOTPPolicy(), cfg.TOTPIssuer,
		logger.With().Str("component", "totp").Logger(), a.Metrics)
	ledger := usecase.NewLedgerUseCase(txManager, accountRepo, voucherRepo, entryRepo, a.Guard, retrier, idGen,
		cfg.LedgerConfig(), logger.With().Str("component", "ledger").Logger(), a.Metrics)
	lifecycle := usecase.NewLifecycleUseCase(txManager, accountRepo, voucherRepo, entryRepo, annotationRepo, logRepo,
		gate, retrier, idGen, logger.With().Str("component", "lifecycle").Logger(), a.Metrics)
	reports := usecase.NewReportUseCase(reportRepo, accountRepo, logRepo)

	a.Service = service.New(service.Deps{
		Accounts:       usecase.NewAccountUseCase(accountRepo, idGen, logger.With().Str("component", "accounts").Logger()),
		Ledger:         ledger,
		Lifecycle:      lifecycle,
		Secure:         usecase.NewSecureVoucherUseCase(gate, lifecycle),
		Gate:           gate,
		Reports:        reports,
		Statements:     usecase.NewEntryUseCase(accountRepo, reportRepo),
		Reconciliation: usecase.NewReconciliationUseCase(accountRepo, reportRepo),
		Issuer:         cfg.TOTPIssuer,
		Logger:         logger,
	})

	return a, nil
}

// Checks returns the readiness checks for the connected stores.
func (a *App) Checks() []handler.Check {
	checks := []handler.Check{{Name: "postgres", Pinger: a.Pool}}
	if a.Redis != nil {
		client := a.Redis
		checks = append(checks, handler.Check{
			Name:   "redis",
			Pinger: handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }),
		})
	}
	return checks
}

// Close releases the store connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Pool.Close()
}
