package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/verifikat/internal/adapter/service"
	"github.com/iho/verifikat/internal/app"
	"github.com/iho/verifikat/internal/infrastructure/config"
	"github.com/iho/verifikat/internal/infrastructure/logger"
)

// backend is the service boundary the commands call.
type backend interface {
	CreateAccount(ctx context.Context, req service.CreateAccountRequest) service.Result
	GetAccount(ctx context.Context, number string) service.Result
	ListAccounts(ctx context.Context, includeInactive bool) service.Result
	DeactivateAccount(ctx context.Context, number string) service.Result
	ReactivateAccount(ctx context.Context, number string) service.Result

	CreateVoucher(ctx context.Context, req service.CreateVoucherRequest) service.Result
	AddJournalEntry(ctx context.Context, req service.JournalEntryRequest) service.Result
	AddVATEntries(ctx context.Context, req service.VATEntriesRequest) service.Result
	PostVoucher(ctx context.Context, ref string) service.Result
	ValidateVoucherBalance(ctx context.Context, ref string) service.Result
	VoucherHistory(ctx context.Context, ref string) service.Result
	ListVouchers(ctx context.Context, req service.ListVouchersRequest) service.Result
	AddAnnotation(ctx context.Context, req service.AnnotationRequest) service.Result
	Supersede(ctx context.Context, req service.SupersedeRequest) service.Result
	Void(ctx context.Context, req service.VoidRequest) service.Result

	SetupTOTP(ctx context.Context, userID string) service.Result
	VerifyTOTP(ctx context.Context, req service.VerifyRequest) service.Result
	RegenerateBackupCodes(ctx context.Context, userID string) service.Result
	SecurityAudit(ctx context.Context, userID string, days int) service.Result

	TrialBalance(ctx context.Context, req service.PeriodRequest) service.Result
	IncomeStatement(ctx context.Context, req service.PeriodRequest) service.Result
	BalanceSheet(ctx context.Context, asOf string) service.Result
	VATReport(ctx context.Context, req service.PeriodRequest) service.Result
	AccountStatement(ctx context.Context, number string, req service.PeriodRequest) service.Result
	Reconcile(ctx context.Context) service.Result
}

// openBackend wires the ledger against the configured database.
var openBackend = func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (backend, func(), error) {
	a, err := app.New(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	return a.Service, a.Close, nil
}

// errFailed marks a command whose result was already printed.
var errFailed = errors.New("operation failed")

type cli struct {
	out     io.Writer
	timeout time.Duration
	cfg     *config.Config
	log     zerolog.Logger
	backend backend
	closeFn func()
}

func main() {
	c := &cli{out: os.Stdout}
	err := c.rootCmd().Execute()
	c.close()
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "verifikat",
		Short:         "Verifikat ledger CLI",
		Long:          `Operator interface for the Verifikat double-entry ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg != nil {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			c.cfg = cfg
			c.log = logger.NewWithWriter(logger.Config{Level: cfg.LogLevel, Format: "console"}, os.Stderr)
			return nil
		},
	}

	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "Operation timeout")

	rootCmd.AddCommand(
		c.migrateCmd(),
		c.accountsCmd(),
		c.voucherCmd(),
		c.totpCmd(),
		c.reportCmd(),
	)

	return rootCmd
}

// call executes fn against the backend, opening it on first use.
func (c *cli) call(cmd *cobra.Command, fn func(ctx context.Context, b backend) service.Result) (service.Result, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()

	if c.backend == nil {
		b, closeFn, err := openBackend(ctx, c.cfg, c.log)
		if err != nil {
			return service.Result{}, err
		}
		c.backend, c.closeFn = b, closeFn
	}

	return fn(ctx, c.backend), nil
}

// run executes fn and prints its result as JSON.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, b backend) service.Result) error {
	res, err := c.call(cmd, fn)
	if err != nil {
		return err
	}
	c.printJSON(res)
	if !res.Success {
		return errFailed
	}
	return nil
}

func (c *cli) close() {
	if c.closeFn != nil {
		c.closeFn()
		c.closeFn = nil
	}
}

func (c *cli) printJSON(v any) {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
