package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iho/verifikat/internal/adapter/service"
)

func (c *cli) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"reports"},
		Short:   "Financial statements and checks",
	}

	cmd.AddCommand(
		c.periodCmd("trial-balance", "Opening, period and closing totals per account", backend.TrialBalance),
		c.periodCmd("income", "Revenue, expenses and result", backend.IncomeStatement),
		c.periodCmd("vat", "Output and input VAT", backend.VATReport),
		c.balanceSheetCmd(),
		c.statementCmd(),
		&cobra.Command{
			Use:   "reconcile",
			Short: "Compare stored balances with posted entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd, func(ctx context.Context, b backend) service.Result {
					return b.Reconcile(ctx)
				})
			},
		},
	)

	return cmd
}

func registerPeriod(cmd *cobra.Command, p *service.PeriodRequest) {
	cmd.Flags().StringVar(&p.From, "from", "", "First date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.To, "to", "", "Last date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

func (c *cli) periodCmd(use, short string, op func(backend, context.Context, service.PeriodRequest) service.Result) *cobra.Command {
	var p service.PeriodRequest
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return op(b, ctx, p)
			})
		},
	}
	registerPeriod(cmd, &p)
	return cmd
}

func (c *cli) balanceSheetCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "balance-sheet",
		Short: "Assets, liabilities and equity as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.BalanceSheet(ctx, asOf)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Balance date (YYYY-MM-DD, default today)")
	return cmd
}

func (c *cli) statementCmd() *cobra.Command {
	var p service.PeriodRequest
	cmd := &cobra.Command{
		Use:   "statement ACCOUNT",
		Short: "Postings on one account with a running balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.AccountStatement(ctx, args[0], p)
			})
		},
	}
	registerPeriod(cmd, &p)
	return cmd
}
