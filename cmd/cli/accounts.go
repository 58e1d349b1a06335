package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iho/verifikat/internal/adapter/service"
)

func (c *cli) accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Manage the chart of accounts",
	}

	var (
		includeInactive bool
		table           bool
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !table {
				return c.run(cmd, func(ctx context.Context, b backend) service.Result {
					return b.ListAccounts(ctx, includeInactive)
				})
			}
			return c.printAccountTable(cmd, includeInactive)
		},
	}
	listCmd.Flags().BoolVar(&includeInactive, "all", false, "Include inactive accounts")
	listCmd.Flags().BoolVar(&table, "table", false, "Print a table instead of JSON")

	var accountType string
	createCmd := &cobra.Command{
		Use:   "create NUMBER NAME",
		Short: "Add an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.CreateAccount(ctx, service.CreateAccountRequest{Number: args[0], Name: args[1], Type: accountType})
			})
		},
	}
	createCmd.Flags().StringVar(&accountType, "type", "", "asset, liability, equity, income or expense")
	_ = createCmd.MarkFlagRequired("type")

	cmd.AddCommand(
		listCmd,
		createCmd,
		&cobra.Command{
			Use:   "show NUMBER",
			Short: "Show one account with its balance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd, func(ctx context.Context, b backend) service.Result {
					return b.GetAccount(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "deactivate NUMBER",
			Short: "Block new postings to an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd, func(ctx context.Context, b backend) service.Result {
					return b.DeactivateAccount(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "reactivate NUMBER",
			Short: "Reopen an account for postings",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd, func(ctx context.Context, b backend) service.Result {
					return b.ReactivateAccount(ctx, args[0])
				})
			},
		},
	)

	return cmd
}

func (c *cli) printAccountTable(cmd *cobra.Command, includeInactive bool) error {
	res, err := c.call(cmd, func(ctx context.Context, b backend) service.Result {
		return b.ListAccounts(ctx, includeInactive)
	})
	if err != nil {
		return err
	}
	if !res.Success {
		c.printJSON(res)
		return errFailed
	}

	accounts, _ := res.Data.([]*service.AccountView)
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tNAME\tTYPE\tBALANCE\tACTIVE")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", a.Number, truncate(a.Name, 32), a.Type, a.Balance, a.IsActive)
	}
	return w.Flush()
}
