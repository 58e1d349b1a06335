package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iho/verifikat/internal/adapter/service"
)

func (c *cli) totpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totp",
		Short: "Enroll users and verify codes for protected operations",
	}

	var req service.VerifyRequest
	verifyCmd := &cobra.Command{
		Use:   "verify USER",
		Short: "Verify a code and print a single-use verification ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.UserID = args[0]
			req.ClientIP, req.UserAgent = "local", cliUserAgent
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.VerifyTOTP(ctx, req)
			})
		},
	}
	verifyCmd.Flags().StringVar(&req.Code, "code", "", "TOTP or backup code")
	verifyCmd.Flags().StringVar(&req.Operation, "operation", "", "SUPERSEDE_VOUCHER, VOID_VOUCHER or ADD_ANNOTATION")
	verifyCmd.Flags().StringVar(&req.Voucher, "voucher", "", "Bind the verification to this voucher")
	_ = verifyCmd.MarkFlagRequired("code")
	_ = verifyCmd.MarkFlagRequired("operation")

	var days int
	auditCmd := &cobra.Command{
		Use:   "audit USER",
		Short: "List recent verification attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.SecurityAudit(ctx, args[0], days)
			})
		},
	}
	auditCmd.Flags().IntVar(&days, "days", 30, "Days to look back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "setup USER",
			Short: "Enroll a user and print the secret and backup codes once",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd, func(ctx context.Context, b backend) service.Result {
					return b.SetupTOTP(ctx, args[0])
				})
			},
		},
		verifyCmd,
		&cobra.Command{
			Use:   "regenerate USER",
			Short: "Replace a user's backup codes",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd, func(ctx context.Context, b backend) service.Result {
					return b.RegenerateBackupCodes(ctx, args[0])
				})
			},
		},
		auditCmd,
	)

	return cmd
}
