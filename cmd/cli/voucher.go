package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iho/verifikat/internal/adapter/service"
)

const cliUserAgent = "verifikat-cli"

// gateFlags carry either a prior verification ID or a user and code for an
// inline verification.
type gateFlags struct {
	verificationID string
	user           string
	code           string
}

func (g *gateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&g.verificationID, "verification", "", "ID of a successful TOTP verification")
	cmd.Flags().StringVar(&g.user, "user", "", "User to verify inline with --code")
	cmd.Flags().StringVar(&g.code, "code", "", "TOTP or backup code for inline verification")
}

func (g *gateFlags) credentials() *service.Credentials {
	if g.code == "" {
		return nil
	}
	return &service.Credentials{UserID: g.user, Code: g.code, ClientIP: "local", UserAgent: cliUserAgent}
}

// author defaults to the verifying user.
func (g *gateFlags) author(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return g.user
}

func (c *cli) voucherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "voucher",
		Aliases: []string{"vouchers"},
		Short:   "Record, post and maintain vouchers",
	}

	cmd.AddCommand(
		c.voucherCreateCmd(),
		c.voucherEntryCmd(),
		c.voucherVATCmd(),
		c.voucherRefCmd("post VOUCHER", "Post a balanced voucher to the accounts", backend.PostVoucher),
		c.voucherRefCmd("balance VOUCHER", "Check that debits equal credits", backend.ValidateVoucherBalance),
		c.voucherRefCmd("history VOUCHER", "Show entries, relationships, annotations and audit trail", backend.VoucherHistory),
		c.voucherListCmd(),
		c.voucherAnnotateCmd(),
		c.voucherSupersedeCmd(),
		c.voucherVoidCmd(),
	)

	return cmd
}

func (c *cli) voucherRefCmd(use, short string, op func(backend, context.Context, string) service.Result) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return op(b, ctx, args[0])
			})
		},
	}
}

func (c *cli) voucherCreateCmd() *cobra.Command {
	var req service.CreateVoucherRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a voucher with the next number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.CreateVoucher(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Description, "description", "", "Voucher description")
	f.StringVar(&req.Type, "type", "", "sales_invoice, purchase, payment, payment_reminder, adjustment, opening_balance or closing_entry")
	f.StringVar(&req.Date, "date", "", "Voucher date (YYYY-MM-DD, default today)")
	f.StringVar(&req.TotalAmount, "total", "", "Total amount")
	f.StringVar(&req.SourceType, "source-type", "", "Originating document type")
	f.StringVar(&req.SourceID, "source-id", "", "Originating document ID")
	f.StringVar(&req.Reference, "reference", "", "External reference")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (c *cli) voucherEntryCmd() *cobra.Command {
	var req service.JournalEntryRequest
	cmd := &cobra.Command{
		Use:   "entry VOUCHER ACCOUNT",
		Short: "Add a debit or credit line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Voucher, req.Account = args[0], args[1]
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.AddJournalEntry(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Debit, "debit", "", "Debit amount")
	f.StringVar(&req.Credit, "credit", "", "Credit amount")
	f.StringVar(&req.Description, "description", "", "Line description")
	f.StringVar(&req.Reference, "reference", "", "External reference")
	cmd.MarkFlagsOneRequired("debit", "credit")
	return cmd
}

func (c *cli) voucherVATCmd() *cobra.Command {
	var req service.VATEntriesRequest
	cmd := &cobra.Command{
		Use:   "vat VOUCHER",
		Short: "Split a VAT-inclusive amount into net and VAT lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Voucher = args[0]
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.AddVATEntries(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.GrossAmount, "gross", "", "Amount including VAT")
	f.StringVar(&req.VATRate, "rate", "0.25", "VAT rate as a fraction")
	f.StringVar(&req.TransactionType, "type", "expense", "expense or revenue")
	f.StringVar(&req.NetAccount, "net-account", "", "Account for the net amount")
	f.StringVar(&req.VATAccount, "vat-account", "", "Account for the VAT amount")
	f.StringVar(&req.NetDescription, "net-description", "", "Description of the net line")
	f.StringVar(&req.VATDescription, "vat-description", "", "Description of the VAT line")
	f.StringVar(&req.Reference, "reference", "", "External reference")
	_ = cmd.MarkFlagRequired("gross")
	return cmd
}

func (c *cli) voucherListCmd() *cobra.Command {
	var req service.ListVouchersRequest
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vouchers in a period with totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.ListVouchers(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.From, "from", "", "First date (YYYY-MM-DD)")
	f.StringVar(&req.To, "to", "", "Last date (YYYY-MM-DD)")
	f.BoolVar(&req.IncludeSuperseded, "include-superseded", false, "Include superseded and voided vouchers")
	f.StringVar(&req.Type, "type", "", "Only this voucher type")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (c *cli) voucherAnnotateCmd() *cobra.Command {
	var (
		req  service.AnnotationRequest
		gate gateFlags
	)
	cmd := &cobra.Command{
		Use:   "annotate VOUCHER",
		Short: "Add a CORRECTION, REVERSAL or NOTE annotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Voucher = args[0]
			req.VerificationID = gate.verificationID
			req.Credentials = gate.credentials()
			req.Author = gate.author(req.Author)
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.AddAnnotation(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Type, "type", "NOTE", "CORRECTION, REVERSAL or NOTE")
	f.StringVar(&req.Message, "message", "", "Annotation text")
	f.StringVar(&req.RelatedVoucher, "related", "", "Related voucher")
	f.StringVar(&req.Author, "author", "", "Author (default: --user)")
	gate.register(cmd)
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func (c *cli) voucherSupersedeCmd() *cobra.Command {
	var (
		req  service.SupersedeRequest
		gate gateFlags
	)
	cmd := &cobra.Command{
		Use:   "supersede ORIGINAL REPLACEMENT",
		Short: "Replace a voucher with a correcting one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Original, req.Replacement = args[0], args[1]
			req.VerificationID = gate.verificationID
			req.Credentials = gate.credentials()
			req.Author = gate.author(req.Author)
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.Supersede(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Reason, "reason", "", "Why the original is replaced")
	cmd.Flags().StringVar(&req.Author, "author", "", "Author (default: --user)")
	gate.register(cmd)
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (c *cli) voucherVoidCmd() *cobra.Command {
	var (
		req  service.VoidRequest
		gate gateFlags
	)
	cmd := &cobra.Command{
		Use:   "void VOUCHER",
		Short: "Cancel a voucher that was never posted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Voucher = args[0]
			req.VerificationID = gate.verificationID
			req.Credentials = gate.credentials()
			req.Author = gate.author(req.Author)
			return c.run(cmd, func(ctx context.Context, b backend) service.Result {
				return b.Void(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Reason, "reason", "", "Why the voucher is voided")
	cmd.Flags().StringVar(&req.Author, "author", "", "Author (default: --user)")
	gate.register(cmd)
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
