package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/usecase"
)

// Amounts cross the boundary as fixed two-decimal strings.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// AccountView is an account in results.
type AccountView struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Balance   string    `json:"balance"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccountFromDomain converts a domain account to its view.
func AccountFromDomain(a *domain.Account) *AccountView {
	return &AccountView{
		ID:        a.ID,
		Number:    a.Number,
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   money(a.Balance),
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to views.
func AccountsFromDomain(accounts []*domain.Account) []*AccountView {
	result := make([]*AccountView, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// VoucherView is a voucher in results.
type VoucherView struct {
	ID            string     `json:"id"`
	Number        string     `json:"number"`
	Date          string     `json:"date"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	TotalAmount   string     `json:"total_amount"`
	SourceType    string     `json:"source_type,omitempty"`
	SourceID      string     `json:"source_id,omitempty"`
	Reference     string     `json:"reference,omitempty"`
	IsPosted      bool       `json:"is_posted"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	Status        string     `json:"status"`
	SupersededBy  string     `json:"superseded_by,omitempty"`
	PostingStatus string     `json:"posting_status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// VoucherFromDomain converts a domain voucher to its view.
func VoucherFromDomain(v *domain.Voucher) *VoucherView {
	return &VoucherView{
		ID:            v.ID,
		Number:        v.Number,
		Date:          date(v.Date),
		Description:   v.Description,
		Type:          string(v.Type),
		TotalAmount:   money(v.TotalAmount),
		SourceType:    v.SourceType,
		SourceID:      v.SourceID,
		Reference:     v.Reference,
		IsPosted:      v.IsPosted,
		PostedAt:      v.PostedAt,
		Status:        v.Status.String(),
		SupersededBy:  v.SupersededBy,
		PostingStatus: v.PostingStatus(),
		CreatedAt:     v.CreatedAt,
	}
}

// EntryView is a journal entry in results.
type EntryView struct {
	ID          string    `json:"id"`
	Account     string    `json:"account"`
	Description string    `json:"description"`
	Debit       string    `json:"debit"`
	Credit      string    `json:"credit"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EntriesFromDomain converts journal entries to views.
func EntriesFromDomain(entries []*domain.JournalEntry) []*EntryView {
	result := make([]*EntryView, len(entries))
	for i, e := range entries {
		result[i] = &EntryView{
			ID:          e.ID,
			Account:     e.AccountNumber,
			Description: e.Description,
			Debit:       money(e.Debit),
			Credit:      money(e.Credit),
			Reference:   e.Reference,
			CreatedAt:   e.CreatedAt,
		}
	}
	return result
}

// EntryResultView reports an added entry and whether it was a replay.
type EntryResultView struct {
	EntryID   string `json:"entry_id"`
	Duplicate bool   `json:"duplicate"`
}

// VATResultView reports a VAT split.
type VATResultView struct {
	NetAmount       string            `json:"net_amount"`
	VATAmount       string            `json:"vat_amount"`
	VATTheoretical  string            `json:"vat_theoretical"`
	RoundingDiff    string            `json:"rounding_diff"`
	HasRounding     bool              `json:"has_rounding"`
	PostedNetAmount string            `json:"posted_net_amount"`
	RoundingAmount  string            `json:"rounding_amount"`
	Entries         []EntryResultView `json:"entries"`
}

// VATResultFromUseCase converts a VAT split result to its view.
func VATResultFromUseCase(r *usecase.VATResult) *VATResultView {
	view := &VATResultView{
		NetAmount:       money(r.NetAmount),
		VATAmount:       money(r.VATAmount),
		VATTheoretical:  r.VATTheoretical.StringFixed(3),
		RoundingDiff:    r.RoundingDiff.StringFixed(3),
		HasRounding:     r.HasRounding,
		PostedNetAmount: money(r.PostedNetAmount),
		RoundingAmount:  money(r.RoundingAmount),
		Entries:         make([]EntryResultView, len(r.Entries)),
	}
	for i, e := range r.Entries {
		view.Entries[i] = EntryResultView{EntryID: e.EntryID, Duplicate: e.Duplicate}
	}
	return view
}

// BalanceView is the debit/credit check of a voucher.
type BalanceView struct {
	TotalDebit  string `json:"total_debit"`
	TotalCredit string `json:"total_credit"`
	Difference  string `json:"difference"`
	EntryCount  int    `json:"entry_count"`
	IsBalanced  bool   `json:"is_balanced"`
}

// BalanceFromDomain converts a balance check to its view.
func BalanceFromDomain(b domain.BalanceCheck) BalanceView {
	return BalanceView{
		TotalDebit:  money(b.TotalDebit),
		TotalCredit: money(b.TotalCredit),
		Difference:  money(b.Difference),
		EntryCount:  b.EntryCount,
		IsBalanced:  b.IsBalanced(),
	}
}

// AnnotationView is an annotation in results.
type AnnotationView struct {
	ID                 string    `json:"id"`
	VoucherID          string    `json:"voucher_id"`
	Type               string    `json:"type"`
	Message            string    `json:"message"`
	RelatedVoucherID   string    `json:"related_voucher_id,omitempty"`
	Author             string    `json:"author"`
	SecurityVerified   bool      `json:"security_verified"`
	TOTPVerificationID string    `json:"totp_verification_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// AnnotationFromDomain converts an annotation to its view.
func AnnotationFromDomain(a *domain.Annotation) *AnnotationView {
	return &AnnotationView{
		ID:                 a.ID,
		VoucherID:          a.VoucherID,
		Type:               string(a.Type),
		Message:            a.Message,
		RelatedVoucherID:   a.RelatedVoucherID,
		Author:             a.Author,
		SecurityVerified:   a.SecurityVerified,
		TOTPVerificationID: a.TOTPVerificationID,
		CreatedAt:          a.CreatedAt,
	}
}

// VerificationLogView is one gate attempt. The code hash is never exposed.
type VerificationLogView struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Success        bool       `json:"success"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	Operation      string     `json:"operation"`
	VoucherID      string     `json:"voucher_id,omitempty"`
	IPAddress      string     `json:"ip_address,omitempty"`
	UserAgent      string     `json:"user_agent,omitempty"`
	BackupCodeUsed bool       `json:"backup_code_used"`
	ConsumedAt     *time.Time `json:"consumed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// VerificationLogsFromDomain converts gate log rows to views.
func VerificationLogsFromDomain(logs []*domain.VerificationLog) []*VerificationLogView {
	result := make([]*VerificationLogView, len(logs))
	for i, l := range logs {
		result[i] = &VerificationLogView{
			ID:             l.ID,
			UserID:         l.UserID,
			Success:        l.Success,
			FailureReason:  l.FailureReason,
			Operation:      string(l.OperationType),
			VoucherID:      l.VoucherID,
			IPAddress:      l.IPAddress,
			UserAgent:      l.UserAgent,
			BackupCodeUsed: l.BackupCodeUsed,
			ConsumedAt:     l.ConsumedAt,
			CreatedAt:      l.CreatedAt,
		}
	}
	return result
}

// VerificationView is a successful verification the caller redeems later.
type VerificationView struct {
	VerificationID string    `json:"verification_id"`
	Operation      string    `json:"operation"`
	VoucherID      string    `json:"voucher_id,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
	BackupCodeUsed bool      `json:"backup_code_used"`
}

// EnrollmentView is shown once at TOTP setup.
type EnrollmentView struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}

// VoucherRefView identifies a related voucher.
type VoucherRefView struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// HistoryView is the audit view of one voucher.
type HistoryView struct {
	Voucher         *VoucherView           `json:"voucher"`
	Entries         []*EntryView           `json:"entries"`
	Balance         BalanceView            `json:"balance"`
	SupersededBy    *VoucherRefView        `json:"superseded_by,omitempty"`
	Supersedes      []VoucherRefView       `json:"supersedes,omitempty"`
	RelatedVouchers []VoucherRefView       `json:"related_vouchers,omitempty"`
	Annotations     []*AnnotationView      `json:"annotations"`
	SecurityAudit   []*VerificationLogView `json:"security_audit"`
}

func refs(in []usecase.VoucherRef) []VoucherRefView {
	if len(in) == 0 {
		return nil
	}
	out := make([]VoucherRefView, len(in))
	for i, r := range in {
		out[i] = VoucherRefView{ID: r.ID, Number: r.Number}
	}
	return out
}

// HistoryFromUseCase converts a voucher history to its view.
func HistoryFromUseCase(h *usecase.VoucherHistory) *HistoryView {
	view := &HistoryView{
		Voucher:         VoucherFromDomain(h.Voucher),
		Entries:         EntriesFromDomain(h.Entries),
		Balance:         BalanceFromDomain(h.Balance),
		Supersedes:      refs(h.Relationships.Supersedes),
		RelatedVouchers: refs(h.Relationships.RelatedVouchers),
		Annotations:     make([]*AnnotationView, len(h.Annotations)),
		SecurityAudit:   VerificationLogsFromDomain(h.SecurityAudit),
	}
	if by := h.Relationships.SupersededBy; by != nil {
		view.SupersededBy = &VoucherRefView{ID: by.ID, Number: by.Number}
	}
	for i, a := range h.Annotations {
		view.Annotations[i] = AnnotationFromDomain(a)
	}
	return view
}

// ListingItemView is one voucher in a period listing.
type ListingItemView struct {
	*VoucherView
	TotalDebit  string `json:"total_debit"`
	TotalCredit string `json:"total_credit"`
	EntryCount  int    `json:"entry_count"`
	IsBalanced  bool   `json:"is_balanced"`
}

// TypeSummaryView aggregates one voucher type.
type TypeSummaryView struct {
	Count  int    `json:"count"`
	Amount string `json:"amount"`
}

// ListingView is a period listing with aggregates.
type ListingView struct {
	Vouchers    []*ListingItemView         `json:"vouchers"`
	Total       int                        `json:"total"`
	TotalAmount string                     `json:"total_amount"`
	Posted      int                        `json:"posted"`
	Pending     int                        `json:"pending"`
	Superseded  int                        `json:"superseded"`
	Voided      int                        `json:"voided"`
	Unbalanced  int                        `json:"unbalanced"`
	ByType      map[string]TypeSummaryView `json:"by_type"`
}

// ListingFromUseCase converts a period listing to its view.
func ListingFromUseCase(l *usecase.PeriodListing) *ListingView {
	s := l.Summary
	view := &ListingView{
		Vouchers:    make([]*ListingItemView, len(l.Vouchers)),
		Total:       s.Total,
		TotalAmount: money(s.TotalAmount),
		Posted:      s.Posted,
		Pending:     s.Pending,
		Superseded:  s.Superseded,
		Voided:      s.Voided,
		Unbalanced:  s.Unbalanced,
		ByType:      make(map[string]TypeSummaryView, len(s.ByType)),
	}
	for i, item := range l.Vouchers {
		view.Vouchers[i] = &ListingItemView{
			VoucherView: VoucherFromDomain(item.Voucher),
			TotalDebit:  money(item.TotalDebit),
			TotalCredit: money(item.TotalCredit),
			EntryCount:  item.EntryCount,
			IsBalanced:  item.IsBalanced,
		}
	}
	for t, sum := range s.ByType {
		view.ByType[string(t)] = TypeSummaryView{Count: sum.Count, Amount: money(sum.Amount)}
	}
	return view
}

// StatementLineView is one account on a financial statement.
type StatementLineView struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Amount  string `json:"amount"`
}

func lines(in []domain.StatementLine) []StatementLineView {
	out := make([]StatementLineView, len(in))
	for i, l := range in {
		out[i] = StatementLineView{Account: l.AccountNumber, Name: l.AccountName, Amount: money(l.Amount)}
	}
	return out
}

// MetadataView carries voucher counts behind a report.
type MetadataView struct {
	TotalVouchers               int       `json:"total_vouchers"`
	ActiveVouchers              int       `json:"active_vouchers"`
	SupersededVouchers          int       `json:"superseded_vouchers"`
	SecurityProtectedOperations int       `json:"security_protected_operations"`
	GeneratedAt                 time.Time `json:"generated_at"`
}

// TrialBalanceRowView is one account line of a trial balance.
type TrialBalanceRowView struct {
	Account       string `json:"account"`
	Name          string `json:"name"`
	OpeningDebit  string `json:"opening_debit"`
	OpeningCredit string `json:"opening_credit"`
	PeriodDebit   string `json:"period_debit"`
	PeriodCredit  string `json:"period_credit"`
	ClosingDebit  string `json:"closing_debit"`
	ClosingCredit string `json:"closing_credit"`
}

// TrialBalanceView is a trial balance with totals.
type TrialBalanceView struct {
	From               string                `json:"from"`
	To                 string                `json:"to"`
	Rows               []TrialBalanceRowView `json:"rows"`
	TotalOpeningDebit  string                `json:"total_opening_debit"`
	TotalOpeningCredit string                `json:"total_opening_credit"`
	TotalPeriodDebit   string                `json:"total_period_debit"`
	TotalPeriodCredit  string                `json:"total_period_credit"`
	TotalClosingDebit  string                `json:"total_closing_debit"`
	TotalClosingCredit string                `json:"total_closing_credit"`
	IsBalanced         bool                  `json:"is_balanced"`
	Metadata           MetadataView          `json:"metadata"`
}

// TrialBalanceFromDomain converts a trial balance to its view.
func TrialBalanceFromDomain(tb *domain.TrialBalance) *TrialBalanceView {
	view := &TrialBalanceView{
		From:               date(tb.From),
		To:                 date(tb.To),
		Rows:               make([]TrialBalanceRowView, len(tb.Rows)),
		TotalOpeningDebit:  money(tb.TotalOpeningDebit),
		TotalOpeningCredit: money(tb.TotalOpeningCredit),
		TotalPeriodDebit:   money(tb.TotalPeriodDebit),
		TotalPeriodCredit:  money(tb.TotalPeriodCredit),
		TotalClosingDebit:  money(tb.TotalClosingDebit),
		TotalClosingCredit: money(tb.TotalClosingCredit),
		IsBalanced:         tb.IsBalanced(),
		Metadata:           MetadataView(tb.Metadata),
	}
	for i, r := range tb.Rows {
		view.Rows[i] = TrialBalanceRowView{
			Account:       r.AccountNumber,
			Name:          r.AccountName,
			OpeningDebit:  money(r.OpeningDebit),
			OpeningCredit: money(r.OpeningCredit),
			PeriodDebit:   money(r.PeriodDebit),
			PeriodCredit:  money(r.PeriodCredit),
			ClosingDebit:  money(r.ClosingDebit),
			ClosingCredit: money(r.ClosingCredit),
		}
	}
	return view
}

// IncomeStatementView is the result for a period.
type IncomeStatementView struct {
	From          string              `json:"from"`
	To            string              `json:"to"`
	Revenue       []StatementLineView `json:"revenue"`
	Expenses      []StatementLineView `json:"expenses"`
	TotalRevenue  string              `json:"total_revenue"`
	TotalExpenses string              `json:"total_expenses"`
	NetResult     string              `json:"net_result"`
}

// IncomeStatementFromDomain converts an income statement to its view.
func IncomeStatementFromDomain(s *domain.IncomeStatement) *IncomeStatementView {
	return &IncomeStatementView{
		From:          date(s.From),
		To:            date(s.To),
		Revenue:       lines(s.Revenue),
		Expenses:      lines(s.Expenses),
		TotalRevenue:  money(s.TotalRevenue),
		TotalExpenses: money(s.TotalExpenses),
		NetResult:     money(s.NetResult),
	}
}

// BalanceSheetView shows closing balances as of a date.
type BalanceSheetView struct {
	AsOf             string              `json:"as_of"`
	Assets           []StatementLineView `json:"assets"`
	Liabilities      []StatementLineView `json:"liabilities"`
	Equity           []StatementLineView `json:"equity"`
	TotalAssets      string              `json:"total_assets"`
	TotalLiabilities string              `json:"total_liabilities"`
	TotalEquity      string              `json:"total_equity"`
	YearResult       string              `json:"year_result"`
	IsBalanced       bool                `json:"is_balanced"`
}

// BalanceSheetFromDomain converts a balance sheet to its view.
func BalanceSheetFromDomain(b *domain.BalanceSheet) *BalanceSheetView {
	return &BalanceSheetView{
		AsOf:             date(b.AsOf),
		Assets:           lines(b.Assets),
		Liabilities:      lines(b.Liabilities),
		Equity:           lines(b.Equity),
		TotalAssets:      money(b.TotalAssets),
		TotalLiabilities: money(b.TotalLiabilities),
		TotalEquity:      money(b.TotalEquity),
		YearResult:       money(b.YearResult),
		IsBalanced:       b.IsBalanced(),
	}
}

// VATReportView summarises output and input VAT.
type VATReportView struct {
	From       string              `json:"from"`
	To         string              `json:"to"`
	OutputVAT  []StatementLineView `json:"output_vat"`
	InputVAT   []StatementLineView `json:"input_vat"`
	TotalOut   string              `json:"total_output_vat"`
	TotalIn    string              `json:"total_input_vat"`
	VATPayable string              `json:"vat_payable"`
}

// VATReportFromDomain converts a VAT report to its view.
func VATReportFromDomain(r *domain.VATReport) *VATReportView {
	return &VATReportView{
		From:       date(r.From),
		To:         date(r.To),
		OutputVAT:  lines(r.OutputVAT),
		InputVAT:   lines(r.InputVAT),
		TotalOut:   money(r.TotalOut),
		TotalIn:    money(r.TotalIn),
		VATPayable: money(r.VATPayable),
	}
}

// StatementEntryView is one posting with its running balance.
type StatementEntryView struct {
	Voucher     string `json:"voucher"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Balance     string `json:"balance"`
}

// AccountStatementView is the general ledger of one account.
type AccountStatementView struct {
	Account        string               `json:"account"`
	Name           string               `json:"name"`
	From           string               `json:"from"`
	To             string               `json:"to"`
	OpeningBalance string               `json:"opening_balance"`
	Lines          []StatementEntryView `json:"lines"`
	TotalDebit     string               `json:"total_debit"`
	TotalCredit    string               `json:"total_credit"`
	ClosingBalance string               `json:"closing_balance"`
}

// AccountStatementFromDomain converts an account statement to its view.
func AccountStatementFromDomain(s *domain.AccountStatement) *AccountStatementView {
	view := &AccountStatementView{
		Account:        s.AccountNumber,
		Name:           s.AccountName,
		From:           date(s.From),
		To:             date(s.To),
		OpeningBalance: money(s.OpeningBalance),
		Lines:          make([]StatementEntryView, len(s.Lines)),
		TotalDebit:     money(s.TotalDebit),
		TotalCredit:    money(s.TotalCredit),
		ClosingBalance: money(s.ClosingBalance),
	}
	for i, l := range s.Lines {
		view.Lines[i] = StatementEntryView{
			Voucher:     l.VoucherNumber,
			Date:        date(l.VoucherDate),
			Description: l.Description,
			Debit:       money(l.Debit),
			Credit:      money(l.Credit),
			Balance:     money(l.Balance),
		}
	}
	return view
}

// DiscrepancyView is an account whose stored balance disagrees with its postings.
type DiscrepancyView struct {
	Account    string `json:"account"`
	Recorded   string `json:"recorded"`
	Calculated string `json:"calculated"`
	Difference string `json:"difference"`
}

// ReconciliationView is the outcome of a reconciliation run.
type ReconciliationView struct {
	TotalAccounts      int               `json:"total_accounts"`
	ReconciledAccounts int               `json:"reconciled_accounts"`
	Discrepancies      []DiscrepancyView `json:"discrepancies"`
	TotalDebits        string            `json:"total_debits"`
	TotalCredits       string            `json:"total_credits"`
	LedgerConsistent   bool              `json:"ledger_consistent"`
	CheckedAt          time.Time         `json:"checked_at"`
}

// ReconciliationFromUseCase converts a reconciliation report to its view.
func ReconciliationFromUseCase(r *usecase.ReconciliationReport) *ReconciliationView {
	view := &ReconciliationView{
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		Discrepancies:      make([]DiscrepancyView, len(r.Discrepancies)),
		TotalDebits:        money(r.TotalDebits),
		TotalCredits:       money(r.TotalCredits),
		LedgerConsistent:   r.LedgerConsistent,
		CheckedAt:          r.CheckedAt,
	}
	for i, d := range r.Discrepancies {
		view.Discrepancies[i] = DiscrepancyView{
			Account:    d.AccountNumber,
			Recorded:   money(d.RecordedBalance),
			Calculated: money(d.CalculatedBalance),
			Difference: money(d.Difference),
		}
	}
	return view
}
