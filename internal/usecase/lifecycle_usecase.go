package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/verifikat/internal/domain"
	"github.com/iho/verifikat/internal/infrastructure/metrics"
)

// lifecycleToken is the process's only authority to write SUPERSEDED, VOID
// and CREATED annotations.
var lifecycleToken = domain.IssueLifecycleToken()

// VerificationConsumer redeems a gate verification inside the transaction of
// the operation it authorises.
type VerificationConsumer interface {
	ConsumeVerification(ctx context.Context, tx Transaction, id string, op domain.OperationType, voucherID string) (*domain.VerificationLog, error)
}

// LifecycleUseCase moves vouchers to SUPERSEDED or VOID and keeps the
// append-only annotation log.
type LifecycleUseCase struct {
	txManager      TransactionManager
	accountRepo    AccountRepository
	voucherRepo    VoucherRepository
	entryRepo      JournalEntryRepository
	annotationRepo AnnotationRepository
	logRepo        VerificationLogRepository
	verifier       VerificationConsumer
	retrier        Retrier
	idGen          IDGenerator
	logger         zerolog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewLifecycleUseCase creates a new LifecycleUseCase. retrier and m may be nil.
func NewLifecycleUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	voucherRepo VoucherRepository,
	entryRepo JournalEntryRepository,
	annotationRepo AnnotationRepository,
	logRepo VerificationLogRepository,
	verifier VerificationConsumer,
	retrier Retrier,
	idGen IDGenerator,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *LifecycleUseCase {
	return &LifecycleUseCase{
		txManager:      txManager,
		accountRepo:    accountRepo,
		voucherRepo:    voucherRepo,
		entryRepo:      entryRepo,
		annotationRepo: annotationRepo,
		logRepo:        logRepo,
		verifier:       verifier,
		retrier:        retrier,
		idGen:          idGen,
		logger:         logger,
		metrics:        m,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (uc *LifecycleUseCase) SetClock(now func() time.Time) {
	uc.now = now
}

// AddAnnotationInput represents a caller-written annotation.
type AddAnnotationInput struct {
	VoucherID        string
	Type             domain.PublicAnnotationType
	Message          string
	RelatedVoucherID string
	Author           string
	VerificationID   string
}

// SupersedeInput replaces a voucher with another.
type SupersedeInput struct {
	OriginalID     string
	ReplacementID  string
	Reason         string
	Author         string
	VerificationID string
}

// VoidInput cancels a never-posted voucher.
type VoidInput struct {
	VoucherID      string
	Reason         string
	Author         string
	VerificationID string
}

// VoucherRef identifies a related voucher.
type VoucherRef struct {
	ID     string
	Number string
}

// Relationships are the single-hop links around a voucher.
type Relationships struct {
	SupersededBy    *VoucherRef
	Supersedes      []VoucherRef
	RelatedVouchers []VoucherRef
}

// VoucherHistory is the full audit view of one voucher.
type VoucherHistory struct {
	Voucher       *domain.Voucher
	Entries       []*domain.JournalEntry
	Balance       domain.BalanceCheck
	Relationships Relationships
	Annotations   []*domain.Annotation
	SecurityAudit []*domain.VerificationLog
}

// VoucherFilter selects vouchers for a period listing.
type VoucherFilter struct {
	From              time.Time
	To                time.Time
	IncludeSuperseded bool
	Type              domain.VoucherType
}

// VoucherListItem is one voucher with its entry aggregates.
type VoucherListItem struct {
	Voucher       *domain.Voucher
	TotalDebit    decimal.Decimal
	TotalCredit   decimal.Decimal
	EntryCount    int
	IsBalanced    bool
	PostingStatus string
}

// TypeSummary aggregates one voucher type.
type TypeSummary struct {
	Count  int
	Amount decimal.Decimal
}

// PeriodSummary aggregates a listing.
type PeriodSummary struct {
	Total       int
	TotalAmount decimal.Decimal
	Posted      int
	Pending     int
	Superseded  int
	Voided      int
	Unbalanced  int
	ByType      map[domain.VoucherType]TypeSummary
}

// PeriodListing is the month-end review result.
type PeriodListing struct {
	Vouchers []*VoucherListItem
	Summary  PeriodSummary
}

// AddAnnotation appends a CORRECTION, REVERSAL or NOTE annotation. A
// successful ADD_ANNOTATION verification must be supplied and is consumed.
func (uc *LifecycleUseCase) AddAnnotation(ctx context.Context, input AddAnnotationInput) (*domain.Annotation, error) {
	if input.Type.Type() == "" {
		return nil, fmt.Errorf("%w: annotation type not set", domain.ErrSecurityRestrictedType)
	}
	if err := domain.ValidateMessage(input.Message, domain.MaxAnnotationMessageLength); err != nil {
		return nil, err
	}
	if input.VerificationID == "" {
		return nil, domain.ErrVerificationRequired
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	voucher, err := uc.voucherRepo.GetByIDForUpdate(txCtx, tx, input.VoucherID)
	if err != nil {
		return nil, err
	}
	if input.RelatedVoucherID != "" {
		if _, err := uc.voucherRepo.GetByID(txCtx, input.RelatedVoucherID); err != nil {
			return nil, fmt.Errorf("related voucher: %w", err)
		}
	}

	if _, err := uc.verifier.ConsumeVerification(txCtx, tx, input.VerificationID, domain.OperationAddAnnotation, voucher.ID); err != nil {
		return nil, err
	}

	annotation, err := domain.NewPublicAnnotation(
		uc.idGen.Generate(), voucher.ID, input.Type, input.Message,
		input.RelatedVoucherID, authorOrSystem(input.Author), input.VerificationID, uc.now(),
	)
	if err != nil {
		return nil, err
	}
	if err := uc.annotationRepo.Create(txCtx, tx, annotation); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AnnotationsCreated.WithLabelValues(string(annotation.Type)).Inc()
	}

	return annotation, nil
}

// Supersede marks original as replaced by replacement. If original was posted
// its balance effect is reversed in the same transaction, so account balances
// keep reflecting only active postings.
func (uc *LifecycleUseCase) Supersede(ctx context.Context, input SupersedeInput) (*domain.Voucher, error) {
	reason := strings.TrimSpace(input.Reason)
	if err := domain.ValidateMessage(reason, domain.MaxLifecycleReasonLength); err != nil {
		return nil, err
	}
	if input.OriginalID == input.ReplacementID {
		return nil, domain.ErrSameVoucher
	}
	if input.VerificationID == "" {
		return nil, domain.ErrVerificationRequired
	}

	var superseded *domain.Voucher
	err := runWithRetry(ctx, uc.retrier, func() error {
		v, err := uc.supersede(ctx, input, reason)
		if err != nil {
			return err
		}
		superseded = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.VouchersSuperseded.Inc()
	}
	uc.logger.Info().
		Str("voucher_id", superseded.ID).
		Str("superseded_by", superseded.SupersededBy).
		Str("verification_id", input.VerificationID).
		Msg("voucher superseded")

	return superseded, nil
}

func (uc *LifecycleUseCase) supersede(ctx context.Context, input SupersedeInput, reason string) (*domain.Voucher, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Lock in id order so concurrent supersessions cannot deadlock.
	locked := make(map[string]*domain.Voucher, 2)
	ids := []string{input.OriginalID, input.ReplacementID}
	sort.Strings(ids)
	for _, id := range ids {
		v, err := uc.voucherRepo.GetByIDForUpdate(txCtx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = v
	}
	original, replacement := locked[input.OriginalID], locked[input.ReplacementID]

	if err := original.CanSupersede(); err != nil {
		return nil, err
	}
	if !replacement.IsActive() {
		return nil, fmt.Errorf("%w: replacement %s is %s", domain.ErrVoucherNotActive, replacement.Number, replacement.Status)
	}

	if _, err := uc.verifier.ConsumeVerification(txCtx, tx, input.VerificationID, domain.OperationSupersedeVoucher, original.ID); err != nil {
		return nil, err
	}

	now := uc.now()
	if original.IsPosted {
		entries, err := uc.entryRepo.ListByVoucherTx(txCtx, tx, original.ID)
		if err != nil {
			return nil, err
		}
		if err := applyMovements(txCtx, tx, uc.accountRepo, entries, true, now); err != nil {
			return nil, err
		}
	}

	if err := uc.voucherRepo.UpdateStatus(txCtx, tx, original.ID, domain.VoucherStatusSuperseded, replacement.ID, now); err != nil {
		return nil, err
	}

	author := authorOrSystem(input.Author)
	superseded, err := newLifecycleAnnotation(uc.idGen.Generate(), original.ID, domain.AnnotationSuperseded,
		domain.SupersededMessage(replacement.Number, reason), replacement.ID, author, input.VerificationID, now)
	if err != nil {
		return nil, err
	}
	created, err := newLifecycleAnnotation(uc.idGen.Generate(), replacement.ID, domain.AnnotationCreated,
		domain.CreatedMessage(original.Number, reason), original.ID, author, input.VerificationID, now)
	if err != nil {
		return nil, err
	}
	annotations := []*domain.Annotation{superseded, created}
	for _, a := range annotations {
		if err := uc.annotationRepo.Create(txCtx, tx, a); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	original.Status = domain.VoucherStatusSuperseded
	original.SupersededBy = replacement.ID
	original.UpdatedAt = now

	return original, nil
}

// Void cancels a voucher that was never posted.
func (uc *LifecycleUseCase) Void(ctx context.Context, input VoidInput) (*domain.Voucher, error) {
	reason := strings.TrimSpace(input.Reason)
	if err := domain.ValidateMessage(reason, domain.MaxLifecycleReasonLength); err != nil {
		return nil, err
	}
	if input.VerificationID == "" {
		return nil, domain.ErrVerificationRequired
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	voucher, err := uc.voucherRepo.GetByIDForUpdate(txCtx, tx, input.VoucherID)
	if err != nil {
		return nil, err
	}
	if err := voucher.CanVoid(); err != nil {
		return nil, err
	}

	if _, err := uc.verifier.ConsumeVerification(txCtx, tx, input.VerificationID, domain.OperationVoidVoucher, voucher.ID); err != nil {
		return nil, err
	}

	now := uc.now()
	if err := uc.voucherRepo.UpdateStatus(txCtx, tx, voucher.ID, domain.VoucherStatusVoid, "", now); err != nil {
		return nil, err
	}

	annotation, err := newLifecycleAnnotation(uc.idGen.Generate(), voucher.ID, domain.AnnotationVoid,
		domain.VoidMessage(reason), "", authorOrSystem(input.Author), input.VerificationID, now)
	if err != nil {
		return nil, err
	}
	if err := uc.annotationRepo.Create(txCtx, tx, annotation); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	voucher.Status = domain.VoucherStatusVoid
	voucher.UpdatedAt = now

	if uc.metrics != nil {
		uc.metrics.VouchersVoided.Inc()
	}
	uc.logger.Info().Str("voucher_id", voucher.ID).Str("verification_id", input.VerificationID).Msg("voucher voided")

	return voucher, nil
}

// History joins a voucher with its entries, annotations (newest first),
// single-hop relationships and the gate log rows that concern it.
func (uc *LifecycleUseCase) History(ctx context.Context, ref string) (*VoucherHistory, error) {
	voucher, err := resolveVoucher(ctx, uc.voucherRepo, ref)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByVoucher(ctx, voucher.ID)
	if err != nil {
		return nil, err
	}

	annotations, err := uc.annotationRepo.ListByVoucher(ctx, voucher.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(annotations, func(i, j int) bool {
		return annotations[i].CreatedAt.After(annotations[j].CreatedAt)
	})

	relationships, err := uc.relationships(ctx, voucher, annotations)
	if err != nil {
		return nil, err
	}

	audit, err := uc.securityAudit(ctx, voucher.ID, annotations)
	if err != nil {
		return nil, err
	}

	return &VoucherHistory{
		Voucher:       voucher,
		Entries:       entries,
		Balance:       domain.CheckBalance(voucher.ID, entries),
		Relationships: relationships,
		Annotations:   annotations,
		SecurityAudit: audit,
	}, nil
}

// ListByPeriod lists vouchers dated within [From, To] with balance
// diagnostics and period aggregates.
func (uc *LifecycleUseCase) ListByPeriod(ctx context.Context, filter VoucherFilter) (*PeriodListing, error) {
	if !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, fmt.Errorf("%w: period end before start", domain.ErrInvalidEntry)
	}
	if filter.Type != "" {
		if _, err := domain.ParseVoucherType(string(filter.Type)); err != nil {
			return nil, err
		}
	}

	items, err := uc.voucherRepo.ListByPeriod(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := PeriodSummary{ByType: make(map[domain.VoucherType]TypeSummary)}
	for _, item := range items {
		item.IsBalanced = item.TotalDebit.Sub(item.TotalCredit).Abs().LessThanOrEqual(domain.BalanceTolerance)
		item.PostingStatus = item.Voucher.PostingStatus()

		summary.Total++
		summary.TotalAmount = summary.TotalAmount.Add(item.Voucher.TotalAmount)
		switch item.PostingStatus {
		case domain.PostingStatusPosted:
			summary.Posted++
		case domain.PostingStatusPending:
			summary.Pending++
		case domain.PostingStatusSuperseded:
			summary.Superseded++
		case domain.PostingStatusVoided:
			summary.Voided++
		}
		if !item.IsBalanced {
			summary.Unbalanced++
		}

		ts := summary.ByType[item.Voucher.Type]
		ts.Count++
		ts.Amount = ts.Amount.Add(item.Voucher.TotalAmount)
		summary.ByType[item.Voucher.Type] = ts
	}

	return &PeriodListing{Vouchers: items, Summary: summary}, nil
}

func (uc *LifecycleUseCase) relationships(ctx context.Context, voucher *domain.Voucher, annotations []*domain.Annotation) (Relationships, error) {
	var rel Relationships

	if voucher.SupersededBy != "" {
		replacement, err := uc.voucherRepo.GetByID(ctx, voucher.SupersededBy)
		if err != nil {
			return rel, err
		}
		rel.SupersededBy = &VoucherRef{ID: replacement.ID, Number: replacement.Number}
	}

	superseded, err := uc.voucherRepo.ListSupersededBy(ctx, voucher.ID)
	if err != nil {
		return rel, err
	}
	seen := map[string]bool{voucher.ID: true, voucher.SupersededBy: true}
	for _, v := range superseded {
		rel.Supersedes = append(rel.Supersedes, VoucherRef{ID: v.ID, Number: v.Number})
		seen[v.ID] = true
	}

	referencing, err := uc.annotationRepo.ListReferencing(ctx, voucher.ID)
	if err != nil {
		return rel, err
	}

	relatedIDs := make([]string, 0)
	for _, a := range annotations {
		if a.RelatedVoucherID != "" && !seen[a.RelatedVoucherID] {
			seen[a.RelatedVoucherID] = true
			relatedIDs = append(relatedIDs, a.RelatedVoucherID)
		}
	}
	for _, a := range referencing {
		if !seen[a.VoucherID] {
			seen[a.VoucherID] = true
			relatedIDs = append(relatedIDs, a.VoucherID)
		}
	}

	for _, id := range relatedIDs {
		v, err := uc.voucherRepo.GetByID(ctx, id)
		if err != nil {
			return rel, err
		}
		rel.RelatedVouchers = append(rel.RelatedVouchers, VoucherRef{ID: v.ID, Number: v.Number})
	}

	return rel, nil
}

func (uc *LifecycleUseCase) securityAudit(ctx context.Context, voucherID string, annotations []*domain.Annotation) ([]*domain.VerificationLog, error) {
	if uc.logRepo == nil {
		return nil, nil
	}

	ids := make([]string, 0, len(annotations))
	for _, a := range annotations {
		if a.TOTPVerificationID != "" {
			ids = append(ids, a.TOTPVerificationID)
		}
	}

	byID := make(map[string]*domain.VerificationLog)
	if len(ids) > 0 {
		logs, err := uc.logRepo.ListByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			byID[l.ID] = l
		}
	}

	targeted, err := uc.logRepo.ListByVoucher(ctx, voucherID)
	if err != nil {
		return nil, err
	}
	for _, l := range targeted {
		byID[l.ID] = l
	}

	audit := make([]*domain.VerificationLog, 0, len(byID))
	for _, l := range byID {
		audit = append(audit, l)
	}
	sort.Slice(audit, func(i, j int) bool {
		if audit[i].CreatedAt.Equal(audit[j].CreatedAt) {
			return audit[i].ID > audit[j].ID
		}
		return audit[i].CreatedAt.After(audit[j].CreatedAt)
	})

	return audit, nil
}

// newLifecycleAnnotation is the only constructor of SUPERSEDED, VOID and
// CREATED annotations.
func newLifecycleAnnotation(id, voucherID string, t domain.AnnotationType, message, relatedVoucherID, author, verificationID string, at time.Time) (*domain.Annotation, error) {
	return domain.NewPrivilegedAnnotation(lifecycleToken, id, voucherID, t, message, relatedVoucherID, author, verificationID, at)
}

func authorOrSystem(author string) string {
	if a := strings.TrimSpace(author); a != "" {
		return a
	}
	return SystemAuthor
}
