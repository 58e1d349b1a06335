package usecase

import (
	"context"

	"github.com/iho/verifikat/internal/domain"
)

// SecureVoucherUseCase runs a gate verification and the lifecycle operation
// it authorises back to back.
type SecureVoucherUseCase struct {
	gate      *TOTPUseCase
	lifecycle *LifecycleUseCase
}

// NewSecureVoucherUseCase creates a new SecureVoucherUseCase.
func NewSecureVoucherUseCase(gate *TOTPUseCase, lifecycle *LifecycleUseCase) *SecureVoucherUseCase {
	return &SecureVoucherUseCase{gate: gate, lifecycle: lifecycle}
}

// Credentials identify the operator and the code they typed.
type Credentials struct {
	UserID    string
	Code      string
	ClientIP  string
	UserAgent string
}

// SecureSupersede verifies creds for SUPERSEDE_VOUCHER on the original and
// supersedes it.
func (uc *SecureVoucherUseCase) SecureSupersede(ctx context.Context, creds Credentials, input SupersedeInput) (*domain.Voucher, error) {
	v, err := uc.verify(ctx, creds, domain.OperationSupersedeVoucher, input.OriginalID)
	if err != nil {
		return nil, err
	}
	input.VerificationID = v.ID
	if input.Author == "" {
		input.Author = creds.UserID
	}
	return uc.lifecycle.Supersede(ctx, input)
}

// SecureVoid verifies creds for VOID_VOUCHER and voids the voucher.
func (uc *SecureVoucherUseCase) SecureVoid(ctx context.Context, creds Credentials, input VoidInput) (*domain.Voucher, error) {
	v, err := uc.verify(ctx, creds, domain.OperationVoidVoucher, input.VoucherID)
	if err != nil {
		return nil, err
	}
	input.VerificationID = v.ID
	if input.Author == "" {
		input.Author = creds.UserID
	}
	return uc.lifecycle.Void(ctx, input)
}

// SecureAnnotate verifies creds for ADD_ANNOTATION and appends the annotation.
func (uc *SecureVoucherUseCase) SecureAnnotate(ctx context.Context, creds Credentials, input AddAnnotationInput) (*domain.Annotation, error) {
	v, err := uc.verify(ctx, creds, domain.OperationAddAnnotation, input.VoucherID)
	if err != nil {
		return nil, err
	}
	input.VerificationID = v.ID
	if input.Author == "" {
		input.Author = creds.UserID
	}
	return uc.lifecycle.AddAnnotation(ctx, input)
}

func (uc *SecureVoucherUseCase) verify(ctx context.Context, creds Credentials, op domain.OperationType, voucherID string) (*domain.Verification, error) {
	return uc.gate.Verify(ctx, VerifyInput{
		UserID:    creds.UserID,
		Code:      creds.Code,
		Operation: op,
		VoucherID: voucherID,
		ClientIP:  creds.ClientIP,
		UserAgent: creds.UserAgent,
	})
}
