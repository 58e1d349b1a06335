package domain

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Message limits.
const (
	MaxAnnotationMessageLength = 500
	MaxLifecycleReasonLength   = 200
)

// AnnotationType is any kind of entry in a voucher's annotation log.
type AnnotationType string

const (
	AnnotationSuperseded AnnotationType = "SUPERSEDED"
	AnnotationCorrection AnnotationType = "CORRECTION"
	AnnotationReversal   AnnotationType = "REVERSAL"
	AnnotationNote       AnnotationType = "NOTE"
	AnnotationVoid       AnnotationType = "VOID"
	AnnotationCreated    AnnotationType = "CREATED"
)

// IsPrivileged reports whether only lifecycle transitions may write this type.
func (t AnnotationType) IsPrivileged() bool {
	return t == AnnotationSuperseded || t == AnnotationVoid || t == AnnotationCreated
}

// PublicAnnotationType is an annotation type callers may write directly.
// Values exist only for CORRECTION, REVERSAL and NOTE.
type PublicAnnotationType struct {
	t AnnotationType
}

var (
	PublicCorrection = PublicAnnotationType{AnnotationCorrection}
	PublicReversal   = PublicAnnotationType{AnnotationReversal}
	PublicNote       = PublicAnnotationType{AnnotationNote}
)

// Type returns the underlying annotation type.
func (p PublicAnnotationType) Type() AnnotationType {
	return p.t
}

func (p PublicAnnotationType) String() string {
	return string(p.t)
}

// ParsePublicAnnotationType rejects privileged and unknown types.
func ParsePublicAnnotationType(s string) (PublicAnnotationType, error) {
	switch AnnotationType(strings.ToUpper(strings.TrimSpace(s))) {
	case AnnotationCorrection:
		return PublicCorrection, nil
	case AnnotationReversal:
		return PublicReversal, nil
	case AnnotationNote:
		return PublicNote, nil
	}
	return PublicAnnotationType{}, fmt.Errorf("%w: %q", ErrSecurityRestrictedType, s)
}

// Annotation is an append-only record attached to a voucher. Only
// annotations returned by NewPublicAnnotation or NewPrivilegedAnnotation pass
// Validate, which stores call before writing.
type Annotation struct {
	ID                 string
	VoucherID          string
	Type               AnnotationType
	Message            string
	RelatedVoucherID   string
	Author             string
	SecurityVerified   bool
	TOTPVerificationID string
	CreatedAt          time.Time

	sealedType         AnnotationType
	sealedVerification string
}

// Validate rejects annotations that were not built by a constructor or whose
// type or verification was changed afterwards.
func (a *Annotation) Validate() error {
	if a.sealedType == "" {
		return fmt.Errorf("%w: annotation %q was not built by a constructor", ErrSecurityRestrictedType, a.Type)
	}
	if a.Type != a.sealedType || a.TOTPVerificationID != a.sealedVerification ||
		a.SecurityVerified != (a.sealedVerification != "") {
		return fmt.Errorf("%w: annotation %q was altered after construction", ErrSecurityRestrictedType, a.Type)
	}
	return nil
}

func (a *Annotation) seal() *Annotation {
	a.sealedType = a.Type
	a.sealedVerification = a.TOTPVerificationID
	return a
}

type lifecycleKey struct{}

var (
	lifecycleMu     sync.Mutex
	lifecycleHolder *lifecycleKey
)

// LifecycleToken authorises SUPERSEDED, VOID and CREATED annotations. The
// zero value authorises nothing.
type LifecycleToken struct {
	key *lifecycleKey
}

// IssueLifecycleToken returns the only valid LifecycleToken of the process.
// The lifecycle use case claims it during package initialisation, so any later
// call panics.
func IssueLifecycleToken() LifecycleToken {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	if lifecycleHolder != nil {
		panic("domain: lifecycle token already issued")
	}
	lifecycleHolder = &lifecycleKey{}
	return LifecycleToken{key: lifecycleHolder}
}

func (t LifecycleToken) valid() bool {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	return t.key != nil && t.key == lifecycleHolder
}

// NewPrivilegedAnnotation builds a lifecycle annotation. It needs the
// lifecycle token and the verification that authorised the transition.
func NewPrivilegedAnnotation(token LifecycleToken, id, voucherID string, t AnnotationType, message, relatedVoucherID, author, verificationID string, at time.Time) (*Annotation, error) {
	if !token.valid() {
		return nil, fmt.Errorf("%w: %s annotations are written by voucher lifecycle transitions only", ErrSecurityRestrictedType, t)
	}
	if !t.IsPrivileged() {
		return nil, fmt.Errorf("%w: %q is not a lifecycle annotation type", ErrInvalidEntry, t)
	}
	if verificationID == "" {
		return nil, ErrVerificationRequired
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrInvalidMessage
	}
	return (&Annotation{
		ID:                 id,
		VoucherID:          voucherID,
		Type:               t,
		Message:            message,
		RelatedVoucherID:   relatedVoucherID,
		Author:             author,
		SecurityVerified:   true,
		TOTPVerificationID: verificationID,
		CreatedAt:          at,
	}).seal(), nil
}

// NewPublicAnnotation builds a caller-written annotation.
func NewPublicAnnotation(id, voucherID string, t PublicAnnotationType, message, relatedVoucherID, author, verificationID string, at time.Time) (*Annotation, error) {
	if t.t == "" {
		return nil, fmt.Errorf("%w: annotation type not set", ErrSecurityRestrictedType)
	}
	if err := ValidateMessage(message, MaxAnnotationMessageLength); err != nil {
		return nil, err
	}
	return (&Annotation{
		ID:                 id,
		VoucherID:          voucherID,
		Type:               t.t,
		Message:            strings.TrimSpace(message),
		RelatedVoucherID:   relatedVoucherID,
		Author:             author,
		SecurityVerified:   verificationID != "",
		TOTPVerificationID: verificationID,
		CreatedAt:          at,
	}).seal(), nil
}

// ValidateMessage requires a non-empty message of at most max characters.
func ValidateMessage(message string, max int) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrInvalidMessage
	}
	if n := utf8.RuneCountInString(message); n > max {
		return fmt.Errorf("%w: %d characters, maximum %d", ErrMessageTooLong, n, max)
	}
	return nil
}

// Lifecycle annotation texts.
func SupersededMessage(replacementNumber, reason string) string {
	return fmt.Sprintf("Superseded by voucher %s. Reason: %s", replacementNumber, reason)
}

func CreatedMessage(originalNumber, reason string) string {
	return fmt.Sprintf("Created to replace voucher %s. Reason: %s", originalNumber, reason)
}

func VoidMessage(reason string) string {
	return fmt.Sprintf("Voucher voided. Reason: %s", reason)
}
