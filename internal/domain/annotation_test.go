package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParsePublicAnnotationType(t *testing.T) {
	for _, s := range []string{"CORRECTION", "reversal", " Note "} {
		if _, err := ParsePublicAnnotationType(s); err != nil {
			t.Errorf("ParsePublicAnnotationType(%q) unexpected error %v", s, err)
		}
	}

	for _, s := range []string{"SUPERSEDED", "VOID", "CREATED", "COMMENT", ""} {
		if _, err := ParsePublicAnnotationType(s); !errors.Is(err, ErrSecurityRestrictedType) {
			t.Errorf("ParsePublicAnnotationType(%q) expected ErrSecurityRestrictedType, got %v", s, err)
		}
	}
}

func TestNewPublicAnnotation(t *testing.T) {
	now := time.Now()

	a, err := NewPublicAnnotation("a1", "v1", PublicNote, "  checked receipt  ", "", "anna", "ver-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Type != AnnotationNote || a.Message != "checked receipt" || !a.SecurityVerified {
		t.Fatalf("unexpected annotation %+v", a)
	}

	if _, err := NewPublicAnnotation("a2", "v1", PublicAnnotationType{}, "msg", "", "anna", "", now); !errors.Is(err, ErrSecurityRestrictedType) {
		t.Fatalf("zero type: expected ErrSecurityRestrictedType, got %v", err)
	}

	long := strings.Repeat("å", MaxAnnotationMessageLength+1)
	if _, err := NewPublicAnnotation("a3", "v1", PublicCorrection, long, "", "anna", "", now); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}

	exact := strings.Repeat("å", MaxAnnotationMessageLength)
	if _, err := NewPublicAnnotation("a4", "v1", PublicCorrection, exact, "", "anna", "", now); err != nil {
		t.Fatalf("message at limit rejected: %v", err)
	}

	if _, err := NewPublicAnnotation("a5", "v1", PublicCorrection, "   ", "", "anna", "", now); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestAnnotationType_IsPrivileged(t *testing.T) {
	privileged := []AnnotationType{AnnotationSuperseded, AnnotationVoid, AnnotationCreated}
	for _, at := range privileged {
		if !at.IsPrivileged() {
			t.Errorf("%s should be privileged", at)
		}
	}
	for _, pt := range []PublicAnnotationType{PublicCorrection, PublicReversal, PublicNote} {
		if pt.Type().IsPrivileged() {
			t.Errorf("%s should not be privileged", pt)
		}
	}
}

func TestLifecycleMessages(t *testing.T) {
	if got := SupersededMessage("V002", "wrong amount"); got != "Superseded by voucher V002. Reason: wrong amount" {
		t.Errorf("SupersededMessage = %q", got)
	}
	if got := CreatedMessage("V001", "wrong amount"); got != "Created to replace voucher V001. Reason: wrong amount" {
		t.Errorf("CreatedMessage = %q", got)
	}
	if got := VoidMessage("duplicate"); got != "Voucher voided. Reason: duplicate" {
		t.Errorf("VoidMessage = %q", got)
	}
}

var lifecycleToken = IssueLifecycleToken()

func TestNewPrivilegedAnnotation(t *testing.T) {
	now := time.Now()

	a, err := NewPrivilegedAnnotation(lifecycleToken, "a1", "v1", AnnotationSuperseded,
		SupersededMessage("V002", "fel belopp"), "v2", "anna", "ver-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.SecurityVerified || a.TOTPVerificationID != "ver-1" {
		t.Fatalf("unexpected annotation %+v", a)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("constructed annotation rejected: %v", err)
	}

	tests := []struct {
		name    string
		token   LifecycleToken
		typ     AnnotationType
		verify  string
		message string
		wantErr error
	}{
		{"zero token", LifecycleToken{}, AnnotationVoid, "ver-1", "msg", ErrSecurityRestrictedType},
		{"foreign token", LifecycleToken{key: &lifecycleKey{}}, AnnotationVoid, "ver-1", "msg", ErrSecurityRestrictedType},
		{"public type", lifecycleToken, AnnotationNote, "ver-1", "msg", ErrInvalidEntry},
		{"no verification", lifecycleToken, AnnotationCreated, "", "msg", ErrVerificationRequired},
		{"empty message", lifecycleToken, AnnotationVoid, "ver-1", " ", ErrInvalidMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPrivilegedAnnotation(tt.token, "a2", "v1", tt.typ, tt.message, "", "anna", tt.verify, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIssueLifecycleTokenOnce(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("second IssueLifecycleToken call did not panic")
		}
	}()
	IssueLifecycleToken()
}

func TestAnnotation_Validate(t *testing.T) {
	now := time.Now()

	forged := &Annotation{ID: "a1", VoucherID: "v1", Type: AnnotationSuperseded, Message: "x", SecurityVerified: true}
	if err := forged.Validate(); !errors.Is(err, ErrSecurityRestrictedType) {
		t.Fatalf("literal annotation: expected ErrSecurityRestrictedType, got %v", err)
	}

	mutations := map[string]func(a *Annotation){
		"type":         func(a *Annotation) { a.Type = AnnotationVoid },
		"verified":     func(a *Annotation) { a.SecurityVerified = true },
		"verification": func(a *Annotation) { a.TOTPVerificationID = "ver-9" },
	}
	for name, mutate := range mutations {
		a, err := NewPublicAnnotation("a2", "v1", PublicNote, "kvitto", "", "anna", "", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := a.Validate(); err != nil {
			t.Fatalf("unaltered annotation rejected: %v", err)
		}
		mutate(a)
		if err := a.Validate(); !errors.Is(err, ErrSecurityRestrictedType) {
			t.Errorf("%s altered: expected ErrSecurityRestrictedType, got %v", name, err)
		}
	}
}
