package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/verifikat/internal/domain"
)

const (
	msgInternal = "an internal error occurred"
	msgTimeout  = "operation timed out"
	msgCanceled = "operation was canceled"
)

// Result is the outcome of every call across the service boundary.
type Result struct {
	Success      bool   `json:"success"`
	Data         any    `json:"data,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	// RetryAfter is in seconds.
	RetryAfter        int        `json:"retry_after,omitempty"`
	AttemptsRemaining *int       `json:"attempts_remaining,omitempty"`
	LockoutWarning    bool       `json:"lockout_warning,omitempty"`
	UnlockTime        *time.Time `json:"unlock_time,omitempty"`
}

// Err returns a plain error for a failed result, or nil.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return errors.New(r.ErrorCode + ": " + r.ErrorMessage)
}

func ok(data any) Result {
	return Result{Success: true, Data: data}
}

// failure converts err to a Result. Errors without a known code are logged
// and replaced by a generic message so store details never reach callers.
func failure(logger zerolog.Logger, op string, err error) Result {
	res := Result{ErrorCode: domain.ErrorCode(err)}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		res.ErrorMessage = msgTimeout
	case errors.Is(err, context.Canceled):
		res.ErrorMessage = msgCanceled
	case res.ErrorCode == domain.CodeInternal:
		logger.Error().Err(err).Str("operation", op).Msg("internal error")
		res.ErrorMessage = msgInternal
	default:
		res.ErrorMessage = err.Error()
	}

	var secErr *domain.SecurityError
	if errors.As(err, &secErr) {
		if secErr.RetryAfter > 0 {
			res.RetryAfter = int(secErr.RetryAfter.Round(time.Second).Seconds())
		}
		if errors.Is(secErr.Err, domain.ErrTOTPInvalid) {
			remaining := secErr.AttemptsRemaining
			res.AttemptsRemaining = &remaining
		}
		res.LockoutWarning = secErr.LockoutWarning
		res.UnlockTime = secErr.UnlockTime
	}

	return res
}
