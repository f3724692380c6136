package negotiation

import (
	"fmt"

	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
)

// ValidationError is a malformed action payload. Nothing is applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid action: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Code() domainagg.ErrorCode { return domainagg.CodeValidation }

// InvalidTransitionError is an action the thread's current status does not allow.
type InvalidTransitionError struct {
	From   string
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action %q is not allowed while thread is %q", e.Action, e.From)
}

func (e *InvalidTransitionError) Code() domainagg.ErrorCode { return domainagg.CodeInvalidTransition }

// RetryBudgetExceededError is a counter-proposal past the carrier's attempt ceiling.
type RetryBudgetExceededError struct {
	Attempts int
	Max      int
}

func (e *RetryBudgetExceededError) Error() string {
	return fmt.Sprintf("carrier retry budget exhausted (%d/%d counter-proposals used)", e.Attempts, e.Max)
}

func (e *RetryBudgetExceededError) Code() domainagg.ErrorCode {
	return domainagg.CodeRetryBudgetExceeded
}

// ConcurrentModificationError means the thread moved past the version the actor saw.
type ConcurrentModificationError struct {
	Expected int
	Actual   int
}

func (e *ConcurrentModificationError) Error() string {
	if e.Actual == 0 {
		return fmt.Sprintf("thread changed while applying version %d; refresh and retry", e.Expected)
	}
	return fmt.Sprintf("thread is at version %d, action was based on version %d; refresh and retry", e.Actual, e.Expected)
}

func (e *ConcurrentModificationError) Code() domainagg.ErrorCode {
	return domainagg.CodeConcurrentModification
}

type invariantError struct{ msg string }

func (e *invariantError) Error() string { return e.msg }

func (e *invariantError) Code() domainagg.ErrorCode { return domainagg.CodeInvariantViolation }

func invariantf(format string, args ...any) error {
	return &invariantError{msg: fmt.Sprintf(format, args...)}
}

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }
