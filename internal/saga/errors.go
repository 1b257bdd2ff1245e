package saga

import (
	"errors"
	"fmt"

	"github.com/roach88/sagastore/internal/metrics"
)

// ErrorCode categorizes saga run failures.
type ErrorCode string

const (
	// ErrCodeHandlerFailed indicates the handler returned an error.
	ErrCodeHandlerFailed ErrorCode = "HANDLER_FAILED"

	// ErrCodeHandlerPanic indicates the handler panicked.
	ErrCodeHandlerPanic ErrorCode = "HANDLER_PANIC"
)

// Error is the failure of one asynchronous saga run.
//
// It is reported to interceptors and logs only. It never reaches the
// dispatcher: the run's tracker operation is released and the failure stays
// with the run.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Saga is the failing saga's name.
	Saga string

	// DispatchID identifies the dispatch that triggered the run.
	DispatchID string

	// Err is the handler's error, or the recovered panic value as an error.
	Err error

	// Stack is the goroutine stack at the panic (ErrCodeHandlerPanic only).
	Stack string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: saga %s (dispatch=%s): %v", e.Code, e.Saga, e.DispatchID, e.Err)
}

// Unwrap returns the handler's error.
func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(run Run, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{
		Code:       ErrCodeHandlerFailed,
		Saga:       run.Saga,
		DispatchID: run.Dispatch.ID,
		Err:        err,
	}
}

func newPanicError(run Run, recovered any, stack string) *Error {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("%v", recovered)
	}
	return &Error{
		Code:       ErrCodeHandlerPanic,
		Saga:       run.Saga,
		DispatchID: run.Dispatch.ID,
		Err:        err,
		Stack:      stack,
	}
}

// IsPanic reports whether err is a recovered saga panic.
// Uses errors.As to handle wrapped errors.
func IsPanic(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeHandlerPanic
	}
	return false
}

// Outcome classifies a run result as metrics.OutcomeOK, OutcomeError, or
// OutcomePanic.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case IsPanic(err):
		return metrics.OutcomePanic
	default:
		return metrics.OutcomeError
	}
}
