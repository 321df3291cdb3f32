package relay

import (
	"errors"
	"fmt"
)

// ErrTransactionFailed marks a value that was rejected while being transformed
// or validated. Use errors.Is to detect it through wrapping.
var ErrTransactionFailed = errors.New("transaction failed")

// ErrScopeClosed is returned when work is submitted to a scope that is no
// longer active.
var ErrScopeClosed = errors.New("scope closed")

// ErrAlreadyStarted is returned when Start is called more than once.
var ErrAlreadyStarted = errors.New("already started")

// TransactionError is the error kind produced by a failing Mapper.
type TransactionError struct {
	Cause error
}

// TransactionFailed wraps cause as a TransactionError. A nil cause yields
// ErrTransactionFailed itself.
func TransactionFailed(cause error) error {
	if cause == nil {
		return ErrTransactionFailed
	}
	var te *TransactionError
	if errors.As(cause, &te) {
		return cause
	}
	return &TransactionError{Cause: cause}
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed: %v", e.Cause)
}

// Unwrap exposes both the cause and ErrTransactionFailed to errors.Is.
func (e *TransactionError) Unwrap() []error {
	return []error{ErrTransactionFailed, e.Cause}
}

// PanicError carries a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the recovered value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// recovered converts the result of recover() into an error, or nil.
func recovered(r any) error {
	if r == nil {
		return nil
	}
	return &PanicError{Value: r}
}
