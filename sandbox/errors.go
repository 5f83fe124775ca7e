package sandbox

import "fmt"

// Code is the machine-readable discriminant for every sandbox failure.
// Code is the primary thing callers should branch on; Message is advisory.
type Code string

const (
	// CodeInvalidArg marks a validated input that failed a constraint:
	// empty name, non-positive size, or an out-of-range timeout.
	CodeInvalidArg Code = "invalid-arg"
	// CodeConsumed marks an operation invoked on a stage already consumed
	// by its terminating transition.
	CodeConsumed Code = "consumed"
	// CodePoisoned marks a call attempted on a sandbox whose poisoned
	// flag is set.
	CodePoisoned Code = "poisoned"
	// CodeCancelled marks a call terminated by a monitor or by an
	// explicit Kill.
	CodeCancelled Code = "cancelled"
	// CodeStackOverflow marks a guest that exhausted its stack.
	CodeStackOverflow Code = "stack-overflow"
	// CodeGuestAbort marks a guest abort: host-call failure or an
	// unrecoverable engine error.
	CodeGuestAbort Code = "guest-abort"
	// CodeInternal marks a hypervisor allocation, snapshot/restore, or
	// engine bootstrap failure, or a monitor prepare failure.
	CodeInternal Code = "internal"
)

// Error is the error type every sandbox operation returns. Code is the
// primary discriminant; Message is a human-readable advisory string.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sandbox: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("sandbox: %s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Code, letting
// callers write errors.Is(err, sandbox.ErrConsumed) against the sentinels
// below regardless of the specific message attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel errors for use with errors.Is. Only Code is compared; Message
// and Cause are ignored by (*Error).Is.
var (
	ErrInvalidArg    = &Error{Code: CodeInvalidArg}
	ErrConsumed      = &Error{Code: CodeConsumed}
	ErrPoisoned      = &Error{Code: CodePoisoned}
	ErrCancelled     = &Error{Code: CodeCancelled}
	ErrStackOverflow = &Error{Code: CodeStackOverflow}
	ErrGuestAbort    = &Error{Code: CodeGuestAbort}
	ErrInternal      = &Error{Code: CodeInternal}
)
