// Package esjcerr defines the typed error taxonomy shared by the connection
// engine and the public facade, so a caller can branch on errors.Is/As
// without reaching into engine internals.
package esjcerr

import "fmt"

// Kind classifies an Error for programmatic handling.
type Kind int

// Recognized Kind values.
const (
	KindInvalidArgument Kind = iota
	KindNoConnection
	KindConnectionClosed
	KindCannotEstablishConnection
	KindNotAuthenticated
	KindOperationTimeout
	KindRetryLimitReached
	KindServerError
	KindBadRequest
	KindWrongExpectedVersion
	KindStreamDeleted
	KindAccessDenied
	KindCommitTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNoConnection:
		return "NoConnection"
	case KindConnectionClosed:
		return "ConnectionClosed"
	case KindCannotEstablishConnection:
		return "CannotEstablishConnection"
	case KindNotAuthenticated:
		return "NotAuthenticated"
	case KindOperationTimeout:
		return "OperationTimeout"
	case KindRetryLimitReached:
		return "RetryLimitReached"
	case KindServerError:
		return "ServerError"
	case KindBadRequest:
		return "BadRequest"
	case KindWrongExpectedVersion:
		return "WrongExpectedVersion"
	case KindStreamDeleted:
		return "StreamDeleted"
	case KindAccessDenied:
		return "AccessDenied"
	case KindCommitTimeout:
		return "CommitTimeout"
	default:
		return "Unknown"
	}
}

// Error is the single error type the core surfaces to callers. It carries a
// Kind for branching and an optional wrapped cause for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New builds an Error of kind with message and no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of kind with message, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("esjc: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("esjc: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, esjcerr.New(esjcerr.KindConnectionClosed, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
