package esjc

import "github.com/michael-schnell/esjc/internal/esjcerr"

// Error is the single error type the client surfaces to callers, re-
// exported from the internal taxonomy so callers never need to import
// internal packages to branch with errors.Is/As.
type Error = esjcerr.Error

// Kind classifies an Error for programmatic handling.
type Kind = esjcerr.Kind

// Recognized Kind values, re-exported for caller convenience.
const (
	KindInvalidArgument           = esjcerr.KindInvalidArgument
	KindNoConnection              = esjcerr.KindNoConnection
	KindConnectionClosed          = esjcerr.KindConnectionClosed
	KindCannotEstablishConnection = esjcerr.KindCannotEstablishConnection
	KindNotAuthenticated          = esjcerr.KindNotAuthenticated
	KindOperationTimeout          = esjcerr.KindOperationTimeout
	KindRetryLimitReached         = esjcerr.KindRetryLimitReached
	KindServerError               = esjcerr.KindServerError
	KindBadRequest                = esjcerr.KindBadRequest
	KindWrongExpectedVersion      = esjcerr.KindWrongExpectedVersion
	KindStreamDeleted             = esjcerr.KindStreamDeleted
	KindAccessDenied              = esjcerr.KindAccessDenied
	KindCommitTimeout             = esjcerr.KindCommitTimeout
)

func newError(kind Kind, message string) error { return esjcerr.New(kind, message) }

func wrapError(kind Kind, message string, cause error) error {
	return esjcerr.Wrap(kind, message, cause)
}
