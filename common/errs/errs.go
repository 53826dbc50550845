package errs

import "github.com/cockroachdb/errors"

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound = ErrorKind("Not Found")

	// Unavailable is returned when an upstream dependency can't be reached
	// or keeps answering with server errors after retries.
	Unavailable = ErrorKind("unavailable")

	// BadRequest is returned when an upstream rejects a request as malformed.
	BadRequest = ErrorKind("bad request")

	// BadBlock is returned when a fetched block fails structural validation.
	// Blocks of this kind are never retried.
	BadBlock = ErrorKind("bad block")

	// ReorgTooDeep is returned when a chain reorganization walks back past
	// the configured depth limit. Requires manual intervention.
	ReorgTooDeep = ErrorKind("reorg too deep")

	InvalidArgument    = ErrorKind("invalid argument")
	Unsupported        = ErrorKind("unsupported")
	ConflictSetting    = ErrorKind("conflict setting")
	Timeout            = ErrorKind("timeout")
	InternalError      = ErrorKind("internal error")
	SomethingWentWrong = ErrorKind("something went wrong")
	Closed             = ErrorKind("closed")
	Duplicate          = ErrorKind("duplicate")
	OverflowUint64     = ErrorKind("overflow uint64")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// IsTransient reports whether err is expected to clear on its own
// (unreachable node, tip not published yet, slow upstream). Transient
// errors are retried with backoff instead of halting the pipeline.
func IsTransient(err error) bool {
	return errors.Is(err, Unavailable) || errors.Is(err, NotFound) || errors.Is(err, Timeout)
}
