package objerr

import (
	"errors"
	"fmt"
)

// SummaryError wraps the failure of a top-level operation with the operation name and the key (or bucket) it was
// operating on; every public operation either succeeds or returns one of these.
type SummaryError struct {
	Op   string
	Key  string
	Aerr error
}

// Error implements the 'error' interface.
func (e *SummaryError) Error() string {
	return fmt.Sprintf("S3 %s for '%s' failed. %s", e.Op, e.Key, e.Aerr)
}

// Unwrap exposes the underlying failure so callers may match on the taxonomy with 'errors.Is'/'errors.As'.
func (e *SummaryError) Unwrap() error {
	return e.Aerr
}

// Summarize wraps the given error in a 'SummaryError'; a <nil> error is passed through untouched, as is an error the
// caller stashed from its own enumeration callback (marked with 'Passthrough').
func Summarize(op, key string, err error) error {
	if err == nil {
		return nil
	}

	var passthrough *PassthroughError
	if errors.As(err, &passthrough) {
		return passthrough.Err
	}

	return &SummaryError{Op: op, Key: key, Aerr: err}
}

// PassthroughError marks an error raised by a caller-supplied callback; it crosses the engine boundary intact and is
// returned to the caller unwrapped.
type PassthroughError struct {
	Err error
}

// Error implements the 'error' interface.
func (e *PassthroughError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the callback failure.
func (e *PassthroughError) Unwrap() error {
	return e.Err
}
