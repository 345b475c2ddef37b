// Package objerr exposes the typed failures surfaced by the webstor client.
package objerr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpected indicates an internal invariant was violated, for example a response without a HTTP status line;
	// this should never happen in practice.
	ErrUnexpected = errors.New("unexpected error")

	// ErrTooManyConnections is returned by 'WaitAny' when given more connections than the wait primitive supports.
	ErrTooManyConnections = errors.New("too many connections passed to the WaitAny function")
)

// TransportError indicates a socket/DNS/TLS/timeout failure raised by the HTTP engine before or during a transfer.
type TransportError struct {
	Err error
}

// Error implements the 'error' interface.
func (e *TransportError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the underlying engine failure.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError returns a boolean indicating whether the given error is a 'TransportError'.
func IsTransportError(err error) bool {
	var transportError *TransportError
	return errors.As(err, &transportError)
}

// HTTPError indicates an unexpected HTTP status for which the service supplied no parseable error body.
type HTTPError struct {
	Status string
}

// Error implements the 'error' interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s.", e.Status)
}

// HTTPNotFoundError indicates a 404 response for which the service supplied no parseable error body; in practice the
// services nearly always attach details and the failure surfaces as an 'AWSError' instead.
type HTTPNotFoundError struct {
	URL string
}

// Error implements the 'error' interface.
func (e *HTTPNotFoundError) Error() string {
	return fmt.Sprintf("HTTP resource not found: %s.", e.URL)
}

// AWSError indicates a failure response with a parsed S3 error envelope.
type AWSError struct {
	Code      string
	Message   string
	RequestID string
	HostID    string
}

// Error implements the 'error' interface.
func (e *AWSError) Error() string {
	return fmt.Sprintf("%s (Code='%s', RequestId='%s').", e.Message, e.Code, e.RequestID)
}

// IsAWSError returns the typed error and a boolean indicating whether the given error is an 'AWSError'.
func IsAWSError(err error) (*AWSError, bool) {
	var awsError *AWSError
	return awsError, errors.As(err, &awsError)
}

// ParserError indicates the response body could not be parsed; malformed XML or unknown element nesting.
type ParserError struct {
	Err error
}

// Error implements the 'error' interface.
func (e *ParserError) Error() string {
	if e.Err == nil {
		return "cannot parse the response"
	}

	return fmt.Sprintf("cannot parse the response: %s", e.Err)
}

// Unwrap exposes the underlying decoder failure, if any.
func (e *ParserError) Unwrap() error {
	return e.Err
}

// IsParserError returns a boolean indicating whether the given error is a 'ParserError'.
func IsParserError(err error) bool {
	var parserError *ParserError
	return errors.As(err, &parserError)
}
