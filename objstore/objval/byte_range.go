package objval

import (
	"fmt"
	"strconv"
	"strings"
)

// InvalidByteRangeError is returned if a byte range is invalid for some reason.
type InvalidByteRangeError struct {
	ByteRange *ByteRange
}

// Error implements the 'error' interface.
func (e *InvalidByteRangeError) Error() string {
	return fmt.Sprintf("invalid byte range %d-%d", e.ByteRange.Start, e.ByteRange.End)
}

// ByteRange represents a half-open byte range [Start, End) of an object.
type ByteRange struct {
	Start int64
	End   int64
}

// Valid returns an error if the byte range is invalid, <nil> otherwise.
func (b *ByteRange) Valid() error {
	if b == nil {
		return nil
	}

	if b.Start < 0 || b.End <= b.Start {
		return &InvalidByteRangeError{ByteRange: b}
	}

	return nil
}

// ToRangeHeader returns the HTTP range header representation of this byte range; the wire format is inclusive so the
// end offset is decremented.
func (b *ByteRange) ToRangeHeader() string {
	var builder strings.Builder

	builder.WriteString("bytes=")
	builder.WriteString(strconv.FormatInt(b.Start, 10))
	builder.WriteString("-")
	builder.WriteString(strconv.FormatInt(b.End-1, 10))

	return builder.String()
}
