package objval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteRangeValid(t *testing.T) {
	var nilRange *ByteRange

	require.NoError(t, nilRange.Valid())
	require.NoError(t, (&ByteRange{Start: 0, End: 64}).Valid())

	var invalid *InvalidByteRangeError

	require.ErrorAs(t, (&ByteRange{Start: 64, End: 64}).Valid(), &invalid)
	require.ErrorAs(t, (&ByteRange{Start: 64, End: 32}).Valid(), &invalid)
	require.ErrorAs(t, (&ByteRange{Start: -1, End: 32}).Valid(), &invalid)
}

func TestByteRangeToRangeHeader(t *testing.T) {
	// The range is half-open, the wire format is inclusive.
	require.Equal(t, "bytes=0-63", (&ByteRange{Start: 0, End: 64}).ToRangeHeader())
	require.Equal(t, "bytes=32-32", (&ByteRange{Start: 32, End: 33}).ToRangeHeader())
}
