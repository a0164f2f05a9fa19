package cirbuf

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	for s := StatusNone; s <= StatusInvalidOp; s++ {
		require.Equal(t, s, StatusOf(s.Err()))
		require.Equal(t, s, StatusOf(errors.Wrap(s.Err(), "wrapped")))
	}
	require.Equal(t, StatusNone, StatusOf(fmt.Errorf("other")))
	require.Equal(t, "none", StatusNone.String())
	require.Equal(t, "crc failure", StatusCRCFailure.String())
}

func TestRegister(t *testing.T) {
	var r Register
	require.Equal(t, StatusNone, r.Get())
	require.ErrorIs(t, r.Fail(StatusBusy), ErrBusy)
	require.Equal(t, StatusBusy, r.Get())
	r.Set(StatusNoResponse)
	require.Equal(t, StatusNoResponse, r.Get())
	r.Clear()
	require.Equal(t, StatusNone, r.Get())
}

func TestParseNames(t *testing.T) {
	for typ := TypeStreaming; typ <= TypePacketLarge; typ++ {
		parsed, err := ParseType(typ.String())
		require.NoError(t, err)
		require.Equal(t, typ, parsed)
	}
	for f := FormatNone; f <= FormatBinaryEsc; f++ {
		parsed, err := ParseFormat(f.String())
		require.NoError(t, err)
		require.Equal(t, f, parsed)
	}
	_, err := ParseType("ring")
	require.Error(t, err)
}
