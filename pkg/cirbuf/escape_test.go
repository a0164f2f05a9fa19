package cirbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodec(t *testing.T) {
	c := DefaultCodec
	testCases := []struct {
		name    string
		in      []byte
		encoded []byte
	}{
		{"plain", []byte("abc"), []byte("abc")},
		{"escape marker", []byte{'^'}, []byte{'^', '~'}},
		{"delimiter", []byte{'\n'}, []byte{'^', '*'}},
		{"mixed", []byte{1, '^', 2, '\n'}, []byte{1, '^', '~', 2, '^', '*'}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, len(tc.encoded), c.EncodedLen(tc.in))
			require.Equal(t, tc.encoded, c.AppendEncode(nil, tc.in))
			out := make([]byte, len(tc.in))
			n, err := c.Decode(out, tc.encoded)
			require.NoError(t, err)
			require.Equal(t, tc.in, out[:n])
		})
	}

	_, err := c.Decode(make([]byte, 4), []byte{'^', 'A'})
	require.ErrorIs(t, err, ErrDecode)
	_, err = c.Decode(make([]byte, 4), []byte{'a', '^'})
	require.ErrorIs(t, err, ErrDecode)
	_, err = c.Decode(make([]byte, 4), []byte{'^', 's'})
	require.ErrorIs(t, err, ErrDecode)
	_, err = c.Decode(make([]byte, 1), []byte("ab"))
	require.ErrorIs(t, err, ErrInvalidSize)
	n, err := c.Decode(make([]byte, 1), []byte("^^"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestEscapedFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{'a', '^', '\n', 'b'},
		{},
		{'^', '^', '^'},
		{0, 0xff, '\n', '\n'},
	}
	b := New(16, TypeStreaming, FormatBinaryEsc)
	for i := 0; i < 10; i++ {
		for _, p := range payloads {
			n, err := b.PutEscapedFrame(p)
			require.NoError(t, err)
			require.Equal(t, b.EscapedSizeRequired(p)+1, n)
			raw, ok := b.HasWholeFrame()
			require.True(t, ok)
			require.Equal(t, n, raw)
			out := make([]byte, 8)
			got, err := b.GetEscapedFrame(out)
			require.NoError(t, err)
			require.Equal(t, p, out[:got])
			require.True(t, b.IsEmpty())
		}
	}
}

func TestEscapedSymbols(t *testing.T) {
	b := New(16, TypeStreaming, FormatASCIIEsc)
	require.NoError(t, b.PutControlChar(CtrlStart))
	n, err := b.PutEscapedByte('^')
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = b.PutEscapedByte('x')
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, b.PutDelimiter())
	require.ErrorIs(t, b.PutControlChar('A'), ErrOutOfRange)

	expect := []struct {
		c    byte
		kind Kind
	}{
		{CtrlStart, KindControl},
		{'^', KindData},
		{'x', KindData},
		{'\n', KindDelimiter},
	}
	for _, e := range expect {
		c, kind, err := b.PeekEscapedByte()
		require.NoError(t, err)
		require.Equal(t, e.c, c)
		require.Equal(t, e.kind, kind)
		c, kind, err = b.GetEscapedByte()
		require.NoError(t, err)
		require.Equal(t, e.c, c)
		require.Equal(t, e.kind, kind)
	}
	_, _, err = b.GetEscapedByte()
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestEscapedDecodeError(t *testing.T) {
	b := New(8, TypeStreaming, FormatBinaryEsc)
	b.PutArray([]byte{'^', 'A', 'b', '\n'})
	_, _, err := b.GetEscapedByte()
	require.ErrorIs(t, err, ErrDecode)
	require.Equal(t, StatusDecode, b.Status())
	require.Equal(t, 4, b.Count())

	_, err = b.GetEscapedFrame(make([]byte, 8))
	require.ErrorIs(t, err, ErrDecode)
	require.Equal(t, 4, b.Count())
	require.NoError(t, b.RemoveBytes(2))
	n, err := b.GetEscapedFrame(make([]byte, 8))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestEscapedDanglingMarker(t *testing.T) {
	b := New(8, TypeStreaming, FormatBinaryEsc)
	b.PutArray([]byte{'a', '^'})
	_, ok := b.HasWholeFrame()
	require.False(t, ok)
	p := make([]byte, 4)
	n, err := b.GetEscapedArray(p)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, _, err = b.GetEscapedByte()
	require.ErrorIs(t, err, ErrUnderflow)
	b.PutArray([]byte{'*', '\n'})
	c, kind, err := b.GetEscapedByte()
	require.NoError(t, err)
	require.Equal(t, byte('\n'), c)
	require.Equal(t, KindData, kind)
	_, ok = b.HasWholeFrame()
	require.True(t, ok)
}

func TestGetEscapedArrayStops(t *testing.T) {
	b := New(16, TypeStreaming, FormatBinaryEsc)
	b.PutEscapedArray([]byte{1, '^', 2})
	b.PutControlChar(CtrlStop)
	b.PutByte(3)
	p := make([]byte, 8)
	n, err := b.GetEscapedArray(p)
	require.NoError(t, err)
	require.Equal(t, []byte{1, '^', 2}, p[:n])
	c, kind, err := b.GetEscapedByte()
	require.NoError(t, err)
	require.Equal(t, CtrlStop, c)
	require.Equal(t, KindControl, kind)
}

func TestEscapedOnPlainFormat(t *testing.T) {
	b := New(8, TypeStreaming, FormatBinary)
	_, err := b.PutEscapedArray([]byte{1})
	require.ErrorIs(t, err, ErrInvalidOp)
	require.ErrorIs(t, b.PutDelimiter(), ErrInvalidOp)
	_, ok := b.HasWholeFrame()
	require.False(t, ok)
}

func TestWholeFrameOnASCII(t *testing.T) {
	b := New(16, TypeStreaming, FormatASCII)
	require.Equal(t, 3, b.PutArray([]byte("a^\n")))
	n, ok := b.HasWholeFrame()
	require.True(t, ok)
	require.Equal(t, 3, n)

	esc := New(16, TypeStreaming, FormatASCIIEsc)
	require.Equal(t, 3, esc.PutArray([]byte("a^\n")))
	_, ok = esc.HasWholeFrame()
	require.False(t, ok)
}

func TestEscapedOverflowAllOrNothing(t *testing.T) {
	b := New(4, TypeStreaming, FormatBinaryEsc)
	b.PutByte(0)
	_, err := b.PutEscapedArray([]byte{'^', '^'})
	require.ErrorIs(t, err, ErrOverflow)
	require.Equal(t, 1, b.Count())
	_, err = b.PutEscapedFrame([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrOverflow)
	require.Equal(t, 1, b.Count())
}

func TestFrameTooLarge(t *testing.T) {
	b := New(16, TypeStreaming, FormatBinaryEsc)
	b.PutEscapedFrame([]byte("hello"))
	_, err := b.GetEscapedFrame(make([]byte, 3))
	require.ErrorIs(t, err, ErrInvalidSize)
	require.Equal(t, 6, b.Count())
}
