package cirbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func drain(b *Buffer) string {
	p := make([]byte, b.Count())
	return string(p[:b.GetArray(p)])
}

func TestASCIIWriters(t *testing.T) {
	b := New(32, TypeStreaming, FormatASCII)
	require.NoError(t, b.PutByteASCII(0))
	require.NoError(t, b.PutByte(' '))
	require.NoError(t, b.PutByteASCII(255))
	require.NoError(t, b.PutByte(' '))
	require.NoError(t, b.PutByteASCIIHex(0x5a))
	require.NoError(t, b.PutByte(' '))
	require.NoError(t, b.PutWordASCII(65535))
	require.NoError(t, b.PutByte(' '))
	require.NoError(t, b.PutWordASCIIHex(0x0bcd))
	require.Equal(t, "0 255 5A 65535 0BCD", drain(b))

	b = New(3, TypeStreaming, FormatASCII)
	require.ErrorIs(t, b.PutWordASCIIHex(1), ErrOverflow)
	require.True(t, b.IsEmpty())
}

func TestPutASCIIEscString(t *testing.T) {
	testCases := []struct {
		name   string
		in     string
		flags  ASCIIEscFlags
		expect string
		err    error
	}{
		{"hex", "1A 2B", 0, "\x1a\x2b", nil},
		{"quoted", "'Hi'", 0, "Hi", nil},
		{"quote in quoted", "'It''s'", 0, "It's", nil},
		{"control", "s41p", 0, "^sA^p", nil},
		{"escape reserved", "5E 0A", 0, "^~^*", nil},
		{"explicit escape", "^^^q", 0, "^~^q", nil},
		{"start stop", "'a' 62", ASCIIEscAddStartStop, "^sab^p", nil},
		{"odd hex", "1A2", 0, "", ErrDecode},
		{"lower case hex", "1a", 0, "", ErrDecode},
		{"unterminated quote", "'ab", 0, "", ErrDecode},
		{"bad escape", "^A", 0, "", ErrDecode},
		{"overflow", "'abcdefghijklmnopq'", 0, "", ErrOverflow},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := New(16, TypeStreaming, FormatASCIIEsc)
			n, err := b.PutASCIIEscString(tc.in, tc.flags)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				require.True(t, b.IsEmpty())
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(tc.expect), n)
			require.Equal(t, tc.expect, drain(b))
		})
	}
}
