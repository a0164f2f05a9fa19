package cirbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketSequence(t *testing.T) {
	b := New(16, TypePacket, FormatBinary)
	require.NoError(t, b.PutPacket([]byte{0xAA, 0xBB, 0xCC}))
	require.NoError(t, b.PutPacket([]byte{0x01}))
	require.True(t, b.HasWholePacket())

	n, err := b.PeekPacketDataSize()
	require.NoError(t, err)
	require.Equal(t, 3, n)
	n, err = b.GetPacketDataSize()
	require.NoError(t, err)
	require.Equal(t, 3, n)
	p := make([]byte, n)
	require.Equal(t, 3, b.GetArray(p))
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, p)

	require.True(t, b.HasWholePacket())
	n, err = b.GetPacketDataSize()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	c, err := b.GetByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x01), c)
	require.False(t, b.HasWholePacket())
	require.True(t, b.IsEmpty())
}

func TestPacketLargeHeader(t *testing.T) {
	b := New(600, TypePacketLarge, FormatBinary)
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, b.PutPacket(payload))
	hdr := b.GetRdArr()[:2]
	require.Equal(t, []byte{0x01, 0x2c}, hdr)
	out := make([]byte, 300)
	n, err := b.GetPacket(out)
	require.NoError(t, err)
	require.Equal(t, payload, out[:n])
}

func TestPacketPartial(t *testing.T) {
	b := New(8, TypePacket, FormatBinary)
	require.NoError(t, b.PutByte(3))
	require.False(t, b.HasWholePacket())
	n, err := b.PeekPacketDataSize()
	require.NoError(t, err)
	require.Equal(t, 3, n)
	b.PutArray([]byte{1, 2})
	require.False(t, b.HasWholePacket())
	_, err = b.GetPacket(make([]byte, 8))
	require.ErrorIs(t, err, ErrUnderflow)
	require.Equal(t, 3, b.Count())
	b.PutByte(3)
	require.True(t, b.HasWholePacket())
	require.True(t, b.PacketEqual("\x01\x02\x03"))
	require.False(t, b.PacketEqual("\x01\x02"))
	c, err := b.PeekPacketByte()
	require.NoError(t, err)
	require.Equal(t, byte(1), c)
	require.NoError(t, b.RemovePacket())
	require.True(t, b.IsEmpty())
	require.ErrorIs(t, b.RemovePacket(), ErrUnderflow)
}

func TestPacketOverflowSafety(t *testing.T) {
	b := New(8, TypePacket, FormatBinary)
	require.NoError(t, b.PutPacket([]byte{1, 2, 3, 4}))
	before := b.Count()
	require.ErrorIs(t, b.PutPacket([]byte{5, 6, 7}), ErrOverflow)
	require.Equal(t, StatusOverflow, b.Status())
	require.Equal(t, before, b.Count())
	require.NoError(t, b.RemovePacket())
	require.NoError(t, b.PutPacket([]byte{5, 6, 7}))
	out := make([]byte, 3)
	n, err := b.GetPacket(out)
	require.NoError(t, err)
	require.Equal(t, []byte{5, 6, 7}, out[:n])
}

func TestPacketInvalid(t *testing.T) {
	s := New(8, TypeStreaming, FormatBinary)
	require.ErrorIs(t, s.PutPacket([]byte{1}), ErrInvalidOp)
	require.Equal(t, StatusInvalidOp, s.Status())
	require.False(t, s.HasWholePacket())
	_, err := s.GetPacketDataSize()
	require.ErrorIs(t, err, ErrInvalidOp)

	b := New(8, TypePacket, FormatBinary)
	require.Equal(t, 7, b.MaxPacketDataSize())
	require.ErrorIs(t, b.PutPacket(make([]byte, 8)), ErrInvalidSize)
	require.True(t, b.IsEmpty())
	require.NoError(t, b.PutPacket([]byte{1, 2}))
	_, err = b.GetPacket(make([]byte, 1))
	require.ErrorIs(t, err, ErrInvalidSize)
	require.True(t, b.HasWholePacket())

	require.Equal(t, 255, New(512, TypePacket, FormatBinary).MaxPacketDataSize())
	require.Equal(t, 254, New(512, TypePacket, FormatBinary, WithContiguousPackets()).MaxPacketDataSize())
	require.Equal(t, 65279, New(1<<17, TypePacketLarge, FormatBinary, WithContiguousPackets()).MaxPacketDataSize())
}

func TestPacketCapacityBelowHeader(t *testing.T) {
	cases := []struct {
		size int
		typ  Type
		max  int
		err  error
	}{
		{1, TypePacketLarge, 0, ErrInvalidSize},
		{2, TypePacketLarge, 0, nil},
		{1, TypePacket, 0, nil},
		{3, TypePacketLarge, 1, nil},
	}
	for _, c := range cases {
		b := New(c.size, c.typ, FormatBinary)
		require.Equal(t, c.max, b.MaxPacketDataSize(), "size %d %s", c.size, c.typ)
		require.LessOrEqual(t, b.FreeForPacket(), c.max)
		err := b.PutPacket(nil)
		if c.err != nil {
			require.ErrorIs(t, err, c.err)
			require.Equal(t, StatusInvalidSize, b.Status())
			require.True(t, b.IsEmpty())
		} else {
			require.NoError(t, err)
		}
		require.ErrorIs(t, b.PutPacket(make([]byte, c.max+1)), ErrInvalidSize)
	}
}

func TestEscapedPacketDataSizeIsEncoded(t *testing.T) {
	b := New(16, TypePacket, FormatBinaryEsc)
	require.NoError(t, b.PutPacket([]byte{'^', 1}))
	n, err := b.GetPacketDataSize()
	require.NoError(t, err)
	require.Equal(t, 3, n)
	raw := make([]byte, n)
	require.Equal(t, 3, b.GetArray(raw))
	require.Equal(t, []byte{'^', '^' ^ 0x20, 1}, raw)
}

func TestPacketEmptyPayload(t *testing.T) {
	b := New(4, TypePacket, FormatBinary)
	require.NoError(t, b.PutPacket(nil))
	require.True(t, b.HasWholePacket())
	_, err := b.PeekPacketByte()
	require.ErrorIs(t, err, ErrUnderflow)
	n, err := b.GetPacket(nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.True(t, b.IsEmpty())
}

func TestPacketEscaped(t *testing.T) {
	b := New(16, TypePacket, FormatBinaryEsc)
	payload := []byte{'^', 1, '\n'}
	require.NoError(t, b.PutPacket(payload))
	n, err := b.PeekPacketDataSize()
	require.NoError(t, err)
	require.Equal(t, 5, n)
	out := make([]byte, 8)
	n, err = b.GetPacket(out)
	require.NoError(t, err)
	require.Equal(t, payload, out[:n])

	// corrupt escape pair inside a packet
	b.PutArray([]byte{2, '^', 'A'})
	_, err = b.GetPacket(out)
	require.ErrorIs(t, err, ErrDecode)
	require.NoError(t, b.RemovePacket())
	require.True(t, b.IsEmpty())
}

func TestPacketWrapView(t *testing.T) {
	b := New(8, TypePacket, FormatBinary)
	b.PutArray(make([]byte, 6))
	b.RemoveBytes(6)
	require.NoError(t, b.PutPacket([]byte{1, 2, 3}))
	_, err := b.GetContiguousPacket()
	require.ErrorIs(t, err, ErrOutOfRange)
	out := make([]byte, 3)
	n, err := b.GetPacket(out)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, out[:n])
}

func TestContiguousPackets(t *testing.T) {
	b := New(8, TypePacket, FormatBinary, WithContiguousPackets())
	b.PutArray(make([]byte, 6))
	b.RemoveBytes(6)
	require.Equal(t, 5, b.FreeForPacket())
	require.NoError(t, b.PutPacket([]byte{1, 2, 3}))
	// filler at index 6, the packet starts at 0
	require.Equal(t, 6, b.Count())
	require.True(t, b.HasWholePacket())
	n, err := b.PeekPacketDataSize()
	require.NoError(t, err)
	require.Equal(t, 3, n)
	view, err := b.GetContiguousPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, view)
	require.NoError(t, b.RemovePacket())
	require.True(t, b.IsEmpty())

	for i := 0; i < 20; i++ {
		p := []byte{byte(i), byte(i + 1)}
		require.NoError(t, b.PutPacket(p))
		view, err := b.GetContiguousPacket()
		require.NoError(t, err)
		require.Equal(t, p, view)
		require.NoError(t, b.RemovePacket())
	}
}

func TestContiguousOverflow(t *testing.T) {
	b := New(8, TypePacket, FormatBinary, WithContiguousPackets())
	b.PutArray(make([]byte, 5))
	b.RemoveBytes(3)
	// 2 bytes used at 3..4, tail 5..7 is 3 bytes, head 0..2 is 3 bytes
	require.Equal(t, 2, b.FreeForPacket())
	require.ErrorIs(t, b.PutPacket([]byte{1, 2, 3}), ErrOverflow)
	require.Equal(t, 2, b.Count())
	require.NoError(t, b.PutPacket([]byte{1, 2}))
	require.Equal(t, 5, b.Count())
}
