package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
)

func newFramer(mode Mode) *Framer {
	in := cirbuf.New(64, cirbuf.TypeStreaming, cirbuf.FormatBinaryEsc, cirbuf.WithName("rx"))
	out := cirbuf.New(64, cirbuf.TypePacket, cirbuf.FormatBinary)
	return NewFramer(in, out, mode)
}

func nextPacket(t *testing.T, b *cirbuf.Buffer) []byte {
	p := make([]byte, b.MaxPacketDataSize())
	n, err := b.GetPacket(p)
	require.NoError(t, err)
	return p[:n]
}

func TestFramerQueuesFrames(t *testing.T) {
	f := newFramer(ModeStartStop | ModeDelimiter)
	now := time.Unix(10, 0)
	require.NoError(t, WriteFrame(f.In, ModeStartStop, []byte{1, '^', 2}))
	require.NoError(t, WriteFrame(f.In, ModeDelimiter, []byte("a\nb")))
	require.Equal(t, 2, f.Step(now))
	require.True(t, f.In.IsEmpty())
	require.Equal(t, []byte{1, '^', 2}, nextPacket(t, f.Out))
	require.Equal(t, []byte("a\nb"), nextPacket(t, f.Out))
	require.Equal(t, uint64(2), f.Stats().Frames)
}

func TestFramerSplitInput(t *testing.T) {
	f := newFramer(ModeStartStop)
	now := time.Unix(10, 0)
	enc := Encode(f.In.Codec(), ModeStartStop, []byte{'\n', 7})
	for i := range enc {
		require.NoError(t, f.In.PutByte(enc[i]))
		frames := f.Step(now)
		if i < len(enc)-1 {
			require.Zero(t, frames)
		} else {
			require.Equal(t, 1, frames)
		}
	}
	require.Equal(t, []byte{'\n', 7}, nextPacket(t, f.Out))
}

func TestFramerDecodeErrorResyncs(t *testing.T) {
	f := newFramer(ModeStartStop | ModeDelimiter)
	now := time.Unix(10, 0)
	f.In.PutArray([]byte{'^', 's', 'a', '^', 'Q', 'b', '\n'})
	require.NoError(t, WriteFrame(f.In, ModeStartStop, []byte("ok")))
	require.Equal(t, 1, f.Step(now))
	require.Equal(t, []byte("ok"), nextPacket(t, f.Out))
	require.False(t, f.Out.HasWholePacket())
	stats := f.Stats()
	require.Equal(t, uint64(1), stats.DecodeErrors)
	require.Equal(t, uint64(1), stats.DroppedBytes)
	require.Equal(t, cirbuf.StatusNone, f.In.Status())
}

func TestFramerPartialTimeout(t *testing.T) {
	f := newFramer(ModeStartStop)
	f.PartialTimeout = time.Second
	now := time.Unix(10, 0)
	f.In.PutArray([]byte{'^', 's', 'a'})
	f.Step(now)
	require.True(t, f.State().IsReceiving())
	f.Step(now.Add(500 * time.Millisecond))
	require.True(t, f.State().IsReceiving())
	f.Step(now.Add(time.Second))
	require.False(t, f.State().IsReceiving())
	require.Equal(t, uint64(1), f.Stats().DroppedBytes)
}

func TestFramerOutputOverflow(t *testing.T) {
	in := cirbuf.New(64, cirbuf.TypeStreaming, cirbuf.FormatBinaryEsc)
	out := cirbuf.New(8, cirbuf.TypePacket, cirbuf.FormatBinary)
	f := NewFramer(in, out, ModeDelimiter)
	WriteFrame(in, ModeDelimiter, []byte("12345"))
	WriteFrame(in, ModeDelimiter, []byte("678"))
	require.Equal(t, 1, f.Step(time.Now()))
	require.Equal(t, uint64(1), f.Stats().Overflows)
	require.True(t, out.PacketEqual("12345"))
}
