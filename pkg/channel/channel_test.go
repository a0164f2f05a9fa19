package channel

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
	"github.com/robotalks/cirbuf/pkg/frame"
	"github.com/robotalks/cirbuf/pkg/framework"
)

func newLoopback(t *testing.T) (*Channel, *framework.Loop) {
	c, err := New(Config{Name: "lo", Loopback: true, RxSize: 64, TxSize: 64, FramesSize: 64})
	require.NoError(t, err)
	l := framework.NewLoop()
	l.Add(c)
	return c, l
}

func TestConfigDefaults(t *testing.T) {
	c, err := New(Config{Name: "uart"})
	require.NoError(t, err)
	require.Equal(t, DefaultRxSize, c.Rx.Cap())
	require.Equal(t, DefaultTxSize, c.Tx.Cap())
	require.Equal(t, DefaultFramesSize, c.Frames.Cap())
	require.Equal(t, cirbuf.FormatBinaryEsc, c.Rx.Format())
	require.Equal(t, cirbuf.TypePacket, c.Frames.Type())
	require.Equal(t, frame.ModeStartStop, c.Mode())
	require.Equal(t, "uart.rx", c.Rx.Name())
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		conf Config
	}{
		{"no name", Config{}},
		{"bad type", Config{Name: "a", Type: "bogus"}},
		{"stream frames", Config{Name: "a", Type: "stream"}},
		{"bad format", Config{Name: "a", Format: "bogus"}},
		{"plain format", Config{Name: "a", Format: "binary"}},
		{"bad framing", Config{Name: "a", Framing: "bogus"}},
		{"loopback device", Config{Name: "a", Loopback: true, Device: "/dev/null"}},
		{"tiny frames", Config{Name: "a", FramesSize: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.conf)
			require.Error(t, err)
		})
	}
}

func TestParseFraming(t *testing.T) {
	mode, err := ParseFraming("both")
	require.NoError(t, err)
	require.Equal(t, frame.ModeStartStop|frame.ModeDelimiter, mode)
	mode, err = ParseFraming("delimiter")
	require.NoError(t, err)
	require.Equal(t, frame.ModeDelimiter, mode)
}

func TestLoopbackDispatch(t *testing.T) {
	c, l := newLoopback(t)
	sub := c.Subscribe(4)
	defer sub.Close()

	require.NoError(t, c.Send([]byte{1, '^', '\n', 2}))
	require.NoError(t, c.Send([]byte("second")))
	l.RunOnce(context.Background(), time.Unix(1, 0))

	require.Equal(t, []byte{1, '^', '\n', 2}, <-sub.C)
	require.Equal(t, []byte("second"), <-sub.C)
	require.True(t, c.Tx.IsEmpty())
	require.True(t, c.Rx.IsEmpty())

	st := c.Status()
	require.Equal(t, "lo", st.Channel)
	require.EqualValues(t, 2, st.Frames)
	require.EqualValues(t, 64, st.RxCapacity)
	require.Equal(t, "none", st.RxStatus)
	delivered, lagged := c.SubscriberStats()
	require.EqualValues(t, 2, delivered)
	require.Zero(t, lagged)
}

func TestLaggingSubscriber(t *testing.T) {
	c, l := newLoopback(t)
	slow := c.Subscribe(1)
	fast := c.Subscribe(4)
	require.NoError(t, c.Send([]byte("a")))
	require.NoError(t, c.Send([]byte("b")))
	l.RunOnce(context.Background(), time.Unix(1, 0))

	require.Equal(t, []byte("a"), <-slow.C)
	require.Equal(t, []byte("a"), <-fast.C)
	require.Equal(t, []byte("b"), <-fast.C)
	_, lagged := c.SubscriberStats()
	require.EqualValues(t, 1, lagged)

	slow.Close()
	slow.Close()
	_, ok := <-slow.C
	require.False(t, ok)
}

func TestSendErrors(t *testing.T) {
	c, _ := newLoopback(t)
	err := c.Send(make([]byte, c.Frames.MaxPacketDataSize()+1))
	require.Equal(t, cirbuf.StatusInvalidSize, cirbuf.StatusOf(err))

	for err == nil || cirbuf.StatusOf(err) == cirbuf.StatusInvalidSize {
		err = c.Send(make([]byte, 20))
	}
	require.Equal(t, cirbuf.StatusOverflow, cirbuf.StatusOf(err))
}

func TestAttachedChannel(t *testing.T) {
	c, err := New(Config{Name: "uart", Framing: "delimiter"})
	require.NoError(t, err)
	dev, peer := net.Pipe()
	defer peer.Close()
	port := c.Attach(dev)
	require.Same(t, port, c.Port)

	l := framework.NewLoop()
	l.Add(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	sub := c.Subscribe(1)
	_, err = peer.Write(frame.Encode(c.Rx.Codec(), frame.ModeDelimiter, []byte("ping")))
	require.NoError(t, err)
	select {
	case pkt := <-sub.C:
		require.Equal(t, []byte("ping"), pkt)
	case <-time.After(5 * time.Second):
		t.Fatal("frame not received")
	}

	require.NoError(t, c.Send([]byte("pong")))
	expected := frame.Encode(c.Tx.Codec(), frame.ModeDelimiter, []byte("pong"))
	got := make([]byte, len(expected))
	_, err = peer.Read(got)
	require.NoError(t, err)
	require.Equal(t, expected, got)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistryFromConfig([]Config{{Name: "b"}, {Name: "a"}})
	require.NoError(t, err)
	chs := r.Channels()
	require.Len(t, chs, 2)
	require.Equal(t, "b", chs[0].Name())
	c, ok := r.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", c.Name())
	_, ok = r.Get("c")
	require.False(t, ok)
	require.Error(t, r.Add(c))

	_, err = NewRegistryFromConfig([]Config{{Name: "a"}, {Name: "a"}})
	require.Error(t, err)
}

func TestDeviceID(t *testing.T) {
	require.NotEmpty(t, DeviceID())
}
