package bridge_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/cirbuf/pkg/bridge"
	"github.com/robotalks/cirbuf/pkg/bridge/stream"
	"github.com/robotalks/cirbuf/pkg/cirbuf"
)

type sinkRecorder struct {
	packets chan []byte
	err     error
}

func (s *sinkRecorder) Send(p []byte) error {
	if s.err != nil {
		return s.err
	}
	s.packets <- p
	return nil
}

func startPump(t *testing.T, source chan []byte, sink bridge.Sink) (*bridge.Pump, *stream.ReadWriter, chan error) {
	local, remote := net.Pipe()
	p := bridge.NewPump("test", source, sink, stream.New(local))
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	return p, stream.New(remote), done
}

func TestPumpBothDirections(t *testing.T) {
	source := make(chan []byte, 2)
	sink := &sinkRecorder{packets: make(chan []byte, 2)}
	p, peer, done := startPump(t, source, sink)

	source <- []byte("to peer")
	pkt, err := peer.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte("to peer"), pkt)

	require.NoError(t, peer.WritePacket([]byte("from peer")))
	require.Equal(t, []byte("from peer"), <-sink.packets)

	require.NoError(t, peer.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pump not stopped")
	}
	require.Equal(t, bridge.PumpStats{Forwarded: 1, Received: 1}, p.Stats())
}

func TestPumpRejectsOnOverflow(t *testing.T) {
	sink := &sinkRecorder{err: cirbuf.ErrOverflow}
	p, peer, done := startPump(t, nil, sink)
	require.NoError(t, peer.WritePacket([]byte{1}))
	require.NoError(t, peer.WritePacket([]byte{2}))
	require.NoError(t, peer.Close())
	require.NoError(t, <-done)
	require.Equal(t, bridge.PumpStats{Received: 2, Rejected: 2}, p.Stats())
}

func TestPumpSinkError(t *testing.T) {
	sink := &sinkRecorder{err: cirbuf.ErrInvalidOp}
	_, peer, done := startPump(t, nil, sink)
	go peer.WritePacket([]byte{1})
	err := <-done
	require.Error(t, err)
	require.Equal(t, cirbuf.StatusInvalidOp, cirbuf.StatusOf(err))
}

func TestPumpSourceClosed(t *testing.T) {
	source := make(chan []byte)
	_, _, done := startPump(t, source, nil)
	close(source)
	require.NoError(t, <-done)
}

func TestPumpCancel(t *testing.T) {
	local, _ := net.Pipe()
	p := bridge.NewPump("test", nil, nil, stream.New(local))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}
