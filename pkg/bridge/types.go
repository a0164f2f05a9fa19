// Package bridge forwards channel packets to and from remote peers.
package bridge

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Sink accepts packets from a remote peer, typically a channel queuing
// them for transmission.
type Sink interface {
	Send([]byte) error
}

// SinkFunc is the func form of Sink.
type SinkFunc func([]byte) error

// Send implements Sink.
func (f SinkFunc) Send(p []byte) error {
	return f(p)
}
