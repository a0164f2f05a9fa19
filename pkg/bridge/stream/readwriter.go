// Package stream carries packets over a byte stream (TCP, pipes).
package stream

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxPacketSize limits the length accepted from the peer.
const MaxPacketSize = 1 << 16

// ErrPacketTooLarge is returned when the length prefix exceeds MaxPacketSize.
var ErrPacketTooLarge = errors.New("packet too large")

// ReadWriter implements bridge.PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket implements bridge.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p.ReadWriter, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, errors.Wrapf(ErrPacketTooLarge, "length %d", size)
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(p.ReadWriter, pkt); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements bridge.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.ReadWriter.Write(buf)
	return err
}

// Close closes the underlying stream if it is an io.Closer.
func (p *ReadWriter) Close() error {
	if c, ok := p.ReadWriter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
