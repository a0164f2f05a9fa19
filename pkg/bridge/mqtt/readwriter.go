package mqtt

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"

	pb "github.com/robotalks/cirbuf/pkg/proto/cirbuf/v1"
)

// ReadWriter implements bridge.PacketReadWriter. Packets are carried in
// pb.Frame messages.
type ReadWriter struct {
	PubSub   PubSub
	Device   string
	Channel  string
	SubTopic string
	PubTopic string

	seq      atomic.Uint64
	packetCh chan []byte
	sub      io.Closer
	done     chan struct{}
	once     sync.Once
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(ps PubSub) *ReadWriter {
	return &ReadWriter{
		PubSub:   ps,
		packetCh: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForChannel sets topics using the convention of a device side channel:
// SubTopic = device/channel/tx
// PubTopic = device/channel/rx
func (p *ReadWriter) ForChannel(device, channel string) *ReadWriter {
	p.Device, p.Channel = device, channel
	prefix := device + "/" + channel
	return p.WithTopics(prefix+"/tx", prefix+"/rx")
}

// ForRemote sets topics using the convention of a remote peer of the
// channel, reversed from ForChannel.
func (p *ReadWriter) ForRemote(device, channel string) *ReadWriter {
	p.Device, p.Channel = device, channel
	prefix := device + "/" + channel
	return p.WithTopics(prefix+"/rx", prefix+"/tx")
}

// Open subscribes SubTopic.
func (p *ReadWriter) Open() error {
	sub, err := p.PubSub.Subscribe(p.SubTopic, p.handleMsg)
	if err != nil {
		return err
	}
	p.sub = sub
	return nil
}

// ReadPacket implements bridge.PacketReader. Malformed messages are
// skipped.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	for {
		f, err := p.ReadFrame()
		if err == io.EOF {
			return nil, err
		}
		if err != nil {
			glog.Warningf("mqtt %s: %v", p.SubTopic, err)
			continue
		}
		return f.Data, nil
	}
}

// ReadFrame reads the next frame with its metadata.
func (p *ReadWriter) ReadFrame() (*pb.Frame, error) {
	select {
	case pkt := <-p.packetCh:
		var f pb.Frame
		if err := proto.Unmarshal(pkt, &f); err != nil {
			return nil, errors.Wrap(err, "decode frame")
		}
		return &f, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements bridge.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	f := &pb.Frame{
		Channel:     p.Channel,
		Device:      p.Device,
		Seq:         p.seq.Add(1),
		Data:        pkt,
		TimestampNs: time.Now().UnixNano(),
	}
	encoded, err := proto.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	return p.PubSub.Publish(p.PubTopic, encoded, 0, false)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() (err error) {
	p.once.Do(func() {
		close(p.done)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return
}

func (p *ReadWriter) handleMsg(topic string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.done:
	default:
		glog.Warningf("mqtt %s: reader lagging, message dropped", topic)
	}
}
