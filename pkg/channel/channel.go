// Package channel assembles the buffers of a serial channel.
//
// A channel owns three buffers: Rx receives the escaped byte stream from
// the device, Frames holds the packets recovered from Rx, and Tx queues
// the escaped stream to the device. Decoded frames are fanned out to
// subscribers (bridges, websocket clients).
package channel

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
	"github.com/robotalks/cirbuf/pkg/frame"
	"github.com/robotalks/cirbuf/pkg/framework"
	pb "github.com/robotalks/cirbuf/pkg/proto/cirbuf/v1"
	"github.com/robotalks/cirbuf/pkg/serial"
)

// DefaultSubscriptionDepth is the queue depth of a subscription.
const DefaultSubscriptionDepth = 16

// Channel is a named serial channel.
type Channel struct {
	Config Config
	Rx     *cirbuf.Buffer
	Tx     *cirbuf.Buffer
	Frames *cirbuf.Buffer
	Framer *frame.Framer
	// Port is set by Attach.
	Port *serial.Port

	mode frame.Mode
	buf  []byte

	txLock   sync.Mutex
	subsLock sync.RWMutex
	subs     map[*Subscription]struct{}

	delivered atomic.Uint64
	lagged    atomic.Uint64
}

// Subscription receives the frames of a channel.
type Subscription struct {
	C <-chan []byte

	ch      chan []byte
	channel *Channel
	once    sync.Once
}

// New creates a Channel from config.
func New(conf Config) (*Channel, error) {
	s, err := conf.parse()
	if err != nil {
		return nil, err
	}
	c := &Channel{
		Config: conf,
		mode:   s.mode,
		subs:   make(map[*Subscription]struct{}),
	}
	c.Rx = cirbuf.New(s.rxSize, cirbuf.TypeStreaming, s.format, cirbuf.WithName(conf.Name+".rx"))
	c.Tx = cirbuf.New(s.txSize, cirbuf.TypeStreaming, s.format, cirbuf.WithName(conf.Name+".tx"))
	opts := []cirbuf.Option{cirbuf.WithName(conf.Name + ".frames")}
	if conf.Contiguous {
		opts = append(opts, cirbuf.WithContiguousPackets())
	}
	c.Frames = cirbuf.New(s.framesSize, s.typ, cirbuf.FormatBinary, opts...)
	if c.Frames.MaxPacketDataSize() <= 0 {
		return nil, errors.Errorf("channel %s: frames buffer too small", conf.Name)
	}
	c.Framer = frame.NewFramer(c.Rx, c.Frames, s.mode)
	c.Framer.PartialTimeout = conf.PartialTimeout
	c.buf = make([]byte, c.Frames.MaxPacketDataSize())
	return c, nil
}

// Name implements framework.Named.
func (c *Channel) Name() string {
	return c.Config.Name
}

// Mode returns the framing of the channel.
func (c *Channel) Mode() frame.Mode {
	return c.mode
}

// Attach binds a device to Rx and Tx.
func (c *Channel) Attach(dev io.ReadWriter) *serial.Port {
	c.Port = serial.NewPort(c.Config.Name, dev, c.Rx, c.Tx)
	return c.Port
}

// Send queues p as a frame for transmission. It is safe to call from
// multiple goroutines and implements bridge.Sink.
func (c *Channel) Send(p []byte) error {
	if len(p) > c.Frames.MaxPacketDataSize() {
		return errors.Wrapf(cirbuf.ErrInvalidSize, "channel %s: frame of %d bytes", c.Config.Name, len(p))
	}
	c.txLock.Lock()
	err := frame.WriteFrame(c.Tx, c.mode, p)
	c.txLock.Unlock()
	if err != nil {
		return errors.Wrapf(err, "channel %s", c.Config.Name)
	}
	if c.Port != nil {
		c.Port.Kick()
	}
	return nil
}

// Subscribe registers a subscription with the specified queue depth.
// A subscriber which doesn't keep up loses frames.
func (c *Channel) Subscribe(depth int) *Subscription {
	if depth <= 0 {
		depth = DefaultSubscriptionDepth
	}
	s := &Subscription{ch: make(chan []byte, depth), channel: c}
	s.C = s.ch
	c.subsLock.Lock()
	c.subs[s] = struct{}{}
	c.subsLock.Unlock()
	return s
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.channel.subsLock.Lock()
		delete(s.channel.subs, s)
		close(s.ch)
		s.channel.subsLock.Unlock()
	})
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (c *Channel) AddToLoop(l *framework.Loop) {
	l.AddHooks(c.Rx, c.Frames)
	l.Add(c.Framer)
	l.AddPoller(framework.PrLvDispatch, c)
	if c.Config.Loopback {
		l.AddPoller(framework.PrLvBuffer, framework.PollFunc(c.loopback))
	}
	if c.Port != nil {
		c.Port.OnReceive = l.TriggerNext
		l.AddRunnable(c.Port)
	}
}

// Poll implements framework.Poller. It is the consumer of Frames.
func (c *Channel) Poll(framework.PollContext) error {
	c.Dispatch()
	return nil
}

// Dispatch delivers all queued frames to the subscribers and returns the
// number of frames.
func (c *Channel) Dispatch() int {
	frames := 0
	for c.Frames.HasWholePacket() {
		n, err := c.Frames.GetPacket(c.buf)
		if err != nil {
			glog.Warningf("channel %s: bad frame dropped: %v", c.Config.Name, err)
			c.Frames.RemovePacket()
			continue
		}
		frames++
		pkt := make([]byte, n)
		copy(pkt, c.buf[:n])
		c.publish(pkt)
	}
	return frames
}

func (c *Channel) publish(pkt []byte) {
	c.subsLock.RLock()
	defer c.subsLock.RUnlock()
	for s := range c.subs {
		select {
		case s.ch <- pkt:
			c.delivered.Add(1)
		default:
			c.lagged.Add(1)
			glog.V(2).Infof("channel %s: subscriber lagging, frame dropped", c.Config.Name)
		}
	}
}

// loopback is the consumer of Tx and the producer of Rx.
func (c *Channel) loopback(framework.PollContext) error {
	c.Tx.Move(c.Rx)
	return nil
}

// Status returns a snapshot of buffers and counters.
func (c *Channel) Status() *pb.ChannelStatus {
	fs := c.Framer.Stats()
	st := &pb.ChannelStatus{
		Channel:      c.Config.Name,
		Active:       c.Rx.IsActive(),
		RxCount:      uint32(c.Rx.Count()),
		RxCapacity:   uint32(c.Rx.Cap()),
		RxStatus:     c.Rx.Status().String(),
		TxCount:      uint32(c.Tx.Count()),
		TxCapacity:   uint32(c.Tx.Cap()),
		TxStatus:     c.Tx.Status().String(),
		Frames:       fs.Frames,
		DroppedBytes: fs.DroppedBytes,
		DecodeErrors: fs.DecodeErrors,
		Overflows:    fs.Overflows,
	}
	if c.Port != nil {
		ps := c.Port.Stats()
		st.RxBytes, st.TxBytes = ps.RxBytes, ps.TxBytes
	}
	return st
}

// SubscriberStats returns the number of frames delivered to subscribers
// and lost because a subscriber was lagging.
func (c *Channel) SubscriberStats() (delivered, lagged uint64) {
	return c.delivered.Load(), c.lagged.Load()
}
