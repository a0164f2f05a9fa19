package frame

import (
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
	"github.com/robotalks/cirbuf/pkg/framework"
)

// Stats are the counters of a Framer.
type Stats struct {
	Frames       uint64
	DroppedBytes uint64
	DecodeErrors uint64
	Overflows    uint64
}

// Framer drains an escaped stream buffer and queues complete frames into
// a packet buffer. It runs in the consumer context of In and the producer
// context of Out.
type Framer struct {
	Parser
	In  *cirbuf.Buffer
	Out *cirbuf.Buffer
	// Timeout discards a partial frame which stopped growing, zero disables.
	PartialTimeout time.Duration

	lastActivity time.Time
	frames       atomic.Uint64
	droppedBytes atomic.Uint64
	decodeErrors atomic.Uint64
	overflows    atomic.Uint64
}

// NewFramer creates a Framer.
func NewFramer(in, out *cirbuf.Buffer, mode Mode) *Framer {
	return &Framer{
		Parser: Parser{Mode: mode, MaxFrame: out.MaxPacketDataSize(), state: stateIdle},
		In:     in,
		Out:    out,
	}
}

// Stats returns the counters, safe from any goroutine.
func (f *Framer) Stats() Stats {
	return Stats{
		Frames:       f.frames.Load(),
		DroppedBytes: f.droppedBytes.Load(),
		DecodeErrors: f.decodeErrors.Load(),
		Overflows:    f.overflows.Load(),
	}
}

// AddToLoop implements framework.LoopAdder.
func (f *Framer) AddToLoop(l *framework.Loop) {
	l.AddPoller(framework.PrLvDecode, f)
}

// Poll implements framework.Poller.
func (f *Framer) Poll(ctx framework.PollContext) error {
	f.Step(ctx.Time())
	return nil
}

// Step processes all available input and returns the number of frames
// queued.
func (f *Framer) Step(now time.Time) int {
	frames := 0
	consumed := false
	for {
		c, kind, err := f.In.GetEscapedByte()
		if err != nil {
			if cirbuf.StatusOf(err) != cirbuf.StatusDecode {
				break
			}
			// skip the escape marker of the malformed pair
			f.In.RemoveByte()
			f.decodeErrors.Add(1)
			f.account(f.Parser.Resync())
			consumed = true
			continue
		}
		consumed = true
		if f.account(f.Parser.Parse(c, kind)) {
			frames++
		}
	}
	if consumed {
		f.lastActivity = now
		f.In.ClearError()
	} else if f.PartialTimeout > 0 && f.State().IsReceiving() && now.Sub(f.lastActivity) >= f.PartialTimeout {
		glog.V(2).Infof("framer %s: partial frame timed out", f.In.Name())
		f.account(f.Parser.Timeout())
	}
	return frames
}

func (f *Framer) account(pr ParseResult) bool {
	if pr.Dropped > 0 {
		f.droppedBytes.Add(uint64(pr.Dropped))
		glog.V(2).Infof("framer %s: dropped %d bytes", f.In.Name(), pr.Dropped)
	}
	if pr.Frame == nil {
		return false
	}
	if err := f.Out.PutPacket(pr.Frame); err != nil {
		f.overflows.Add(1)
		glog.Warningf("framer %s: frame of %d bytes lost: %v", f.In.Name(), len(pr.Frame), err)
		return false
	}
	f.frames.Add(1)
	return true
}

// Encode returns p framed for mode: enclosed in ^s ^p for ModeStartStop,
// otherwise terminated by the delimiter.
func Encode(c cirbuf.Codec, mode Mode, p []byte) []byte {
	out := make([]byte, 0, c.EncodedLen(p)+4)
	if mode&ModeStartStop != 0 {
		out = append(out, c.Escape, cirbuf.CtrlStart)
		out = c.AppendEncode(out, p)
		return append(out, c.Escape, cirbuf.CtrlStop)
	}
	return append(c.AppendEncode(out, p), c.Delimiter)
}

// WriteFrame puts p framed for mode into an escaped stream buffer, all or
// nothing.
func WriteFrame(tx *cirbuf.Buffer, mode Mode, p []byte) error {
	return tx.PutString(string(Encode(tx.Codec(), mode, p)))
}
