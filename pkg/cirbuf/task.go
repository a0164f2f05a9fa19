package cirbuf

import (
	"time"

	"github.com/golang/glog"
)

type stallState struct {
	rd, wr uint32
	since  time.Time
}

func (s *stallState) reset() {
	s.since = time.Time{}
}

// partial tells if the readable bytes start with an incomplete packet or
// an unterminated frame.
func (b *Buffer) partial(r, w uint32) bool {
	cnt := b.used(w, r)
	if cnt == 0 {
		return false
	}
	switch {
	case b.isPacket():
		return !b.HasWholePacket()
	case b.format.Escaped() && b.codec.HasDelimiter:
		_, ok := b.frameEnd(r, cnt)
		return !ok
	}
	return false
}

// Task is the periodic hook called from the consumer context. It never
// blocks. With WithPartialTimeout it discards a partial head packet or
// frame that has not grown for the timeout and records StatusUnderflow.
func (b *Buffer) Task(now time.Time) {
	if b.partialTimeout <= 0 {
		return
	}
	r, w := b.rd.Load(), b.wr.Load()
	if !b.partial(r, w) {
		b.stall.reset()
		return
	}
	if b.stall.since.IsZero() || b.stall.rd != r || b.stall.wr != w {
		b.stall = stallState{rd: r, wr: w, since: now}
		return
	}
	if now.Sub(b.stall.since) < b.partialTimeout {
		return
	}
	b.rd.Store(w)
	b.stall.reset()
	b.status.Set(StatusUnderflow)
	glog.Warningf("cirbuf %s: discarded %d bytes of a stalled partial message", b.name, b.used(w, r))
}
