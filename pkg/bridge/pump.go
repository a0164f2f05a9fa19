package bridge

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
	"github.com/robotalks/cirbuf/pkg/framework"
)

// PumpStats are the counters of a Pump.
type PumpStats struct {
	Forwarded uint64
	Received  uint64
	Rejected  uint64
}

// Pump forwards packets from Source to ReadWriter and packets read from
// ReadWriter into Sink.
type Pump struct {
	PumpName   string
	Source     <-chan []byte
	Sink       Sink
	ReadWriter PacketReadWriter

	forwarded atomic.Uint64
	received  atomic.Uint64
	rejected  atomic.Uint64
}

// NewPump creates a Pump. Either source or sink can be nil for a
// single direction pump.
func NewPump(name string, source <-chan []byte, sink Sink, rw PacketReadWriter) *Pump {
	return &Pump{PumpName: name, Source: source, Sink: sink, ReadWriter: rw}
}

// Name implements framework.Named.
func (p *Pump) Name() string {
	return p.PumpName
}

// Stats returns the counters.
func (p *Pump) Stats() PumpStats {
	return PumpStats{
		Forwarded: p.forwarded.Load(),
		Received:  p.received.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Run implements framework.Runnable. It returns when the peer closes,
// Source is closed or ctx is done.
func (p *Pump) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fwdErrCh := make(chan error, 1)
	go func() {
		fwdErrCh <- p.forward(ctx)
		cancel()
	}()

	var rcvErr error
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		rcvErr = framework.RunWithContextCloser(ctx, closer, p.receive)
	} else {
		rcvErr = framework.RunWithContext(ctx, p.receive)
	}
	cancel()
	fwdErr := <-fwdErrCh

	var errs framework.AggregatedError
	for _, err := range []error{rcvErr, fwdErr} {
		if err != nil && errors.Cause(err) != context.Canceled {
			errs.Add(err)
		}
	}
	return errs.Aggregate()
}

func (p *Pump) forward(ctx context.Context) error {
	if p.Source == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-p.Source:
			if !ok {
				return nil
			}
			if err := p.ReadWriter.WritePacket(pkt); err != nil {
				return errors.Wrapf(err, "%s: write packet", p.PumpName)
			}
			p.forwarded.Add(1)
			glog.V(4).Infof("%s: forwarded %d bytes", p.PumpName, len(pkt))
		}
	}
}

func (p *Pump) receive() error {
	for {
		pkt, err := p.ReadWriter.ReadPacket()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "%s: read packet", p.PumpName)
		}
		p.received.Add(1)
		if p.Sink == nil {
			continue
		}
		if err := p.Sink.Send(pkt); err != nil {
			// a full Tx buffer drops the packet, the peer keeps going
			if s := cirbuf.StatusOf(err); s == cirbuf.StatusOverflow || s == cirbuf.StatusInvalidSize {
				p.rejected.Add(1)
				glog.Warningf("%s: packet of %d bytes rejected: %v", p.PumpName, len(pkt), err)
				continue
			}
			return errors.Wrapf(err, "%s: send", p.PumpName)
		}
	}
}
