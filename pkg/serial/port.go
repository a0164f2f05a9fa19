// Package serial binds a byte stream device to a pair of circular buffers.
//
// The receive goroutine plays the interrupt context of a UART: it is the
// only producer of the Rx buffer and writes straight into its storage.
// The transmit goroutine is the only consumer of the Tx buffer.
package serial

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
	"github.com/robotalks/cirbuf/pkg/framework"
)

// DefaultPollInterval is how often an idle transmitter checks Tx.
const DefaultPollInterval = 5 * time.Millisecond

// Stats are the traffic counters of a Port.
type Stats struct {
	RxBytes   uint64
	TxBytes   uint64
	RxDropped uint64
}

// Port moves bytes between a device and its Rx/Tx buffers.
type Port struct {
	PortName     string
	Device       io.ReadWriter
	Rx           *cirbuf.Buffer
	Tx           *cirbuf.Buffer
	PollInterval time.Duration
	// OnReceive is called from the receive goroutine after bytes are
	// published to Rx, typically Loop.TriggerNext.
	OnReceive func()

	kickCh    chan struct{}
	rxBytes   atomic.Uint64
	txBytes   atomic.Uint64
	rxDropped atomic.Uint64
}

// NewPort creates a Port.
func NewPort(name string, dev io.ReadWriter, rx, tx *cirbuf.Buffer) *Port {
	return &Port{
		PortName:     name,
		Device:       dev,
		Rx:           rx,
		Tx:           tx,
		PollInterval: DefaultPollInterval,
		kickCh:       make(chan struct{}, 1),
	}
}

// OpenDevice opens a serial device node which is already configured
// (baud rate, raw mode).
func OpenDevice(path string) (io.ReadWriteCloser, error) {
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial device %s", path)
	}
	return f, nil
}

// Name implements framework.Named.
func (p *Port) Name() string {
	return p.PortName
}

// Stats returns the traffic counters.
func (p *Port) Stats() Stats {
	return Stats{
		RxBytes:   p.rxBytes.Load(),
		TxBytes:   p.txBytes.Load(),
		RxDropped: p.rxDropped.Load(),
	}
}

// Kick wakes up the transmitter after data was put into Tx.
func (p *Port) Kick() {
	select {
	case p.kickCh <- struct{}{}:
	default:
	}
}

// Run implements framework.Runnable.
func (p *Port) Run(ctx context.Context) error {
	if p.kickCh == nil {
		p.kickCh = make(chan struct{}, 1)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	txErrCh := make(chan error, 1)
	if p.Tx != nil {
		go func() { txErrCh <- p.transmit(ctx) }()
	} else {
		txErrCh <- nil
	}

	var rxErr error
	if closer, ok := p.Device.(io.Closer); ok {
		rxErr = framework.RunWithContextCloser(ctx, closer, p.receive)
	} else {
		rxErr = framework.RunWithContext(ctx, p.receive)
	}
	cancel()
	txErr := <-txErrCh
	var errs framework.AggregatedError
	for _, err := range []error{rxErr, txErr} {
		if err != nil && errors.Cause(err) != context.Canceled {
			errs.Add(err)
		}
	}
	return errs.Aggregate()
}

func (p *Port) receive() error {
	if p.Rx == nil {
		return nil
	}
	var discard [64]byte
	for {
		view := p.Rx.GetWrArr()
		if len(view) == 0 {
			n, err := p.Device.Read(discard[:])
			if n > 0 {
				p.rxBytes.Add(uint64(n))
				// Space may have been freed while Read blocked.
				put, _ := p.Rx.Write(discard[:n])
				if dropped := n - put; dropped > 0 {
					p.rxDropped.Add(uint64(dropped))
					glog.V(2).Infof("%s: rx overflow, dropped %d bytes", p.PortName, dropped)
				}
				if put > 0 && p.OnReceive != nil {
					p.OnReceive()
				}
			}
			if err != nil {
				return p.readErr(err)
			}
			continue
		}
		n, err := p.Device.Read(view)
		if n > 0 {
			p.rxBytes.Add(uint64(n))
			if e := p.Rx.UpdatePut(n); e != nil {
				return e
			}
			glog.V(4).Infof("%s: rx %d bytes", p.PortName, n)
			if p.OnReceive != nil {
				p.OnReceive()
			}
		}
		if err != nil {
			return p.readErr(err)
		}
	}
}

func (p *Port) readErr(err error) error {
	if err == io.EOF {
		return nil
	}
	return errors.Wrapf(err, "%s: read", p.PortName)
}

func (p *Port) transmit(ctx context.Context) error {
	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for view := p.Tx.GetRdArr(); len(view) > 0; view = p.Tx.GetRdArr() {
			n, err := p.Device.Write(view)
			if n > 0 {
				p.txBytes.Add(uint64(n))
				p.Tx.RemoveBytes(n)
				glog.V(4).Infof("%s: tx %d bytes", p.PortName, n)
			}
			if err != nil {
				return errors.Wrapf(err, "%s: write", p.PortName)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.kickCh:
		case <-ticker.C:
		}
	}
}
