package hidboot

import (
	"github.com/golang/glog"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
)

// Loopback connects a Client to an in-process Device, standing in for the
// USB endpoints.
type Loopback struct {
	Client *Client
	Device *Device
}

// NewLoopback creates a Client and a Device with info linked together.
// Reports are transferred whenever the client sends.
func NewLoopback(info DeviceInfo) *Loopback {
	l := &Loopback{
		Client: NewClient(
			cirbuf.New(512, cirbuf.TypePacket, cirbuf.FormatBinary, cirbuf.WithName("hid.host.tx")),
			cirbuf.New(512, cirbuf.TypePacket, cirbuf.FormatBinary, cirbuf.WithName("hid.host.rx")),
		),
		Device: &Device{
			Info:    info,
			Rx:      cirbuf.New(256, cirbuf.TypePacket, cirbuf.FormatBinary, cirbuf.WithName("hid.dev.rx")),
			Tx:      cirbuf.New(256, cirbuf.TypePacket, cirbuf.FormatBinary, cirbuf.WithName("hid.dev.tx")),
			DebugRx: cirbuf.New(64, cirbuf.TypePacket, cirbuf.FormatBinary, cirbuf.WithName("hid.dev.dbgrx")),
			DebugTx: cirbuf.New(128, cirbuf.TypeStreaming, cirbuf.FormatASCII, cirbuf.WithName("hid.dev.dbgtx")),
		},
	}
	l.Client.OnSend = func() {
		if err := l.Transfer(); err != nil {
			glog.Warningf("hid loopback: %v", err)
		}
	}
	return l
}

// Transfer moves pending reports host to device, then device to host,
// and lets the client process the replies.
func (l *Loopback) Transfer() error {
	buf := make([]byte, ReportSize)
	for l.Client.Tx.HasWholePacket() {
		n, err := l.Client.Tx.GetPacket(buf)
		if err != nil {
			return err
		}
		reply, err := l.Device.HandleReport(buf[:n])
		if err != nil {
			return err
		}
		if reply != nil {
			if err := l.Client.Rx.PutPacket(reply); err != nil {
				return err
			}
		}
	}
	for {
		report, ok := l.Device.NextReport()
		if !ok {
			break
		}
		if err := l.Client.Rx.PutPacket(report); err != nil {
			return err
		}
	}
	return l.Client.Poll(nil)
}
