package hidboot

import (
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
)

// Device is the board side of the HID link. HandleReport runs in the USB
// receive context and is the producer of Rx and DebugRx; NextReport runs
// in the USB transmit context and is the consumer of Tx and DebugTx.
type Device struct {
	Info DeviceInfo
	// Rx receives [Command][Data] packets not handled by the link itself.
	Rx *cirbuf.Buffer
	// Tx holds [Command][Data] packets to send to the host.
	Tx *cirbuf.Buffer
	// DebugRx receives debug messages, as packets or as a stream.
	DebugRx *cirbuf.Buffer
	// DebugTx holds debug output sent once the host asked for device info.
	DebugTx *cirbuf.Buffer
	OnReset func()

	infoSent atomic.Bool
}

// HandleReport processes a report from the host and returns the immediate
// reply, if any.
func (d *Device) HandleReport(p []byte) ([]byte, error) {
	if len(p) > 0 && p[0] == CmdDeviceInfo {
		d.infoSent.Store(true)
		return d.Info.Report(), nil
	}
	r, err := ParseReport(p)
	if err != nil {
		return nil, err
	}
	switch r.Command {
	case CmdDebugMessage:
		d.putDebug(r.Data)
	case CmdResetDevice:
		d.infoSent.Store(false)
		if d.OnReset != nil {
			d.OnReset()
		}
	default:
		if d.Rx == nil {
			return nil, nil
		}
		pkt := make([]byte, 0, len(r.Data)+1)
		pkt = append(append(pkt, r.Command), r.Data...)
		if err := d.Rx.PutPacket(pkt); err != nil {
			return nil, errors.Wrapf(err, "queue command 0x%02x", r.Command)
		}
	}
	return nil, nil
}

func (d *Device) putDebug(data []byte) {
	if d.DebugRx == nil {
		return
	}
	if d.DebugRx.Type() == cirbuf.TypeStreaming {
		if d.DebugRx.Free() >= len(data) {
			d.DebugRx.PutArray(data)
		}
		return
	}
	if n := len(data); n > 0 && data[n-1] == 0 {
		data = data[:n-1]
	}
	d.DebugRx.PutPacket(data)
}

// NextReport returns the next report for the host.
func (d *Device) NextReport() ([]byte, bool) {
	if d.DebugTx != nil && d.DebugTx.HasData() && d.infoSent.Load() {
		data := make([]byte, MaxData)
		n := d.DebugTx.GetArray(data)
		out, _ := Report{Command: CmdDebugMessage, Data: data[:n]}.MarshalBinary()
		return out, true
	}
	if d.Tx == nil || !d.Tx.HasWholePacket() {
		return nil, false
	}
	size, err := d.Tx.GetPacketDataSize()
	if err != nil {
		return nil, false
	}
	if size == 0 {
		return nil, false
	}
	if size-1 > MaxData {
		glog.Warningf("hid tx packet of %d bytes too big, tx buffer emptied", size)
		d.Tx.Empty()
		return nil, false
	}
	pkt := make([]byte, size)
	d.Tx.GetArray(pkt)
	out, _ := Report{Command: pkt[0], Data: pkt[1:]}.MarshalBinary()
	return out, true
}

// Reply queues a [Command][Data] packet for the host. Producer of Tx.
func (d *Device) Reply(cmd byte, data []byte) error {
	pkt := make([]byte, 0, len(data)+1)
	return d.Tx.PutPacket(append(append(pkt, cmd), data...))
}
