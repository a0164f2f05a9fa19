// Package hidboot implements the USB HID command layer of netcruzer boards.
//
// Every HID report is 64 bytes: [Command][Size][Data(62)]. Reports other
// than the low level ones (device info, reset) travel through circular
// packet buffers as [Command][Data] packets.
package hidboot

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
)

// Command codes.
const (
	CmdDebugMessage   byte = 0x01
	CmdCommand        byte = 0x02
	CmdRequestCommand byte = 0x03
	CmdDeviceInfo     byte = 0x10
	CmdResetDevice    byte = 0x11
	CmdSync           byte = 0xA5
)

const (
	// ReportSize is the size of a HID report.
	ReportSize = 64
	// MaxData is the data capacity of a report.
	MaxData = ReportSize - 2
)

// BoardID identifies the board and the running firmware.
type BoardID uint16

// Board IDs.
const (
	BoardUnknown        BoardID = 0
	BoardDefaultDebug   BoardID = 1
	BoardSBC66ECConfig  BoardID = 10
	BoardSBC66ECMain    BoardID = 11
	BoardSBC66ECLConfig BoardID = 20
	BoardSBC66ECLMain   BoardID = 21
	BoardSBC66ZLConfig  BoardID = 30
	BoardSBC66ZLMain    BoardID = 31
	BoardSBC66ZBConfig  BoardID = 40
	BoardSBC66ZBMain    BoardID = 41
	BoardSBC66WLConfig  BoardID = 50
	BoardSBC66WLMain    BoardID = 51
	BoardSBC66WBConfig  BoardID = 60
	BoardSBC66WBMain    BoardID = 61
	BoardSBC32ULConfig  BoardID = 1000
	BoardSBC32ULMain    BoardID = 1001
)

var boardNames = map[BoardID]string{
	BoardUnknown:        "unknown",
	BoardDefaultDebug:   "debug",
	BoardSBC66ECConfig:  "SBC66EC config",
	BoardSBC66ECMain:    "SBC66EC",
	BoardSBC66ECLConfig: "SBC66ECL config",
	BoardSBC66ECLMain:   "SBC66ECL",
	BoardSBC66ZLConfig:  "SBC66ZL config",
	BoardSBC66ZLMain:    "SBC66ZL",
	BoardSBC66ZBConfig:  "SBC66ZB config",
	BoardSBC66ZBMain:    "SBC66ZB",
	BoardSBC66WLConfig:  "SBC66WL config",
	BoardSBC66WLMain:    "SBC66WL",
	BoardSBC66WBConfig:  "SBC66WB config",
	BoardSBC66WBMain:    "SBC66WB",
	BoardSBC32ULConfig:  "SBC32UL config",
	BoardSBC32ULMain:    "SBC32UL",
}

// String implements fmt.Stringer.
func (id BoardID) String() string {
	if name, ok := boardNames[id]; ok {
		return name
	}
	return fmt.Sprintf("board(%d)", uint16(id))
}

// IsConfig tells if the board runs its configuration (bootloader) firmware.
func (id BoardID) IsConfig() bool {
	return id >= 10 && id%2 == 0
}

// Report is a decoded HID report.
type Report struct {
	Command byte
	Data    []byte
}

// MarshalBinary encodes the report into 64 bytes.
func (r Report) MarshalBinary() ([]byte, error) {
	if len(r.Data) > MaxData {
		return nil, errors.Wrapf(cirbuf.ErrInvalidSize, "report data %d bytes", len(r.Data))
	}
	out := make([]byte, ReportSize)
	out[0], out[1] = r.Command, byte(len(r.Data))
	copy(out[2:], r.Data)
	return out, nil
}

// ParseReport decodes a HID report.
func ParseReport(p []byte) (Report, error) {
	if len(p) < 2 {
		return Report{}, errors.Wrap(cirbuf.ErrUnderflow, "short report")
	}
	size := int(p[1])
	if size > MaxData || 2+size > len(p) {
		return Report{}, errors.Wrapf(cirbuf.ErrInvalidSize, "report size %d", size)
	}
	return Report{Command: p[0], Data: append([]byte(nil), p[2:2+size]...)}, nil
}

// DeviceInfo is the reply to CmdDeviceInfo.
type DeviceInfo struct {
	BoardID  BoardID
	BoardRev uint16
}

// String implements fmt.Stringer.
func (i DeviceInfo) String() string {
	return fmt.Sprintf("%s rev %d", i.BoardID, i.BoardRev)
}

// Report encodes the info as [Command][reserved][BoardID][BoardRev],
// words little endian.
func (i DeviceInfo) Report() []byte {
	out := make([]byte, ReportSize)
	out[0] = CmdDeviceInfo
	binary.LittleEndian.PutUint16(out[2:], uint16(i.BoardID))
	binary.LittleEndian.PutUint16(out[4:], i.BoardRev)
	return out
}

// ParseDeviceInfo decodes a device info reply.
func ParseDeviceInfo(p []byte) (DeviceInfo, error) {
	if len(p) < 6 || p[0] != CmdDeviceInfo {
		return DeviceInfo{}, errors.New("not a device info report")
	}
	return DeviceInfo{
		BoardID:  BoardID(binary.LittleEndian.Uint16(p[2:])),
		BoardRev: binary.LittleEndian.Uint16(p[4:]),
	}, nil
}

// CommandString encodes a text command as NULL terminated data.
func CommandString(s string) []byte {
	return append([]byte(s), 0)
}
