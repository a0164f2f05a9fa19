package channel

import (
	"time"

	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
	"github.com/robotalks/cirbuf/pkg/frame"
)

// Default sizes of a channel's buffers.
const (
	DefaultRxSize     = 512
	DefaultTxSize     = 512
	DefaultFramesSize = 1024
)

// Config describes a channel, usually loaded from the YAML config file.
type Config struct {
	Name string `yaml:"name" json:"name"`
	// Device is the path of the serial device, empty for a detached
	// channel.
	Device string `yaml:"device,omitempty" json:"device,omitempty"`
	// Loopback moves everything sent back into Rx, used for testing
	// without a device.
	Loopback bool `yaml:"loopback,omitempty" json:"loopback,omitempty"`
	// Listen is the TCP address serving length prefixed frames.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	RxSize     int `yaml:"rx_size,omitempty" json:"rx_size,omitempty"`
	TxSize     int `yaml:"tx_size,omitempty" json:"tx_size,omitempty"`
	FramesSize int `yaml:"frames_size,omitempty" json:"frames_size,omitempty"`
	// Type is the packet type of the decoded frames buffer: packet or
	// packet-large.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
	// Format is the escaped format of the device stream: ascii-esc or
	// binary-esc.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	// Framing is start-stop, delimiter or both.
	Framing    string `yaml:"framing,omitempty" json:"framing,omitempty"`
	Contiguous bool   `yaml:"contiguous,omitempty" json:"contiguous,omitempty"`
	// PartialTimeout discards partial frames which stopped growing.
	PartialTimeout time.Duration `yaml:"partial_timeout,omitempty" json:"partial_timeout,omitempty"`
}

// layout is the validated form of Config.
type layout struct {
	rxSize, txSize, framesSize int
	typ                        cirbuf.Type
	format                     cirbuf.Format
	mode                       frame.Mode
}

// ParseFraming parses the framing name.
func ParseFraming(s string) (frame.Mode, error) {
	switch s {
	case "", "start-stop":
		return frame.ModeStartStop, nil
	case "delimiter":
		return frame.ModeDelimiter, nil
	case "both":
		return frame.ModeStartStop | frame.ModeDelimiter, nil
	}
	return 0, errors.Errorf("unknown framing %q", s)
}

func sizeOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (c *Config) parse() (s layout, err error) {
	if c.Name == "" {
		return s, errors.New("channel name is required")
	}
	s.rxSize = sizeOr(c.RxSize, DefaultRxSize)
	s.txSize = sizeOr(c.TxSize, DefaultTxSize)
	s.framesSize = sizeOr(c.FramesSize, DefaultFramesSize)

	s.typ = cirbuf.TypePacket
	if c.Type != "" {
		if s.typ, err = cirbuf.ParseType(c.Type); err != nil {
			return s, errors.Wrapf(err, "channel %s", c.Name)
		}
		if s.typ == cirbuf.TypeStreaming {
			return s, errors.Errorf("channel %s: frames buffer must be a packet type", c.Name)
		}
	}
	s.format = cirbuf.FormatBinaryEsc
	if c.Format != "" {
		if s.format, err = cirbuf.ParseFormat(c.Format); err != nil {
			return s, errors.Wrapf(err, "channel %s", c.Name)
		}
		if !s.format.Escaped() {
			return s, errors.Errorf("channel %s: stream format must be escaped", c.Name)
		}
	}
	if s.mode, err = ParseFraming(c.Framing); err != nil {
		return s, errors.Wrapf(err, "channel %s", c.Name)
	}
	if c.Loopback && c.Device != "" {
		return s, errors.Errorf("channel %s: loopback and device are exclusive", c.Name)
	}
	return s, nil
}
