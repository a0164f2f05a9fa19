// Package dht decodes DHT11/DHT22 humidity and temperature sensors.
//
// The pin change interrupt is the producer: on every edge it puts a 16 bit
// word into the edge buffer, bit 15 is the new pin level and bits 0-14 the
// timer tick in 8us units. The Decoder drains the buffer from the main loop.
package dht

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
)

// Model is the sensor model.
type Model uint8

// Sensor models.
const (
	DHT22 Model = iota
	DHT11
)

const (
	// TickDuration is the duration of one edge tick.
	TickDuration = 8 * time.Microsecond
	// DefaultTimeout is the maximum duration of one read cycle.
	DefaultTimeout = 100 * time.Millisecond

	levelBit = 0x8000
	tickMask = 0x7fff
	dataBits = 40
)

// Reading is a decoded measurement.
type Reading struct {
	// Humidity in percent relative humidity.
	Humidity float64
	// Temperature in degrees Celsius.
	Temperature float64
}

// String implements fmt.Stringer.
func (r Reading) String() string {
	return fmt.Sprintf("%.1f%%RH %.1fC", r.Humidity, r.Temperature)
}

type state int

const (
	stateIdle state = iota
	stateWaitResponse
	stateWaitPrepare
	stateReadData
)

// Decoder runs the read cycle state machine of one sensor.
type Decoder struct {
	Name    string
	Model   Model
	Edges   *cirbuf.Buffer
	Timeout time.Duration

	status   cirbuf.Register
	state    state
	started  time.Time
	lastTick uint16
	cnt      int
	data     [5]byte
	reading  Reading
	fresh    bool
}

// NewDecoder creates a Decoder with its own edge buffer.
func NewDecoder(name string, model Model) *Decoder {
	return &Decoder{
		Name:    name,
		Model:   model,
		Edges:   cirbuf.New(256, cirbuf.TypeStreaming, cirbuf.FormatBinary, cirbuf.WithName(name)),
		Timeout: DefaultTimeout,
	}
}

// PutEdge records a pin change. Called from the interrupt context.
func (d *Decoder) PutEdge(high bool, tick uint16) error {
	w := tick & tickMask
	if high {
		w |= levelBit
	}
	return d.Edges.PutWord(w)
}

// Status returns the sticky status of the last read cycle.
func (d *Decoder) Status() cirbuf.Status {
	return d.status.Get()
}

// IsIdle tells if no read cycle is running.
func (d *Decoder) IsIdle() bool {
	return d.state == stateIdle
}

// Start begins a read cycle. The caller drives the start pulse on the pin.
func (d *Decoder) Start(now time.Time) error {
	if d.Edges == nil {
		return d.status.Fail(cirbuf.StatusInvalidPort)
	}
	if d.state != stateIdle {
		return d.status.Fail(cirbuf.StatusBusy)
	}
	d.Edges.Empty()
	d.status.Clear()
	d.cnt, d.data = 0, [5]byte{}
	d.started = now
	d.state = stateWaitResponse
	return nil
}

// Reading returns the last reading and whether it is new since the
// previous call.
func (d *Decoder) Reading() (Reading, bool) {
	fresh := d.fresh
	d.fresh = false
	return d.reading, fresh
}

// Task processes recorded edges and checks the cycle timeout.
func (d *Decoder) Task(now time.Time) {
	for d.Edges.Count() >= 2 {
		lo, _ := d.Edges.GetByte()
		hi, _ := d.Edges.GetByte()
		d.edge(uint16(lo) | uint16(hi)<<8)
	}
	if d.state != stateIdle && now.Sub(d.started) > d.timeout() {
		glog.Warningf("dht %s: timeout", d.Name)
		d.fail(cirbuf.StatusNoResponse)
	}
}

func (d *Decoder) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

func (d *Decoder) fail(s cirbuf.Status) {
	d.status.Set(s)
	d.state = stateIdle
}

func (d *Decoder) edge(w uint16) {
	tick := w & tickMask
	old := d.lastTick
	d.lastTick = tick
	if d.state == stateIdle || w&levelBit != 0 {
		return
	}
	us := int((tick-old)&tickMask) * int(TickDuration/time.Microsecond)
	switch d.state {
	case stateWaitResponse:
		d.state = stateWaitPrepare
	case stateWaitPrepare:
		d.state = stateReadData
	case stateReadData:
		if us < 10 || us > 256 {
			glog.V(2).Infof("dht %s: bit %d high for %dus", d.Name, d.cnt, us)
			d.fail(cirbuf.StatusDecode)
			return
		}
		d.data[d.cnt/8] <<= 1
		if us > 50 {
			d.data[d.cnt/8] |= 1
		}
		if d.cnt++; d.cnt == dataBits {
			d.finish()
		}
	}
}

func (d *Decoder) finish() {
	if Checksum(d.data[0], d.data[1], d.data[2], d.data[3]) != d.data[4] {
		glog.V(2).Infof("dht %s: crc error % x", d.Name, d.data)
		d.fail(cirbuf.StatusCRCFailure)
		return
	}
	d.reading = Decode(d.Model, d.data)
	d.fresh = true
	d.state = stateIdle
}

// Decode converts the 5 data bytes of a read cycle.
func Decode(model Model, data [5]byte) Reading {
	if model == DHT11 {
		return Reading{Humidity: float64(data[0]), Temperature: float64(data[2])}
	}
	r := Reading{
		Humidity:    float64(uint16(data[0])<<8|uint16(data[1])) / 10,
		Temperature: float64(uint16(data[2]&0x7f)<<8|uint16(data[3])) / 10,
	}
	if data[2]&0x80 != 0 {
		r.Temperature = -r.Temperature
	}
	return r
}
