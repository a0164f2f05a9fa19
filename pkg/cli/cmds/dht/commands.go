// Package dht provides shell commands decoding simulated DHT sensor
// cycles.
package dht

import (
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cli/sh"
	"github.com/robotalks/cirbuf/pkg/sensor/dht"
)

// ParseBytes parses 4 or 5 bytes, the checksum is computed when absent.
func ParseBytes(args []string) (data [5]byte, err error) {
	if len(args) != 4 && len(args) != 5 {
		return data, errors.New("4 or 5 BYTES required")
	}
	for n, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return data, errors.Errorf("invalid byte %q", arg)
		}
		data[n] = byte(v)
	}
	if len(args) == 4 {
		data[4] = dht.Checksum(data[0], data[1], data[2], data[3])
	}
	return data, nil
}

// Cycle plays data on a new decoder of model and returns the reading.
func Cycle(model dht.Model, data [5]byte) (dht.Reading, error) {
	d := dht.NewDecoder("sim", model)
	now := time.Now()
	if err := d.Start(now); err != nil {
		return dht.Reading{}, err
	}
	if _, err := dht.PlayCycle(d, 0, data); err != nil {
		return dht.Reading{}, err
	}
	d.Task(now)
	if err := d.Status().Err(); err != nil {
		return dht.Reading{}, err
	}
	r, fresh := d.Reading()
	if !fresh {
		return r, errors.New("no reading")
	}
	return r, nil
}

func readCmd(model dht.Model) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		data, err := ParseBytes(c.Args)
		if err != nil {
			c.Err(err)
			return
		}
		r, err := Cycle(model, data)
		if err != nil {
			c.Err(err)
			return
		}
		sh.Print(c, r, r.String())
	}
}

var (
	// DHT22Cmd decodes a DHT22 cycle.
	DHT22Cmd = ishell.Cmd{
		Name: "dht22",
		Help: "B0 B1 B2 B3 [CRC]",
		Func: readCmd(dht.DHT22),
	}

	// DHT11Cmd decodes a DHT11 cycle.
	DHT11Cmd = ishell.Cmd{
		Name: "dht11",
		Help: "B0 B1 B2 B3 [CRC]",
		Func: readCmd(dht.DHT11),
	}
)

func init() {
	sh.AddCmds(&DHT22Cmd, &DHT11Cmd)
}
