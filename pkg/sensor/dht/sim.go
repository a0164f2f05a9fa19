package dht

// Checksum returns the fifth byte of a read cycle for the four data bytes.
func Checksum(b0, b1, b2, b3 byte) byte {
	return b0 + b1 + b2 + b3
}

// Tick lengths of a well behaved sensor, in 8us units.
const (
	simResponse = 10
	simBitLow   = 6
	simZero     = 3
	simOne      = 9
)

// PlayCycle records the edges of a sensor answering with data, starting
// at tick. It stands in for the pin interrupt when no sensor is wired and
// returns the tick after the last edge.
func PlayCycle(d *Decoder, tick uint16, data [5]byte) (uint16, error) {
	edge := func(high bool, after uint16) error {
		tick = (tick + after) & tickMask
		return d.PutEdge(high, tick)
	}
	if err := edge(false, 5); err != nil {
		return tick, err
	}
	if err := edge(true, simResponse); err != nil {
		return tick, err
	}
	if err := edge(false, simResponse); err != nil {
		return tick, err
	}
	for i := 0; i < dataBits; i++ {
		high := uint16(simZero)
		if data[i/8]&(0x80>>(i%8)) != 0 {
			high = simOne
		}
		if err := edge(true, simBitLow); err != nil {
			return tick, err
		}
		if err := edge(false, high); err != nil {
			return tick, err
		}
	}
	return tick, nil
}
