package sensor

import (
	"encoding/binary"
	"time"

	"github.com/juju/errors"
	"github.com/openaqua/tdslink/internal/i2c"
)

// ADC is the sampling hardware driver contract.
// ReadRaw returns a code in [0, full_scale].
type ADC interface {
	Init() error
	ReadRaw() (int, error)
	Close() error
}

const (
	ads1115RegConversion = 0x00
	ads1115RegConfig     = 0x01

	// OS=1 single-shot, MUX=AIN0/GND, PGA=4.096V, MODE=single
	ads1115ConfigMSB = 0xc3
	// DR=128SPS, comparator disabled
	ads1115ConfigLSB = 0x83

	ads1115ConvWait = 10 * time.Millisecond
)

// ads1115 reads channel AIN0 in single-shot mode.
// Set sensor.vref=4.096 sensor.full_scale=32767 to match its code range.
type ads1115 struct {
	bus  i2c.Bus
	addr byte
}

func NewADS1115(bus i2c.Bus, addr byte) ADC {
	return &ads1115{bus: bus, addr: addr}
}

func (a *ads1115) Init() error {
	if err := a.bus.Init(); err != nil {
		return errors.Annotate(err, "ads1115 bus init")
	}
	// probe: reading config register fails fast when chip is absent
	br := make([]byte, 2)
	if err := a.bus.Tx(a.addr, []byte{ads1115RegConfig}, br); err != nil {
		return errors.NotFoundf("ads1115 probe addr=%02x err=%v", a.addr, err)
	}
	return nil
}

func (a *ads1115) ReadRaw() (int, error) {
	bw := []byte{ads1115RegConfig, ads1115ConfigMSB, ads1115ConfigLSB}
	if err := a.bus.Tx(a.addr, bw, nil); err != nil {
		return 0, errors.Annotate(err, "ads1115 start conversion")
	}
	time.Sleep(ads1115ConvWait)
	br := make([]byte, 2)
	if err := a.bus.Tx(a.addr, []byte{ads1115RegConversion}, br); err != nil {
		return 0, errors.Annotate(err, "ads1115 read conversion")
	}
	raw := int(int16(binary.BigEndian.Uint16(br)))
	if raw < 0 {
		// grounded input noise below zero code
		raw = 0
	}
	return raw, nil
}

func (a *ads1115) Close() error { return a.bus.Close() }
