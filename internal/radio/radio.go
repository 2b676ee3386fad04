// Package radio drives the long-range transceiver. Both nodes must be
// configured with identical PHY values (frequency, bandwidth, coding rate,
// spreading factor, CRC) — deployment invariant, not enforced on the wire.
package radio

import (
	"github.com/juju/errors"
	"github.com/openaqua/tdslink/log2"
)

// Radio is the transceiver driver contract.
// Send is fire-and-forget, the protocol has no acknowledgments.
// The driver is not guaranteed to stay in receive mode after ReadPacket,
// callers re-arm with StartReceive after every read.
type Radio interface {
	Init() error
	SetFrequency(hz int64) error
	SetBandwidth(bw int) error
	SetCodingRate(cr int) error
	SetSpreadingFactor(sf int) error
	EnableCRC() error
	Send(p []byte) error
	StartReceive() error
	PacketAvailable() (bool, error)
	ReadPacket(buf []byte) (int, error)
	Close() error
}

type Config struct { //nolint:maligned
	Driver string `hcl:"driver"` // sx127x|rylr

	// sx127x
	Spi          string `hcl:"spi"`
	ResetPinChip string `hcl:"reset_pin_chip"`
	ResetPin     int    `hcl:"reset_pin"`

	// rylr
	SerialDevice string `hcl:"serial_device"`
	SerialBaud   int    `hcl:"serial_baud"`

	// PHY, must match on both nodes
	FrequencyHz     int64 `hcl:"frequency_hz"`
	Bandwidth       int   `hcl:"bandwidth"`
	CodingRate      int   `hcl:"coding_rate"`
	SpreadingFactor int   `hcl:"spreading_factor"`
	DisableCrc      bool  `hcl:"disable_crc"`
}

func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sx127x"
	}
	if c.FrequencyHz == 0 {
		c.FrequencyHz = 915000000
	}
	if c.Bandwidth == 0 {
		c.Bandwidth = 7 // 125 kHz
	}
	if c.CodingRate == 0 {
		c.CodingRate = 1 // 4/5
	}
	if c.SpreadingFactor == 0 {
		c.SpreadingFactor = 9
	}
	if c.SerialBaud == 0 {
		c.SerialBaud = 115200
	}
}

func New(cfg Config, log *log2.Log) (Radio, error) {
	cfg.SetDefaults()
	switch cfg.Driver {
	case "sx127x":
		return NewSX127x(cfg, log), nil
	case "rylr":
		return NewRYLR(cfg, log), nil
	default:
		return nil, errors.NotValidf("radio driver=%s", cfg.Driver)
	}
}

// Setup applies the PHY parameters in the shared order after Init.
func Setup(r Radio, cfg Config, log *log2.Log) error {
	cfg.SetDefaults()
	if err := r.SetFrequency(cfg.FrequencyHz); err != nil {
		return errors.Annotate(err, "radio set frequency")
	}
	if !cfg.DisableCrc {
		if err := r.EnableCRC(); err != nil {
			return errors.Annotate(err, "radio enable crc")
		}
	}
	if err := r.SetCodingRate(cfg.CodingRate); err != nil {
		return errors.Annotate(err, "radio set coding rate")
	}
	if err := r.SetBandwidth(cfg.Bandwidth); err != nil {
		return errors.Annotate(err, "radio set bandwidth")
	}
	if err := r.SetSpreadingFactor(cfg.SpreadingFactor); err != nil {
		return errors.Annotate(err, "radio set spreading factor")
	}
	log.Debugf("radio phy freq=%d bw=%d cr=%d sf=%d crc=%t",
		cfg.FrequencyHz, cfg.Bandwidth, cfg.CodingRate, cfg.SpreadingFactor, !cfg.DisableCrc)
	return nil
}
