// Package sensor produces one Measurement per transmitter activation:
// average a burst of raw ADC reads, convert to voltage, compensate for
// temperature, apply the TDS calibration polynomial.
package sensor

import (
	"time"

	"github.com/juju/errors"
	"github.com/openaqua/tdslink/internal/wire"
	"github.com/openaqua/tdslink/log2"
)

type Unit struct {
	cfg Config
	adc ADC
	log *log2.Log
}

func NewUnit(cfg Config, adc ADC, log *log2.Log) *Unit {
	cfg.SetDefaults()
	return &Unit{cfg: cfg, adc: adc, log: log}
}

func (u *Unit) Init() error  { return u.adc.Init() }
func (u *Unit) Close() error { return u.adc.Close() }

// Sample averages cfg.Samples raw reads with a small delay between them
// to damp electrical noise. A read failure is fatal to the whole cycle.
func (u *Unit) Sample() (wire.Measurement, error) {
	var m wire.Measurement
	delay := time.Duration(u.cfg.SampleDelayMs) * time.Millisecond

	sum := 0
	for i := 0; i < u.cfg.Samples; i++ {
		raw, err := u.adc.ReadRaw()
		if err != nil {
			return m, errors.Annotatef(err, "sample %d/%d", i+1, u.cfg.Samples)
		}
		sum += raw
		time.Sleep(delay)
	}
	rawAvg := float64(sum) / float64(u.cfg.Samples)
	voltage := rawAvg * (u.cfg.Vref / float64(u.cfg.FullScale))

	m.ConcentrationPPM = float32(Concentration(voltage, u.cfg.TemperatureC))
	m.SensorVoltage = float32(voltage)
	u.log.Debugf("sensor raw_avg=%.1f %s", rawAvg, m.String())
	return m, nil
}

// Concentration maps sensor voltage to TDS ppm: linear temperature
// compensation (~2%/°C from 25°C) then the common E-201-C cubic
// calibration scaled by 0.5. Never negative.
func Concentration(voltage, temperatureC float64) float64 {
	comp := voltage / (1.0 + 0.02*(temperatureC-25.0))
	tds := (133.42*comp*comp*comp - 255.86*comp*comp + 857.39*comp) * 0.5
	if tds < 0 {
		tds = 0
	}
	return tds
}
