// Package wire is the radio payload contract shared by both nodes.
// ASCII `TD,<ppm>,<volt>` where ppm is integer-rounded and volt carries
// 2 fractional digits. Must match byte-for-byte on both sides.
package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

const (
	Prefix = "TD,"

	// max payload accepted by the radio send path
	MaxEncodedLength = 64
	// receive buffer, radio hardware limit
	MaxPacketLength = 255
)

// One reading of the water quality sensor. Immutable after creation,
// lives for exactly one transmit cycle.
type Measurement struct {
	ConcentrationPPM float32
	SensorVoltage    float32
}

func (m Measurement) String() string {
	return fmt.Sprintf("ppm=%.0f v=%.2f", m.ConcentrationPPM, m.SensorVoltage)
}

func Encode(m Measurement) (string, error) {
	s := fmt.Sprintf("%s%.0f,%.2f", Prefix, m.ConcentrationPPM, m.SensorVoltage)
	if len(s) > MaxEncodedLength {
		return "", errors.Errorf("wire encode overflow len=%d max=%d m=%s", len(s), MaxEncodedLength, m.String())
	}
	return s, nil
}

func Decode(s string) (Measurement, error) {
	var m Measurement
	if !strings.HasPrefix(s, Prefix) {
		return m, errors.NotValidf("wire decode prefix input=%q", s)
	}
	rest := s[len(Prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return m, errors.NotValidf("wire decode separator input=%q", s)
	}
	ppm, err := strconv.ParseFloat(rest[:comma], 32)
	if err != nil {
		return m, errors.NotValidf("wire decode ppm input=%q", s)
	}
	volt, err := strconv.ParseFloat(rest[comma+1:], 32)
	if err != nil {
		return m, errors.NotValidf("wire decode volt input=%q", s)
	}
	m.ConcentrationPPM = float32(ppm)
	m.SensorVoltage = float32(volt)
	return m, nil
}
