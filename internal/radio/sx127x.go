package radio

import (
	"time"

	"github.com/juju/errors"
	"github.com/openaqua/tdslink/log2"
	gpio "github.com/temoto/gpio-cdev-go"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

const modName string = "sx127x"

// SX127x registers, LoRa mode
const (
	regFifo              = 0x00
	regOpMode            = 0x01
	regFrfMsb            = 0x06
	regFrfMid            = 0x07
	regFrfLsb            = 0x08
	regFifoAddrPtr       = 0x0d
	regFifoTxBaseAddr    = 0x0e
	regFifoRxBaseAddr    = 0x0f
	regFifoRxCurrentAddr = 0x10
	regIrqFlags          = 0x12
	regRxNbBytes         = 0x13
	regModemConfig1      = 0x1d
	regModemConfig2      = 0x1e
	regPayloadLength     = 0x22
	regVersion           = 0x42
)

const (
	opModeLora       = 0x80
	opModeSleep      = 0x00
	opModeStdby      = 0x01
	opModeTx         = 0x03
	opModeRxContinue = 0x05
)

const (
	irqTxDone     = 0x08
	irqPayloadCrc = 0x20
	irqRxDone     = 0x40
)

const (
	sxCrystalHz = 32000000
	sxFrfSteps  = 1 << 19

	txTimeout = 2 * time.Second
)

// sx127x talks to the transceiver over SPI, polling mode, with the reset
// line on a gpio character device. Layout follows the on-board SPI client
// pattern (mega): periph for the bus, gpio-cdev for the side pins.
type sx127x struct {
	cfg     Config
	log     *log2.Log
	spiPort spi.PortCloser
	spiConn spi.Conn
	pinChip gpio.Chiper
	pins    gpio.Lineser
	reset   gpio.LineSetFunc
}

func NewSX127x(cfg Config, log *log2.Log) Radio {
	return &sx127x{cfg: cfg, log: log}
}

func (s *sx127x) Init() error {
	if _, err := host.Init(); err != nil {
		return errors.Annotate(err, "periph/init")
	}

	spiPort, err := spireg.Open(s.cfg.Spi)
	if err != nil {
		return errors.Annotate(err, "SPI Open")
	}
	spiSpeed := 1 * physic.MegaHertz
	spiMode := spi.Mode(0)
	spiConn, err := spiPort.Connect(spiSpeed, spiMode, 8)
	if err != nil {
		spiPort.Close()
		return errors.Annotate(err, "SPI Connect")
	}
	s.spiPort = spiPort
	s.spiConn = spiConn

	if s.cfg.ResetPinChip != "" {
		s.pinChip, err = gpio.Open(s.cfg.ResetPinChip, modName)
		if err != nil {
			s.spiPort.Close()
			return errors.Annotatef(err, "reset pin open chip=%s", s.cfg.ResetPinChip)
		}
		s.pins, err = s.pinChip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, modName, uint32(s.cfg.ResetPin))
		if err != nil {
			s.pinChip.Close()
			s.spiPort.Close()
			return errors.Annotatef(err, "reset pin=%d", s.cfg.ResetPin)
		}
		s.reset = s.pins.SetFunc(uint32(s.cfg.ResetPin))
		s.hardwareReset()
	}

	version, err := s.readReg(regVersion)
	if err != nil {
		s.Close()
		return errors.Annotate(err, "read version")
	}
	if version != 0x12 {
		s.Close()
		return errors.NotFoundf("%s chip version=%02x", modName, version)
	}

	// LoRa mode is only settable from sleep
	if err = s.writeReg(regOpMode, opModeLora|opModeSleep); err != nil {
		return err
	}
	if err = s.writeReg(regFifoTxBaseAddr, 0); err != nil {
		return err
	}
	if err = s.writeReg(regFifoRxBaseAddr, 0); err != nil {
		return err
	}
	if err = s.writeReg(regOpMode, opModeLora|opModeStdby); err != nil {
		return err
	}
	s.log.Debugf("%s init ok version=%02x", modName, version)
	return nil
}

func (s *sx127x) hardwareReset() {
	// active low pulse, then boot delay per datasheet
	s.reset(0)
	s.pins.Flush() //nolint:errcheck
	time.Sleep(time.Millisecond)
	s.reset(1)
	s.pins.Flush() //nolint:errcheck
	time.Sleep(10 * time.Millisecond)
}

func (s *sx127x) SetFrequency(hz int64) error {
	frf := uint64(hz) * sxFrfSteps / sxCrystalHz
	if err := s.writeReg(regFrfMsb, byte(frf>>16)); err != nil {
		return err
	}
	if err := s.writeReg(regFrfMid, byte(frf>>8)); err != nil {
		return err
	}
	return s.writeReg(regFrfLsb, byte(frf))
}

// bw index 0..9 per SX1276 table, 7 = 125 kHz
func (s *sx127x) SetBandwidth(bw int) error {
	if bw < 0 || bw > 9 {
		return errors.NotValidf("%s bandwidth=%d", modName, bw)
	}
	return s.updateReg(regModemConfig1, 0x0f, byte(bw)<<4)
}

// cr 1..4 maps to 4/5..4/8
func (s *sx127x) SetCodingRate(cr int) error {
	if cr < 1 || cr > 4 {
		return errors.NotValidf("%s coding rate=%d", modName, cr)
	}
	return s.updateReg(regModemConfig1, 0xf1, byte(cr)<<1)
}

func (s *sx127x) SetSpreadingFactor(sf int) error {
	if sf < 6 || sf > 12 {
		return errors.NotValidf("%s spreading factor=%d", modName, sf)
	}
	return s.updateReg(regModemConfig2, 0x0f, byte(sf)<<4)
}

func (s *sx127x) EnableCRC() error {
	return s.updateReg(regModemConfig2, 0xfb, 0x04)
}

func (s *sx127x) Send(p []byte) error {
	if len(p) == 0 || len(p) > 255 {
		return errors.NotValidf("%s send len=%d", modName, len(p))
	}
	if err := s.writeReg(regOpMode, opModeLora|opModeStdby); err != nil {
		return err
	}
	if err := s.writeReg(regFifoAddrPtr, 0); err != nil {
		return err
	}
	for _, b := range p {
		if err := s.writeReg(regFifo, b); err != nil {
			return err
		}
	}
	if err := s.writeReg(regPayloadLength, byte(len(p))); err != nil {
		return err
	}
	if err := s.writeReg(regOpMode, opModeLora|opModeTx); err != nil {
		return err
	}

	deadline := time.Now().Add(txTimeout)
	for {
		flags, err := s.readReg(regIrqFlags)
		if err != nil {
			return err
		}
		if flags&irqTxDone != 0 {
			return s.writeReg(regIrqFlags, irqTxDone)
		}
		if time.Now().After(deadline) {
			return errors.Timeoutf("%s tx done", modName)
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *sx127x) StartReceive() error {
	return s.writeReg(regOpMode, opModeLora|opModeRxContinue)
}

func (s *sx127x) PacketAvailable() (bool, error) {
	flags, err := s.readReg(regIrqFlags)
	if err != nil {
		return false, err
	}
	if flags&irqPayloadCrc != 0 {
		// corrupt frame, drop silently like the no-CRC path
		if err = s.writeReg(regIrqFlags, irqPayloadCrc|irqRxDone); err != nil {
			return false, err
		}
		return false, nil
	}
	return flags&irqRxDone != 0, nil
}

func (s *sx127x) ReadPacket(buf []byte) (int, error) {
	n, err := s.readReg(regRxNbBytes)
	if err != nil {
		return 0, err
	}
	current, err := s.readReg(regFifoRxCurrentAddr)
	if err != nil {
		return 0, err
	}
	if err = s.writeReg(regFifoAddrPtr, current); err != nil {
		return 0, err
	}
	length := int(n)
	if length > len(buf) {
		length = len(buf)
	}
	for i := 0; i < length; i++ {
		b, err := s.readReg(regFifo)
		if err != nil {
			return 0, err
		}
		buf[i] = b
	}
	if err = s.writeReg(regIrqFlags, irqRxDone); err != nil {
		return 0, err
	}
	return length, nil
}

func (s *sx127x) Close() error {
	errs := make([]error, 0, 3)
	if s.spiConn != nil {
		// leave the chip in low power
		errs = append(errs, s.writeReg(regOpMode, opModeLora|opModeSleep))
	}
	if s.pins != nil {
		errs = append(errs, s.pins.Close())
		s.pins = nil
	}
	if s.pinChip != nil {
		errs = append(errs, s.pinChip.Close())
		s.pinChip = nil
	}
	if s.spiPort != nil {
		errs = append(errs, s.spiPort.Close())
		s.spiPort = nil
		s.spiConn = nil
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (s *sx127x) readReg(addr byte) (byte, error) {
	w := []byte{addr & 0x7f, 0}
	r := make([]byte, 2)
	if err := s.spiConn.Tx(w, r); err != nil {
		return 0, errors.Annotatef(err, "%s read reg=%02x", modName, addr)
	}
	return r[1], nil
}

func (s *sx127x) writeReg(addr, value byte) error {
	w := []byte{addr | 0x80, value}
	if err := s.spiConn.Tx(w, nil); err != nil {
		return errors.Annotatef(err, "%s write reg=%02x value=%02x", modName, addr, value)
	}
	return nil
}

func (s *sx127x) updateReg(addr, mask, set byte) error {
	old, err := s.readReg(addr)
	if err != nil {
		return err
	}
	return s.writeReg(addr, old&mask|set)
}
