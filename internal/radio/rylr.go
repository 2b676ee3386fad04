package radio

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/openaqua/tdslink/log2"
	"go.bug.st/serial"
)

// rylr drives a RYLR896-style AT-command LoRa modem over a serial line.
// The modem handles modulation internally and is always listening when
// not transmitting, so StartReceive has nothing to arm.
type rylr struct {
	cfg  Config
	log  *log2.Log
	port serial.Port

	// AT+PARAMETER carries all four values in one command
	sf       int
	bw       int
	cr       int
	preamble int

	acc []byte
	rxq [][]byte
}

const (
	rylrCmdTimeout = 2 * time.Second
	rylrReadSlice  = 50 * time.Millisecond
)

func NewRYLR(cfg Config, log *log2.Log) Radio {
	cfg.SetDefaults()
	return &rylr{
		cfg:      cfg,
		log:      log,
		sf:       cfg.SpreadingFactor,
		bw:       cfg.Bandwidth,
		cr:       cfg.CodingRate,
		preamble: 4,
	}
}

func (r *rylr) Init() error {
	mode := &serial.Mode{
		BaudRate: r.cfg.SerialBaud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(r.cfg.SerialDevice, mode)
	if err != nil {
		return errors.Annotatef(err, "rylr open device=%s", r.cfg.SerialDevice)
	}
	if err = port.SetReadTimeout(rylrReadSlice); err != nil {
		port.Close()
		return errors.Annotate(err, "rylr read timeout")
	}
	r.port = port
	if err = r.command("AT"); err != nil {
		r.port.Close()
		r.port = nil
		return errors.NotFoundf("rylr modem device=%s err=%v", r.cfg.SerialDevice, err)
	}
	return nil
}

func (r *rylr) SetFrequency(hz int64) error {
	return r.command(fmt.Sprintf("AT+BAND=%d", hz))
}

func (r *rylr) SetBandwidth(bw int) error {
	r.bw = bw
	return r.sendParameters()
}

func (r *rylr) SetCodingRate(cr int) error {
	r.cr = cr
	return r.sendParameters()
}

func (r *rylr) SetSpreadingFactor(sf int) error {
	r.sf = sf
	return r.sendParameters()
}

// modem checks payload CRC on its own, nothing to switch
func (r *rylr) EnableCRC() error {
	r.log.Debugf("rylr crc is always on")
	return nil
}

func (r *rylr) sendParameters() error {
	return r.command(fmt.Sprintf("AT+PARAMETER=%d,%d,%d,%d", r.sf, r.bw, r.cr, r.preamble))
}

func (r *rylr) Send(p []byte) error {
	return r.command(fmt.Sprintf("AT+SEND=0,%d,%s", len(p), string(p)))
}

func (r *rylr) StartReceive() error { return nil }

func (r *rylr) PacketAvailable() (bool, error) {
	if len(r.rxq) > 0 {
		return true, nil
	}
	if err := r.poll(); err != nil {
		return false, err
	}
	return len(r.rxq) > 0, nil
}

func (r *rylr) ReadPacket(buf []byte) (int, error) {
	if len(r.rxq) == 0 {
		if err := r.poll(); err != nil {
			return 0, err
		}
		if len(r.rxq) == 0 {
			return 0, nil
		}
	}
	p := r.rxq[0]
	r.rxq = r.rxq[1:]
	n := copy(buf, p)
	return n, nil
}

func (r *rylr) Close() error {
	if r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	return err
}

// command writes an AT command and consumes lines until +OK / +ERR.
// Unsolicited +RCV lines arriving meanwhile are queued, not lost.
func (r *rylr) command(cmd string) error {
	if _, err := r.port.Write([]byte(cmd + "\r\n")); err != nil {
		return errors.Annotatef(err, "rylr write cmd=%s", cmd)
	}
	deadline := time.Now().Add(rylrCmdTimeout)
	for {
		line, err := r.readLine()
		if err != nil {
			return errors.Annotatef(err, "rylr response cmd=%s", cmd)
		}
		switch {
		case line == "":
			if time.Now().After(deadline) {
				return errors.Timeoutf("rylr response cmd=%s", cmd)
			}
		case line == "+OK" || line == "+READY":
			return nil
		case strings.HasPrefix(line, "+ERR="):
			return errors.Errorf("rylr cmd=%s response=%s", cmd, line)
		case strings.HasPrefix(line, "+RCV="):
			r.pushReceived(line)
		default:
			r.log.Debugf("rylr ignore line=%q", line)
		}
	}
}

// poll drains whatever the modem pushed since the last look.
func (r *rylr) poll() error {
	for {
		line, err := r.readLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		if strings.HasPrefix(line, "+RCV=") {
			r.pushReceived(line)
		} else {
			r.log.Debugf("rylr ignore line=%q", line)
		}
	}
}

// readLine returns the next complete line or "" after one read timeout slice.
func (r *rylr) readLine() (string, error) {
	for {
		if i := indexNewline(r.acc); i >= 0 {
			line := strings.TrimRight(string(r.acc[:i]), "\r")
			r.acc = r.acc[i+1:]
			if line != "" {
				return line, nil
			}
			continue
		}
		buf := make([]byte, 256)
		n, err := r.port.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 { // read timeout
			return "", nil
		}
		r.acc = append(r.acc, buf[:n]...)
	}
}

func indexNewline(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return -1
}

// +RCV=<addr>,<length>,<data>,<rssi>,<snr> with data of exactly length bytes
func (r *rylr) pushReceived(line string) {
	rest := line[len("+RCV="):]
	comma1 := strings.IndexByte(rest, ',')
	if comma1 < 0 {
		r.log.Errorf("rylr malformed rcv=%q", line)
		return
	}
	rest = rest[comma1+1:]
	comma2 := strings.IndexByte(rest, ',')
	if comma2 < 0 {
		r.log.Errorf("rylr malformed rcv=%q", line)
		return
	}
	length, err := strconv.Atoi(rest[:comma2])
	if err != nil || length < 0 || comma2+1+length > len(rest) {
		r.log.Errorf("rylr malformed rcv=%q", line)
		return
	}
	data := rest[comma2+1 : comma2+1+length]
	r.rxq = append(r.rxq, []byte(data))
}
