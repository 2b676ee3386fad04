// Package gate runs the mains-powered receiver: continuous radio listen,
// frame decode, forward to the collector when the uplink is up. The
// recovery story is restart, not repair: watchdogs and the post-publish
// policy trade session state for a periodically clean process.
package gate

import (
	"time"

	"github.com/juju/errors"
	"github.com/openaqua/tdslink/internal/forward"
	"github.com/openaqua/tdslink/internal/link"
	"github.com/openaqua/tdslink/internal/radio"
	"github.com/openaqua/tdslink/internal/wire"
	"github.com/openaqua/tdslink/log2"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"
)

// RestartFunc escalates to a process restart. Production wiring exits
// and lets the supervisor relaunch.
type RestartFunc func(reason string)

type Gate struct {
	cfg      Config
	radioCfg radio.Config
	radio    radio.Radio
	fwd      forward.Forwarder
	link     *link.Manager
	restart  RestartFunc
	log      *log2.Log

	lastRecv *atomic_clock.Clock
}

func NewGate(cfg Config, radioCfg radio.Config, r radio.Radio, fwd forward.Forwarder, lm *link.Manager, restart RestartFunc, log *log2.Log) *Gate {
	radioCfg.SetDefaults()
	return &Gate{
		cfg:      cfg,
		radioCfg: radioCfg,
		radio:    r,
		fwd:      fwd,
		link:     lm,
		restart:  restart,
		log:      log,
		lastRecv: atomic_clock.New(),
	}
}

// Run brings the radio up and spawns the listen loop and watchdogs.
// Unlike the transmitter, a dead radio here is fatal: a gateway that
// cannot listen has no duty cycle to fall back to.
func (g *Gate) Run(a *alive.Alive) error {
	if err := g.radio.Init(); err != nil {
		return errors.Annotate(err, "gate radio init")
	}
	if err := radio.Setup(g.radio, g.radioCfg, g.log); err != nil {
		return errors.Annotate(err, "gate radio setup")
	}
	if err := g.radio.StartReceive(); err != nil {
		return errors.Annotate(err, "gate radio receive")
	}
	g.startWatchdogs(a)
	if !a.Add(1) {
		return errors.Errorf("gate run: alive is stopping")
	}
	go g.loop(a)
	return nil
}

func (g *Gate) loop(a *alive.Alive) {
	defer a.Done()
	stopch := a.StopChan()
	idle := g.cfg.IdlePoll()
	buf := make([]byte, wire.MaxPacketLength)
	for a.IsRunning() {
		select {
		case <-stopch:
			return
		default:
		}

		avail, err := g.radio.PacketAvailable()
		if err != nil {
			g.log.Errorf("gate poll err=%v", err)
			time.Sleep(idle)
			continue
		}
		if !avail {
			time.Sleep(idle)
			continue
		}

		n, err := g.radio.ReadPacket(buf)
		switch {
		case err != nil:
			g.log.Errorf("gate read err=%v", err)
		case n <= 0 || n >= wire.MaxPacketLength:
			g.log.Debugf("gate drop frame length=%d", n)
		default:
			g.handleFrame(buf[:n])
		}
		// receive mode is not sticky across a read, always re-arm
		if err := g.radio.StartReceive(); err != nil {
			g.log.Errorf("gate rearm err=%v", err)
		}
	}
}

func (g *Gate) handleFrame(frame []byte) {
	m, err := wire.Decode(string(frame))
	if err != nil {
		g.log.Debugf("gate drop frame=%q err=%v", frame, err)
		return
	}
	g.lastRecv.SetNow()
	g.log.Infof("gate recv %s", m.String())

	if !g.link.Up() {
		g.log.Infof("link %s, measurement dropped", g.link.State().String())
		return
	}
	if err := g.fwd.Forward(m); err != nil {
		g.log.Errorf("forward err=%v", err)
		return
	}
	if !g.cfg.NoRestartAfterPublish {
		g.restart("post-publish refresh")
	}
}

// LastReceive reports how long ago the last valid frame arrived, and
// whether any frame has arrived at all.
func (g *Gate) LastReceive() (time.Duration, bool) {
	if g.lastRecv.IsZero() {
		return 0, false
	}
	return atomic_clock.Since(g.lastRecv), true
}
