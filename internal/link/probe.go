package link

import (
	"net"
	"time"

	"github.com/juju/errors"
	"github.com/openaqua/tdslink/helpers"
	"github.com/openaqua/tdslink/log2"
	"github.com/temoto/alive/v2"
)

const (
	defaultProbeInterval = 10 * time.Second
	probeDialTimeout     = 5 * time.Second
)

// Probe is a Provider that synthesizes link events from periodic TCP
// dials to the collector host. Used with the HTTP forwarder, which has
// no link layer of its own to report events.
var _ Provider = &Probe{} // compile-time interface test

type Probe struct {
	addr     string
	interval time.Duration
	log      *log2.Log
	events   chan Event
	kick     chan struct{}
	wasUp    bool
	dial     func() error
}

func NewProbe(cfg Config, log *log2.Log) (*Probe, error) {
	if cfg.ProbeAddr == "" {
		return nil, errors.NotValidf("link probe_addr empty")
	}
	p := &Probe{
		addr:     cfg.ProbeAddr,
		interval: helpers.IntSecondDefault(cfg.ProbeIntervalSec, defaultProbeInterval),
		log:      log,
		events:   make(chan Event, 8),
		kick:     make(chan struct{}, 1),
	}
	p.dial = p.dialTCP
	return p, nil
}

func (p *Probe) Start(a *alive.Alive) {
	if !a.Add(1) {
		return
	}
	p.events <- Event{Kind: EventLinkStart}
	go p.loop(a)
}

// Connect schedules an immediate probe.
func (p *Probe) Connect() error {
	select {
	case p.kick <- struct{}{}:
	default:
	}
	return nil
}

func (p *Probe) Events() <-chan Event { return p.events }

func (p *Probe) loop(a *alive.Alive) {
	defer a.Done()
	stopch := a.StopChan()
	tmr := time.NewTicker(p.interval)
	defer tmr.Stop()
	for {
		select {
		case <-p.kick:
			p.step()
		case <-tmr.C:
			p.step()
		case <-stopch:
			return
		}
	}
}

// step emits an event only on an edge, repeated results are silent.
func (p *Probe) step() {
	err := p.dial()
	up := err == nil
	switch {
	case up && !p.wasUp:
		p.emit(Event{Kind: EventAddrAcquired})
	case !up && p.wasUp:
		p.log.Debugf("link probe addr=%s err=%v", p.addr, err)
		p.emit(Event{Kind: EventLinkDrop})
	case !up:
		// still down, manager counts each failed reconnect attempt
		p.log.Debugf("link probe addr=%s err=%v", p.addr, err)
		p.emit(Event{Kind: EventLinkDrop})
	}
	p.wasUp = up
}

func (p *Probe) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.log.Errorf("link probe event=%s dropped, consumer stalled", ev.Kind.String())
	}
}

func (p *Probe) dialTCP() error {
	conn, err := net.DialTimeout("tcp", p.addr, probeDialTimeout)
	if err != nil {
		return err
	}
	return conn.Close()
}
