// Package node runs the battery transmitter duty cycle: wake, sample,
// encode, redundant burst, suspend. One activation is one measurement;
// there is no long-lived process state to protect.
package node

import (
	"sync"
	"time"

	"github.com/openaqua/tdslink/helpers"
	"github.com/openaqua/tdslink/internal/radio"
	"github.com/openaqua/tdslink/internal/sensor"
	"github.com/openaqua/tdslink/internal/wire"
	"github.com/openaqua/tdslink/log2"
)

type Controller struct {
	cfg      Config
	radioCfg radio.Config
	radio    radio.Radio
	unit     *sensor.Unit
	suspend  Suspender
	log      *log2.Log
}

func NewController(cfg Config, radioCfg radio.Config, r radio.Radio, unit *sensor.Unit, s Suspender, log *log2.Log) *Controller {
	radioCfg.SetDefaults()
	return &Controller{
		cfg:      cfg,
		radioCfg: radioCfg,
		radio:    r,
		unit:     unit,
		suspend:  s,
		log:      log,
	}
}

// Run executes exactly one activation. Every failure path still ends in
// Suspend so a broken peripheral cannot keep the node awake draining
// the battery. Run only returns when the Suspender returns (tests).
func (c *Controller) Run() {
	cause, raw := ReadWakeCause()
	c.log.Infof("%s", cause.Describe(raw))

	if err := c.radio.Init(); err != nil {
		c.log.Errorf("radio not found: %v", err)
		c.Suspend()
		return
	}
	if err := radio.Setup(c.radio, c.radioCfg, c.log); err != nil {
		c.log.Errorf("radio setup: %v", err)
		c.Suspend()
		return
	}
	if err := c.unit.Init(); err != nil {
		c.log.Errorf("sensor init: %v", err)
		c.Suspend()
		return
	}

	m, err := c.unit.Sample()
	if err != nil {
		c.log.Errorf("sample: %v", err)
		c.Suspend()
		return
	}
	s, err := wire.Encode(m)
	if err != nil {
		c.log.Errorf("encode %s: %v", m.String(), err)
		c.Suspend()
		return
	}

	SendBurst(c.radio, []byte(s), c.cfg.BurstWindow(), c.cfg.BurstGap(), c.log)
	c.log.Infof("radio sent: %s", s)

	// lets the radio settle before power-down, mirrors the burst tail gap
	time.Sleep(c.cfg.Grace())
	c.Suspend()
}

// Suspend releases the peripherals and hands control to the Suspender.
func (c *Controller) Suspend() {
	wg := sync.WaitGroup{}
	errch := make(chan error, 2)
	wg.Add(2)
	go helpers.WrapErrChan(&wg, errch, c.unit.Close)
	go helpers.WrapErrChan(&wg, errch, c.radio.Close)
	wg.Wait()
	close(errch)
	if err := helpers.FoldErrChan(errch); err != nil {
		c.log.Errorf("peripheral close: %v", err)
	}
	d := c.cfg.Sleep()
	c.log.Infof("suspending for %s", d)
	c.suspend.Suspend(d)
}
