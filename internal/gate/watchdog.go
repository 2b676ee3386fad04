package gate

import (
	"time"

	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"
)

// Two cooperating watchdogs, both resolving to restart:
// - periodic: unconditional, bounds the damage of any silent wedge
// - inactivity: fires when valid frames stop arriving, but only after
//   the first receipt so a not-yet-transmitting peer cannot trip it
func (g *Gate) startWatchdogs(a *alive.Alive) {
	if p := g.cfg.PeriodicRestart(); p > 0 {
		if a.Add(1) {
			go g.periodicLoop(a, p)
		}
	}
	if timeout := g.cfg.InactivityRestart(); timeout > 0 {
		if a.Add(1) {
			go g.inactivityLoop(a, timeout)
		}
	}
}

func (g *Gate) periodicLoop(a *alive.Alive, period time.Duration) {
	defer a.Done()
	select {
	case <-time.After(period):
		g.restart("periodic watchdog")
	case <-a.StopChan():
	}
}

func (g *Gate) inactivityLoop(a *alive.Alive, timeout time.Duration) {
	defer a.Done()
	tick := time.NewTicker(g.cfg.WatchdogPoll())
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if g.lastRecv.IsZero() {
				continue
			}
			if atomic_clock.Since(g.lastRecv) > timeout {
				g.restart("inactivity watchdog")
				return
			}
		case <-a.StopChan():
			return
		}
	}
}
