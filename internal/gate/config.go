package gate

import (
	"time"

	"github.com/openaqua/tdslink/helpers"
)

type Config struct { //nolint:maligned
	IdlePollMs int `hcl:"idle_poll_ms"`

	// Negative disables the periodic restart, zero takes the default.
	PeriodicRestartSec int `hcl:"periodic_restart_sec"`
	// Zero disables the inactivity restart.
	InactivityRestartSec int `hcl:"inactivity_restart_sec"`
	WatchdogPollMs       int `hcl:"watchdog_poll_ms"`

	NoRestartAfterPublish bool `hcl:"no_restart_after_publish"`
}

func (c *Config) IdlePoll() time.Duration {
	return helpers.IntMillisecondDefault(c.IdlePollMs, 100*time.Millisecond)
}
func (c *Config) PeriodicRestart() time.Duration {
	return helpers.IntSecondDefault(c.PeriodicRestartSec, 70*time.Second)
}
func (c *Config) InactivityRestart() time.Duration {
	return time.Duration(c.InactivityRestartSec) * time.Second
}
func (c *Config) WatchdogPoll() time.Duration {
	return helpers.IntMillisecondDefault(c.WatchdogPollMs, 500*time.Millisecond)
}
