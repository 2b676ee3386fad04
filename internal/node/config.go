package node

import (
	"time"

	"github.com/openaqua/tdslink/helpers"
)

type Config struct {
	SleepSec      int `hcl:"sleep_sec"`
	BurstWindowMs int `hcl:"burst_window_ms"`
	BurstGapMs    int `hcl:"burst_gap_ms"`
	GraceMs       int `hcl:"grace_ms"`
}

func (c *Config) Sleep() time.Duration {
	return helpers.IntSecondDefault(c.SleepSec, 30*time.Second)
}
func (c *Config) BurstWindow() time.Duration {
	return helpers.IntMillisecondDefault(c.BurstWindowMs, 5000*time.Millisecond)
}
func (c *Config) BurstGap() time.Duration {
	return helpers.IntMillisecondDefault(c.BurstGapMs, 500*time.Millisecond)
}
func (c *Config) Grace() time.Duration {
	return helpers.IntMillisecondDefault(c.GraceMs, 100*time.Millisecond)
}
