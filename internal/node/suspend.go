package node

import (
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/openaqua/tdslink/log2"
)

// Suspender is the low-power suspension collaborator. Production
// implementations do not return: the next step is a fresh process boot.
type Suspender interface {
	Suspend(d time.Duration)
}

// RtcWake suspends the board to RAM with an RTC alarm armed, then exits
// so the supervisor relaunches a clean process on resume. When rtcwake
// is unavailable the exit alone defers the next cycle to the launch
// timer unit.
type RtcWake struct {
	Log *log2.Log
}

func (r RtcWake) Suspend(d time.Duration) {
	sec := int64(d / time.Second)
	if sec < 1 {
		sec = 1
	}
	cmd := exec.Command("rtcwake", "-m", "mem", "-s", strconv.FormatInt(sec, 10))
	if err := cmd.Run(); err != nil {
		r.Log.Errorf("rtcwake err=%v, deferring to launch timer", err)
	}
	os.Exit(0)
}
