package node

import (
	"fmt"
	"os"
)

type WakeCause int

const (
	WakeColdBoot WakeCause = iota
	WakeTimer
	WakeOther
)

// launch unit sets this when the boot came from an armed wake timer
const WakeEnvKey = "TDSLINK_WAKE_CAUSE"

// Diagnostic only, never branches subsequent logic.
func ReadWakeCause() (WakeCause, string) {
	raw := os.Getenv(WakeEnvKey)
	switch raw {
	case "":
		return WakeColdBoot, ""
	case "timer":
		return WakeTimer, raw
	default:
		return WakeOther, raw
	}
}

func (w WakeCause) Describe(raw string) string {
	switch w {
	case WakeColdBoot:
		return "cold boot (first start)"
	case WakeTimer:
		return "woke by timer"
	default:
		return fmt.Sprintf("woke by other cause: %s", raw)
	}
}
