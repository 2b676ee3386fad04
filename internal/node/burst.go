package node

import (
	"time"

	"github.com/openaqua/tdslink/internal/radio"
	"github.com/openaqua/tdslink/log2"
)

// SendBurst transmits the same payload repeatedly until window elapses,
// pausing gap between sends. Redundancy substitutes for acknowledgments:
// the receiver only needs to catch one copy. Returns the number of
// successful sends; individual send failures are logged, not fatal.
func SendBurst(r radio.Radio, payload []byte, window, gap time.Duration, log *log2.Log) int {
	start := time.Now()
	sent := 0
	for time.Since(start) < window {
		if err := r.Send(payload); err != nil {
			log.Errorf("burst send err=%v", err)
		} else {
			sent++
		}
		time.Sleep(gap)
	}
	log.Debugf("burst sent=%d window=%s", sent, window)
	return sent
}
