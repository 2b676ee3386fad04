package gate

import (
	"sync"
	"testing"
	"time"

	"github.com/openaqua/tdslink/internal/link"
	"github.com/openaqua/tdslink/internal/radio"
	"github.com/openaqua/tdslink/internal/wire"
	"github.com/openaqua/tdslink/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
)

type mockForward struct {
	mu   sync.Mutex
	got  []wire.Measurement
	fail error
}

func (m *mockForward) Forward(msm wire.Measurement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.got = append(m.got, msm)
	return nil
}

func (m *mockForward) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.got)
}

type mockRestart struct {
	mu      sync.Mutex
	reasons []string
}

func (m *mockRestart) fire(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
}

func (m *mockRestart) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reasons) == 0 {
		return ""
	}
	return m.reasons[len(m.reasons)-1]
}

type stubProvider struct{ ev chan link.Event }

func (p *stubProvider) Connect() error            { return nil }
func (p *stubProvider) Events() <-chan link.Event { return p.ev }

type gateEnv struct {
	gate    *Gate
	radio   *radio.Mock
	fwd     *mockForward
	restart *mockRestart
	linkEv  chan link.Event
	alive   *alive.Alive
}

func testGate(t testing.TB, cfg Config, linkUp bool) *gateEnv {
	env := &gateEnv{
		radio:   radio.NewMock(),
		fwd:     &mockForward{},
		restart: &mockRestart{},
		linkEv:  make(chan link.Event, 8),
		alive:   alive.NewAlive(),
	}
	log := log2.NewTest(t, log2.LDebug)
	lm := link.NewManager(link.Config{}, &stubProvider{ev: env.linkEv}, log)
	lm.Start(env.alive)
	if linkUp {
		env.linkEv <- link.Event{Kind: link.EventAddrAcquired}
		waitFor(t, func() bool { return lm.Up() })
	}
	env.gate = NewGate(cfg, radio.Config{Driver: "sx127x"}, env.radio, env.fwd, lm, env.restart.fire, log)
	require.NoError(t, env.gate.Run(env.alive))
	t.Cleanup(func() {
		env.alive.Stop()
		env.alive.Wait()
	})
	return env
}

func waitFor(t testing.TB, fun func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if fun() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition timeout")
}

func TestForwardWhenLinkUp(t *testing.T) {
	t.Parallel()

	cfg := Config{IdlePollMs: 5, PeriodicRestartSec: -1}
	env := testGate(t, cfg, true)

	env.radio.QueuePacket([]byte("TD,120,1.43"))
	waitFor(t, func() bool { return env.fwd.count() == 1 })
	assert.InDelta(t, 120, env.fwd.got[0].ConcentrationPPM, 0.5)
	assert.InDelta(t, 1.43, env.fwd.got[0].SensorVoltage, 0.005)
	waitFor(t, func() bool { return env.restart.last() == "post-publish refresh" })

	_, ok := env.gate.LastReceive()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, env.radio.ReceiveArmed(), 2)
}

func TestDropWhenLinkDown(t *testing.T) {
	t.Parallel()

	cfg := Config{IdlePollMs: 5, PeriodicRestartSec: -1}
	env := testGate(t, cfg, false)

	env.radio.QueuePacket([]byte("TD,120,1.43"))
	// decode still stamps receive time even though nothing is forwarded
	waitFor(t, func() bool { _, ok := env.gate.LastReceive(); return ok })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, env.fwd.count())
	assert.Equal(t, "", env.restart.last())
}

func TestBadFrameRearmsListener(t *testing.T) {
	t.Parallel()

	cfg := Config{IdlePollMs: 5, PeriodicRestartSec: -1, NoRestartAfterPublish: true}
	env := testGate(t, cfg, true)
	armed := env.radio.ReceiveArmed()

	env.radio.QueuePacket([]byte("XX,garbage"))
	waitFor(t, func() bool { return env.radio.ReceiveArmed() > armed })
	_, ok := env.gate.LastReceive()
	assert.False(t, ok)
	assert.Equal(t, 0, env.fwd.count())

	// a good frame after the garbage still goes through
	env.radio.QueuePacket([]byte("TD,33,0.25"))
	waitFor(t, func() bool { return env.fwd.count() == 1 })
}

func TestNoRestartAfterPublishDisabled(t *testing.T) {
	t.Parallel()

	cfg := Config{IdlePollMs: 5, PeriodicRestartSec: -1, NoRestartAfterPublish: true}
	env := testGate(t, cfg, true)

	env.radio.QueuePacket([]byte("TD,120,1.43"))
	waitFor(t, func() bool { return env.fwd.count() == 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "", env.restart.last())
}

func TestPeriodicWatchdog(t *testing.T) {
	t.Parallel()

	cfg := Config{IdlePollMs: 5, PeriodicRestartSec: 1, NoRestartAfterPublish: true}
	env := testGate(t, cfg, false)

	waitFor(t, func() bool { return env.restart.last() == "periodic watchdog" })
}

func TestInactivityWatchdogArmsAfterFirstReceipt(t *testing.T) {
	t.Parallel()

	cfg := Config{
		IdlePollMs:            5,
		PeriodicRestartSec:    -1,
		InactivityRestartSec:  1,
		WatchdogPollMs:        20,
		NoRestartAfterPublish: true,
	}
	env := testGate(t, cfg, false)

	// silence before the first frame must not trip the watchdog
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, "", env.restart.last())

	env.radio.QueuePacket([]byte("TD,50,0.40"))
	waitFor(t, func() bool { _, ok := env.gate.LastReceive(); return ok })
	waitFor(t, func() bool { return env.restart.last() == "inactivity watchdog" })
}
