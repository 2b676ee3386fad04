package node

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openaqua/tdslink/internal/radio"
	"github.com/openaqua/tdslink/internal/sensor"
	"github.com/openaqua/tdslink/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSuspend struct {
	mu    sync.Mutex
	calls int
	last  time.Duration
}

func (m *mockSuspend) Suspend(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = d
}

func (m *mockSuspend) snapshot() (int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.last
}

func testController(t testing.TB, cfg Config, r radio.Radio, adc sensor.ADC) (*Controller, *mockSuspend) {
	s := &mockSuspend{}
	unit := sensor.NewUnit(sensor.Config{Samples: 2, SampleDelayMs: 1}, adc, log2.NewTest(t, log2.LDebug))
	c := NewController(cfg, radio.Config{Driver: "sx127x"}, r, unit, s, log2.NewTest(t, log2.LDebug))
	return c, s
}

func TestRunHappyCycle(t *testing.T) {
	t.Parallel()

	rm := radio.NewMock()
	cfg := Config{SleepSec: 30, BurstWindowMs: 100, BurstGapMs: 40, GraceMs: 1}
	c, s := testController(t, cfg, rm, &sensor.MockADC{Raws: []int{1300}})
	c.Run()

	calls, d := s.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 30*time.Second, d)
	require.NotEmpty(t, rm.Sends)
	for _, p := range rm.Sends {
		assert.True(t, strings.HasPrefix(p, "TD,"), "payload %q", p)
		assert.Equal(t, rm.Sends[0], p)
	}
	assert.True(t, rm.Closed)
}

func TestRunRadioAbsent(t *testing.T) {
	t.Parallel()

	rm := radio.NewMock()
	rm.InitErr = assert.AnError
	cfg := Config{BurstWindowMs: 100, BurstGapMs: 40, GraceMs: 1}
	c, s := testController(t, cfg, rm, &sensor.MockADC{Raws: []int{1300}})
	c.Run()

	calls, _ := s.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, rm.SendCount())
}

func TestRunSensorFaultStillSuspends(t *testing.T) {
	t.Parallel()

	rm := radio.NewMock()
	cfg := Config{BurstWindowMs: 100, BurstGapMs: 40, GraceMs: 1}
	c, s := testController(t, cfg, rm, &sensor.MockADC{Err: assert.AnError})
	c.Run()

	calls, _ := s.snapshot()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, rm.SendCount())
	assert.True(t, rm.Closed)
}

func TestSendBurstCadence(t *testing.T) {
	t.Parallel()

	rm := radio.NewMock()
	window := 500 * time.Millisecond
	gap := 100 * time.Millisecond
	start := time.Now()
	sent := SendBurst(rm, []byte("TD,1,0.10"), window, gap, log2.NewTest(t, log2.LDebug))
	elapsed := time.Since(start)

	// one send per gap for the whole window
	want := int(window / gap)
	assert.InDelta(t, want, sent, 1)
	assert.GreaterOrEqual(t, elapsed, window)
	assert.Equal(t, sent, rm.SendCount())
}

func TestSendBurstToleratesSendError(t *testing.T) {
	t.Parallel()

	rm := radio.NewMock()
	rm.SendErr = assert.AnError
	sent := SendBurst(rm, []byte("TD,1,0.10"), 50*time.Millisecond, 20*time.Millisecond, log2.NewTest(t, log2.LDebug))
	assert.Equal(t, 0, sent)
}

func TestReadWakeCause(t *testing.T) {
	cases := []struct {
		raw    string
		expect WakeCause
	}{
		{"", WakeColdBoot},
		{"timer", WakeTimer},
		{"button", WakeOther},
	}
	for _, c := range cases {
		c := c
		t.Run("cause="+c.raw, func(t *testing.T) {
			t.Setenv(WakeEnvKey, c.raw)
			cause, raw := ReadWakeCause()
			assert.Equal(t, c.expect, cause)
			assert.Equal(t, c.raw, raw)
			assert.NotEmpty(t, cause.Describe(raw))
		})
	}
}
