package link

import (
	"testing"
	"time"

	"github.com/openaqua/tdslink/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
)

type mockProvider struct {
	events   chan Event
	connects chan struct{}
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		events:   make(chan Event),
		connects: make(chan struct{}, 32),
	}
}

func (p *mockProvider) Connect() error {
	p.connects <- struct{}{}
	return nil
}

func (p *mockProvider) Events() <-chan Event { return p.events }

func (p *mockProvider) waitConnect(t testing.TB) {
	select {
	case <-p.connects:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for connect request")
	}
}

// handle runs on the manager's own goroutine, tests synchronize on the
// reconnect requests the provider observes
func (p *mockProvider) push(t testing.TB, kind EventKind) {
	select {
	case p.events <- Event{Kind: kind}:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout pushing event")
	}
}

func waitState(t testing.TB, m *Manager, expect State) {
	deadline := time.Now().Add(5 * time.Second)
	for m.State() != expect {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting state=%s current=%s", expect.String(), m.State().String())
		}
		time.Sleep(time.Millisecond)
	}
}

func testManager(t testing.TB, retryMax int) (*Manager, *mockProvider, *alive.Alive) {
	p := newMockProvider()
	m := NewManager(Config{RetryMax: retryMax}, p, log2.NewTest(t, log2.LDebug))
	a := alive.NewAlive()
	m.Start(a)
	p.waitConnect(t) // initial connect request
	return m, p, a
}

func TestConnectHappy(t *testing.T) {
	t.Parallel()

	m, p, a := testManager(t, 5)
	defer a.Stop()

	assert.Equal(t, StateConnecting, m.State())
	assert.False(t, m.Up())

	p.push(t, EventAddrAcquired)
	waitState(t, m, StateConnected)
	assert.True(t, m.Up())
	assert.Equal(t, 0, m.RetryCount())
}

func TestRetryCeiling(t *testing.T) {
	t.Parallel()

	const retryMax = 5
	m, p, a := testManager(t, retryMax)
	defer a.Stop()

	for i := 1; i < retryMax; i++ {
		p.push(t, EventLinkDrop)
		p.waitConnect(t) // each drop below the ceiling reissues connect
		assert.Equal(t, i, m.RetryCount())
		assert.False(t, m.Up())
	}

	// exactly retryMax consecutive drops saturate into Failed
	p.push(t, EventLinkDrop)
	waitState(t, m, StateFailed)
	assert.False(t, m.Up())
	assert.Equal(t, retryMax, m.RetryCount())

	// further drops do not overflow the counter
	p.push(t, EventLinkDrop)
	waitState(t, m, StateFailed)
	assert.Equal(t, retryMax, m.RetryCount())

	// one address-acquired recovers and resets the counter
	p.push(t, EventAddrAcquired)
	waitState(t, m, StateConnected)
	assert.True(t, m.Up())
	assert.Equal(t, 0, m.RetryCount())
}

func TestDropAfterConnectRestartsCount(t *testing.T) {
	t.Parallel()

	m, p, a := testManager(t, 2)
	defer a.Stop()

	p.push(t, EventAddrAcquired)
	waitState(t, m, StateConnected)

	p.push(t, EventLinkDrop)
	p.waitConnect(t)
	assert.Equal(t, 1, m.RetryCount())
	assert.False(t, m.Up())

	p.push(t, EventAddrAcquired)
	waitState(t, m, StateConnected)
	assert.Equal(t, 0, m.RetryCount())
}

func TestLinkStartReissuesConnect(t *testing.T) {
	t.Parallel()

	m, p, a := testManager(t, 5)
	defer a.Stop()

	p.push(t, EventLinkStart)
	p.waitConnect(t)
	assert.Equal(t, StateConnecting, m.State())
}

func TestProbeEdges(t *testing.T) {
	t.Parallel()

	p, err := NewProbe(Config{ProbeAddr: "127.0.0.1:1"}, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)

	p.dial = func() error { return nil }

	// first success emits address-acquired
	p.step()
	ev := <-p.events
	assert.Equal(t, EventAddrAcquired, ev.Kind)

	// steady state is silent
	p.step()
	select {
	case ev = <-p.events:
		t.Fatalf("unexpected event=%s", ev.Kind.String())
	default:
	}

	// loss emits link-drop, and keeps emitting while down
	p.dial = func() error { return assert.AnError }
	p.step()
	ev = <-p.events
	assert.Equal(t, EventLinkDrop, ev.Kind)
	p.step()
	ev = <-p.events
	assert.Equal(t, EventLinkDrop, ev.Kind)

	// recovery emits address-acquired again
	p.dial = func() error { return nil }
	p.step()
	ev = <-p.events
	assert.Equal(t, EventAddrAcquired, ev.Kind)
}
