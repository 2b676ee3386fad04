// Package link supervises the gateway's uplink with bounded retry.
// The provider pushes typed events onto a channel and the manager's state
// machine consumes them sequentially, so no transition runs on a foreign
// callback context.
package link

import (
	"sync/atomic"

	"github.com/openaqua/tdslink/log2"
	"github.com/temoto/alive/v2"
)

type EventKind int32

const (
	EventLinkStart EventKind = iota
	EventLinkDrop
	EventAddrAcquired
)

func (k EventKind) String() string {
	switch k {
	case EventLinkStart:
		return "link-start"
	case EventLinkDrop:
		return "link-drop"
	case EventAddrAcquired:
		return "address-acquired"
	}
	return "unknown!"
}

type Event struct {
	Kind EventKind
}

// Provider is the network connectivity collaborator: it accepts connect
// requests and reports link-layer changes as events.
type Provider interface {
	Connect() error
	Events() <-chan Event
}

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return "unknown!"
}

type Config struct {
	RetryMax int `hcl:"retry_max"`

	ProbeAddr        string `hcl:"probe_addr"`
	ProbeIntervalSec int    `hcl:"probe_interval_sec"`
}

func (c *Config) SetDefaults() {
	if c.RetryMax == 0 {
		c.RetryMax = 5
	}
}

// Manager owns ConnectivityState and RetryCounter. The link-up signal is
// a single atomic flag equal to state==Connected, safe to read from any
// task while transitions run.
type Manager struct {
	cfg      Config
	log      *log2.Log
	provider Provider

	state int32 // atomic State
	up    int32 // atomic bool
	retry int32 // atomic [0, RetryMax]
}

func NewManager(cfg Config, provider Provider, log *log2.Log) *Manager {
	cfg.SetDefaults()
	return &Manager{cfg: cfg, log: log, provider: provider}
}

// Start issues the initial connect request and consumes provider events
// until stop. Degraded Failed state keeps the loop alive: a later
// address-acquired event still recovers the link.
func (m *Manager) Start(a *alive.Alive) {
	m.setState(StateConnecting)
	if err := m.provider.Connect(); err != nil {
		m.log.Errorf("link connect err=%v", err)
	}
	if !a.Add(1) {
		return
	}
	go m.loop(a)
}

func (m *Manager) loop(a *alive.Alive) {
	defer a.Done()
	stopch := a.StopChan()
	for {
		select {
		case ev := <-m.provider.Events():
			m.handle(ev)
		case <-stopch:
			return
		}
	}
}

func (m *Manager) handle(ev Event) {
	m.log.Debugf("link event=%s state=%s retry=%d", ev.Kind.String(), m.State().String(), m.RetryCount())
	switch ev.Kind {
	case EventLinkStart:
		m.setState(StateConnecting)
		if err := m.provider.Connect(); err != nil {
			m.log.Errorf("link connect err=%v", err)
		}

	case EventLinkDrop:
		atomic.StoreInt32(&m.up, 0)
		if int(atomic.LoadInt32(&m.retry)) >= m.cfg.RetryMax {
			// counter saturates, no overflow past the ceiling
			m.setState(StateFailed)
			return
		}
		retry := int(atomic.AddInt32(&m.retry, 1))
		if retry >= m.cfg.RetryMax {
			m.setState(StateFailed)
			m.log.Errorf("link failed after %d drops, operating offline", retry)
			return
		}
		m.setState(StateConnecting)
		m.log.Infof("retry link %d/%d", retry, m.cfg.RetryMax)
		if err := m.provider.Connect(); err != nil {
			m.log.Errorf("link connect err=%v", err)
		}

	case EventAddrAcquired:
		atomic.StoreInt32(&m.retry, 0)
		m.setState(StateConnected)
		atomic.StoreInt32(&m.up, 1)
		m.log.Infof("link up")
	}
}

func (m *Manager) setState(s State) {
	if s != StateConnected {
		atomic.StoreInt32(&m.up, 0)
	}
	atomic.StoreInt32(&m.state, int32(s))
}

// Up is the link-up signal consumed by the publish forwarder.
func (m *Manager) Up() bool { return atomic.LoadInt32(&m.up) == 1 }

func (m *Manager) State() State { return State(atomic.LoadInt32(&m.state)) }

func (m *Manager) RetryCount() int { return int(atomic.LoadInt32(&m.retry)) }
