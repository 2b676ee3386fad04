package radio

// Public API to easy create radio stubs to test your code.
import (
	"sync"
	"time"
)

var _ Radio = &Mock{} // compile-time interface test

// Mock radio for tests. Sends are recorded with timestamps, received
// packets are fed through QueuePacket.
type Mock struct { //nolint:maligned
	mu sync.Mutex

	InitErr error
	SendErr error

	Sends     []string
	SendTimes []time.Time
	rxq       [][]byte

	InitCalls         int
	StartReceiveCalls int
	Closed            bool

	Frequency       int64
	Bandwidth       int
	CodingRate      int
	SpreadingFactor int
	Crc             bool
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitCalls++
	return m.InitErr
}

func (m *Mock) SetFrequency(hz int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frequency = hz
	return nil
}

func (m *Mock) SetBandwidth(bw int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Bandwidth = bw
	return nil
}

func (m *Mock) SetCodingRate(cr int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CodingRate = cr
	return nil
}

func (m *Mock) SetSpreadingFactor(sf int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SpreadingFactor = sf
	return nil
}

func (m *Mock) EnableCRC() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Crc = true
	return nil
}

func (m *Mock) Send(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sends = append(m.Sends, string(p))
	m.SendTimes = append(m.SendTimes, time.Now())
	return nil
}

func (m *Mock) StartReceive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartReceiveCalls++
	return nil
}

func (m *Mock) PacketAvailable() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rxq) > 0, nil
}

func (m *Mock) ReadPacket(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rxq) == 0 {
		return 0, nil
	}
	p := m.rxq[0]
	m.rxq = m.rxq[1:]
	return copy(buf, p), nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *Mock) QueuePacket(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxq = append(m.rxq, append([]byte(nil), p...))
}

func (m *Mock) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sends)
}

func (m *Mock) ReceiveArmed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StartReceiveCalls
}
