package sensor

// Mock ADC for tests and the node's dry-run mode.
type MockADC struct {
	Raws    []int
	Err     error
	InitErr error
	i       int
	Reads   int
	Closed  bool
}

func (m *MockADC) Init() error { return m.InitErr }

func (m *MockADC) ReadRaw() (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.Reads++
	if len(m.Raws) == 0 {
		return 0, nil
	}
	raw := m.Raws[m.i%len(m.Raws)]
	m.i++
	return raw, nil
}

func (m *MockADC) Close() error {
	m.Closed = true
	return nil
}
