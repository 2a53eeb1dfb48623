package hid

import (
	"errors"
	"sync"
)

// ErrNoReport is returned by MockDevice.Read when no input report is queued.
var ErrNoReport = errors.New("hid: no input report")

// MockDevice is an in-memory Device. Respond computes the input reports
// queued in answer to each output report.
type MockDevice struct {
	mu      sync.Mutex
	respond func(out []byte) [][]byte
	written [][]byte
	queue   [][]byte
	closed  bool
}

func NewMockDevice(respond func(out []byte) [][]byte) *MockDevice {
	return &MockDevice{respond: respond}
}

func (m *MockDevice) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.New("hid: device closed")
	}
	out := append([]byte(nil), p...)
	m.written = append(m.written, out)
	if m.respond != nil {
		m.queue = append(m.queue, m.respond(out)...)
	}
	return len(p), nil
}

func (m *MockDevice) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return 0, ErrNoReport
	}
	n := copy(p, m.queue[0])
	m.queue = m.queue[1:]
	return n, nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written returns every output report so far.
func (m *MockDevice) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}
