package clock

import (
	"sync"
	"time"
)

// Mock provides controllable time for testing. After advances the mock
// time immediately instead of blocking.
type Mock struct {
	mu          sync.Mutex
	currentTime time.Time
	afterCalls  []time.Duration
	onAdvance   []func(now time.Time)
}

// NewMock creates a new mock clock starting at startTime
func NewMock(startTime time.Time) *Mock {
	return &Mock{
		currentTime: startTime,
	}
}

// Now returns the current mock time
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// After advances time by duration and returns a channel that is already ready
func (m *Mock) After(duration time.Duration) <-chan time.Time {
	m.mu.Lock()
	m.afterCalls = append(m.afterCalls, duration)
	m.mu.Unlock()
	m.Advance(duration)
	ch := make(chan time.Time, 1)
	ch <- m.Now()
	return ch
}

// Advance moves the mock time forward and runs any registered hooks
func (m *Mock) Advance(duration time.Duration) {
	m.mu.Lock()
	m.currentTime = m.currentTime.Add(duration)
	now := m.currentTime
	hooks := make([]func(time.Time), len(m.onAdvance))
	copy(hooks, m.onAdvance)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(now)
	}
}

// OnAdvance registers a hook invoked with the new time after every advance.
// Tests use it to simulate data arriving while a wait loop is suspended.
func (m *Mock) OnAdvance(hook func(now time.Time)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAdvance = append(m.onAdvance, hook)
}

// AfterCalls returns the duration of every After call so far
func (m *Mock) AfterCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]time.Duration, len(m.afterCalls))
	copy(calls, m.afterCalls)
	return calls
}
