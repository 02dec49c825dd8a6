// Package clock provides the time source used for report names and
// history timestamps.
package clock

import "time"

// Clock is an interface for obtaining the current wall-clock time.
// This abstraction allows for deterministic testing of dated reports.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by time.Now.
type System struct{}

// Now returns the current local time.
func (System) Now() time.Time {
	return time.Now()
}

// Mock is a Clock that only moves when Advance is called, so tests can pin
// report dates and cross midnight on demand. Advance must not race with Now.
type Mock struct {
	current time.Time
}

// NewMock creates a new Mock initialized to the given time.
// If t is zero, it initializes to a fixed reference date.
func NewMock(t time.Time) *Mock {
	if t.IsZero() {
		t = time.Date(2024, time.March, 9, 12, 0, 0, 0, time.UTC)
	}
	return &Mock{current: t}
}

// Now returns the mock clock's current time.
func (m *Mock) Now() time.Time {
	return m.current
}

// Advance moves the clock forward by d. Report dates never go backwards, so
// a negative d panics.
func (m *Mock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock.Mock.Advance: duration must be non-negative")
	}
	m.current = m.current.Add(d)
}
