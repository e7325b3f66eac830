// Package clock provides the injectable time source shared by every
// manager that stamps timestamps or runs a periodic sweep. Production
// code takes a clock.Clock built with New(); tests take clock.NewMock()
// and advance time explicitly instead of sleeping.
package clock

import "github.com/benbjohnson/clock"

// Clock is re-exported so callers depend on this package rather than
// benbjohnson/clock directly.
type Clock = clock.Clock

// Mock is re-exported for tests that need to control time explicitly.
type Mock = clock.Mock

// New returns the real wall-clock implementation.
func New() Clock {
	return clock.New()
}

// NewMock returns a fake clock initialized to the Unix epoch, for use in
// tests that need determinism around timeouts, bans, and sweepers.
func NewMock() *Mock {
	return clock.NewMock()
}
