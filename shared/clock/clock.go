// Package clock abstracts wall-clock reads as whole seconds since the Unix
// epoch so that rate-limit windows can be driven by a fake time source in
// tests.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time in seconds since the Unix epoch.
type Clock interface {
	Now() uint64
}

// System reads the operating system clock.
type System struct{}

// Now returns the current Unix time in seconds.
func (System) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Fake is a manually advanced clock for tests. The zero value starts at 0
// and is safe for concurrent use.
type Fake struct {
	mu  sync.Mutex
	now uint64
}

// NewFake returns a fake clock starting at the given time.
func NewFake(start uint64) *Fake {
	return &Fake{now: start}
}

// Now returns the fake time.
func (f *Fake) Now() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by the given number of seconds.
func (f *Fake) Advance(seconds uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += seconds
}
