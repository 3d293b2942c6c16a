// Package clock supplies the time source for version timestamps.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/cmscore/ports"
)

// Real reads the wall clock in UTC at microsecond precision, the finest
// precision both stores keep.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Fake is a manual clock for tests. A stepping Fake moves forward by its
// step after each read, so successive versions get distinct timestamps.
type Fake struct {
	mu   sync.Mutex
	at   time.Time
	step time.Duration
}

// NewFake returns a clock frozen at t.
func NewFake(t time.Time) *Fake {
	return NewStepping(t, 0)
}

// NewStepping returns a clock that starts at t and ticks by step per read.
func NewStepping(t time.Time, step time.Duration) *Fake {
	return &Fake{at: t.UTC(), step: step}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.at
	f.at = t.Add(f.step)
	return t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.at = f.at.Add(d)
	f.mu.Unlock()
}

var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
)
