// Package clock abstracts wall-clock time and the two timer shapes the
// session components need: a one-shot callback and a repeating interval.
package clock

import (
	"sync"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. It reports whether this call stopped it.
	Stop() bool
}

// Clock is the time source used by timeouts and pollers.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once after d.
	AfterFunc(d time.Duration, f func()) Timer
	// Interval calls f every d until stopped.
	Interval(d time.Duration, f func()) Timer
}

// Real is the Clock backed by package time.
type Real struct{}

var _ Clock = Real{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (Real) Interval(d time.Duration, f func()) Timer {
	iv := &interval{stop: make(chan struct{})}
	if d <= 0 {
		iv.Stop()
		return iv
	}

	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f()
			case <-iv.stop:
				return
			}
		}
	}()
	return iv
}

type interval struct {
	stop chan struct{}
	once sync.Once
}

func (iv *interval) Stop() bool {
	stopped := false
	iv.once.Do(func() {
		close(iv.stop)
		stopped = true
	})
	return stopped
}
