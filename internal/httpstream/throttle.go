package httpstream

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultThrottleInterval is the minimum spacing between two log lines of the
// same error class.
const DefaultThrottleInterval = 10 * time.Second

// Throttle rate-limits log output per ErrorClass.
type Throttle struct {
	interval time.Duration

	mu         sync.Mutex
	limiters   map[ErrorClass]*rate.Sometimes
	suppressed map[ErrorClass]int
}

// NewThrottle creates a throttle allowing one event per class per interval.
// A non-positive interval selects DefaultThrottleInterval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttle{
		interval:   interval,
		limiters:   make(map[ErrorClass]*rate.Sometimes),
		suppressed: make(map[ErrorClass]int),
	}
}

// Do runs f if class has not been logged within the interval. f receives the
// number of events of that class suppressed since the last time it ran.
// Returns whether f ran.
func (t *Throttle) Do(class ErrorClass, f func(suppressed int)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.limiters[class]
	if !ok {
		s = &rate.Sometimes{Interval: t.interval}
		t.limiters[class] = s
	}

	ran := false
	s.Do(func() {
		ran = true
		f(t.suppressed[class])
		t.suppressed[class] = 0
	})
	if !ran {
		t.suppressed[class]++
	}
	return ran
}
