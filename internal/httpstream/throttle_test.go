package httpstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottle_OneLinePerClassPerInterval(t *testing.T) {
	th := NewThrottle(time.Hour)

	calls := 0
	for i := 0; i < 5; i++ {
		th.Do(ClassConnection, func(int) { calls++ })
	}
	assert.Equal(t, 1, calls)

	// Other classes are independent.
	assert.True(t, th.Do(ClassStatus, func(int) {}))
	assert.False(t, th.Do(ClassStatus, func(int) {}))
}

func TestThrottle_ReportsSuppressedCount(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)

	th.Do(ClassTimeout, func(int) {})
	th.Do(ClassTimeout, func(int) {})
	th.Do(ClassTimeout, func(int) {})

	time.Sleep(40 * time.Millisecond)

	var suppressed int
	ran := th.Do(ClassTimeout, func(n int) { suppressed = n })
	assert.True(t, ran)
	assert.Equal(t, 2, suppressed)
}

func TestNewThrottle_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultThrottleInterval, NewThrottle(0).interval)
}
