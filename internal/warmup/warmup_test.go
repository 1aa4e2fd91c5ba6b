package warmup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evenFrameTimes(n int, interval time.Duration) []time.Time {
	base := time.Now()
	times := make([]time.Time, n)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * interval)
	}
	return times
}

func TestCalculateFPSStats_PerfectCadence(t *testing.T) {
	times := evenFrameTimes(30, 100*time.Millisecond)
	stats := CalculateFPSStats(times, 3*time.Second)

	assert.Equal(t, 30, stats.FramesReceived)
	assert.InDelta(t, 10.0, stats.FPSMean, 0.001)
	assert.InDelta(t, 10.0, stats.FPSMin, 0.001)
	assert.InDelta(t, 10.0, stats.FPSMax, 0.001)
	assert.InDelta(t, 0, stats.JitterMean, 1e-9)
	assert.True(t, stats.IsStable)
}

func TestCalculateFPSStats_BurstyIsUnstable(t *testing.T) {
	base := time.Now()
	var times []time.Time
	for i := 0; i < 10; i++ {
		// pairs of frames 10ms apart, pairs 400ms apart
		times = append(times, base.Add(time.Duration(i)*400*time.Millisecond))
		times = append(times, base.Add(time.Duration(i)*400*time.Millisecond+10*time.Millisecond))
	}

	stats := CalculateFPSStats(times, 4*time.Second)
	assert.False(t, stats.IsStable)
	assert.Greater(t, stats.FPSMax, stats.FPSMin)
}

func TestCalculateFPSStats_EdgeCases(t *testing.T) {
	assert.Zero(t, CalculateFPSStats(nil, time.Second).FPSMean)
	assert.Zero(t, CalculateFPSStats(evenFrameTimes(3, time.Millisecond), 0).FPSMean)

	same := []time.Time{time.Unix(10, 0), time.Unix(10, 0)}
	stats := CalculateFPSStats(same, time.Second)
	assert.Equal(t, 2, stats.FramesReceived)
	assert.False(t, stats.IsStable)
}

func TestSuggestedPollInterval(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, SuggestedPollInterval(nil, 10))
	assert.Equal(t, 100*time.Millisecond, SuggestedPollInterval(&WarmupStats{FPSMean: 25}, 10))
	assert.InDelta(t, float64(time.Second)/4.5, float64(SuggestedPollInterval(&WarmupStats{FPSMean: 5}, 10)), 1)
	assert.Zero(t, SuggestedPollInterval(nil, 0))
}

func TestMeasure_StableSource(t *testing.T) {
	arrivals := make(chan Arrival, 100)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for seq := uint64(1); seq <= 40; seq++ {
			now := <-ticker.C
			arrivals <- Arrival{Seq: seq, At: now}
		}
	}()

	stats, err := Measure(context.Background(), arrivals, 200*time.Millisecond)
	if err != nil {
		// A loaded CI box can make ticker delivery jittery.
		t.Skipf("timing-sensitive warm-up was unstable: %v", err)
	}
	require.NotNil(t, stats)
	assert.GreaterOrEqual(t, stats.FramesReceived, 2)
}

func TestMeasure_UsesArrivalTimestamps(t *testing.T) {
	arrivals := make(chan Arrival, 20)
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 10; i++ {
		// pairs 10ms apart, pairs 400ms apart
		arrivals <- Arrival{Seq: uint64(2 * i), At: base.Add(time.Duration(i) * 400 * time.Millisecond)}
		arrivals <- Arrival{Seq: uint64(2*i + 1), At: base.Add(time.Duration(i)*400*time.Millisecond + 10*time.Millisecond)}
	}

	stats, err := Measure(context.Background(), arrivals, 30*time.Millisecond)
	require.ErrorIs(t, err, ErrUnstable)
	require.NotNil(t, stats)
	assert.Equal(t, 20, stats.FramesReceived)
	assert.Greater(t, stats.FPSMax, stats.FPSMin)
}

func TestMeasure_NotEnoughFrames(t *testing.T) {
	arrivals := make(chan Arrival, 1)
	arrivals <- Arrival{Seq: 1, At: time.Now()}

	_, err := Measure(context.Background(), arrivals, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTooFewFrames)
	assert.Contains(t, err.Error(), "got 1")
}

func TestMeasure_SourceClosed(t *testing.T) {
	arrivals := make(chan Arrival)
	close(arrivals)

	_, err := Measure(context.Background(), arrivals, time.Second)
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestMeasure_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Measure(ctx, make(chan Arrival), time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
