package warmup

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum allowed FPS standard deviation as a fraction of mean FPS.
	// Example: 15 FPS mean → stable if stddev < 2.25 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum allowed mean jitter as a fraction of expected interval.
	// Example: 15 FPS (66ms interval) → stable if jitter < 13ms
	jitterStabilityThreshold = 0.20
)

// CalculateFPSStats calculates FPS statistics from frame arrival times
//
// Mean FPS is frames / totalDuration. Instantaneous FPS is 1/interval for
// every positive inter-frame interval; jitter is |interval - 1/mean|.
//
// Stability threshold:
//   - FPS: stddev < 15% of mean FPS
//   - Jitter: mean jitter < 20% of expected interval
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	n := len(frameTimes)
	stats := &WarmupStats{
		FramesReceived: n,
		Duration:       totalDuration,
	}
	if n == 0 || totalDuration <= 0 {
		return stats
	}

	stats.FPSMean = float64(n) / totalDuration.Seconds()

	intervals := make([]float64, 0, n-1)
	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		intervals = append(intervals, interval)
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}
	if len(instantaneous) == 0 {
		return stats
	}

	stats.FPSMin, stats.FPSMax = minMax(instantaneous)
	stats.FPSStdDev = stdDevAround(instantaneous, stats.FPSMean)

	expectedInterval := 1.0 / stats.FPSMean
	jitters := make([]float64, len(intervals))
	for i, interval := range intervals {
		jitters[i] = math.Abs(interval - expectedInterval)
	}
	stats.JitterMean = mean(jitters)
	stats.JitterStdDev = stdDevAround(jitters, stats.JitterMean)
	_, stats.JitterMax = minMax(jitters)

	fpsStable := stats.FPSStdDev < stats.FPSMean*fpsStabilityThreshold
	jitterStable := stats.JitterMean < expectedInterval*jitterStabilityThreshold
	stats.IsStable = fpsStable && jitterStable

	return stats
}

// SuggestedPollInterval returns how often a consumer should poll the latest
// frame: never faster than maxRate Hz, and no faster than the stream delivers.
//
// Logic:
//   - stats nil or stream FPS >= maxRate: 1/maxRate
//   - stream FPS < maxRate: 1/(90% of stream FPS)
func SuggestedPollInterval(stats *WarmupStats, maxRate float64) time.Duration {
	if maxRate <= 0 {
		return 0
	}

	rate := maxRate
	if stats != nil && stats.FPSMean > 0 && stats.FPSMean < maxRate {
		rate = stats.FPSMean * 0.9 // safety margin
	}
	return time.Duration(float64(time.Second) / rate)
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDevAround(values []float64, center float64) float64 {
	var sumSquares float64
	for _, v := range values {
		diff := v - center
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
