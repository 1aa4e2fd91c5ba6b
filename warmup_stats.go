package mjpegcapture

import (
	"time"

	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/warmup"
)

// CalculateFPSStats calculates FPS statistics from frame arrival times
//
// This is a public wrapper around internal/warmup.CalculateFPSStats.
//
// Stability threshold:
//   - FPS: stddev < 15% of mean FPS
//   - Jitter: mean jitter < 20% of expected interval
//
// Example: 15 FPS mean → stable if stddev < 2.25 AND jitter < 0.013s
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	return toPublicWarmupStats(warmup.CalculateFPSStats(frameTimes, totalDuration))
}

// SuggestedPollInterval returns how often a consumer should call GetFrame:
// never faster than maxRate Hz and never faster than the measured stream FPS.
func SuggestedPollInterval(stats *WarmupStats, maxRate float64) time.Duration {
	var internal *warmup.WarmupStats
	if stats != nil {
		internal = &warmup.WarmupStats{FPSMean: stats.FPSMean}
	}
	return warmup.SuggestedPollInterval(internal, maxRate)
}

func toPublicWarmupStats(s *warmup.WarmupStats) *WarmupStats {
	if s == nil {
		return nil
	}
	return &WarmupStats{
		FramesReceived: s.FramesReceived,
		Duration:       s.Duration,
		FPSMean:        s.FPSMean,
		FPSStdDev:      s.FPSStdDev,
		FPSMin:         s.FPSMin,
		FPSMax:         s.FPSMax,
		IsStable:       s.IsStable,
		JitterMean:     s.JitterMean,
		JitterStdDev:   s.JitterStdDev,
		JitterMax:      s.JitterMax,
	}
}
