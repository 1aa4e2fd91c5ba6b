package mjpegcapture

import (
	"math"
	"math/rand"
	"testing"
	"testing/quick"
	"time"
)

// TestWarmupStability_Property1_StabilityThresholds tests the stability criteria
//
// Property: FPS stddev < 15% of mean AND jitter < 20% of expected interval → IsStable = true
func TestWarmupStability_Property1_StabilityThresholds(t *testing.T) {
	t.Run("stable camera", func(t *testing.T) {
		frameTimes := generateFrameTimes(75, 15.0, 0.03) // 5s at 15 FPS, 3% jitter
		stats := CalculateFPSStats(frameTimes, 5*time.Second)

		if !stats.IsStable {
			t.Errorf("Expected stable stream, got IsStable=false (FPS stddev: %.2f%%, jitter: %.2f%%)",
				(stats.FPSStdDev/stats.FPSMean)*100,
				(stats.JitterMean/(1.0/stats.FPSMean))*100,
			)
		}
	})

	t.Run("congested wifi", func(t *testing.T) {
		frameTimes := generateFrameTimes(75, 15.0, 0.6) // 60% jitter
		stats := CalculateFPSStats(frameTimes, 5*time.Second)

		if stats.IsStable {
			t.Errorf("Expected unstable stream (high jitter), got IsStable=true (jitter: %.2f%%)",
				(stats.JitterMean/(1.0/stats.FPSMean))*100,
			)
		}
	})
}

// TestWarmupStability_Property2_EdgeCases tests edge cases
//
// Property: Edge cases should not panic and should return sensible defaults
func TestWarmupStability_Property2_EdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		frameTimes []time.Time
		duration   time.Duration
	}{
		{"zero frames", []time.Time{}, time.Second},
		{"one frame", []time.Time{time.Now()}, time.Second},
		{"zero duration", generateFrameTimes(5, 10, 0), 0},
		{"two frames", []time.Time{time.Now(), time.Now().Add(time.Second)}, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := CalculateFPSStats(tt.frameTimes, tt.duration)

			if stats == nil {
				t.Fatal("CalculateFPSStats returned nil")
			}
			if stats.IsStable {
				t.Errorf("Expected IsStable=false for %s", tt.name)
			}
			if stats.FramesReceived != len(tt.frameTimes) {
				t.Errorf("FramesReceived = %d, want %d", stats.FramesReceived, len(tt.frameTimes))
			}
		})
	}
}

// TestWarmupStability_Property3_Bounds tests statistic bounds
//
// Property: jitter metrics are non-negative, JitterMax >= JitterMean,
// FPSMin <= FPSMax, and FPSMean equals frames / duration.
func TestWarmupStability_Property3_Bounds(t *testing.T) {
	f := func(fpsSeed uint8, framesSeed uint8) bool {
		fps := 1 + float64(fpsSeed%30)      // 1-30 FPS
		numFrames := 2 + int(framesSeed)%99 // 2-100 frames

		frameTimes := generateFrameTimes(numFrames, fps, 0.1)
		duration := time.Duration(float64(numFrames) / fps * float64(time.Second))

		stats := CalculateFPSStats(frameTimes, duration)

		if stats.JitterMean < 0 || stats.JitterStdDev < 0 || stats.JitterMax < 0 {
			t.Logf("FAIL: negative jitter with fps=%.0f, frames=%d", fps, numFrames)
			return false
		}
		if stats.JitterMax < stats.JitterMean {
			t.Logf("FAIL: JitterMax (%.6f) < JitterMean (%.6f)", stats.JitterMax, stats.JitterMean)
			return false
		}
		if stats.FPSMin > stats.FPSMax {
			t.Logf("FAIL: FPSMin (%.2f) > FPSMax (%.2f)", stats.FPSMin, stats.FPSMax)
			return false
		}
		if math.Abs(stats.FPSMean-fps) > fps*0.001 {
			t.Logf("FAIL: FPSMean (%.3f) != %.3f", stats.FPSMean, fps)
			return false
		}
		return stats.FPSStdDev >= 0
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Errorf("Property violated: %v", err)
	}
}

func TestSuggestedPollInterval(t *testing.T) {
	if got := SuggestedPollInterval(nil, 20); got != 50*time.Millisecond {
		t.Errorf("nil stats: got %s, want 50ms", got)
	}
	if got := SuggestedPollInterval(&WarmupStats{FPSMean: 10}, 20); got <= 100*time.Millisecond {
		t.Errorf("slow stream: got %s, want > 100ms", got)
	}
}

// generateFrameTimes generates arrival timestamps with controlled jitter
//
// jitterFraction: jitter as fraction of inter-frame interval (0.0 = perfect, 0.2 = 20% jitter)
func generateFrameTimes(numFrames int, targetFPS float64, jitterFraction float64) []time.Time {
	if numFrames < 1 {
		return []time.Time{}
	}

	expectedInterval := 1.0 / targetFPS
	frameTimes := make([]time.Time, numFrames)
	frameTimes[0] = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rng := rand.New(rand.NewSource(42)) // Deterministic for reproducibility

	for i := 1; i < numFrames; i++ {
		jitterSeconds := (rng.Float64()*2 - 1) * jitterFraction * expectedInterval
		interval := expectedInterval + jitterSeconds
		frameTimes[i] = frameTimes[i-1].Add(time.Duration(interval * float64(time.Second)))
	}

	return frameTimes
}

func BenchmarkCalculateFPSStats(b *testing.B) {
	frameTimes := generateFrameTimes(100, 15.0, 0.1)
	duration := 100 * time.Second / 15

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = CalculateFPSStats(frameTimes, duration)
	}
}
