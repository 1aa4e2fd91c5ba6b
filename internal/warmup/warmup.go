// Package warmup measures the arrival cadence of extracted frames to tell
// whether a camera stream is stable enough for production polling.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrSourceClosed is returned when the arrival channel closes mid-window.
	ErrSourceClosed = errors.New("warmup: frame source closed")
	// ErrTooFewFrames is returned when fewer than two frames arrived.
	ErrTooFewFrames = errors.New("warmup: not enough frames")
	// ErrUnstable is returned, together with the stats, when the cadence
	// fails the FPS or jitter threshold.
	ErrUnstable = errors.New("warmup: stream FPS unstable")
)

// Arrival is one published frame as seen by the cadence meter.
type Arrival struct {
	Seq uint64
	At  time.Time
}

// WarmupStats contains statistics collected during warm-up phase
type WarmupStats struct {
	FramesReceived int           // Number of frames received during warm-up
	Duration       time.Duration // Actual warm-up duration
	FPSMean        float64       // Mean FPS across all frames
	FPSStdDev      float64       // Standard deviation of FPS
	FPSMin         float64       // Minimum instantaneous FPS
	FPSMax         float64       // Maximum instantaneous FPS
	IsStable       bool          // True if FPS is stable (stddev < 15% of mean AND jitter < 20%)
	JitterMean     float64       // Average inter-frame interval variance (seconds)
	JitterStdDev   float64       // Standard deviation of jitter (seconds)
	JitterMax      float64       // Maximum jitter observed (seconds)
}

// Measure records arrival times from arrivals for window and derives the
// cadence statistics from them.
//
// A cancelled ctx aborts the measurement. An unstable cadence returns the
// stats alongside ErrUnstable so callers can still log them.
func Measure(ctx context.Context, arrivals <-chan Arrival, window time.Duration) (*WarmupStats, error) {
	begin := time.Now()
	times, err := collect(ctx, arrivals, window)
	if err != nil {
		return nil, err
	}
	if len(times) < 2 {
		return nil, fmt.Errorf("%w: got %d, need at least 2", ErrTooFewFrames, len(times))
	}

	stats := CalculateFPSStats(times, time.Since(begin))
	slog.Info("warmup: cadence measured",
		"frames", stats.FramesReceived,
		"window", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"jitter_mean", fmt.Sprintf("%.3fs", stats.JitterMean),
		"stable", stats.IsStable,
	)
	if !stats.IsStable {
		return stats, fmt.Errorf("%w (mean=%.2f Hz, stddev=%.2f, jitter=%.3fs)",
			ErrUnstable, stats.FPSMean, stats.FPSStdDev, stats.JitterMean)
	}
	return stats, nil
}

// collect gathers arrival timestamps until window elapses.
func collect(ctx context.Context, arrivals <-chan Arrival, window time.Duration) ([]time.Time, error) {
	timer := time.NewTimer(window)
	defer timer.Stop()

	times := make([]time.Time, 0, 128)
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("warmup: cancelled: %w", ctx.Err())
		case <-timer.C:
			return times, nil
		case a, ok := <-arrivals:
			if !ok {
				return nil, ErrSourceClosed
			}
			times = append(times, a.At)
		}
	}
}
