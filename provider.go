package mjpegcapture

import (
	"context"
	"time"
)

// StreamProvider defines the contract for MJPEG frame acquisition
//
// Implementations must guarantee:
//   - Start() returns immediately (non-blocking) and is idempotent
//   - Stop() is idempotent and safe before Start()
//   - GetFrame(), Latest(), Stats() are safe from any goroutine
//   - network and parse errors never escape to the caller
type StreamProvider interface {
	// Start launches the background connect/read/backoff loop.
	//
	// Frames become available asynchronously once the camera answers 200 OK.
	// Calling Start while the loop is running is a no-op.
	//
	// Example:
	//   stream, _ := NewMJPEGStream(cfg)
	//   if err := stream.Start(ctx); err != nil {
	//       log.Fatal(err)
	//   }
	//   defer stream.Stop()
	Start(ctx context.Context) error

	// Stop cancels the loop, interrupting a blocked read or backoff sleep,
	// and waits up to StopTimeout for it to exit.
	//
	// Returns ErrStopTimeout if the loop did not exit in time; nil otherwise,
	// including when the stream was never started.
	Stop() error

	// IsConnected reports whether the loop is currently streaming.
	IsConnected() bool

	// State returns the current connection state.
	State() ConnectionState

	// GetFrame returns a frame for the consumer.
	//
	// SinkLatest: the newest frame, never blocks, timeout ignored; repeated
	// calls return the same frame until a new one arrives.
	// SinkQueue: dequeues the oldest frame, waiting up to timeout.
	//
	// Returns false when no frame is available.
	GetFrame(timeout time.Duration) (Frame, bool)

	// Latest returns the newest frame and its arrival time without consuming it.
	Latest() (Frame, time.Time, bool)

	// Stats returns current stream statistics.
	Stats() StreamStats

	// Warmup measures frame arrival stability over duration.
	//
	// Blocks for the entire duration. Returns an error if the stream is not
	// running, fewer than 2 frames arrived, or the cadence is unstable (in
	// which case the measured stats are returned alongside the error).
	Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error)
}
