package mjpegcapture

import (
	"time"

	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/sink"
)

// Frame is one JPEG image cut out of the MJPEG stream.
//
// Data runs from the SOI marker through the EOI marker inclusive and MUST NOT
// be modified: every reader of the sink shares the same backing array.
type Frame = sink.Frame

// ConnectionState is the state of the reconnect loop.
type ConnectionState int32

const (
	// StateDisconnected means the stream is stopped (or never started).
	StateDisconnected ConnectionState = iota
	// StateConnecting means an HTTP request is in flight.
	StateConnecting
	// StateStreaming means a 200 response was received and the body is being read.
	StateStreaming
	// StateBackingOff means the loop is sleeping before the next attempt.
	StateBackingOff
)

// String returns a human-readable string representation of the state
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateBackingOff:
		return "backing-off"
	default:
		return "unknown"
	}
}

// SinkMode selects how extracted frames are held for consumers.
type SinkMode int

const (
	// SinkLatest keeps only the newest frame (latest-wins). GetFrame never blocks.
	SinkLatest SinkMode = iota
	// SinkQueue keeps a short FIFO backlog (depth 1-3), evicting the oldest
	// frame when full. GetFrame waits up to its timeout.
	SinkQueue
)

// String returns a human-readable string representation of the sink mode
func (m SinkMode) String() string {
	switch m {
	case SinkLatest:
		return "latest"
	case SinkQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// ParseSinkMode parses "latest" or "queue".
func ParseSinkMode(s string) (SinkMode, error) {
	switch s {
	case "", "latest":
		return SinkLatest, nil
	case "queue":
		return SinkQueue, nil
	default:
		return SinkLatest, invalidConfig("unknown sink mode %q (want latest or queue)", s)
	}
}

// MJPEGConfig contains configuration for MJPEG stream capture
//
// Zero values select the defaults noted on each field.
type MJPEGConfig struct {
	// URL is the http(s) MJPEG stream URL (required)
	URL string

	// SourceIP binds outgoing connections to this local address
	SourceIP string
	// SourceInterface binds outgoing connections to the first IPv4 address of
	// this interface (ignored when SourceIP is set)
	SourceInterface string
	// AutoBind binds to the local interface on the same /24 as the camera
	// (ignored when SourceIP or SourceInterface is set)
	AutoBind bool
	// BindFallback falls back to default routing when binding fails.
	// Default false: a bind failure fails the attempt and backoff applies.
	BindFallback bool

	// RequestTimeout bounds connect, response headers and every chunk read (default: 30s)
	RequestTimeout time.Duration
	// ChunkSize is the body read size in bytes (default: 16 KiB)
	ChunkSize int

	// ReconnectInitialDelay is the first backoff delay (default: 1s)
	ReconnectInitialDelay time.Duration
	// ReconnectMaxDelay caps the backoff delay (default: 30s)
	ReconnectMaxDelay time.Duration
	// ReconnectMultiplier is the backoff growth factor, >= 1 (default: 2.0)
	ReconnectMultiplier float64
	// MaxReconnectAttempts stops the loop after this many consecutive
	// failures (default: 0 = retry forever)
	MaxReconnectAttempts int

	// SinkMode selects latest-wins or bounded queue (default: SinkLatest)
	SinkMode SinkMode
	// QueueDepth is the backlog in SinkQueue mode, 1-3 (default: 2)
	QueueDepth int

	// NoStartCeiling clears a buffer with no SOI marker above this size (default: 100 000)
	NoStartCeiling int
	// NoEndCeiling clears a partial frame above this size (default: 200 000)
	NoEndCeiling int

	// StopTimeout bounds how long Stop waits for the loop (default: 5s)
	StopTimeout time.Duration

	// SourceStream identifies the stream in frames, stats and logs (e.g., "arm-cam")
	SourceStream string
	// Headers are extra request headers; they override the defaults
	Headers map[string]string

	// LogFunc receives a human-readable line for every connection transition
	// and every (rate-limited) error. Optional.
	LogFunc func(line string)
	// OnFrame is called synchronously from the stream loop for every frame.
	// It must return quickly. Optional.
	OnFrame func(frame Frame)
}

// StreamStats contains current stream statistics
type StreamStats struct {
	// FrameCount is the total number of frames extracted
	FrameCount uint64
	// FramesDropped counts frames overwritten or evicted before a consumer read them
	FramesDropped uint64
	// DropRate is the percentage of frames dropped (0-100)
	DropRate float64
	// FPSReal is the measured frame rate since Start
	FPSReal float64
	// LatencyMS is the time since the last frame in milliseconds
	LatencyMS int64
	// LastFrameAt is the arrival time of the last frame
	LastFrameAt time.Time
	// SourceStream identifies the stream
	SourceStream string
	// URL is the stream URL
	URL string
	// BytesRead is the total body bytes read across connections
	BytesRead uint64

	// State is the current connection state
	State ConnectionState
	// IsConnected is true while State is StateStreaming
	IsConnected bool
	// ConnectAttempts counts HTTP requests issued
	ConnectAttempts uint64
	// Reconnects counts backoff cycles (failed attempts and server closes)
	Reconnects uint64
	// CurrentBackoff is the delay the next failure would wait
	CurrentBackoff time.Duration

	// ResyncsNoStart counts buffer clears with no SOI marker
	ResyncsNoStart uint64
	// ResyncsNoEnd counts partial frames discarded with no EOI marker
	ResyncsNoEnd uint64

	// ErrorsTimeout counts dial, header and idle-read timeouts
	ErrorsTimeout uint64
	// ErrorsConnection counts refused/reset connections and DNS failures
	ErrorsConnection uint64
	// ErrorsStatus counts non-200 responses
	ErrorsStatus uint64
	// ErrorsBind counts source-address bind failures (including tolerated ones)
	ErrorsBind uint64
	// ErrorsUnknown counts unclassified errors
	ErrorsUnknown uint64
}

// WarmupStats contains statistics collected during stream warm-up phase
type WarmupStats struct {
	// FramesReceived is the number of frames received during warm-up
	FramesReceived int
	// Duration is the actual warm-up duration
	Duration time.Duration
	// FPSMean is the mean FPS across all frames
	FPSMean float64
	// FPSStdDev is the standard deviation of FPS
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// IsStable is true if FPS is stable (stddev < 15% of mean AND jitter < 20%)
	IsStable bool
	// JitterMean is the average inter-frame interval variance (seconds)
	JitterMean float64
	// JitterStdDev is the standard deviation of jitter (seconds)
	JitterStdDev float64
	// JitterMax is the maximum jitter observed (seconds)
	JitterMax float64
}
