// Package sink holds extracted frames between the stream read loop (single
// producer) and any number of consumers polling at their own cadence.
//
// Philosophy: "Drop frames, never queue. Latency > Completeness."
package sink

import (
	"time"
)

// Frame is one JPEG image cut out of the stream.
//
// IMMUTABILITY CONTRACT: Data MUST NOT be modified after Put. Sinks hand the
// same backing array to every reader.
type Frame struct {
	// Seq is the monotonic sequence number assigned by the stream
	Seq uint64
	// Timestamp is when the frame's EOI marker was received
	Timestamp time.Time
	// Data contains the JPEG bytes, SOI through EOI inclusive
	Data []byte
	// SourceStream identifies the stream (e.g., "arm-cam")
	SourceStream string
	// TraceID is a unique identifier for distributed tracing
	TraceID string
}

// Sink is implemented by Latest and Queue.
//
// Implementations must guarantee:
//   - Put never blocks the producer
//   - readers never observe a partially written frame
//   - all methods are safe for concurrent use
type Sink interface {
	// Put stores a frame, evicting or overwriting according to the sink policy.
	Put(frame Frame)

	// Get returns a frame. Latest never blocks and ignores timeout;
	// Queue dequeues the oldest frame, waiting up to timeout.
	Get(timeout time.Duration) (Frame, bool)

	// Peek returns the most recently stored frame without consuming anything.
	Peek() (Frame, bool)

	// Drops counts frames that were overwritten or evicted before being read.
	Drops() uint64

	// Close wakes blocked readers; later Puts are ignored.
	Close()
}

// Mode selects the sink strategy.
type Mode int

const (
	// ModeLatest keeps only the newest frame (latest-wins).
	ModeLatest Mode = iota
	// ModeQueue keeps a short FIFO backlog, evicting the oldest when full.
	ModeQueue
)

// String returns a human-readable representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeLatest:
		return "latest"
	case ModeQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// New builds the sink for mode. depth only applies to ModeQueue.
func New(mode Mode, depth int) Sink {
	if mode == ModeQueue {
		return NewQueue(depth)
	}
	return NewLatest()
}
