// Package jpegscan extracts complete JPEG images from an unbounded, arbitrarily
// fragmented Motion-JPEG byte stream by scanning for SOI/EOI markers.
//
// The extractor is owned by a single goroutine (the stream read loop) and is
// not safe for concurrent use.
package jpegscan

import (
	"bytes"
)

var (
	// soi is the JPEG Start-Of-Image marker.
	soi = []byte{0xFF, 0xD8}
	// eoi is the JPEG End-Of-Image marker.
	eoi = []byte{0xFF, 0xD9}
)

const (
	// DefaultNoStartCeiling is the buffer size above which a buffer without
	// any SOI marker is cleared.
	DefaultNoStartCeiling = 100_000

	// DefaultNoEndCeiling is the buffer size above which a frame whose EOI
	// marker never showed up is treated as corrupted and cleared.
	DefaultNoEndCeiling = 200_000
)

// ResyncReason tells why the extractor dropped its buffer.
type ResyncReason int

const (
	// ResyncNoStart means no SOI marker was found within NoStartCeiling bytes.
	ResyncNoStart ResyncReason = iota
	// ResyncNoEnd means an SOI marker was found but no EOI within NoEndCeiling bytes.
	ResyncNoEnd
)

// String returns a human-readable representation of the reason
func (r ResyncReason) String() string {
	switch r {
	case ResyncNoStart:
		return "no-start-marker"
	case ResyncNoEnd:
		return "no-end-marker"
	default:
		return "unknown"
	}
}

// Config contains extractor limits.
type Config struct {
	// NoStartCeiling bounds the buffer while no SOI marker is present (default 100 000).
	NoStartCeiling int
	// NoEndCeiling bounds a buffered partial frame (default 200 000).
	NoEndCeiling int
	// OnResync is called (from the feeding goroutine) every time the buffer
	// is cleared. buffered is the size that was discarded.
	OnResync func(reason ResyncReason, buffered int)
}

// Extractor accumulates stream bytes and cuts complete frames out of them.
//
// Buffer invariant: buf holds at most one partial frame (aligned on SOI at
// offset 0 when aligned is true) or garbage that precedes the next SOI.
type Extractor struct {
	buf []byte

	// aligned is true once buf[0:2] is an SOI marker.
	aligned bool
	// startFrom is where the next SOI search resumes while unaligned.
	startFrom int
	// endFrom is where the next EOI search resumes while aligned.
	endFrom int

	noStartCeiling int
	noEndCeiling   int
	onResync       func(ResyncReason, int)

	noStartResyncs uint64
	noEndResyncs   uint64
}

// New creates an extractor, applying defaults for zero limits.
func New(cfg Config) *Extractor {
	if cfg.NoStartCeiling <= 0 {
		cfg.NoStartCeiling = DefaultNoStartCeiling
	}
	if cfg.NoEndCeiling <= 0 {
		cfg.NoEndCeiling = DefaultNoEndCeiling
	}
	return &Extractor{
		noStartCeiling: cfg.NoStartCeiling,
		noEndCeiling:   cfg.NoEndCeiling,
		onResync:       cfg.OnResync,
	}
}

// Feed appends chunk to the buffer and returns every frame that became
// complete, in the order their EOI markers appear in the stream.
//
// Algorithm:
//  1. Append chunk to the buffer (empty chunks are ignored)
//  2. Search SOI; none → clear above NoStartCeiling, otherwise wait
//  3. Drop bytes before SOI
//  4. Search EOI after SOI; none → clear above NoEndCeiling, otherwise wait
//  5. Cut SOI..EOI (inclusive) as a frame, drop it from the buffer, repeat
//
// Returned frames are fresh copies; the extractor keeps no reference to them.
func (e *Extractor) Feed(chunk []byte) [][]byte {
	if len(chunk) == 0 {
		return nil
	}
	e.buf = append(e.buf, chunk...)

	var frames [][]byte
	for {
		if !e.aligned {
			idx := bytes.Index(e.buf[e.startFrom:], soi)
			if idx < 0 {
				if len(e.buf) > e.noStartCeiling {
					carry := e.buf[len(e.buf)-1] == soi[0]
					e.resync(ResyncNoStart)
					if carry {
						// Keep a trailing 0xFF: it may be the first half of an SOI.
						e.buf = append(e.buf, soi[0])
					}
					return frames
				}
				// A trailing 0xFF may be the first half of an SOI split across chunks.
				e.startFrom = max(0, len(e.buf)-1)
				return frames
			}
			if start := e.startFrom + idx; start > 0 {
				e.discard(start)
			}
			e.aligned = true
			e.startFrom = 0
			e.endFrom = len(soi)
		}

		idx := bytes.Index(e.buf[e.endFrom:], eoi)
		if idx < 0 {
			if len(e.buf) > e.noEndCeiling {
				e.resync(ResyncNoEnd)
				return frames
			}
			e.endFrom = max(len(soi), len(e.buf)-1)
			return frames
		}

		end := e.endFrom + idx + len(eoi)
		frames = append(frames, bytes.Clone(e.buf[:end]))
		e.discard(end)
		e.aligned = false
		e.endFrom = 0
	}
}

// Reset drops any buffered bytes. Called when a new connection starts a
// fresh ordering domain.
func (e *Extractor) Reset() {
	e.buf = e.buf[:0]
	e.aligned = false
	e.startFrom = 0
	e.endFrom = 0
}

// Buffered returns the number of bytes currently held.
func (e *Extractor) Buffered() int {
	return len(e.buf)
}

// Resyncs returns how many times the buffer was cleared for each reason.
func (e *Extractor) Resyncs() (noStart, noEnd uint64) {
	return e.noStartResyncs, e.noEndResyncs
}

// discard removes the first n bytes, compacting in place so the backing
// array never grows past ceiling + one chunk.
func (e *Extractor) discard(n int) {
	e.buf = append(e.buf[:0], e.buf[n:]...)
}

func (e *Extractor) resync(reason ResyncReason) {
	buffered := len(e.buf)
	switch reason {
	case ResyncNoStart:
		e.noStartResyncs++
	case ResyncNoEnd:
		e.noEndResyncs++
	}
	e.Reset()
	if e.onResync != nil {
		e.onResync(reason, buffered)
	}
}
