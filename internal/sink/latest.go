package sink

import (
	"sync"
	"sync/atomic"
	"time"
)

// Latest is a single-slot, latest-wins sink.
//
// Put overwrites unconditionally; Get returns the stored frame without
// consuming it, so repeated calls return the same frame until the next Put.
type Latest struct {
	mu     sync.RWMutex
	frame  *Frame
	unread bool // true until a reader has seen the stored frame
	closed bool

	drops atomic.Uint64
}

// NewLatest creates an empty single-slot sink.
func NewLatest() *Latest {
	return &Latest{}
}

// Put replaces the stored frame.
func (l *Latest) Put(frame Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.unread {
		l.drops.Add(1)
	}

	l.frame = &frame
	l.unread = true
}

// Get returns the stored frame. It never blocks; timeout is ignored.
func (l *Latest) Get(_ time.Duration) (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frame == nil {
		return Frame{}, false
	}
	l.unread = false
	return *l.frame, true
}

// Peek returns the stored frame without marking it as read.
func (l *Latest) Peek() (Frame, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.frame == nil {
		return Frame{}, false
	}
	return *l.frame, true
}

// Drops returns how many frames were overwritten before any reader saw them.
func (l *Latest) Drops() uint64 {
	return l.drops.Load()
}

// Close stops accepting frames. The last frame stays readable.
func (l *Latest) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
}
