package sink

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultQueueDepth matches the reader's historical backlog of two frames.
	DefaultQueueDepth = 2
	// MaxQueueDepth keeps the backlog short enough to stay "live".
	MaxQueueDepth = 3
)

// Queue is a bounded FIFO sink that evicts the oldest frame when full.
//
// The producer never blocks: when the channel is full the oldest frame is
// taken out (counted as a drop) and the new one is enqueued.
type Queue struct {
	frames chan Frame

	putMu sync.Mutex // serializes evict+send so depth is never exceeded
	last  atomic.Pointer[Frame]

	done      chan struct{}
	closeOnce sync.Once

	drops atomic.Uint64
}

// NewQueue creates a queue holding up to depth frames. depth is clamped to
// [1, MaxQueueDepth]; zero selects DefaultQueueDepth.
func NewQueue(depth int) *Queue {
	switch {
	case depth == 0:
		depth = DefaultQueueDepth
	case depth < 1:
		depth = 1
	case depth > MaxQueueDepth:
		depth = MaxQueueDepth
	}
	return &Queue{
		frames: make(chan Frame, depth),
		done:   make(chan struct{}),
	}
}

// Put enqueues frame, evicting the oldest queued frame if the queue is full.
func (q *Queue) Put(frame Frame) {
	select {
	case <-q.done:
		return
	default:
	}

	q.putMu.Lock()
	defer q.putMu.Unlock()

	for {
		select {
		case q.frames <- frame:
			q.last.Store(&frame)
			return
		default:
		}

		// Full: drop oldest. A consumer may win the race, which is fine.
		select {
		case <-q.frames:
			q.drops.Add(1)
		default:
		}
	}
}

// Get dequeues the oldest frame, waiting up to timeout for one to arrive.
// A non-positive timeout polls without waiting.
func (q *Queue) Get(timeout time.Duration) (Frame, bool) {
	select {
	case f := <-q.frames:
		return f, true
	default:
	}
	if timeout <= 0 {
		return Frame{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-q.frames:
		return f, true
	case <-timer.C:
		return Frame{}, false
	case <-q.done:
		// Drain whatever is still queued before reporting empty.
		select {
		case f := <-q.frames:
			return f, true
		default:
			return Frame{}, false
		}
	}
}

// Peek returns the most recently enqueued frame, whether or not it has
// already been dequeued.
func (q *Queue) Peek() (Frame, bool) {
	f := q.last.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return len(q.frames)
}

// Cap returns the queue depth.
func (q *Queue) Cap() int {
	return cap(q.frames)
}

// Drops returns how many frames were evicted before being dequeued.
func (q *Queue) Drops() uint64 {
	return q.drops.Load()
}

// Close wakes blocked readers. Queued frames can still be drained.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
