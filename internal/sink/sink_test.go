package sink

import (
	"sync"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(seq uint64) Frame {
	return Frame{Seq: seq, Timestamp: time.Now(), Data: []byte{0xFF, 0xD8, byte(seq), 0xFF, 0xD9}}
}

func TestLatest_EmptyReturnsNothing(t *testing.T) {
	l := NewLatest()

	_, ok := l.Get(0)
	assert.False(t, ok)
	_, ok = l.Peek()
	assert.False(t, ok)
}

func TestLatest_LatestWins(t *testing.T) {
	l := NewLatest()
	for i := uint64(1); i <= 5; i++ {
		l.Put(frame(i))
	}

	got, ok := l.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, uint64(5), got.Seq)
	assert.Equal(t, uint64(4), l.Drops(), "four frames were overwritten unread")
}

func TestLatest_GetIsNonConsuming(t *testing.T) {
	l := NewLatest()
	l.Put(frame(1))

	a, _ := l.Get(0)
	b, _ := l.Get(0)
	assert.Equal(t, a.Seq, b.Seq)

	// Overwriting a frame that was already read is not a drop.
	l.Put(frame(2))
	assert.Zero(t, l.Drops())
}

func TestLatest_CloseKeepsLastFrame(t *testing.T) {
	l := NewLatest()
	l.Put(frame(7))
	l.Close()
	l.Put(frame(8))

	got, ok := l.Peek()
	require.True(t, ok)
	assert.Equal(t, uint64(7), got.Seq)
}

func TestLatest_ConcurrentReadersSeeWholeFrames(t *testing.T) {
	l := NewLatest()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 2000; i++ {
			l.Put(frame(i))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				if f, ok := l.Get(0); ok {
					assert.Equal(t, byte(f.Seq), f.Data[2])
				}
			}
		}()
	}
	wg.Wait()
}

func TestQueue_DepthClamping(t *testing.T) {
	assert.Equal(t, DefaultQueueDepth, NewQueue(0).Cap())
	assert.Equal(t, 1, NewQueue(-4).Cap())
	assert.Equal(t, MaxQueueDepth, NewQueue(10).Cap())
	assert.Equal(t, 3, NewQueue(3).Cap())
}

// TestQueue_Property_KeepsNewestInOrder checks that after any number of puts
// with no reader, the queue holds the newest depth frames in order.
func TestQueue_Property_KeepsNewestInOrder(t *testing.T) {
	property := func(depthSeed, putsSeed uint8) bool {
		depth := int(depthSeed)%MaxQueueDepth + 1
		puts := int(putsSeed)%20 + 1
		q := NewQueue(depth)

		for i := 1; i <= puts; i++ {
			q.Put(frame(uint64(i)))
		}

		kept := min(depth, puts)
		for i := puts - kept + 1; i <= puts; i++ {
			f, ok := q.Get(0)
			if !ok || f.Seq != uint64(i) {
				return false
			}
		}
		_, more := q.Get(0)
		return !more && q.Drops() == uint64(puts-kept)
	}

	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}

func TestQueue_EvictsOldest(t *testing.T) {
	q := NewQueue(2)
	q.Put(frame(1))
	q.Put(frame(2))
	q.Put(frame(3))

	a, _ := q.Get(0)
	b, _ := q.Get(0)
	assert.Equal(t, uint64(2), a.Seq)
	assert.Equal(t, uint64(3), b.Seq)
	assert.Equal(t, uint64(1), q.Drops())
}

func TestQueue_GetTimesOut(t *testing.T) {
	q := NewQueue(2)

	start := time.Now()
	_, ok := q.Get(50 * time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestQueue_GetWaitsForPut(t *testing.T) {
	q := NewQueue(2)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Put(frame(9))
	}()

	f, ok := q.Get(time.Second)
	require.True(t, ok)
	assert.Equal(t, uint64(9), f.Seq)
}

func TestQueue_PeekIsNonConsuming(t *testing.T) {
	q := NewQueue(2)
	q.Put(frame(1))
	q.Put(frame(2))

	p, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, uint64(2), p.Seq)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_CloseWakesReaders(t *testing.T) {
	q := NewQueue(1)

	done := make(chan bool)
	go func() {
		_, ok := q.Get(10 * time.Second)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Close")
	}

	q.Put(frame(1))
	assert.Zero(t, q.Len(), "Put after Close must be ignored")
	q.Close()
}

func TestNew_SelectsStrategy(t *testing.T) {
	assert.IsType(t, &Latest{}, New(ModeLatest, 0))
	assert.IsType(t, &Queue{}, New(ModeQueue, 2))
	assert.Equal(t, "latest", ModeLatest.String())
	assert.Equal(t, "queue", ModeQueue.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
