package httpstream

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingReader blocks until ctx is cancelled, like a stalled response body.
type blockingReader struct {
	ctx context.Context
}

func (r blockingReader) Read([]byte) (int, error) {
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func TestIdleReader_FiresOnStall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ir := NewIdleReader(blockingReader{ctx: ctx}, 30*time.Millisecond, cancel)
	defer ir.Close()

	start := time.Now()
	_, err := ir.Read(make([]byte, 16))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdleTimeout)
	assert.Equal(t, ClassTimeout, Classify(err))
	assert.True(t, ir.TimedOut())
	assert.Less(t, time.Since(start), time.Second)
}

func TestIdleReader_SlowConsumerDoesNotTrip(t *testing.T) {
	cancelled := false
	ir := NewIdleReader(bytes.NewReader([]byte("abcdef")), 20*time.Millisecond, func() { cancelled = true })
	defer ir.Close()

	buf := make([]byte, 2)
	for {
		_, err := ir.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		// Time spent between reads is not idle time.
		time.Sleep(30 * time.Millisecond)
	}

	assert.False(t, cancelled)
	assert.False(t, ir.TimedOut())
}

func TestIdleReader_ZeroTimeoutDisablesWatchdog(t *testing.T) {
	ir := NewIdleReader(bytes.NewReader([]byte("x")), 0, func() { t.Fatal("cancel must not be called") })
	defer ir.Close()

	data, err := io.ReadAll(ir)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}
