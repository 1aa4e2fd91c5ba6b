package httpstream

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// IdleReader bounds every Read on a streaming body.
//
// A watchdog is armed when Read starts and disarmed when it returns. If it
// fires, cancel is called (which aborts the in-flight request) and the
// failing Read reports ErrIdleTimeout.
type IdleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

// NewIdleReader wraps r. A non-positive timeout disables the watchdog.
func NewIdleReader(r io.Reader, timeout time.Duration, cancel func()) *IdleReader {
	ir := &IdleReader{r: r, timeout: timeout}
	if timeout > 0 {
		ir.timer = time.AfterFunc(timeout, func() {
			ir.fired.Store(true)
			cancel()
		})
		ir.timer.Stop()
	}
	return ir
}

// Read implements io.Reader.
func (ir *IdleReader) Read(p []byte) (int, error) {
	if ir.timer == nil {
		return ir.r.Read(p)
	}

	ir.timer.Reset(ir.timeout)
	n, err := ir.r.Read(p)
	ir.timer.Stop()

	if err != nil && ir.fired.Load() {
		return n, fmt.Errorf("%w after %s: %w", ErrIdleTimeout, ir.timeout, err)
	}
	return n, err
}

// TimedOut reports whether the watchdog fired.
func (ir *IdleReader) TimedOut() bool {
	return ir.fired.Load()
}

// Close disarms the watchdog. It does not close the wrapped reader.
func (ir *IdleReader) Close() {
	if ir.timer != nil {
		ir.timer.Stop()
	}
}
