package mjpegcapture

import (
	"errors"
	"fmt"

	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/httpstream"
)

var (
	// ErrInvalidConfig is wrapped by every NewMJPEGStream validation error.
	ErrInvalidConfig = errors.New("mjpeg-capture: invalid config")

	// ErrStopTimeout is returned by Stop when the stream loop did not exit in time.
	ErrStopTimeout = errors.New("mjpeg-capture: stop timeout exceeded")

	// ErrNotStarted is returned by Warmup before Start.
	ErrNotStarted = errors.New("mjpeg-capture: stream not started")

	// ErrBind is wrapped by source-address bind failures.
	ErrBind = httpstream.ErrBind
)

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
