package mjpegcapture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/httpstream"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/jpegscan"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/sink"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/warmup"
)

// fpsLogEvery is how many frames pass between two debug FPS lines.
const fpsLogEvery = 100

// run is the connect → stream → backoff loop. It is the only goroutine that
// touches the extractor and the only producer into snk.
//
// State machine:
//   - Connecting → Streaming: 200 OK, backoff reset
//   - Connecting → BackingOff: dial error, timeout, non-200, bind failure
//   - Streaming → BackingOff: read error, idle timeout, or server close
//   - any → (exit): ctx cancelled by Stop
func (s *MJPEGStream) run(ctx context.Context, snk sink.Sink, done chan struct{}) {
	defer close(done)
	defer func() {
		// A Stop that timed out may have let a newer loop start.
		if s.owns(done) {
			s.setState(StateDisconnected)
		}
	}()

	backoff := httpstream.NewBackoff(s.reconnectCfg)
	extractor := jpegscan.New(jpegscan.Config{
		NoStartCeiling: s.cfg.NoStartCeiling,
		NoEndCeiling:   s.cfg.NoEndCeiling,
		OnResync:       s.onResync,
	})
	buf := make([]byte, s.cfg.ChunkSize)

	for {
		if ctx.Err() != nil {
			return
		}

		attempt := s.attempts.Add(1)
		s.setState(StateConnecting)
		s.report(slog.LevelInfo, "connecting", "url", s.cfg.URL, "attempt", attempt)

		err := s.stream(ctx, backoff, extractor, snk, buf)
		if ctx.Err() != nil {
			return
		}

		delay := backoff.Next()
		s.currentBackoff.Store(int64(backoff.Current()))
		s.reconnects.Add(1)
		s.setState(StateBackingOff)

		if err == nil {
			s.report(slog.LevelInfo, "stream ended by server, reconnecting", "retry_in", delay)
		} else {
			s.recordError(err, delay)
		}

		if backoff.Exhausted() {
			s.report(slog.LevelError, "giving up after max reconnect attempts",
				"attempts", backoff.Failures(),
			)
			return
		}

		if err := httpstream.Sleep(ctx, delay); err != nil {
			return
		}
	}
}

// stream performs one connection attempt and reads the body until it ends.
// A normal end of body returns nil.
func (s *MJPEGStream) stream(
	ctx context.Context,
	backoff *httpstream.Backoff,
	extractor *jpegscan.Extractor,
	snk sink.Sink,
	buf []byte,
) error {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("mjpeg-capture: build request: %w", err)
	}
	for _, k := range sortedHeaderKeys(s.cfg.Headers) {
		req.Header.Set(k, s.cfg.Headers[k])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mjpeg-capture: connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &httpstream.StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	backoff.Reset()
	s.currentBackoff.Store(int64(backoff.Current()))
	extractor.Reset() // fresh ordering domain; prior tail discarded
	s.setState(StateStreaming)
	s.report(slog.LevelInfo, "connected",
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
	)

	body := httpstream.NewIdleReader(resp.Body, s.cfg.RequestTimeout, cancel)
	defer body.Close()

	var windowStart time.Time
	var windowFrames int

	for {
		n, err := body.Read(buf)
		if n > 0 {
			s.bytesRead.Add(uint64(n))

			for _, data := range extractor.Feed(buf[:n]) {
				frame := s.publish(snk, data)

				if windowFrames == 0 {
					windowStart = frame.Timestamp
				}
				windowFrames++
				if windowFrames == fpsLogEvery {
					elapsed := frame.Timestamp.Sub(windowStart).Seconds()
					if elapsed > 0 {
						slog.Debug("mjpeg-capture: frame rate",
							"source_stream", s.cfg.SourceStream,
							"fps", fmt.Sprintf("%.2f", float64(fpsLogEvery-1)/elapsed),
							"frames_total", frame.Seq,
							"frame_bytes", len(frame.Data),
						)
					}
					windowFrames = 0
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("mjpeg-capture: read: %w", err)
		}
	}
}

// publish stamps data as a Frame and hands it to the sink and observers.
func (s *MJPEGStream) publish(snk sink.Sink, data []byte) Frame {
	now := time.Now()
	frame := Frame{
		Seq:          s.frameCount.Add(1),
		Timestamp:    now,
		Data:         data,
		SourceStream: s.cfg.SourceStream,
		TraceID:      uuid.New().String(),
	}

	snk.Put(frame)
	s.lastFrameAt.Store(now.UnixNano())

	if ch := s.warmupCh.Load(); ch != nil {
		select {
		case *ch <- warmup.Arrival{Seq: frame.Seq, At: now}:
		default:
		}
	}
	if s.cfg.OnFrame != nil {
		s.cfg.OnFrame(frame)
	}

	return frame
}

// recordError counts err by class and logs it, at most once per class per 10s.
func (s *MJPEGStream) recordError(err error, delay time.Duration) {
	class := httpstream.Classify(err)
	s.errorCounts[class].Add(1)

	s.throttle.Do(class, func(suppressed int) {
		args := []any{"class", class.String(), "error", err, "retry_in", delay}
		if suppressed > 0 {
			args = append(args, "suppressed", suppressed)
		}
		s.report(slog.LevelWarn, "connection failed", args...)
	})
}

func (s *MJPEGStream) onBindFallback(err error) {
	s.errorCounts[httpstream.ClassBind].Add(1)
	s.throttle.Do(httpstream.ClassBind, func(suppressed int) {
		s.report(slog.LevelWarn, "source bind failed, using default routing",
			"error", err, "suppressed", suppressed)
	})
}

func (s *MJPEGStream) onResync(reason jpegscan.ResyncReason, buffered int) {
	switch reason {
	case jpegscan.ResyncNoStart:
		s.resyncsNoStart.Add(1)
	case jpegscan.ResyncNoEnd:
		s.resyncsNoEnd.Add(1)
	}

	s.resyncLog.Do(func() {
		s.report(slog.LevelWarn, "buffer cleared, resynchronizing",
			"reason", reason.String(), "buffered_bytes", buffered)
	})
}
