package mjpegcapture

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/httpstream"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/sink"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/warmup"
)

// MJPEGStream implements StreamProvider over an HTTP Motion-JPEG source.
type MJPEGStream struct {
	cfg          MJPEGConfig
	reconnectCfg httpstream.ReconnectConfig
	client       *http.Client

	// Lifecycle
	mu      sync.RWMutex
	cancel  context.CancelFunc
	done    chan struct{} // closed when the current loop exits
	started time.Time
	sink    sink.Sink

	state atomic.Int32

	// Statistics (atomic for thread-safety)
	frameCount     atomic.Uint64
	bytesRead      atomic.Uint64
	attempts       atomic.Uint64
	reconnects     atomic.Uint64
	resyncsNoStart atomic.Uint64
	resyncsNoEnd   atomic.Uint64
	lastFrameAt    atomic.Int64 // unix nanos
	currentBackoff atomic.Int64
	errorCounts    [len(errorClasses)]atomic.Uint64

	// Log throttling: one line per error class per 10s
	throttle  *httpstream.Throttle
	resyncLog rate.Sometimes

	// warmupCh receives frame arrivals while Warmup runs
	warmupCh atomic.Pointer[chan warmup.Arrival]
}

var errorClasses = [...]httpstream.ErrorClass{
	httpstream.ClassTimeout,
	httpstream.ClassConnection,
	httpstream.ClassStatus,
	httpstream.ClassBind,
	httpstream.ClassUnknown,
}

var _ StreamProvider = (*MJPEGStream)(nil)

// NewMJPEGStream creates a new MJPEG stream with fail-fast validation
//
// Validates configuration at construction time (fail-fast principle):
//   - URL must be a valid http(s) URL with a host
//   - SourceIP, if set, must be an IP address
//   - sizes and durations must not be negative; backoff must not shrink
//   - QueueDepth must be 1-3 in SinkQueue mode
//
// No network activity happens until Start.
func NewMJPEGStream(cfg MJPEGConfig) (*MJPEGStream, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &MJPEGStream{
		cfg: cfg,
		reconnectCfg: httpstream.ReconnectConfig{
			MaxRetries:    cfg.MaxReconnectAttempts,
			RetryDelay:    cfg.ReconnectInitialDelay,
			MaxRetryDelay: cfg.ReconnectMaxDelay,
			Multiplier:    cfg.ReconnectMultiplier,
		},
		throttle:  httpstream.NewThrottle(httpstream.DefaultThrottleInterval),
		resyncLog: rate.Sometimes{Interval: httpstream.DefaultThrottleInterval},
		sink:      sink.New(cfg.sinkMode(), cfg.QueueDepth),
	}
	s.currentBackoff.Store(int64(cfg.ReconnectInitialDelay))

	binder := httpstream.NewBinder(httpstream.BindConfig{
		SourceIP:        cfg.SourceIP,
		SourceInterface: cfg.SourceInterface,
		AutoBind:        cfg.AutoBind,
		Fallback:        cfg.BindFallback,
		OnFallback:      s.onBindFallback,
	}, cfg.RequestTimeout)
	s.client = httpstream.NewClient(binder, cfg.RequestTimeout)

	slog.Info("mjpeg-capture: MJPEG stream created",
		"url", cfg.URL,
		"source_stream", cfg.SourceStream,
		"sink", cfg.SinkMode.String(),
		"source_ip", cfg.SourceIP,
		"source_interface", cfg.SourceInterface,
		"auto_bind", cfg.AutoBind,
	)

	return s, nil
}

// Start launches the background loop. It returns immediately; calling it
// while the loop is running is a no-op.
func (s *MJPEGStream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		select {
		case <-s.done:
			// Loop gave up (max reconnect attempts); allow a fresh start.
			s.cancel()
			s.sink.Close()
		default:
			slog.Debug("mjpeg-capture: stream already running, start ignored")
			return nil
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = time.Now()
	s.sink = sink.New(s.cfg.sinkMode(), s.cfg.QueueDepth)

	s.report(slog.LevelInfo, "starting stream", "url", s.cfg.URL)

	go s.run(loopCtx, s.sink, s.done)

	return nil
}

// Stop cancels the loop and waits up to StopTimeout for it to exit
//
// This method:
//  1. Cancels the loop context (aborts an in-flight request, read or sleep)
//  2. Waits for the loop to finish (bounded by StopTimeout)
//  3. Closes the sink, waking blocked GetFrame callers
//
// Idempotent - safe to call multiple times and before Start.
func (s *MJPEGStream) Stop() error {
	s.mu.Lock()
	cancel, done, snk, started := s.cancel, s.done, s.sink, s.started
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		slog.Debug("mjpeg-capture: stream not started, nothing to stop")
		return nil
	}

	// The wait runs unlocked: OnFrame and LogFunc may call Stats or GetFrame.
	slog.Info("mjpeg-capture: stopping MJPEG stream")
	cancel()

	var err error
	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		slog.Debug("mjpeg-capture: stream loop stopped cleanly")
	case <-timer.C:
		slog.Warn("mjpeg-capture: stop timeout exceeded, stream loop may still be running",
			"timeout", s.cfg.StopTimeout,
		)
		err = ErrStopTimeout
	}

	snk.Close()
	if s.owns(done) {
		s.setState(StateDisconnected)
	}

	s.report(slog.LevelInfo, "stream stopped",
		"frames_captured", s.frameCount.Load(),
		"reconnects", s.reconnects.Load(),
		"uptime", time.Since(started).Round(time.Millisecond),
	)

	return err
}

// owns reports whether done still belongs to the current loop, i.e. no
// Start has installed a newer one.
func (s *MJPEGStream) owns(done chan struct{}) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done == done
}

// IsConnected reports whether the loop is streaming a 200 response body.
func (s *MJPEGStream) IsConnected() bool {
	return s.State() == StateStreaming
}

// State returns the current connection state.
func (s *MJPEGStream) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// GetFrame returns a frame for the consumer; see StreamProvider.
func (s *MJPEGStream) GetFrame(timeout time.Duration) (Frame, bool) {
	return s.currentSink().Get(timeout)
}

// Latest returns the newest frame and its arrival time without consuming it.
func (s *MJPEGStream) Latest() (Frame, time.Time, bool) {
	f, ok := s.currentSink().Peek()
	if !ok {
		return Frame{}, time.Time{}, false
	}
	return f, f.Timestamp, true
}

// Stats returns current stream statistics
//
// Thread-safe - uses atomic operations for counters.
func (s *MJPEGStream) Stats() StreamStats {
	s.mu.RLock()
	started := s.started
	snk := s.sink
	s.mu.RUnlock()

	frameCount := s.frameCount.Load()
	framesDropped := snk.Drops()

	var fpsReal float64
	if !started.IsZero() {
		if uptime := time.Since(started).Seconds(); uptime > 0 {
			fpsReal = float64(frameCount) / uptime
		}
	}

	var dropRate float64
	if frameCount > 0 {
		dropRate = float64(framesDropped) / float64(frameCount) * 100.0
	}

	var lastFrameAt time.Time
	var latencyMS int64
	if ns := s.lastFrameAt.Load(); ns != 0 {
		lastFrameAt = time.Unix(0, ns)
		latencyMS = time.Since(lastFrameAt).Milliseconds()
	}

	state := s.State()

	return StreamStats{
		FrameCount:       frameCount,
		FramesDropped:    framesDropped,
		DropRate:         dropRate,
		FPSReal:          fpsReal,
		LatencyMS:        latencyMS,
		LastFrameAt:      lastFrameAt,
		SourceStream:     s.cfg.SourceStream,
		URL:              s.cfg.URL,
		BytesRead:        s.bytesRead.Load(),
		State:            state,
		IsConnected:      state == StateStreaming,
		ConnectAttempts:  s.attempts.Load(),
		Reconnects:       s.reconnects.Load(),
		CurrentBackoff:   time.Duration(s.currentBackoff.Load()),
		ResyncsNoStart:   s.resyncsNoStart.Load(),
		ResyncsNoEnd:     s.resyncsNoEnd.Load(),
		ErrorsTimeout:    s.errorCounts[httpstream.ClassTimeout].Load(),
		ErrorsConnection: s.errorCounts[httpstream.ClassConnection].Load(),
		ErrorsStatus:     s.errorCounts[httpstream.ClassStatus].Load(),
		ErrorsBind:       s.errorCounts[httpstream.ClassBind].Load(),
		ErrorsUnknown:    s.errorCounts[httpstream.ClassUnknown].Load(),
	}
}

// Warmup measures frame arrival stability over duration
//
// Frames keep flowing to the sink during warm-up; Warmup only observes
// their arrival times. Blocks for the entire duration.
func (s *MJPEGStream) Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error) {
	s.mu.RLock()
	running := s.cancel != nil
	s.mu.RUnlock()
	if !running {
		return nil, ErrNotStarted
	}

	slog.Info("mjpeg-capture: starting warmup",
		"duration", duration,
		"source_stream", s.cfg.SourceStream,
	)

	ch := make(chan warmup.Arrival, 64)
	if !s.warmupCh.CompareAndSwap(nil, &ch) {
		return nil, fmt.Errorf("mjpeg-capture: warmup already in progress")
	}
	defer s.warmupCh.Store(nil)

	stats, err := warmup.Measure(ctx, ch, duration)
	if err != nil {
		return toPublicWarmupStats(stats), fmt.Errorf("mjpeg-capture: %w", err)
	}
	return toPublicWarmupStats(stats), nil
}

func (s *MJPEGStream) currentSink() sink.Sink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sink
}

func (s *MJPEGStream) setState(state ConnectionState) {
	s.state.Store(int32(state))
}

// report logs msg through slog and mirrors it to LogFunc as one line.
func (s *MJPEGStream) report(level slog.Level, msg string, args ...any) {
	attrs := append([]any{"source_stream", s.cfg.SourceStream}, args...)
	slog.Log(context.Background(), level, "mjpeg-capture: "+msg, attrs...)

	if s.cfg.LogFunc != nil {
		s.cfg.LogFunc(formatLine(s.cfg.SourceStream, msg, args))
	}
}

// formatLine renders "[MJPEG src] msg key=value ..." for LogFunc consumers.
func formatLine(source, msg string, args []any) string {
	var b strings.Builder
	b.WriteString("[MJPEG")
	if source != "" {
		b.WriteString(" ")
		b.WriteString(source)
	}
	b.WriteString("] ")
	b.WriteString(msg)

	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}

// sortedHeaderKeys keeps request header order stable in logs.
func sortedHeaderKeys(h map[string]string) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
