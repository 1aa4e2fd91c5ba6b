package mjpegcapture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/httpstream"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/jpegscan"
)

// ProbeResult describes one connection attempt made by Probe.
type ProbeResult struct {
	StatusCode  int
	ContentType string
	// HeaderLatency is the time from request to response headers
	HeaderLatency time.Duration
	// FirstFrameLatency is the time from request to the first complete frame
	FirstFrameLatency time.Duration
	// FirstFrame is the first extracted frame (nil if none arrived)
	FirstFrame []byte
	// BytesRead counts body bytes read before the first frame
	BytesRead int
}

// Probe makes a single connection attempt with the same client, headers and
// source binding as a stream built from cfg, and reads until the first
// complete frame. No retries are made.
//
// A non-200 response is returned in the result together with an error
// matching httpstream.StatusError.
func Probe(ctx context.Context, cfg MJPEGConfig) (*ProbeResult, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	binder := httpstream.NewBinder(httpstream.BindConfig{
		SourceIP:        cfg.SourceIP,
		SourceInterface: cfg.SourceInterface,
		AutoBind:        cfg.AutoBind,
		Fallback:        cfg.BindFallback,
	}, cfg.RequestTimeout)
	client := httpstream.NewClient(binder, cfg.RequestTimeout)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("mjpeg-capture: build request: %w", err)
	}
	for _, k := range sortedHeaderKeys(cfg.Headers) {
		req.Header.Set(k, cfg.Headers[k])
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mjpeg-capture: connect: %w", err)
	}
	defer resp.Body.Close()

	res := &ProbeResult{
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		HeaderLatency: time.Since(start),
	}
	if resp.StatusCode != http.StatusOK {
		return res, &httpstream.StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	extractor := jpegscan.New(jpegscan.Config{
		NoStartCeiling: cfg.NoStartCeiling,
		NoEndCeiling:   cfg.NoEndCeiling,
	})
	body := httpstream.NewIdleReader(resp.Body, cfg.RequestTimeout, cancel)
	defer body.Close()

	buf := make([]byte, cfg.ChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			res.BytesRead += n
			if frames := extractor.Feed(buf[:n]); len(frames) > 0 {
				res.FirstFrame = frames[0]
				res.FirstFrameLatency = time.Since(start)
				return res, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return res, fmt.Errorf("mjpeg-capture: stream ended before first frame")
			}
			return res, fmt.Errorf("mjpeg-capture: read: %w", err)
		}
	}
}
