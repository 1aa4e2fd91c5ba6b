// Package metrics exposes MJPEG stream statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
)

const namespace = "mjpeg_capture"

// StatsSource is satisfied by *mjpegcapture.MJPEGStream.
type StatsSource interface {
	Stats() mjpegcapture.StreamStats
}

// Collector reads a snapshot from the stream on every scrape and observes
// frame sizes as they arrive.
type Collector struct {
	src StatsSource

	frames         *prometheus.Desc
	bytesRead      *prometheus.Desc
	framesDropped  *prometheus.Desc
	resyncs        *prometheus.Desc
	reconnects     *prometheus.Desc
	attempts       *prometheus.Desc
	errors         *prometheus.Desc
	fps            *prometheus.Desc
	sinceLastFrame *prometheus.Desc
	backoff        *prometheus.Desc
	state          *prometheus.Desc

	frameBytes prometheus.Histogram
}

var states = []mjpegcapture.ConnectionState{
	mjpegcapture.StateDisconnected,
	mjpegcapture.StateConnecting,
	mjpegcapture.StateStreaming,
	mjpegcapture.StateBackingOff,
}

// NewCollector creates a collector for src. source is added as the
// "source_stream" constant label.
func NewCollector(src StatsSource, source string) *Collector {
	labels := prometheus.Labels{"source_stream": source}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}

	return &Collector{
		src:            src,
		frames:         desc("frames_total", "Total number of JPEG frames extracted"),
		bytesRead:      desc("bytes_read_total", "Total response body bytes read"),
		framesDropped:  desc("frames_dropped_total", "Frames overwritten or evicted before being read"),
		resyncs:        desc("resyncs_total", "Buffer clears after a size ceiling was hit", "reason"),
		reconnects:     desc("reconnects_total", "Backoff cycles after a failure or server close"),
		attempts:       desc("connect_attempts_total", "HTTP requests issued"),
		errors:         desc("errors_total", "Connection errors by class", "class"),
		fps:            desc("fps", "Average frames per second since start"),
		sinceLastFrame: desc("seconds_since_last_frame", "Seconds since the last frame arrived"),
		backoff:        desc("backoff_seconds", "Delay the next failure would wait"),
		state:          desc("state", "1 for the current connection state", "state"),
		frameBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "frame_size_bytes",
			Help:        "Size of extracted JPEG frames",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(4096, 2, 8), // 4 KiB to 512 KiB
		}),
	}
}

// ObserveFrame records the size of frame. Use it as (part of) OnFrame.
func (c *Collector) ObserveFrame(frame mjpegcapture.Frame) {
	c.frameBytes.Observe(float64(len(frame.Data)))
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.frames
	ch <- c.bytesRead
	ch <- c.framesDropped
	ch <- c.resyncs
	ch <- c.reconnects
	ch <- c.attempts
	ch <- c.errors
	ch <- c.fps
	ch <- c.sinceLastFrame
	ch <- c.backoff
	ch <- c.state
	c.frameBytes.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	counter := func(d *prometheus.Desc, v uint64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), lv...)
	}
	gauge := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, lv...)
	}

	counter(c.frames, s.FrameCount)
	counter(c.bytesRead, s.BytesRead)
	counter(c.framesDropped, s.FramesDropped)
	counter(c.resyncs, s.ResyncsNoStart, "no_start")
	counter(c.resyncs, s.ResyncsNoEnd, "no_end")
	counter(c.reconnects, s.Reconnects)
	counter(c.attempts, s.ConnectAttempts)
	counter(c.errors, s.ErrorsTimeout, "timeout")
	counter(c.errors, s.ErrorsConnection, "connection")
	counter(c.errors, s.ErrorsStatus, "status")
	counter(c.errors, s.ErrorsBind, "bind")
	counter(c.errors, s.ErrorsUnknown, "unknown")

	gauge(c.fps, s.FPSReal)
	if !s.LastFrameAt.IsZero() {
		gauge(c.sinceLastFrame, float64(s.LatencyMS)/1000)
	}
	gauge(c.backoff, s.CurrentBackoff.Seconds())

	for _, st := range states {
		var v float64
		if st == s.State {
			v = 1
		}
		gauge(c.state, v, st.String())
	}

	c.frameBytes.Collect(ch)
}
