package mjpegcapture

import (
	"net"
	"net/url"
	"time"

	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/jpegscan"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/sink"
)

// Version is sent in the default User-Agent.
const Version = "0.3.1"

const (
	DefaultRequestTimeout        = 30 * time.Second
	DefaultChunkSize             = 16 * 1024
	DefaultReconnectInitialDelay = 1 * time.Second
	DefaultReconnectMaxDelay     = 30 * time.Second
	DefaultReconnectMultiplier   = 2.0
	DefaultQueueDepth            = sink.DefaultQueueDepth
	DefaultStopTimeout           = 5 * time.Second
)

// DefaultHeaders returns the request headers sent on every connection.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Connection":    "keep-alive",
		"Cache-Control": "no-cache",
		"Accept":        "multipart/x-mixed-replace, image/jpeg, */*",
		"User-Agent":    "mjpeg-capture/" + Version,
	}
}

// withDefaults returns a copy of cfg with zero fields replaced by defaults.
func (cfg MJPEGConfig) withDefaults() MJPEGConfig {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ReconnectInitialDelay == 0 {
		cfg.ReconnectInitialDelay = DefaultReconnectInitialDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = max(DefaultReconnectMaxDelay, cfg.ReconnectInitialDelay)
	}
	if cfg.ReconnectMultiplier == 0 {
		cfg.ReconnectMultiplier = DefaultReconnectMultiplier
	}
	if cfg.SinkMode == SinkQueue && cfg.QueueDepth == 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.NoStartCeiling == 0 {
		cfg.NoStartCeiling = jpegscan.DefaultNoStartCeiling
	}
	if cfg.NoEndCeiling == 0 {
		cfg.NoEndCeiling = max(jpegscan.DefaultNoEndCeiling, cfg.NoStartCeiling)
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	headers := DefaultHeaders()
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	cfg.Headers = headers

	return cfg
}

// validate checks a defaulted config (fail-fast principle).
func (cfg MJPEGConfig) validate() error {
	if cfg.URL == "" {
		return invalidConfig("URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return invalidConfig("URL %q: %v", cfg.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalidConfig("URL scheme %q not supported (want http or https)", u.Scheme)
	}
	if u.Host == "" {
		return invalidConfig("URL %q has no host", cfg.URL)
	}

	if cfg.SourceIP != "" && net.ParseIP(cfg.SourceIP) == nil {
		return invalidConfig("source IP %q is not an IP address", cfg.SourceIP)
	}

	if cfg.RequestTimeout < 0 {
		return invalidConfig("request timeout %s must not be negative", cfg.RequestTimeout)
	}
	if cfg.ChunkSize < 1 {
		return invalidConfig("chunk size %d must be positive", cfg.ChunkSize)
	}
	if cfg.ReconnectInitialDelay < 0 {
		return invalidConfig("reconnect initial delay %s must not be negative", cfg.ReconnectInitialDelay)
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectInitialDelay {
		return invalidConfig("reconnect max delay %s is below initial delay %s",
			cfg.ReconnectMaxDelay, cfg.ReconnectInitialDelay)
	}
	if cfg.ReconnectMultiplier < 1 {
		return invalidConfig("reconnect multiplier %.2f must be >= 1", cfg.ReconnectMultiplier)
	}
	if cfg.MaxReconnectAttempts < 0 {
		return invalidConfig("max reconnect attempts %d must not be negative", cfg.MaxReconnectAttempts)
	}

	switch cfg.SinkMode {
	case SinkLatest:
	case SinkQueue:
		if cfg.QueueDepth < 1 || cfg.QueueDepth > sink.MaxQueueDepth {
			return invalidConfig("queue depth %d out of range (1-%d)", cfg.QueueDepth, sink.MaxQueueDepth)
		}
	default:
		return invalidConfig("unknown sink mode %d", cfg.SinkMode)
	}

	if cfg.NoStartCeiling < 2 {
		return invalidConfig("no-start ceiling %d too small", cfg.NoStartCeiling)
	}
	if cfg.NoEndCeiling < cfg.NoStartCeiling {
		return invalidConfig("no-end ceiling %d is below no-start ceiling %d",
			cfg.NoEndCeiling, cfg.NoStartCeiling)
	}
	if cfg.StopTimeout < 0 {
		return invalidConfig("stop timeout %s must not be negative", cfg.StopTimeout)
	}

	return nil
}

func (cfg MJPEGConfig) sinkMode() sink.Mode {
	if cfg.SinkMode == SinkQueue {
		return sink.ModeQueue
	}
	return sink.ModeLatest
}
