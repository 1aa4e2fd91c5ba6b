// Package config handles mjpeg-capture configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
)

// EnvPrefix prefixes every environment override, e.g. MJPEG_CAPTURE_STREAM_URL.
const EnvPrefix = "MJPEG_CAPTURE"

// Config is the top-level configuration of the mjpeg-capture binary.
type Config struct {
	Stream  StreamConfig  `mapstructure:"stream"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Saver   SaverConfig   `mapstructure:"saver"`
}

// ─── Stream ───

// StreamConfig maps onto mjpegcapture.MJPEGConfig.
type StreamConfig struct {
	URL             string            `mapstructure:"url"`
	SourceStream    string            `mapstructure:"source_stream"`
	SourceIP        string            `mapstructure:"source_ip"`
	SourceInterface string            `mapstructure:"source_interface"`
	AutoBind        bool              `mapstructure:"auto_bind"`
	BindFallback    bool              `mapstructure:"bind_fallback"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout"`
	ChunkSize       int               `mapstructure:"chunk_size"`
	Sink            string            `mapstructure:"sink"` // latest / queue
	QueueDepth      int               `mapstructure:"queue_depth"`
	NoStartCeiling  int               `mapstructure:"no_start_ceiling"`
	NoEndCeiling    int               `mapstructure:"no_end_ceiling"`
	StopTimeout     time.Duration     `mapstructure:"stop_timeout"`
	Warmup          time.Duration     `mapstructure:"warmup"` // 0 = skip
	Headers         map[string]string `mapstructure:"headers"`
	Reconnect       ReconnectConfig   `mapstructure:"reconnect"`
}

// ReconnectConfig contains backoff settings.
type ReconnectConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	MaxAttempts  int           `mapstructure:"max_attempts"` // 0 = forever
}

// ─── Logging ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string           `mapstructure:"level"`  // debug / info / warn / error
	Format string           `mapstructure:"format"` // json / text
	File   FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig enables a rotated log file next to stdout.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig contains lumberjack rotation settings.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Metrics / MQTT / Saver ───

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// MQTTConfig contains the status emitter settings.
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"` // host:port
	ClientID       string        `mapstructure:"client_id"`
	Topic          string        `mapstructure:"topic"` // status topic prefix
	QoS            byte          `mapstructure:"qos"`
	StatsInterval  time.Duration `mapstructure:"stats_interval"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// SaverConfig contains frame snapshot settings.
type SaverConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	Every   int    `mapstructure:"every"`  // save every Nth frame
	Verify  bool   `mapstructure:"verify"` // decode the JPEG header before saving
}

// Option customizes the viper instance used by Load.
type Option func(v *viper.Viper) error

// WithFlags binds command-line flags to config keys. Keys map a config key
// (e.g. "stream.url") to a flag name (e.g. "url"); a flag the user did not
// set leaves the file/env/default value in place.
func WithFlags(fs *pflag.FlagSet, keys map[string]string) Option {
	return func(v *viper.Viper) error {
		for key, name := range keys {
			f := fs.Lookup(name)
			if f == nil {
				return fmt.Errorf("unknown flag %q for key %s", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %q: %w", name, err)
			}
		}
		return nil
	}
}

// Load reads configuration from path (optional), environment and defaults.
// Precedence: flags > env > file > defaults.
//
// An empty path skips the file: flags and MJPEG_CAPTURE_* variables alone
// are enough to run.
func Load(path string, opts ...Option) (*Config, error) {
	v := newViper()
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	// Stream defaults
	v.SetDefault("stream.url", "")
	v.SetDefault("stream.source_stream", "camera")
	v.SetDefault("stream.source_ip", "")
	v.SetDefault("stream.source_interface", "")
	v.SetDefault("stream.auto_bind", false)
	v.SetDefault("stream.bind_fallback", false)
	v.SetDefault("stream.request_timeout", "30s")
	v.SetDefault("stream.chunk_size", mjpegcapture.DefaultChunkSize)
	v.SetDefault("stream.sink", "latest")
	v.SetDefault("stream.queue_depth", mjpegcapture.DefaultQueueDepth)
	v.SetDefault("stream.no_start_ceiling", 100000)
	v.SetDefault("stream.no_end_ceiling", 200000)
	v.SetDefault("stream.stop_timeout", "5s")
	v.SetDefault("stream.warmup", "0s")
	v.SetDefault("stream.headers", map[string]string{})
	v.SetDefault("stream.reconnect.initial_delay", "1s")
	v.SetDefault("stream.reconnect.max_delay", "30s")
	v.SetDefault("stream.reconnect.multiplier", mjpegcapture.DefaultReconnectMultiplier)
	v.SetDefault("stream.reconnect.max_attempts", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "mjpeg-capture.log")
	v.SetDefault("log.file.rotation.max_size_mb", 50)
	v.SetDefault("log.file.rotation.max_age_days", 7)
	v.SetDefault("log.file.rotation.max_backups", 3)
	v.SetDefault("log.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9108")
	v.SetDefault("metrics.path", "/metrics")

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "localhost:1883")
	v.SetDefault("mqtt.client_id", "mjpeg-capture")
	v.SetDefault("mqtt.topic", "mjpeg-capture")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.stats_interval", "10s")
	v.SetDefault("mqtt.connect_timeout", "5s")

	// Saver defaults
	v.SetDefault("saver.enabled", false)
	v.SetDefault("saver.dir", "frames")
	v.SetDefault("saver.every", 30)
	v.SetDefault("saver.verify", true)
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if _, err := mjpegcapture.ParseSinkMode(c.Stream.Sink); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format: %s (must be json or text)", c.Log.Format)
	}
	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when log.file.enabled=true")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enabled=true")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2 (got %d)", c.MQTT.QoS)
		}
	}

	if c.Saver.Enabled {
		if c.Saver.Dir == "" {
			return fmt.Errorf("saver.dir is required when saver.enabled=true")
		}
		if c.Saver.Every < 1 {
			return fmt.Errorf("saver.every must be >= 1 (got %d)", c.Saver.Every)
		}
	}

	return nil
}

// MJPEGConfig converts the stream section into a library config. The URL is
// validated by mjpegcapture.NewMJPEGStream.
func (s StreamConfig) MJPEGConfig() (mjpegcapture.MJPEGConfig, error) {
	mode, err := mjpegcapture.ParseSinkMode(s.Sink)
	if err != nil {
		return mjpegcapture.MJPEGConfig{}, err
	}

	return mjpegcapture.MJPEGConfig{
		URL:                   s.URL,
		SourceIP:              s.SourceIP,
		SourceInterface:       s.SourceInterface,
		AutoBind:              s.AutoBind,
		BindFallback:          s.BindFallback,
		RequestTimeout:        s.RequestTimeout,
		ChunkSize:             s.ChunkSize,
		ReconnectInitialDelay: s.Reconnect.InitialDelay,
		ReconnectMaxDelay:     s.Reconnect.MaxDelay,
		ReconnectMultiplier:   s.Reconnect.Multiplier,
		MaxReconnectAttempts:  s.Reconnect.MaxAttempts,
		SinkMode:              mode,
		QueueDepth:            s.QueueDepth,
		NoStartCeiling:        s.NoStartCeiling,
		NoEndCeiling:          s.NoEndCeiling,
		StopTimeout:           s.StopTimeout,
		SourceStream:          s.SourceStream,
		Headers:               s.Headers,
	}, nil
}

// DefaultYAML renders every default as a YAML document.
func DefaultYAML() ([]byte, error) {
	v := viper.New()
	setDefaults(v)

	out, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	return out, nil
}

// WriteDefault writes the default configuration to path, refusing to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}

	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
