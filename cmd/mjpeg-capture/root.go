package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/config"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/logging"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mjpeg-capture",
	Short: "Resilient MJPEG-over-HTTP capture for embedded cameras",
	Long: `mjpeg-capture reads a Motion-JPEG stream from an HTTP camera (ESP32-CAM and
similar), extracts JPEG frames by their SOI/EOI markers and keeps the newest
frame available at low latency. Dropped connections, timeouts and non-200
responses are retried forever with exponential backoff.

Configuration is read from an optional YAML file, MJPEG_CAPTURE_* environment
variables and command-line flags (highest precedence).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level override (debug|info|warn|error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// streamFlags maps config keys to the flags shared by run and probe.
var streamFlags = map[string]string{
	"stream.url":              "url",
	"stream.source_stream":    "source",
	"stream.source_ip":        "source-ip",
	"stream.source_interface": "interface",
	"stream.auto_bind":        "auto-bind",
	"stream.bind_fallback":    "bind-fallback",
	"stream.request_timeout":  "timeout",
}

func addStreamFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("url", "", "MJPEG stream URL, e.g. http://192.168.4.1:81/stream")
	f.String("source", "camera", "source stream identifier")
	f.String("source-ip", "", "bind outgoing connections to this local IP")
	f.String("interface", "", "bind outgoing connections to this interface")
	f.Bool("auto-bind", false, "bind to the interface on the camera's /24")
	f.Bool("bind-fallback", false, "use default routing when binding fails")
	f.Duration("timeout", 0, "connect/header/idle-read timeout")
}

// loadConfig loads the config with cmd's flags bound on top and installs
// the global logger. The returned closer flushes the log file.
func loadConfig(cmd *cobra.Command, keys map[string]string) (*config.Config, io.Closer, error) {
	cfg, err := config.Load(configFile, config.WithFlags(cmd.Flags(), keys))
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	closer, err := logging.Init(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, closer, nil
}

// errReported marks errors already printed by exitWithError.
var errReported = errors.New("reported")

// exitWithError prints error message to stderr and returns an error that
// Execute will not print again.
func exitWithError(msg string, err error) error {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		return fmt.Errorf("%w: %s: %w", errReported, msg, err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	return fmt.Errorf("%w: %s", errReported, msg)
}
