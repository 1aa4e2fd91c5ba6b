package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/emitter"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/metrics"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/saver"
)

// maxPollRate caps how often the consumer loop polls for frames (Hz).
const maxPollRate = 10.0

var (
	statsInterval time.Duration
	maxFrames     uint64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture frames until interrupted",
	Long: `Connect to the camera and keep capturing until Ctrl+C.

A statistics box is printed every --stats-interval. Optional outputs:
frame snapshots (saver), a Prometheus endpoint (metrics) and MQTT status
messages (mqtt), each enabled in the config file or by its flag.`,
	Example: `  mjpeg-capture run --url http://192.168.4.1:81/stream
  mjpeg-capture run -c capture.yaml --save-dir ./frames --metrics-listen :9108`,
	RunE: runCapture,
}

func init() {
	addStreamFlags(runCmd)
	f := runCmd.Flags()
	f.String("sink", "latest", "sink mode (latest|queue)")
	f.Int("queue-depth", 0, "queue depth in queue mode (1-3)")
	f.Duration("warmup", 0, "measure stream stability for this long before consuming (0 = skip)")
	f.String("save-dir", "", "save every Nth frame to this directory")
	f.Int("save-every", 0, "save every Nth frame")
	f.String("metrics-listen", "", "serve Prometheus metrics on this address")
	f.String("mqtt-broker", "", "publish status to this MQTT broker (host:port)")
	f.DurationVar(&statsInterval, "stats-interval", 10*time.Second, "interval between stats boxes")
	f.Uint64Var(&maxFrames, "max-frames", 0, "stop after consuming this many frames (0 = unlimited)")
}

var runFlags = func() map[string]string {
	keys := map[string]string{
		"stream.sink":        "sink",
		"stream.queue_depth": "queue-depth",
		"stream.warmup":      "warmup",
		"saver.dir":          "save-dir",
		"saver.every":        "save-every",
		"metrics.listen":     "metrics-listen",
		"mqtt.broker":        "mqtt-broker",
	}
	for k, v := range streamFlags {
		keys[k] = v
	}
	return keys
}()

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig(cmd, runFlags)
	if err != nil {
		return exitWithError("failed to load config", err)
	}
	defer logCloser.Close()

	// An explicit output flag enables its component.
	if cmd.Flags().Changed("save-dir") {
		cfg.Saver.Enabled = true
	}
	if cmd.Flags().Changed("metrics-listen") {
		cfg.Metrics.Enabled = true
	}
	if cmd.Flags().Changed("mqtt-broker") {
		cfg.MQTT.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return exitWithError("invalid config", err)
	}

	mc, err := cfg.Stream.MJPEGConfig()
	if err != nil {
		return exitWithError("invalid stream config", err)
	}

	var observers []func(mjpegcapture.Frame)
	mc.OnFrame = func(f mjpegcapture.Frame) {
		for _, observe := range observers {
			observe(f)
		}
	}

	stream, err := mjpegcapture.NewMJPEGStream(mc)
	if err != nil {
		return exitWithError("failed to create stream", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sv *saver.Saver
	if cfg.Saver.Enabled {
		sv, err = saver.New(cfg.Saver)
		if err != nil {
			return exitWithError("failed to create frame saver", err)
		}
		observers = append(observers, sv.Observe)
		slog.Info("frame saving enabled", "dir", cfg.Saver.Dir, "every", cfg.Saver.Every)
	}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(stream, mc.SourceStream)
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector)
		observers = append(observers, collector.ObserveFrame)

		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, reg)
		if err := srv.Start(ctx); err != nil {
			return exitWithError("failed to start metrics server", err)
		}
		defer srv.Stop(context.Background())
	}

	if cfg.MQTT.Enabled {
		em := emitter.NewMQTTEmitter(cfg.MQTT, mc.SourceStream)
		if err := em.Connect(ctx); err != nil {
			// Status publishing is optional; capture goes on without it.
			slog.Warn("mqtt unavailable, status publishing disabled", "error", err)
		} else {
			emCtx, emCancel := context.WithCancel(ctx)
			emDone := make(chan struct{})
			go func() {
				defer close(emDone)
				em.Run(emCtx, stream)
			}()
			defer func() {
				emCancel()
				<-emDone
				em.Disconnect()
			}()
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(out, "║              MJPEG Capture %-30s ║\n", mjpegcapture.Version)
	fmt.Fprintf(out, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(out, "  URL:           %s\n", mc.URL)
	fmt.Fprintf(out, "  Source Stream: %s\n", mc.SourceStream)
	fmt.Fprintf(out, "  Sink:          %s\n", mc.SinkMode)
	fmt.Fprintf(out, "\n")

	startTime := time.Now()
	if err := stream.Start(ctx); err != nil {
		return exitWithError("failed to start stream", err)
	}

	poll := mjpegcapture.SuggestedPollInterval(nil, maxPollRate)
	if cfg.Stream.Warmup > 0 {
		fmt.Fprintf(out, "Running warmup (%s) to measure stream stability...\n", cfg.Stream.Warmup)
		ws, err := stream.Warmup(ctx, cfg.Stream.Warmup)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			slog.Warn("warmup failed, using default poll interval", "error", err)
		case ws != nil:
			poll = mjpegcapture.SuggestedPollInterval(ws, maxPollRate)
			printWarmupBox(out, ws, poll)
		}
	}

	fmt.Fprintf(out, "Capturing (poll every %s). Press Ctrl+C to stop.\n", poll)

	consumed := consume(ctx, stream, poll, func() {
		printStatsBox(out, stream.Stats(), time.Since(startTime), sv)
	})

	slog.Info("stopping stream")
	if err := stream.Stop(); err != nil {
		slog.Error("error stopping stream", "error", err)
	}
	printFinalStats(out, stream.Stats(), time.Since(startTime), consumed)
	return nil
}

// consume polls the stream like a display loop would, counting distinct
// frames, until ctx is done or maxFrames is reached.
func consume(ctx context.Context, stream mjpegcapture.StreamProvider, poll time.Duration, report func()) uint64 {
	pollTicker := time.NewTicker(poll)
	defer pollTicker.Stop()

	var statsC <-chan time.Time
	if statsInterval > 0 {
		statsTicker := time.NewTicker(statsInterval)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	var consumed, lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return consumed
		case <-statsC:
			report()
		case <-pollTicker.C:
			frame, ok := stream.GetFrame(poll)
			if !ok || frame.Seq == lastSeq {
				continue
			}
			lastSeq = frame.Seq
			consumed++
			if maxFrames > 0 && consumed >= maxFrames {
				slog.Info("reached maximum frames, stopping", "max_frames", maxFrames)
				return consumed
			}
		}
	}
}
