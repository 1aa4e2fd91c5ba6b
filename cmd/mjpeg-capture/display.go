package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/saver"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	warnColor   = color.New(color.FgYellow)
)

func stateColor(s mjpegcapture.ConnectionState) *color.Color {
	switch s {
	case mjpegcapture.StateStreaming:
		return color.New(color.FgGreen)
	case mjpegcapture.StateConnecting:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// printStatsBox prints one periodic statistics box. sv may be nil.
func printStatsBox(w io.Writer, stats mjpegcapture.StreamStats, uptime time.Duration, sv *saver.Saver) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╭─────────────────────────────────────────────────────────╮\n")
	fmt.Fprintf(w, "│ %s\n", headerColor.Sprintf("Stream Statistics (Uptime: %s)", uptime.Round(time.Second)))
	fmt.Fprintf(w, "├─────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│ State:              %s\n", stateColor(stats.State).Sprint(stats.State))
	fmt.Fprintf(w, "│ Frames Captured:    %6d frames\n", stats.FrameCount)
	if stats.FramesDropped > 0 {
		fmt.Fprintf(w, "│ Sink Drops:         %6d frames (%.1f%%)\n", stats.FramesDropped, stats.DropRate)
	}
	if sv != nil {
		ss := sv.Stats()
		fmt.Fprintf(w, "│ Frames Saved:       %6d frames\n", ss.Saved)
		if ss.Last.Width > 0 {
			fmt.Fprintf(w, "│ Frame Size:         %4dx%d\n", ss.Last.Width, ss.Last.Height)
		}
	}
	fmt.Fprintf(w, "│ Real FPS:           %6.2f fps\n", stats.FPSReal)
	fmt.Fprintf(w, "│ Latency:            %6d ms\n", stats.LatencyMS)
	fmt.Fprintf(w, "│ Bytes Read:         %6.2f MB\n", float64(stats.BytesRead)/1024/1024)
	fmt.Fprintf(w, "│ Attempts:           %6d\n", stats.ConnectAttempts)
	fmt.Fprintf(w, "│ Reconnects:         %6d\n", stats.Reconnects)
	if stats.State == mjpegcapture.StateBackingOff {
		fmt.Fprintf(w, "│ Next Retry In:      %6s\n", stats.CurrentBackoff)
	}

	if resyncs := stats.ResyncsNoStart + stats.ResyncsNoEnd; resyncs > 0 {
		fmt.Fprintf(w, "│ Resyncs:            %s\n",
			warnColor.Sprintf("%d (no-start %d, no-end %d)", resyncs, stats.ResyncsNoStart, stats.ResyncsNoEnd))
	}

	totalErrors := stats.ErrorsTimeout + stats.ErrorsConnection + stats.ErrorsStatus +
		stats.ErrorsBind + stats.ErrorsUnknown
	if totalErrors > 0 {
		fmt.Fprintf(w, "├─────────────────────────────────────────────────────────┤\n")
		fmt.Fprintf(w, "│ %s\n", warnColor.Sprint("Error Telemetry"))
		fmt.Fprintf(w, "├─────────────────────────────────────────────────────────┤\n")
		fmt.Fprintf(w, "│ Timeout Errors:     %6d\n", stats.ErrorsTimeout)
		fmt.Fprintf(w, "│ Connection Errors:  %6d\n", stats.ErrorsConnection)
		fmt.Fprintf(w, "│ Status Errors:      %6d\n", stats.ErrorsStatus)
		fmt.Fprintf(w, "│ Bind Errors:        %6d\n", stats.ErrorsBind)
		fmt.Fprintf(w, "│ Unknown Errors:     %6d\n", stats.ErrorsUnknown)
	}
	fmt.Fprintf(w, "╰─────────────────────────────────────────────────────────╯\n")
	fmt.Fprintf(w, "\n")
}

func printWarmupBox(w io.Writer, ws *mjpegcapture.WarmupStats, poll time.Duration) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╭─────────────────────────────────────────────────────────╮\n")
	fmt.Fprintf(w, "│ %s\n", headerColor.Sprint("Warmup Complete"))
	fmt.Fprintf(w, "├─────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│ Frames Received:    %6d frames\n", ws.FramesReceived)
	fmt.Fprintf(w, "│ Duration:           %6.1f seconds\n", ws.Duration.Seconds())
	fmt.Fprintf(w, "│ FPS Mean:           %6.2f fps\n", ws.FPSMean)
	fmt.Fprintf(w, "│ FPS StdDev:         %6.2f fps\n", ws.FPSStdDev)
	fmt.Fprintf(w, "│ FPS Range:          %6.1f - %.1f fps\n", ws.FPSMin, ws.FPSMax)
	fmt.Fprintf(w, "│ Jitter Mean:        %6.3f s\n", ws.JitterMean)
	fmt.Fprintf(w, "│ Jitter Max:         %6.3f s\n", ws.JitterMax)
	fmt.Fprintf(w, "│ Stable:             %6v\n", ws.IsStable)
	fmt.Fprintf(w, "│ Poll Interval:      %6s\n", poll)
	fmt.Fprintf(w, "╰─────────────────────────────────────────────────────────╯\n")

	if !ws.IsStable {
		fmt.Fprintf(w, "\n%s\n", warnColor.Sprint("WARNING: stream is unstable (high FPS variance or jitter)"))
	}
	fmt.Fprintf(w, "\n")
}

func printFinalStats(w io.Writer, stats mjpegcapture.StreamStats, uptime time.Duration, consumed uint64) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "                     Final Statistics                      \n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Total Uptime:       %s\n", uptime.Round(time.Second))
	fmt.Fprintf(w, "  Frames Captured:    %d frames\n", stats.FrameCount)
	fmt.Fprintf(w, "  Frames Consumed:    %d frames\n", consumed)
	fmt.Fprintf(w, "  Sink Drops:         %d frames (%.1f%%)\n", stats.FramesDropped, stats.DropRate)
	fmt.Fprintf(w, "  Average FPS:        %.2f fps\n", stats.FPSReal)
	fmt.Fprintf(w, "  Bytes Read:         %.2f MB\n", float64(stats.BytesRead)/1024/1024)
	fmt.Fprintf(w, "  Reconnection Count: %d\n", stats.Reconnects)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
}
