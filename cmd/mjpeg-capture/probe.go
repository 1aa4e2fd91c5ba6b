package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Make one connection attempt and report the first frame",
	Long: `Probe connects once (no retries) using the same headers, timeout and source
binding as run, then reports the HTTP status, content type and the size and
latency of the first JPEG frame.`,
	Example: `  mjpeg-capture probe --url http://192.168.4.1:81/stream --interface wlan0`,
	RunE:    runProbe,
}

func init() {
	addStreamFlags(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig(cmd, streamFlags)
	if err != nil {
		return exitWithError("failed to load config", err)
	}
	defer logCloser.Close()

	mc, err := cfg.Stream.MJPEGConfig()
	if err != nil {
		return exitWithError("invalid stream config", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*mc.RequestTimeout)
	defer cancel()

	res, err := mjpegcapture.Probe(ctx, mc)

	out := cmd.OutOrStdout()
	if res != nil {
		status := stateColor(mjpegcapture.StateStreaming)
		if res.StatusCode != http.StatusOK {
			status = stateColor(mjpegcapture.StateDisconnected)
		}
		fmt.Fprintf(out, "Status:          %s\n", status.Sprint(res.StatusCode))
		fmt.Fprintf(out, "Content-Type:    %s\n", res.ContentType)
		fmt.Fprintf(out, "Header Latency:  %s\n", res.HeaderLatency)
		if res.FirstFrame != nil {
			fmt.Fprintf(out, "First Frame:     %.1f KB after %s (%d bytes read)\n",
				float64(len(res.FirstFrame))/1024, res.FirstFrameLatency, res.BytesRead)
		}
	}
	if err != nil {
		return exitWithError("probe failed", err)
	}
	return nil
}
