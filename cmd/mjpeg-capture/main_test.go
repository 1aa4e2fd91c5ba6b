package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
)

func init() {
	color.NoColor = true
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func testJPEG(fill byte) []byte {
	data := []byte{0xFF, 0xD8}
	data = append(data, bytes.Repeat([]byte{fill}, 60)...)
	return append(data, 0xFF, 0xD9)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mjpeg-capture version "+mjpegcapture.Version)
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stream:")

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err)
}

func TestRunCommandStopsAfterMaxFrames(t *testing.T) {
	quit := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		for i := byte(1); ; i++ {
			_, _ = w.Write(testJPEG(i))
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			select {
			case <-r.Context().Done():
				return
			case <-quit:
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()
	defer close(quit)

	// Test frames are marker-delimited filler, not decodable images.
	t.Setenv("MJPEG_CAPTURE_SAVER_VERIFY", "false")

	saveDir := filepath.Join(t.TempDir(), "frames")
	out, err := execute(t, "run",
		"--url", srv.URL,
		"--source", "cli-test",
		"--max-frames", "2",
		"--stats-interval", "0",
		"--save-dir", saveDir,
		"--save-every", "1",
		"--log-level", "error",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Source Stream: cli-test")
	assert.Contains(t, out, "Final Statistics")
	assert.Contains(t, out, "Frames Consumed:    2 frames")

	entries, err := os.ReadDir(saveDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestPrintStatsBox(t *testing.T) {
	var buf bytes.Buffer
	printStatsBox(&buf, mjpegcapture.StreamStats{
		State:          mjpegcapture.StateBackingOff,
		FrameCount:     10,
		CurrentBackoff: 4 * time.Second,
		ErrorsStatus:   3,
		ResyncsNoEnd:   1,
	}, 90*time.Second, nil)

	out := buf.String()
	assert.Contains(t, out, "Uptime: 1m30s")
	assert.Contains(t, out, "backing-off")
	assert.Contains(t, out, "Next Retry In:")
	assert.Contains(t, out, "Status Errors:           3")
	assert.Contains(t, out, "no-end 1")
	assert.NotContains(t, out, "Frames Saved")
}

// fakeProvider hands out an increasing sequence, repeating each frame twice.
type fakeProvider struct {
	mjpegcapture.StreamProvider
	calls atomic.Uint64
}

func (f *fakeProvider) GetFrame(time.Duration) (mjpegcapture.Frame, bool) {
	n := f.calls.Add(1)
	if n == 1 {
		return mjpegcapture.Frame{}, false
	}
	return mjpegcapture.Frame{Seq: n / 2}, true
}

func TestConsumeCountsDistinctFrames(t *testing.T) {
	prevMax, prevStats := maxFrames, statsInterval
	maxFrames, statsInterval = 3, 0
	t.Cleanup(func() { maxFrames, statsInterval = prevMax, prevStats })

	p := &fakeProvider{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	consumed := consume(ctx, p, time.Millisecond, func() {})
	assert.Equal(t, uint64(3), consumed)
	// 1 miss, then seq 1,1,2,2,3
	assert.Equal(t, uint64(6), p.calls.Load())
}
