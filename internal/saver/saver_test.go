package saver

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/config"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.Gray{Y: 255})

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestObserveSavesEveryNth(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	s, err := New(config.SaverConfig{Dir: dir, Every: 3, Verify: true})
	require.NoError(t, err)

	data := encodeJPEG(t, 32, 24)
	for seq := uint64(1); seq <= 7; seq++ {
		s.Observe(mjpegcapture.Frame{Seq: seq, Timestamp: time.Now(), Data: data})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // seq 3 and 6

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Saved)
	assert.Equal(t, Dimensions{Width: 32, Height: 24}, stats.Last)
	assert.Contains(t, filepath.Base(stats.LastPath), "frame_000006_")

	got, err := os.ReadFile(stats.LastPath)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestSaveRejectsInvalidWhenVerifying(t *testing.T) {
	s, err := New(config.SaverConfig{Dir: t.TempDir(), Every: 1, Verify: true})
	require.NoError(t, err)

	_, err = s.Save(mjpegcapture.Frame{Seq: 1, Data: []byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9}})
	assert.ErrorContains(t, err, "invalid jpeg")
	assert.Equal(t, uint64(1), s.Stats().Invalid)
	assert.Zero(t, s.Stats().Saved)
}

func TestSaveWithoutVerify(t *testing.T) {
	s, err := New(config.SaverConfig{Dir: t.TempDir(), Every: 1})
	require.NoError(t, err)

	path, err := s.Save(mjpegcapture.Frame{Seq: 9, Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}})
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, Dimensions{}, s.Stats().Last)
}

func TestNewRejectsZeroEvery(t *testing.T) {
	_, err := New(config.SaverConfig{Dir: t.TempDir(), Every: 0})
	assert.Error(t, err)
}
