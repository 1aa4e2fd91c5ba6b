// Package saver writes every Nth frame of a stream to disk.
package saver

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/config"
)

// Saver snapshots frames as frame_{seq:06d}_{timestamp}.jpg, e.g.
// frame_000042_20251105_234517.123.jpg.
type Saver struct {
	dir    string
	every  uint64
	verify bool

	mu        sync.Mutex
	saved     uint64
	invalid   uint64
	failed    uint64
	lastPath  string
	lastImage Dimensions
}

// Dimensions is the decoded size of the last saved frame.
type Dimensions struct {
	Width, Height int
}

// Stats contains saver statistics
type Stats struct {
	Saved    uint64
	Invalid  uint64 // frames rejected by the decode check
	Failed   uint64 // write errors
	LastPath string
	Last     Dimensions
}

// New creates the output directory and returns a Saver.
func New(cfg config.SaverConfig) (*Saver, error) {
	if cfg.Every < 1 {
		return nil, fmt.Errorf("saver: every must be >= 1 (got %d)", cfg.Every)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("saver: create %s: %w", cfg.Dir, err)
	}
	return &Saver{
		dir:    cfg.Dir,
		every:  uint64(cfg.Every),
		verify: cfg.Verify,
	}, nil
}

// Observe saves frame when its sequence number is a multiple of every.
// Errors are logged and counted; the stream loop is never interrupted.
func (s *Saver) Observe(frame mjpegcapture.Frame) {
	if frame.Seq%s.every != 0 {
		return
	}
	if _, err := s.Save(frame); err != nil {
		slog.Warn("saver: frame not saved", "seq", frame.Seq, "error", err)
	}
}

// Save writes frame unconditionally and returns the file path.
func (s *Saver) Save(frame mjpegcapture.Frame) (string, error) {
	var dim Dimensions
	if s.verify {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame.Data))
		if err != nil {
			s.mu.Lock()
			s.invalid++
			s.mu.Unlock()
			return "", fmt.Errorf("invalid jpeg: %w", err)
		}
		dim = Dimensions{Width: cfg.Width, Height: cfg.Height}
	}

	name := fmt.Sprintf("frame_%06d_%s.jpg", frame.Seq, frame.Timestamp.Format("20060102_150405.000"))
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, frame.Data, 0o644); err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		return "", err
	}

	s.mu.Lock()
	s.saved++
	s.lastPath = path
	s.lastImage = dim
	s.mu.Unlock()

	slog.Debug("saver: frame saved", "path", path, "bytes", len(frame.Data),
		"width", dim.Width, "height", dim.Height)
	return path, nil
}

// Stats returns saver statistics
func (s *Saver) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Saved:    s.saved,
		Invalid:  s.invalid,
		Failed:   s.failed,
		LastPath: s.lastPath,
		Last:     s.lastImage,
	}
}
