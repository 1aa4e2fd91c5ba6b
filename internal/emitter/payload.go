package emitter

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
)

// StateMessage is published (retained) on every connection-state change.
type StateMessage struct {
	SourceStream string    `msgpack:"source_stream"`
	State        string    `msgpack:"state"`
	Previous     string    `msgpack:"previous"`
	At           time.Time `msgpack:"at"`
}

// StatsMessage is a periodic snapshot of mjpegcapture.StreamStats.
type StatsMessage struct {
	SourceStream    string    `msgpack:"source_stream"`
	URL             string    `msgpack:"url"`
	State           string    `msgpack:"state"`
	Frames          uint64    `msgpack:"frames"`
	FramesDropped   uint64    `msgpack:"frames_dropped"`
	DropRate        float64   `msgpack:"drop_rate"`
	FPS             float64   `msgpack:"fps"`
	LatencyMS       int64     `msgpack:"latency_ms"`
	BytesRead       uint64    `msgpack:"bytes_read"`
	ConnectAttempts uint64    `msgpack:"connect_attempts"`
	Reconnects      uint64    `msgpack:"reconnects"`
	BackoffMS       int64     `msgpack:"backoff_ms"`
	ResyncsNoStart  uint64    `msgpack:"resyncs_no_start"`
	ResyncsNoEnd    uint64    `msgpack:"resyncs_no_end"`
	Errors          ErrorsMsg `msgpack:"errors"`
	At              time.Time `msgpack:"at"`
}

// ErrorsMsg holds error counts by class.
type ErrorsMsg struct {
	Timeout    uint64 `msgpack:"timeout"`
	Connection uint64 `msgpack:"connection"`
	Status     uint64 `msgpack:"status"`
	Bind       uint64 `msgpack:"bind"`
	Unknown    uint64 `msgpack:"unknown"`
}

func newStatsMessage(s mjpegcapture.StreamStats, at time.Time) StatsMessage {
	return StatsMessage{
		SourceStream:    s.SourceStream,
		URL:             s.URL,
		State:           s.State.String(),
		Frames:          s.FrameCount,
		FramesDropped:   s.FramesDropped,
		DropRate:        s.DropRate,
		FPS:             s.FPSReal,
		LatencyMS:       s.LatencyMS,
		BytesRead:       s.BytesRead,
		ConnectAttempts: s.ConnectAttempts,
		Reconnects:      s.Reconnects,
		BackoffMS:       s.CurrentBackoff.Milliseconds(),
		ResyncsNoStart:  s.ResyncsNoStart,
		ResyncsNoEnd:    s.ResyncsNoEnd,
		Errors: ErrorsMsg{
			Timeout:    s.ErrorsTimeout,
			Connection: s.ErrorsConnection,
			Status:     s.ErrorsStatus,
			Bind:       s.ErrorsBind,
			Unknown:    s.ErrorsUnknown,
		},
		At: at,
	}
}

// Encode marshals v with msgpack.
func Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode unmarshals a payload produced by Encode.
func Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
