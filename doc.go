// Package mjpegcapture reads a Motion-JPEG stream over HTTP from an
// unreliable embedded camera and keeps the newest frame available to
// consumers at low latency.
//
// # Quick Start
//
//	stream, err := mjpegcapture.NewMJPEGStream(mjpegcapture.MJPEGConfig{
//	    URL:          "http://192.168.4.1:81/stream",
//	    SourceStream: "arm-cam",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Stop()
//
//	if err := stream.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for range time.Tick(100 * time.Millisecond) {
//	    frame, ok := stream.GetFrame(0)
//	    if !ok {
//	        continue // not connected yet, or no frame so far
//	    }
//	    render(frame.Data) // JPEG bytes, SOI..EOI
//	}
//
// # Frame Extraction
//
// The body is treated as a raw concatenation of JPEG images. Frames are cut
// between SOI (0xFFD8) and EOI (0xFFD9) markers regardless of how TCP
// fragments the bytes; anything between frames (multipart boundaries,
// headers, garbage) is skipped. Memory is bounded: a buffer with no SOI is
// cleared above 100 000 bytes, a partial frame above 200 000 bytes.
//
// # Sinks
//
//   - SinkLatest (default): single slot, latest-wins. GetFrame never blocks
//     and returns the same frame until a newer one arrives.
//   - SinkQueue: FIFO of depth 1-3, oldest evicted when full. GetFrame
//     dequeues, waiting up to its timeout.
//
// # Reconnection
//
// Any failure (refused, reset, timeout, non-200, bind failure) or a normal
// end of stream moves the loop to BackingOff. Delays follow
// min(initial * multiplier^(n-1), max), 1s doubling to 30s by default, and
// reset to the initial delay on every 200 response. Errors are logged at most
// once per class per 10 seconds and never reach the caller; observe them
// through IsConnected, Stats and the optional LogFunc callback.
//
// # Source Binding
//
// On multi-homed hosts (camera on a Wi-Fi AP, uplink on Ethernet) set
// SourceIP, SourceInterface or AutoBind to pin the local address. By default
// a bind failure fails that attempt; BindFallback retries with default
// routing instead.
package mjpegcapture
