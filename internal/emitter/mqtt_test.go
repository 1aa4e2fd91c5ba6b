package emitter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/config"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes; the embedded interface panics on anything else.
type fakeClient struct {
	mqtt.Client

	mu       sync.Mutex
	messages []message
	err      error
}

func (c *fakeClient) IsConnected() bool { return true }
func (c *fakeClient) Disconnect(uint)   {}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message{topic, retained, payload.([]byte)})
	return &fakeToken{err: c.err}
}

func (c *fakeClient) byTopic(topic string) []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []message
	for _, m := range c.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func newTestEmitter(client *fakeClient) *MQTTEmitter {
	e := NewMQTTEmitter(config.MQTTConfig{
		Topic:         "mjpeg-capture",
		QoS:           1,
		StatsInterval: 50 * time.Millisecond,
	}, "arm-cam")
	e.Client = client
	e.setConnected(true)
	return e
}

type fakeSource struct {
	state atomic.Int32
}

func (s *fakeSource) Stats() mjpegcapture.StreamStats {
	return mjpegcapture.StreamStats{
		SourceStream: "arm-cam",
		FrameCount:   7,
		State:        mjpegcapture.ConnectionState(s.state.Load()),
	}
}

func TestPublishStatsEncodesMsgpack(t *testing.T) {
	client := &fakeClient{}
	e := newTestEmitter(client)

	err := e.PublishStats(mjpegcapture.StreamStats{
		SourceStream:   "arm-cam",
		FrameCount:     120,
		ErrorsTimeout:  2,
		State:          mjpegcapture.StateStreaming,
		CurrentBackoff: 1500 * time.Millisecond,
	})
	require.NoError(t, err)

	msgs := client.byTopic("mjpeg-capture/arm-cam/stats")
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].retained)

	var got StatsMessage
	require.NoError(t, Decode(msgs[0].payload, &got))
	assert.Equal(t, uint64(120), got.Frames)
	assert.Equal(t, "streaming", got.State)
	assert.Equal(t, int64(1500), got.BackoffMS)
	assert.Equal(t, uint64(2), got.Errors.Timeout)

	assert.Equal(t, uint64(1), e.Stats().Published["mjpeg-capture/arm-cam/stats"])
}

func TestPublishStateRetained(t *testing.T) {
	client := &fakeClient{}
	e := newTestEmitter(client)

	require.NoError(t, e.PublishState(mjpegcapture.StateConnecting, mjpegcapture.StateStreaming))

	msgs := client.byTopic("mjpeg-capture/arm-cam/state")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)

	var got StateMessage
	require.NoError(t, Decode(msgs[0].payload, &got))
	assert.Equal(t, "streaming", got.State)
	assert.Equal(t, "connecting", got.Previous)
	assert.Equal(t, "arm-cam", got.SourceStream)
}

func TestPublishErrorsCounted(t *testing.T) {
	client := &fakeClient{err: errors.New("broker rejected")}
	e := newTestEmitter(client)

	err := e.PublishStats(mjpegcapture.StreamStats{})
	assert.ErrorContains(t, err, "publish failed")

	e.setConnected(false)
	err = e.PublishStats(mjpegcapture.StreamStats{})
	assert.ErrorContains(t, err, "not connected")

	stats := e.Stats()
	assert.Equal(t, uint64(2), stats.Errors)
	assert.Empty(t, stats.Published)
}

func TestRunPublishesTransitionsAndStats(t *testing.T) {
	client := &fakeClient{}
	e := newTestEmitter(client)
	src := &fakeSource{}
	src.state.Store(int32(mjpegcapture.StateConnecting))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx, src)
	}()

	require.Eventually(t, func() bool {
		return len(client.byTopic("mjpeg-capture/arm-cam/state")) == 1
	}, time.Second, 10*time.Millisecond)

	src.state.Store(int32(mjpegcapture.StateStreaming))
	require.Eventually(t, func() bool {
		return len(client.byTopic("mjpeg-capture/arm-cam/state")) == 2
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(client.byTopic("mjpeg-capture/arm-cam/stats")) >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	states := client.byTopic("mjpeg-capture/arm-cam/state")
	require.Len(t, states, 2)
	var last StateMessage
	require.NoError(t, Decode(states[1].payload, &last))
	assert.Equal(t, "connecting", last.Previous)
	assert.Equal(t, "streaming", last.State)
}

func TestDisconnect(t *testing.T) {
	e := newTestEmitter(&fakeClient{})
	e.Disconnect()
	assert.False(t, e.Stats().Connected)
}
