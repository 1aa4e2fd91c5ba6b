// Package emitter publishes stream state and statistics to an MQTT broker.
package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	mjpegcapture "github.com/bkttt0429/LLMhmi-2025-sub000"
	"github.com/bkttt0429/LLMhmi-2025-sub000/internal/config"
)

// statePollInterval is how often Run checks for a state transition.
const statePollInterval = 200 * time.Millisecond

// StatsSource is satisfied by *mjpegcapture.MJPEGStream.
type StatsSource interface {
	Stats() mjpegcapture.StreamStats
}

// MQTTEmitter publishes state transitions and stats snapshots.
//
// Topics:
//
//	{topic}/{source_stream}/state  (retained)
//	{topic}/{source_stream}/stats
type MQTTEmitter struct {
	cfg    config.MQTTConfig
	source string
	Client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates a new MQTT emitter for one stream.
func NewMQTTEmitter(cfg config.MQTTConfig, source string) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		source:    source,
		published: make(map[string]uint64),
	}
}

// Connect establishes connection to MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker)
	}

	e.Client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	timeout := e.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	token := e.Client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Run publishes the state on every transition and a stats snapshot every
// StatsInterval until ctx is done. A final snapshot is sent on exit.
func (e *MQTTEmitter) Run(ctx context.Context, src StatsSource) {
	interval := e.cfg.StatsInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	statsTicker := time.NewTicker(interval)
	defer statsTicker.Stop()
	stateTicker := time.NewTicker(statePollInterval)
	defer stateTicker.Stop()

	last := mjpegcapture.ConnectionState(-1)
	checkState := func() {
		cur := src.Stats().State
		if cur == last {
			return
		}
		prev := last
		last = cur
		if err := e.PublishState(prev, cur); err != nil {
			slog.Debug("mqtt state publish failed", "error", err)
		}
	}

	checkState()
	for {
		select {
		case <-ctx.Done():
			if err := e.PublishStats(src.Stats()); err != nil {
				slog.Debug("mqtt final stats publish failed", "error", err)
			}
			return
		case <-stateTicker.C:
			checkState()
		case <-statsTicker.C:
			if err := e.PublishStats(src.Stats()); err != nil {
				slog.Debug("mqtt stats publish failed", "error", err)
			}
		}
	}
}

// PublishState publishes a retained state message.
func (e *MQTTEmitter) PublishState(prev, cur mjpegcapture.ConnectionState) error {
	msg := StateMessage{
		SourceStream: e.source,
		State:        cur.String(),
		Previous:     prev.String(),
		At:           time.Now().UTC(),
	}
	return e.publish(e.topic("state"), true, msg)
}

// PublishStats publishes a stats snapshot.
func (e *MQTTEmitter) PublishStats(stats mjpegcapture.StreamStats) error {
	return e.publish(e.topic("stats"), false, newStatsMessage(stats, time.Now().UTC()))
}

func (e *MQTTEmitter) publish(topic string, retained bool, v any) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := Encode(v)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	token := e.Client.Publish(topic, e.cfg.QoS, retained, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	slog.Debug("mqtt message published",
		"topic", topic,
		"qos", e.cfg.QoS,
		"size", len(payload),
	)
	return nil
}

func (e *MQTTEmitter) topic(kind string) string {
	return fmt.Sprintf("%s/%s/%s", e.cfg.Topic, e.source, kind)
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
