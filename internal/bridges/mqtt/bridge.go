package mqttbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/iedsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/iedsim/internal/register"
)

// Bridge mirrors the process image onto an MQTT broker:
//   - every register change is published to its change topic
//   - messages on set topics are written into the image
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	mqtt   MQTTClient
	image  RegisterWriter
	topics mqtt.Topics
	qos    byte

	published     atomic.Uint64
	publishErrors atomic.Uint64
	setsApplied   atomic.Uint64
	setsRejected  atomic.Uint64

	started  atomic.Bool
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the part of the MQTT client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// RegisterWriter applies inbound values. *register.Image satisfies it.
type RegisterWriter interface {
	Set(b register.Bank, addr int, value int) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Bridge.
type Options struct {
	Client MQTTClient
	Image  RegisterWriter
	Topics mqtt.Topics
	QoS    byte
	Logger Logger // optional
}

// NewBridge creates a bridge. Call Start to subscribe to set topics.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Image == nil {
		return nil, fmt.Errorf("register image is required")
	}
	if opts.Topics.DeviceID == "" {
		return nil, fmt.Errorf("device ID is required")
	}
	if opts.QoS > 2 {
		return nil, mqtt.ErrInvalidQoS
	}

	return &Bridge{
		mqtt:   opts.Client,
		image:  opts.Image,
		topics: opts.Topics,
		qos:    opts.QoS,
		logger: opts.Logger,
	}, nil
}

// Start subscribes to the device's set topics.
func (b *Bridge) Start(_ context.Context) error {
	topic := b.topics.AllSets()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleSet); err != nil {
		return fmt.Errorf("subscribe to set topics: %w", err)
	}
	b.started.Store(true)
	b.logInfo("mqtt bridge started", "subscribe", topic, "publish", b.topics.AllChanges())
	return nil
}

// Stop unsubscribes from set topics. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.started.Load() && b.mqtt.IsConnected() {
			if err := b.mqtt.Unsubscribe(b.topics.AllSets()); err != nil {
				b.logDebug("unsubscribe failed", "error", err)
			}
		}
		b.started.Store(false)
		b.logInfo("mqtt bridge stopped")
	})
}

// Name identifies the bridge as a change feed sink.
func (b *Bridge) Name() string { return "mqtt" }

// HandleChange publishes c as JSON on its change topic, not retained.
func (b *Bridge) HandleChange(_ context.Context, c register.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		b.publishErrors.Add(1)
		return fmt.Errorf("encoding change: %w", err)
	}
	if err := b.mqtt.Publish(b.topics.Change(c.Bank.String(), c.Address), payload, b.qos, false); err != nil {
		b.publishErrors.Add(1)
		return err
	}
	b.published.Add(1)
	return nil
}

// handleSet applies a set message. Bad messages are logged and counted;
// the error return only feeds the client's handler log.
func (b *Bridge) handleSet(topic string, payload []byte) error {
	err := b.applySet(topic, payload)
	if err != nil {
		b.setsRejected.Add(1)
		b.logWarn("set rejected", "topic", topic, "error", err)
		return err
	}
	b.setsApplied.Add(1)
	return nil
}

func (b *Bridge) applySet(topic string, payload []byte) error {
	name, addr, ok := b.topics.ParseSet(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	bank, err := register.ParseBank(name)
	if err != nil {
		return err
	}
	value, err := parseSetPayload(payload)
	if err != nil {
		return err
	}
	return b.image.Set(bank, addr, value)
}

// parseSetPayload accepts {"value": n}, a bare integer, or true/false.
func parseSetPayload(payload []byte) (int, error) {
	raw := bytes.TrimSpace(payload)
	if len(raw) > 0 && raw[0] == '{' {
		var msg struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if msg.Value == nil {
			return 0, fmt.Errorf("%w: missing value", ErrInvalidPayload)
		}
		raw = bytes.TrimSpace(msg.Value)
	}

	switch string(raw) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}

	n, err := strconv.ParseInt(string(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidPayload, raw)
	}
	return int(n), nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// Metrics contains bridge counters for the API metrics endpoint.
type Metrics struct {
	Connected     bool   `json:"connected"`
	Published     uint64 `json:"published"`
	PublishErrors uint64 `json:"publish_errors"`
	SetsApplied   uint64 `json:"sets_applied"`
	SetsRejected  uint64 `json:"sets_rejected"`
}

// GetMetrics returns current bridge counters.
func (b *Bridge) GetMetrics() Metrics {
	return Metrics{
		Connected:     b.mqtt.IsConnected(),
		Published:     b.published.Load(),
		PublishErrors: b.publishErrors.Load(),
		SetsApplied:   b.setsApplied.Load(),
		SetsRejected:  b.setsRejected.Load(),
	}
}
