package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/iedsim/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MessageHandler processes one inbound message. Handlers run on paho's
// goroutines and should return quickly; a returned error is logged only.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// hooks are the user callbacks fired on connection changes.
type hooks struct {
	onConnect    func()
	onDisconnect func(err error)
}

// Client is a broker connection for one simulated device. It publishes a
// retained online/offline status and replays subscriptions after every
// reconnect.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	online atomic.Bool

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	mu     sync.RWMutex
	hooks  hooks
	logger Logger
}

// newClient builds an unconnected client with the will message and
// connection callbacks installed.
func newClient(cfg config.MQTTConfig, deviceID string) *Client {
	c := &Client{
		cfg:           cfg,
		topics:        NewTopics(cfg.TopicPrefix, deviceID),
		subscriptions: make(map[string]subscription),
		logger:        noopLogger{},
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect dials the broker for deviceID and waits for the first
// connection. Returns ErrConnectionFailed when the broker does not accept
// within the connect timeout.
func Connect(cfg config.MQTTConfig, deviceID string) (*Client, error) {
	c := newClient(cfg, deviceID)

	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: no answer within %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The on-connect callback may not have run yet.
	c.online.Store(true)
	return c, nil
}

// Topics returns the topic layout for this client's device.
func (c *Client) Topics() Topics { return c.topics }

// QoS returns the configured default QoS.
func (c *Client) QoS() byte { return byte(c.cfg.QoS) }

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.client != nil && c.client.IsConnected()
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close publishes a retained "offline" status, then disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus("offline", "graceful_shutdown").WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.online.Store(false)
	return nil
}

// SetOnConnect registers fn to run after every connect and reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.hooks.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers fn to run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.hooks.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger for handler failures and connection loss.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) state() (hooks, Logger) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hooks, c.logger
}

func (c *Client) connected() {
	c.online.Store(true)

	c.subMu.RLock()
	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subMu.RUnlock()

	c.publishStatus("online", "")

	if h, _ := c.state(); h.onConnect != nil {
		h.onConnect()
	}
}

func (c *Client) lost(err error) {
	c.online.Store(false)

	h, log := c.state()
	log.Warn("mqtt connection lost", "error", err)
	if h.onDisconnect != nil {
		h.onDisconnect(err)
	}
}

func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	return c.client.Publish(c.topics.Status(), c.QoS(), true, statusPayload(status, c.topics.DeviceID, reason))
}

// wrapHandler adapts handler to paho's callback signature.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

// dispatch runs handler, logging a returned error and containing panics.
func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	_, log := c.state()
	defer func() {
		if r := recover(); r != nil {
			log.Error("mqtt handler panicked", "topic", topic, "panic", r)
		}
	}()

	if err := handler(topic, payload); err != nil {
		log.Warn("mqtt handler failed", "topic", topic, "error", err)
	}
}
