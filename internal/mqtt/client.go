// Package mqtt wraps paho with reconnect-safe subscriptions and an
// availability topic for Home Assistant style bridges.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/joshp123/gohome-fireboard/internal/config"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250
	maxQoS            = 2
	maxPayloadSize    = 1 << 20

	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// MessageHandler receives a message payload. Errors are logged.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is a connected broker session.
type Client struct {
	client      paho.Client
	qos         byte
	statusTopic string
	logger      *slog.Logger

	mu   sync.RWMutex
	subs map[string]subscription
}

// StatusTopic is where availability is announced for a base topic.
func StatusTopic(baseTopic string) string {
	return strings.TrimRight(baseTopic, "/") + "/status"
}

// Connect dials the broker and sets a retained offline last will on the status topic.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		qos:         byte(cfg.QoS),
		statusTopic: StatusTopic(cfg.BaseTopic),
		logger:      logger.With("component", "mqtt"),
		subs:        make(map[string]subscription),
	}

	opts := paho.NewClientOptions()
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetCleanSession(true)
	opts.SetWill(c.statusTopic, PayloadOffline, c.qos, true)
	opts.SetOnConnectHandler(func(paho.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.logger.Warn("connection lost", "error", err)
	})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

func (c *Client) handleConnect() {
	c.mu.RLock()
	for topic, sub := range c.subs {
		c.client.Subscribe(topic, sub.qos, c.wrap(sub.handler))
	}
	c.mu.RUnlock()

	c.client.Publish(c.statusTopic, c.qos, true, PayloadOnline)
	c.logger.Info("connected")
}

// QoS is the configured default quality of service.
func (c *Client) QoS() byte {
	return c.qos
}

func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers handler and restores it after every reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	token := c.client.Subscribe(topic, qos, c.wrap(handler))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Close announces offline and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(c.statusTopic, c.qos, true, PayloadOffline).WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
	return nil
}

func (c *Client) wrap(handler MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("handler panic", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}

// Topics names the roots a bridge publishes under.
type Topics struct {
	DiscoveryPrefix string
	Base            string
}

func TopicsFrom(cfg config.MQTTConfig) Topics {
	return Topics{
		DiscoveryPrefix: strings.TrimRight(cfg.DiscoveryPrefix, "/"),
		Base:            strings.TrimRight(cfg.BaseTopic, "/"),
	}
}

// Broker is the publish/subscribe surface plugins use.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	QoS() byte
}

var _ Broker = (*Client)(nil)
