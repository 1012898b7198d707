// Package mqtt mirrors user light overrides to the lamp controller over MQTT.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

// ClientConfig holds MQTT connection settings.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// tokenPublisher is the subset of paho.Client the publisher needs.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// OverridePublisher publishes override commands to a single topic. Messages
// are retained so a controller that reconnects picks up the latest state.
type OverridePublisher struct {
	client     tokenPublisher
	disconnect func()
	topic      string
	timeout    time.Duration
	logger     *slog.Logger
}

// Connect dials the broker and returns a publisher for topic.
func Connect(cfg ClientConfig, topic string, timeout time.Duration, logger *slog.Logger) (*OverridePublisher, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(timeout)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	p := NewOverridePublisher(client, topic, timeout, logger)
	p.disconnect = func() { client.Disconnect(250) }
	return p, nil
}

// NewOverridePublisher wraps an already connected client.
func NewOverridePublisher(client tokenPublisher, topic string, timeout time.Duration, logger *slog.Logger) *OverridePublisher {
	return &OverridePublisher{client: client, topic: topic, timeout: timeout, logger: logger}
}

// PublishOverride publishes the override at QoS 1 and waits for the broker ack.
func (p *OverridePublisher) PublishOverride(ctx context.Context, o domain.Override) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal override: %w", err)
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return errors.New("publish override: timed out waiting for broker ack")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish override: %w", err)
	}

	p.logger.Debug("override mirrored", "topic", p.topic, "lights_on", o.LightsOn)
	return nil
}

// Close disconnects from the broker if this publisher owns the connection.
func (p *OverridePublisher) Close() {
	if p.disconnect != nil {
		p.disconnect()
	}
}
