package logsink

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config enables shipping log lines to an MQTT broker.
type Config struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

func (c *Config) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "phytoguard-dashboard"
	}
	if c.Topic == "" {
		c.Topic = fmt.Sprintf("logs/%s", c.ClientID)
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// MQTTWriter is an io.Writer that publishes every write as one message.
// Publishes are fire-and-forget so logging never waits on the broker.
type MQTTWriter struct {
	client mqtt.Client
	topic  string
}

func NewMQTTWriter(client mqtt.Client, topic string) *MQTTWriter {
	return &MQTTWriter{client: client, topic: topic}
}

// Dial connects to the configured broker and returns a writer plus a close
// function that disconnects the client.
func Dial(cfg Config, timeout time.Duration) (*MQTTWriter, func(), error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled() {
		return nil, nil, errors.New("mqtt broker is not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, nil, fmt.Errorf("mqtt connect %s: timed out after %s", cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}

	return NewMQTTWriter(client, cfg.Topic), func() { client.Disconnect(250) }, nil
}

func (w *MQTTWriter) Write(p []byte) (int, error) {
	// slog reuses p after Write returns
	payload := make([]byte, len(p))
	copy(payload, p)

	w.client.Publish(w.topic, 0, false, payload)
	return len(p), nil
}
