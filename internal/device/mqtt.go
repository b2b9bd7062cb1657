package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"homebot/internal/config"
)

const connectTimeout = 10 * time.Second

// Publisher delivers a payload to an MQTT topic. Implementations must block
// until the broker acknowledges delivery at the requested QoS or ctx ends.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
}

// MQTTPublisher is a Publisher backed by a single shared paho client.
type MQTTPublisher struct {
	client mqtt.Client
	logger *slog.Logger
}

// Connect dials the broker and blocks until the session is established.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.User).
		SetPassword(cfg.Password).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.BrokerURL())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.BrokerURL(), err)
	}
	logger.Info("mqtt connected", "broker", cfg.BrokerURL(), "client_id", cfg.ClientID)
	return &MQTTPublisher{client: client, logger: logger}, nil
}

// Publish sends payload to topic and waits for broker acknowledgement.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker, letting in-flight messages drain.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
