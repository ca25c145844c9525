package report

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"uwbd/internal/uwb"
)

// MQTTConfig controls the MQTT sample publisher.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// MQTTSink publishes each sample as a JSON payload on a single topic,
// QoS 0. Connection is established at construction; a broker that is
// down at startup is a configuration problem, while publish failures
// later are soft and handled by the reporter.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "uwb/samples"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "uwbd"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return &MQTTSink{client: client, topic: cfg.Topic}, nil
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) Publish(s uwb.Sample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	token := m.client.Publish(m.topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
