package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"uwbd/internal/bus"
	"uwbd/internal/locate"
)

type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Tag     TagConfig     `yaml:"tag"`
	Anchors []AnchorCoord `yaml:"anchors"`
	Bus     BusConfig     `yaml:"bus"`
	Output  OutputConfig  `yaml:"output"`
}

type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff"`
}

type TagConfig struct {
	// Period bounds how often the producer processes a frame.
	Period time.Duration `yaml:"period"`

	// MinDistance/MaxDistance are accepted for a future range sanity
	// check; the anchor filter does not consult them yet.
	MinDistance float64 `yaml:"min_distance"`
	MaxDistance float64 `yaml:"max_distance"`
}

type AnchorCoord struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type BusConfig struct {
	Capacity int `yaml:"capacity"`
}

type OutputConfig struct {
	Console ConsoleOutputConfig `yaml:"console"`
	UDP     UDPOutputConfig     `yaml:"udp"`
	MQTT    MQTTOutputConfig    `yaml:"mqtt"`

	// Period is the consumer poll cadence.
	Period time.Duration `yaml:"period"`
}

type ConsoleOutputConfig struct {
	Enable bool `yaml:"enable"`
}

type UDPOutputConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type MQTTOutputConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// AnchorList converts the configured coordinates for the locate package.
func (c Config) AnchorList() []locate.Anchor {
	if len(c.Anchors) == 0 {
		return nil
	}
	out := make([]locate.Anchor, len(c.Anchors))
	for i, a := range c.Anchors {
		out[i] = locate.Anchor{X: a.X, Y: a.Y, Z: a.Z}
	}
	return out
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Serial.Device == "" {
		return Config{}, fmt.Errorf("serial.device is required")
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.ConnectAttempts <= 0 {
		cfg.Serial.ConnectAttempts = 5
	}
	if cfg.Serial.ConnectBackoff <= 0 {
		cfg.Serial.ConnectBackoff = 500 * time.Millisecond
	}

	if cfg.Tag.Period <= 0 {
		cfg.Tag.Period = 20 * time.Millisecond
	}
	if cfg.Tag.MaxDistance == 0 {
		cfg.Tag.MaxDistance = 149.0
	}
	if cfg.Tag.MinDistance < 0 {
		return Config{}, fmt.Errorf("tag.min_distance must be >= 0")
	}
	if cfg.Tag.MaxDistance < cfg.Tag.MinDistance {
		return Config{}, fmt.Errorf("tag.max_distance must be >= tag.min_distance")
	}

	if n := len(cfg.Anchors); n != 0 && n != locate.AnchorSlots {
		return Config{}, fmt.Errorf("anchors must list 0 or %d entries, got %d", locate.AnchorSlots, n)
	}

	if cfg.Bus.Capacity <= 0 {
		cfg.Bus.Capacity = bus.DefaultCapacity
	}

	if cfg.Output.Period <= 0 {
		cfg.Output.Period = 100 * time.Millisecond
	}
	if cfg.Output.UDP.Enable && cfg.Output.UDP.Dest == "" {
		return Config{}, fmt.Errorf("output.udp.dest is required when output.udp.enable is true")
	}
	if cfg.Output.MQTT.Enable {
		if cfg.Output.MQTT.Broker == "" {
			return Config{}, fmt.Errorf("output.mqtt.broker is required when output.mqtt.enable is true")
		}
		if cfg.Output.MQTT.Topic == "" {
			cfg.Output.MQTT.Topic = "uwb/samples"
		}
		if cfg.Output.MQTT.ClientID == "" {
			cfg.Output.MQTT.ClientID = "uwbd"
		}
	}

	return cfg, nil
}
