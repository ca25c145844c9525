package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"uwbd/internal/locate"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_RequiresDevice(t *testing.T) {
	path := writeTempConfig(t, "serial: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "serial.device is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "serial:\n  device: /dev/ttyUSB0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("baud=%d want 115200", cfg.Serial.Baud)
	}
	if cfg.Serial.ConnectAttempts != 5 || cfg.Serial.ConnectBackoff != 500*time.Millisecond {
		t.Fatalf("connect retry defaults not applied: %+v", cfg.Serial)
	}
	if cfg.Tag.Period != 20*time.Millisecond {
		t.Fatalf("period=%s want 20ms", cfg.Tag.Period)
	}
	if cfg.Tag.MaxDistance != 149.0 {
		t.Fatalf("max_distance=%v want 149.0", cfg.Tag.MaxDistance)
	}
	if cfg.Bus.Capacity != 8 {
		t.Fatalf("bus capacity=%d want 8", cfg.Bus.Capacity)
	}
	if cfg.Output.Period != 100*time.Millisecond {
		t.Fatalf("output period=%s want 100ms", cfg.Output.Period)
	}
	if cfg.AnchorList() != nil {
		t.Fatalf("expected no anchors by default")
	}
}

func TestLoad_AnchorCountValidation(t *testing.T) {
	path := writeTempConfig(t, `serial:
  device: /dev/ttyUSB0
anchors:
  - {x: 0, y: 0, z: 0}
  - {x: 10, y: 0, z: 0}
`)
	_, err := Load(path)
	requireErrEq(t, err, "anchors must list 0 or 4 entries, got 2")
}

func TestLoad_FourAnchorsWithSentinel(t *testing.T) {
	path := writeTempConfig(t, `serial:
  device: /dev/ttyUSB0
anchors:
  - {x: 0, y: 0, z: 0}
  - {x: 10, y: 0, z: 0}
  - {x: 0, y: 10, z: 0}
  - {x: 10, y: 10, z: -77.77}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	anchors := cfg.AnchorList()
	if len(anchors) != 4 {
		t.Fatalf("anchors=%d want 4", len(anchors))
	}
	if !anchors[3].Disabled() {
		t.Fatalf("anchor 3 z=%v should carry the disabled sentinel", anchors[3].Z)
	}
	if anchors[1] != (locate.Anchor{X: 10, Y: 0, Z: 0}) {
		t.Fatalf("anchor 1 = %+v", anchors[1])
	}
}

func TestLoad_DistanceBounds(t *testing.T) {
	path := writeTempConfig(t, `serial:
  device: /dev/ttyUSB0
tag:
  min_distance: 5.0
  max_distance: 1.0
`)
	_, err := Load(path)
	requireErrEq(t, err, "tag.max_distance must be >= tag.min_distance")
}

func TestLoad_UDPOutputRequiresDest(t *testing.T) {
	path := writeTempConfig(t, `serial:
  device: /dev/ttyUSB0
output:
  udp:
    enable: true
`)
	_, err := Load(path)
	requireErrEq(t, err, "output.udp.dest is required when output.udp.enable is true")
}

func TestLoad_MQTTDefaults(t *testing.T) {
	path := writeTempConfig(t, `serial:
  device: /dev/ttyUSB0
output:
  mqtt:
    enable: true
    broker: tcp://localhost:1883
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Output.MQTT.Topic != "uwb/samples" || cfg.Output.MQTT.ClientID != "uwbd" {
		t.Fatalf("mqtt defaults not applied: %+v", cfg.Output.MQTT)
	}
}

func TestLoad_MQTTRequiresBroker(t *testing.T) {
	path := writeTempConfig(t, `serial:
  device: /dev/ttyUSB0
output:
  mqtt:
    enable: true
`)
	_, err := Load(path)
	requireErrEq(t, err, "output.mqtt.broker is required when output.mqtt.enable is true")
}
