package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/icsnexus/otcollector/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %q: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", name, err)
	}
}

func TestLoad_CollectorsTargetsAndMQTT(t *testing.T) {
	root := t.TempDir()
	collectorsDir := filepath.Join(root, "collectors")
	targetsDir := filepath.Join(root, "targets")
	mqttPath := filepath.Join(root, "mqtt.yaml")

	writeFile(t, collectorsDir, "snmp.yaml", `
snmp:
  enabled: true
  poll_interval_ms: 15000
  timeout_ms: 4000
  retries: 3
  batch_size: 50
  max_concurrent: 5
`)

	writeFile(t, targetsDir, "snmp.yaml", `
source: snmp
targets:
  - id: sw1
    host: 10.0.0.1
    port: 161
    enabled: true
    snmp:
      security_name: monitor
      authentication_protocol: sha256
      authentication_passphrase: authpass
      privacy_protocol: aes256
      privacy_passphrase: privpass
`)

	writeFile(t, root, "mqtt.yaml", `
broker_url: tcp://broker:1883
client_id: agent-1
topic: otcollector/telemetry
qos: 1
timeout_ms: 3000
`)

	cfg, err := Load(Paths{Collectors: collectorsDir, Targets: targetsDir, MQTT: mqttPath}, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	snmpCfg, ok := cfg.Collectors[models.SourceSNMP]
	if !ok {
		t.Fatal("expected snmp collector config to be present")
	}
	if snmpCfg.PollInterval != 15*time.Second || snmpCfg.Retries != 3 || snmpCfg.BatchSize != 50 {
		t.Fatalf("unexpected snmp collector config: %+v", snmpCfg)
	}

	targets := cfg.Targets[models.SourceSNMP]
	if len(targets) != 1 {
		t.Fatalf("len(targets) = %d, want 1", len(targets))
	}
	if targets[0].Host != "10.0.0.1" || targets[0].SNMP == nil || targets[0].SNMP.SecurityName != "monitor" {
		t.Fatalf("unexpected target: %+v", targets[0])
	}

	if cfg.MQTT.BrokerURL != "tcp://broker:1883" || cfg.MQTT.Topic != "otcollector/telemetry" {
		t.Fatalf("unexpected mqtt config: %+v", cfg.MQTT)
	}
}

func TestLoad_MissingDirectoriesYieldEmptySections(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(Paths{
		Collectors: filepath.Join(root, "does-not-exist-collectors"),
		Targets:    filepath.Join(root, "does-not-exist-targets"),
		MQTT:       filepath.Join(root, "does-not-exist-mqtt.yaml"),
	}, nil)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing paths", err)
	}
	if len(cfg.Collectors) != 0 || len(cfg.Targets) != 0 {
		t.Fatalf("expected empty sections, got %+v / %+v", cfg.Collectors, cfg.Targets)
	}
	if cfg.MQTT.BrokerURL != "" {
		t.Fatalf("expected zero-value MQTT config, got %+v", cfg.MQTT)
	}
}

func TestLoad_MalformedFileIsSkippedNotFatal(t *testing.T) {
	root := t.TempDir()
	targetsDir := filepath.Join(root, "targets")
	writeFile(t, targetsDir, "bad.yaml", "source: [this is not, valid: yaml")
	writeFile(t, targetsDir, "good.yaml", `
source: arp
targets:
  - id: a1
    host: 10.0.0.2
`)

	cfg, err := Load(Paths{Collectors: filepath.Join(root, "missing"), Targets: targetsDir, MQTT: filepath.Join(root, "missing.yaml")}, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Targets[models.SourceARP]) != 1 {
		t.Fatalf("expected good.yaml's target to load despite bad.yaml, got %+v", cfg.Targets)
	}
}
