// Package config provides YAML configuration loading for the collection
// agent, generalizing the teacher's pkg/snmpcollector/config package from
// one SNMP-specific directory tree to three domain-agnostic ones: per-source
// collector settings, per-source target lists, and the shared MQTT egress
// connection.
package config

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/publish"
)

// ─────────────────────────────────────────────────────────────────────────────
// Paths
// ─────────────────────────────────────────────────────────────────────────────

// Paths holds the directory/file locations for every configuration tree.
type Paths struct {
	Collectors string // AGENT_COLLECTORS_DIRECTORY_PATH
	Targets    string // AGENT_TARGETS_DIRECTORY_PATH
	MQTT       string // AGENT_MQTT_CONFIG_PATH (a single file, not a directory)
}

// PathsFromEnv reads each path from its environment variable, falling back
// to the documented default when the variable is unset or empty.
func PathsFromEnv() Paths {
	return Paths{
		Collectors: envOr("AGENT_COLLECTORS_DIRECTORY_PATH", "/etc/otcollector/collectors"),
		Targets:    envOr("AGENT_TARGETS_DIRECTORY_PATH", "/etc/otcollector/targets"),
		MQTT:       envOr("AGENT_MQTT_CONFIG_PATH", "/etc/otcollector/mqtt.yaml"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ─────────────────────────────────────────────────────────────────────────────
// LoadedConfig
// ─────────────────────────────────────────────────────────────────────────────

// LoadedConfig is the fully parsed representation of all configuration
// trees.
type LoadedConfig struct {
	// Collectors maps source name (e.g. "snmp", "arp") to its resolved
	// CollectorConfig. Sources with no matching file have no entry here;
	// cmd/otcollector falls back to models.DefaultCollectorConfig for them
	// (with opcua.DefaultPollInterval as the poll interval for opcua).
	Collectors map[models.Source]models.CollectorConfig

	// Targets maps source name to the list of targets configured for it.
	Targets map[models.Source][]models.Target

	// MQTT is the shared egress connection configuration. Zero value if the
	// MQTT config file is absent.
	MQTT publish.Config
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// Load reads all three configuration trees and returns a fully resolved
// LoadedConfig. Errors from individual files are logged and skipped rather
// than failing the whole load, so a typo in one target file does not take
// down every collector; a missing directory yields an empty section,
// tolerating partial deployments.
func Load(paths Paths, logger *slog.Logger) (*LoadedConfig, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	collectors, err := loadCollectors(paths.Collectors, logger)
	if err != nil {
		return nil, fmt.Errorf("config: load collectors: %w", err)
	}

	targets, err := loadTargets(paths.Targets, logger)
	if err != nil {
		return nil, fmt.Errorf("config: load targets: %w", err)
	}

	mqttCfg, err := loadMQTT(paths.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("config: load mqtt: %w", err)
	}

	return &LoadedConfig{
		Collectors: collectors,
		Targets:    targets,
		MQTT:       mqttCfg,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Collectors
// ─────────────────────────────────────────────────────────────────────────────

type rawCollectorEntry struct {
	Enabled       *bool `yaml:"enabled"`
	PollIntervalMS int64 `yaml:"poll_interval_ms"`
	TimeoutMS      int64 `yaml:"timeout_ms"`
	Retries        int   `yaml:"retries"`
	BatchSize      int   `yaml:"batch_size"`
	MaxConcurrent  int   `yaml:"max_concurrent"`
}

func loadCollectors(dir string, logger *slog.Logger) (map[models.Source]models.CollectorConfig, error) {
	result := make(map[models.Source]models.CollectorConfig)

	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("list collectors dir %q: %w", dir, err)
	}

	for _, path := range files {
		var raw map[string]rawCollectorEntry
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed collector file", "file", path, "error", err.Error())
			continue
		}
		for name, entry := range raw {
			result[models.Source(name)] = resolveCollectorConfig(entry)
		}
		logger.Debug("config: loaded collector file", "file", path, "count", len(raw))
	}
	return result, nil
}

func resolveCollectorConfig(e rawCollectorEntry) models.CollectorConfig {
	cfg := models.DefaultCollectorConfig()
	if e.Enabled != nil {
		cfg.Enabled = *e.Enabled
	}
	if e.PollIntervalMS > 0 {
		cfg.PollInterval = time.Duration(e.PollIntervalMS) * time.Millisecond
	}
	if e.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(e.TimeoutMS) * time.Millisecond
	}
	if e.Retries > 0 {
		cfg.Retries = e.Retries
	}
	if e.BatchSize > 0 {
		cfg.BatchSize = e.BatchSize
	}
	if e.MaxConcurrent > 0 {
		cfg.MaxConcurrent = e.MaxConcurrent
	}
	return cfg
}

// ─────────────────────────────────────────────────────────────────────────────
// Targets
// ─────────────────────────────────────────────────────────────────────────────

// rawTargetFile is one YAML file's worth of targets for a single source,
// e.g. snmp.yaml, arp.yaml, netflow_exporters.yaml.
type rawTargetFile struct {
	Source  string           `yaml:"source"`
	Targets []rawTargetEntry `yaml:"targets"`
}

type rawTargetEntry struct {
	ID      string `yaml:"id"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Enabled *bool  `yaml:"enabled"`

	SNMP    *rawSNMPParams    `yaml:"snmp"`
	ARP     *rawARPParams     `yaml:"arp"`
	Routing *rawRoutingParams `yaml:"routing"`
	OPCUA   *rawOPCUAParams   `yaml:"opcua"`
	Modbus  *rawModbusParams  `yaml:"modbus"`
}

type rawSNMPParams struct {
	SecurityName             string `yaml:"security_name"`
	AuthenticationProtocol    string `yaml:"authentication_protocol"`
	AuthenticationPassphrase string `yaml:"authentication_passphrase"`
	PrivacyProtocol          string `yaml:"privacy_protocol"`
	PrivacyPassphrase        string `yaml:"privacy_passphrase"`
}

type rawARPParams struct {
	Interface   string `yaml:"interface"`
	CollectType string `yaml:"collect_type"`
}

type rawRoutingParams struct {
	CollectRoutes    bool     `yaml:"collect_routes"`
	CollectNeighbors bool     `yaml:"collect_neighbors"`
	Protocols        []string `yaml:"protocols"`
}

type rawOPCUAParams struct {
	EndpointURL    string   `yaml:"endpoint_url"`
	SecurityMode   string   `yaml:"security_mode"`
	SecurityPolicy string   `yaml:"security_policy"`
	MonitoredNodes []string `yaml:"monitored_nodes"`
}

type rawModbusParams struct {
	UnitID    int                 `yaml:"unit_id"`
	Protocol  string              `yaml:"protocol"`
	Registers []rawModbusRegister `yaml:"registers"`
}

type rawModbusRegister struct {
	Name     string `yaml:"name"`
	Address  int    `yaml:"address"`
	Quantity int    `yaml:"quantity"`
	Kind     string `yaml:"kind"`
}

func loadTargets(dir string, logger *slog.Logger) (map[models.Source][]models.Target, error) {
	result := make(map[models.Source][]models.Target)

	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("list targets dir %q: %w", dir, err)
	}

	for _, path := range files {
		var raw rawTargetFile
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed target file", "file", path, "error", err.Error())
			continue
		}
		if raw.Source == "" {
			logger.Warn("config: skip target file missing source", "file", path)
			continue
		}
		source := models.Source(raw.Source)
		for _, entry := range raw.Targets {
			result[source] = append(result[source], convertTarget(entry))
		}
		logger.Debug("config: loaded target file", "file", path, "source", raw.Source, "count", len(raw.Targets))
	}
	return result, nil
}

func convertTarget(e rawTargetEntry) models.Target {
	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}

	t := models.Target{
		ID:      e.ID,
		Host:    e.Host,
		Port:    e.Port,
		Enabled: enabled,
	}

	if e.SNMP != nil {
		t.SNMP = &models.SNMPTargetParams{
			SecurityName:             e.SNMP.SecurityName,
			AuthenticationProtocol:   e.SNMP.AuthenticationProtocol,
			AuthenticationPassphrase: e.SNMP.AuthenticationPassphrase,
			PrivacyProtocol:          e.SNMP.PrivacyProtocol,
			PrivacyPassphrase:        e.SNMP.PrivacyPassphrase,
		}
	}
	if e.ARP != nil {
		t.ARP = &models.ARPTargetParams{
			Interface:   e.ARP.Interface,
			CollectType: models.ARPCollectType(e.ARP.CollectType),
		}
	}
	if e.Routing != nil {
		protos := make([]models.RoutingProtocol, len(e.Routing.Protocols))
		for i, p := range e.Routing.Protocols {
			protos[i] = models.RoutingProtocol(p)
		}
		t.Routing = &models.RoutingTargetParams{
			CollectRoutes:    e.Routing.CollectRoutes,
			CollectNeighbors: e.Routing.CollectNeighbors,
			Protocols:        protos,
		}
	}
	if e.OPCUA != nil {
		t.OPCUA = &models.OPCUATargetParams{
			EndpointURL:    e.OPCUA.EndpointURL,
			SecurityMode:   models.OPCUASecurityMode(e.OPCUA.SecurityMode),
			SecurityPolicy: e.OPCUA.SecurityPolicy,
			MonitoredNodes: e.OPCUA.MonitoredNodes,
		}
	}
	if e.Modbus != nil {
		regs := make([]models.ModbusRegister, len(e.Modbus.Registers))
		for i, r := range e.Modbus.Registers {
			regs[i] = models.ModbusRegister{
				Name:     r.Name,
				Address:  uint16(r.Address),
				Quantity: uint16(r.Quantity),
				Kind:     r.Kind,
			}
		}
		t.Modbus = &models.ModbusTargetParams{
			UnitID:    byte(e.Modbus.UnitID),
			Protocol:  e.Modbus.Protocol,
			Registers: regs,
		}
	}

	return t
}

// ─────────────────────────────────────────────────────────────────────────────
// MQTT
// ─────────────────────────────────────────────────────────────────────────────

type rawMQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	Topic     string `yaml:"topic"`
	QoS       int    `yaml:"qos"`
	TimeoutMS int64  `yaml:"timeout_ms"`
}

func loadMQTT(path string, logger *slog.Logger) (publish.Config, error) {
	var raw rawMQTTConfig
	if err := decodeFile(path, &raw); err != nil {
		if os.IsNotExist(err) {
			return publish.Config{}, nil
		}
		return publish.Config{}, fmt.Errorf("load mqtt config %q: %w", path, err)
	}
	logger.Debug("config: loaded mqtt config", "file", path, "broker", raw.BrokerURL)

	return publish.Config{
		BrokerURL: raw.BrokerURL,
		ClientID:  raw.ClientID,
		Topic:     raw.Topic,
		QoS:       byte(raw.QoS),
		Timeout:   time.Duration(raw.TimeoutMS) * time.Millisecond,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// yamlFiles returns all *.yml / *.yaml files under dir, sorted by path.
func yamlFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

// decodeFile opens path and unmarshals the YAML content into out.
func decodeFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false) // be lenient — extra keys are fine
	return dec.Decode(out)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
