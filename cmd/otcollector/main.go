// Command otcollector is the OT telemetry collection agent binary.
//
// It loads YAML configuration from directories specified by environment
// variables (or command-line flags), builds one collector for each of the
// seven sources, wires them to a shared MQTT publisher, and runs until interrupted
// (SIGINT / SIGTERM).
package main

import (
	"context"
	"fmt"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/collector"
	"github.com/icsnexus/otcollector/pkg/agent/config"
	"github.com/icsnexus/otcollector/pkg/agent/manager"
	"github.com/icsnexus/otcollector/pkg/agent/publish"
	"github.com/icsnexus/otcollector/pkg/agent/strategy"
	"github.com/icsnexus/otcollector/pkg/agent/strategy/arp"
	"github.com/icsnexus/otcollector/pkg/agent/strategy/modbus"
	"github.com/icsnexus/otcollector/pkg/agent/strategy/netflow"
	"github.com/icsnexus/otcollector/pkg/agent/strategy/opcua"
	"github.com/icsnexus/otcollector/pkg/agent/strategy/routing"
	"github.com/icsnexus/otcollector/pkg/agent/strategy/snmp"
	"github.com/icsnexus/otcollector/pkg/agent/strategy/syslog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "otcollector: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		logLevel string
		logFmt   string

		netflowPort int
		syslogPort  int
		syslogProto string

		cfgCollectors string
		cfgTargets    string
		cfgMQTT       string
	)

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.IntVar(&netflowPort, "netflow.listen.port", 2055, "NetFlow UDP listener port")
	flag.IntVar(&syslogPort, "syslog.listen.port", 514, "Syslog listener port")
	flag.StringVar(&syslogProto, "syslog.listen.proto", "udp", "Syslog listener protocol: udp, tcp")
	flag.StringVar(&cfgCollectors, "config.collectors", "", "Override AGENT_COLLECTORS_DIRECTORY_PATH")
	flag.StringVar(&cfgTargets, "config.targets", "", "Override AGENT_TARGETS_DIRECTORY_PATH")
	flag.StringVar(&cfgMQTT, "config.mqtt", "", "Override AGENT_MQTT_CONFIG_PATH")
	flag.Parse()

	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	paths := config.PathsFromEnv()
	applyPathOverrides(&paths, cfgCollectors, cfgTargets, cfgMQTT)

	loaded, err := config.Load(paths, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pub := buildPublisher(loaded.MQTT, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	onSecurityEvent := func(ev models.CollectorEvent) {
		if ev.Kind != models.EventSecurityEvent || ev.Record == nil {
			return
		}
		var sourceIP interface{}
		if msg, ok := ev.Record.Data["message"].(map[string]interface{}); ok {
			sourceIP = msg["sourceIp"]
		}
		logger.Warn("otcollector: security-relevant syslog event",
			"source_ip", sourceIP,
		)
	}

	snmpCfg := collectorConfigOrDefault(loaded, models.SourceSNMP)

	collectors := map[string]manager.Collector{
		"snmp": newCollector("snmp", models.SourceSNMP, snmp.New(snmpCfg.Timeout), loaded, pub, nil, logger),
		"arp":  newCollector("arp", models.SourceARP, arp.New(), loaded, pub, nil, logger),
		"routing": newCollector("routing", models.SourceRouting, routing.New(), loaded, pub, nil, logger),
		"opcua": newCollectorWithConfig("opcua", models.SourceOPCUA, opcua.New(), opcuaConfig, loaded, pub, nil, logger),
		"modbus":  newCollector("modbus", models.SourceModbus, modbus.New(), loaded, pub, nil, logger),
		"netflow": newListenerCollector("netflow", models.SourceNetFlow, netflow.New(netflowPort, logger), loaded, pub, logger),
		"syslog":  newListenerCollector("syslog", models.SourceSyslog, syslog.New(syslogPort, syslog.Protocol(syslogProto), onSecurityEvent, logger), loaded, pub, logger),
	}

	mgr := manager.New(manager.Config{}, collectors, pub, logger)
	manager.SetDefault(mgr)

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	logger.Info("otcollector: running — press Ctrl-C to stop")

	<-ctx.Done()
	logger.Info("otcollector: received shutdown signal")

	mgr.Stop()
	return nil
}

// collectorConfigOrDefault returns the loaded CollectorConfig for source, or
// models.DefaultCollectorConfig() when no config file configured it.
func collectorConfigOrDefault(loaded *config.LoadedConfig, source models.Source) models.CollectorConfig {
	if cfg, ok := loaded.Collectors[source]; ok {
		return cfg
	}
	return models.DefaultCollectorConfig()
}

// opcuaConfig applies opcua's own default poll interval (60s, distinct from
// the generic 30s default) when no collector file configures it explicitly.
func opcuaConfig(loaded *config.LoadedConfig) models.CollectorConfig {
	if cfg, ok := loaded.Collectors[models.SourceOPCUA]; ok {
		return cfg
	}
	cfg := models.DefaultCollectorConfig()
	cfg.PollInterval = opcua.DefaultPollInterval
	return cfg
}

// newCollector builds a target-driven collector for source, registering
// every configured target for it.
func newCollector(name string, source models.Source, strat strategy.Strategy, loaded *config.LoadedConfig, pub collector.Publisher, events collector.EventSink, logger *slog.Logger) *collector.Base {
	return newCollectorWithConfig(name, source, strat, func(*config.LoadedConfig) models.CollectorConfig {
		return collectorConfigOrDefault(loaded, source)
	}, loaded, pub, events, logger)
}

// newCollectorWithConfig is newCollector with an overridable CollectorConfig
// resolver, used by sources (OPC-UA) whose unconfigured default diverges
// from the generic default.
func newCollectorWithConfig(name string, source models.Source, strat strategy.Strategy, resolveCfg func(*config.LoadedConfig) models.CollectorConfig, loaded *config.LoadedConfig, pub collector.Publisher, events collector.EventSink, logger *slog.Logger) *collector.Base {
	base := collector.New(name, source, strat, resolveCfg(loaded), pub, events, logger)
	for _, t := range loaded.Targets[source] {
		base.AddTarget(t)
	}
	return base
}

// newListenerCollector builds a collector for a socket-backed strategy
// (NetFlow, Syslog) that ignores target identity — it registers a single
// synthetic always-enabled target so CollectorBase's poll cycle drains the
// strategy's internal buffer on schedule.
func newListenerCollector(name string, source models.Source, strat strategy.Strategy, loaded *config.LoadedConfig, pub collector.Publisher, logger *slog.Logger) *collector.Base {
	base := collector.New(name, source, strat, collectorConfigOrDefault(loaded, source), pub, nil, logger)
	base.AddTarget(models.Target{ID: "listener", Host: "0.0.0.0", Enabled: true})
	return base
}

// buildPublisher constructs the Publisher without connecting it — connecting
// (and disconnecting) is the Manager's job, tied to its Start/Stop lifecycle.
func buildPublisher(cfg publish.Config, logger *slog.Logger) *publish.Publisher {
	if cfg.BrokerURL == "" {
		logger.Warn("otcollector: no mqtt broker configured, publishing to local fallback only")
		return publish.New(cfg, nil, nil, logger)
	}

	client := mqtt.NewClient(publish.NewClientOptions(cfg))
	return publish.New(cfg, client, nil, logger)
}

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}

func applyPathOverrides(p *config.Paths, collectors, targets, mqttPath string) {
	if collectors != "" {
		p.Collectors = collectors
	}
	if targets != "" {
		p.Targets = targets
	}
	if mqttPath != "" {
		p.MQTT = mqttPath
	}
}
