// Package publish implements the collection agent's single egress point:
// one MQTT-backed Publisher shared by every collector, falling back to a
// local sink whenever the broker connection is unavailable.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/agenterr"
	filetransport "github.com/icsnexus/otcollector/transport/file"
)

// LocalEmit is invoked with the envelope's marshaled bytes whenever MQTT
// publish is unavailable or fails.
type LocalEmit func(data []byte) error

// Config configures a Publisher.
type Config struct {
	BrokerURL string
	ClientID  string
	Topic     string
	QoS       byte
	Timeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = "otcollector/telemetry"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// Publisher wraps an MQTT client and a local fallback sink. It is shared
// across every collector — collector.Base holds only the Publisher
// interface, never this concrete type, so ownership of its lifecycle stays
// with whoever constructs it (typically manager.Manager).
type Publisher struct {
	cfg       Config
	client    mqtt.Client
	localEmit LocalEmit
	logger    *slog.Logger
}

// New constructs a Publisher. localEmit defaults to transport/file's
// WriterTransport writing to os.Stdout when nil.
func New(cfg Config, client mqtt.Client, localEmit LocalEmit, logger *slog.Logger) *Publisher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if localEmit == nil {
		ft := filetransport.New(filetransport.Config{}, logger)
		localEmit = ft.Send
	}
	return &Publisher{cfg: cfg, client: client, localEmit: localEmit, logger: logger}
}

// NewClientOptions builds a paho mqtt.ClientOptions from cfg, ready for
// mqtt.NewClient. Split out so callers (cmd/otcollector) can
// customize handlers before connecting.
func NewClientOptions(cfg Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.withDefaults().Timeout)
	return opts
}

// Publish marshals envelope to JSON and publishes it to the configured
// topic. If the client is nil, disconnected, or the publish token reports an
// error, Publish falls back to the local sink instead of returning an error
// to the caller — matching the architecture spec's "publish failures never
// abort a poll cycle" contract. An error is returned only if the envelope
// cannot be marshaled or the local fallback itself fails.
func (p *Publisher) Publish(ctx context.Context, envelope models.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: publish: marshal envelope: %v", agenterr.ErrPublish, err)
	}

	if p.client == nil || !p.client.IsConnectionOpen() {
		return p.fallback(data, fmt.Errorf("%w: mqtt client disconnected", agenterr.ErrPublish))
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, false, data)
	if !token.WaitTimeout(p.cfg.Timeout) {
		return p.fallback(data, fmt.Errorf("%w: publish timed out after %s", agenterr.ErrTimeout, p.cfg.Timeout))
	}
	if err := token.Error(); err != nil {
		return p.fallback(data, fmt.Errorf("%w: %v", agenterr.ErrPublish, err))
	}
	return nil
}

func (p *Publisher) fallback(data []byte, cause error) error {
	p.logger.Warn("publish: falling back to local emit", "error", cause.Error())
	if err := p.localEmit(data); err != nil {
		return fmt.Errorf("%w: local emit also failed: %v (original: %v)", agenterr.ErrPublish, err, cause)
	}
	return nil
}

// Connected reports whether the underlying MQTT client currently holds an
// open connection.
func (p *Publisher) Connected() bool {
	return p.client != nil && p.client.IsConnectionOpen()
}

// disconnectQuiesceMS bounds how long Disconnect waits for in-flight work
// to drain before the paho client tears the connection down.
const disconnectQuiesceMS = 250

// Connect opens the MQTT connection, if a client is configured and not
// already connected. A nil client (no broker configured) is a no-op —
// callers fall back to the local sink on every Publish regardless.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.client == nil || p.client.IsConnected() {
		return nil
	}
	token := p.client.Connect()
	if !token.WaitTimeout(p.cfg.Timeout) {
		return fmt.Errorf("%w: mqtt connect timed out after %s", agenterr.ErrTimeout, p.cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: mqtt connect: %v", agenterr.ErrInit, err)
	}
	return nil
}

// Disconnect closes the MQTT connection, if one is open. Safe to call with
// no client configured or when already disconnected.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesceMS)
	}
}

type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
