// Package opcua implements the OPC-UA strategy. A real client
// (opcua_real.go, build tag "opcua") and a deterministic mock
// (opcua_mock.go, build tag "!opcua") implement the same client interface,
// selected at compile time — the Go-native replacement for a runtime
// require.resolve probe.
package opcua

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/agenterr"
)

// DefaultPollInterval is this strategy's own default, distinct from the
// generic collector default — an intentional divergence carried from the
// architecture spec's Open Questions.
const DefaultPollInterval = 60_000 * time.Millisecond

// client abstracts the OPC-UA wire client so Strategy can be built against
// either the real gopcua/opcua implementation or the deterministic mock.
type client interface {
	Connect(ctx context.Context, endpointURL string, mode models.OPCUASecurityMode, policy string) error
	ReadNodes(ctx context.Context, nodeIDs []string) (map[string]interface{}, error)
	Close() error
	Connected() bool
}

// Strategy implements strategy.Strategy for OPC-UA targets. It keeps one
// client connection per target host, reconnecting lazily when Connected
// reports false.
type Strategy struct {
	newClient func() client

	mu         sync.Mutex
	clients    map[string]client
	lastSeen   map[string]time.Time
}

// New constructs an OPC-UA strategy using the build-selected client
// implementation (newClientImpl, defined in opcua_real.go /
// opcua_mock.go).
func New() *Strategy {
	return &Strategy{
		newClient: newClientImpl,
		clients:   make(map[string]client),
		lastSeen:  make(map[string]time.Time),
	}
}

func (s *Strategy) Initialize(ctx context.Context) error { return nil }

func (s *Strategy) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, c := range s.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.clients = make(map[string]client)
	return firstErr
}

// Collect connects (or reuses the connection) to target.OPCUA.EndpointURL,
// reads the configured monitored nodes, and emits a server_info record plus
// a nodes record when any monitored node is configured.
func (s *Strategy) Collect(ctx context.Context, target models.Target) ([]models.TelemetryRecord, error) {
	if target.OPCUA == nil {
		return nil, fmt.Errorf("%w: opcua: target %s has no OPC-UA parameters", agenterr.ErrConfig, target.Host)
	}
	params := target.OPCUA

	c, err := s.getOrConnect(ctx, target.Host, params)
	if err != nil {
		return nil, fmt.Errorf("%w: opcua: connect %s: %v", agenterr.ErrCollect, params.EndpointURL, err)
	}

	s.mu.Lock()
	s.lastSeen[target.Host] = time.Now().UTC()
	lastContact := s.lastSeen[target.Host]
	s.mu.Unlock()

	now := time.Now().UTC()
	records := []models.TelemetryRecord{{
		ID:        uuid.NewString(),
		Source:    models.SourceOPCUA,
		DeviceID:  target.Host,
		Timestamp: now,
		Data: map[string]interface{}{
			"type":        "server_info",
			"endpointUrl": params.EndpointURL,
			"connected":   c.Connected(),
			"lastContact": lastContact,
		},
		Metadata: models.RecordMetadata{Collector: "opcua", TargetID: target.ID},
	}}

	if len(params.MonitoredNodes) > 0 {
		values, err := c.ReadNodes(ctx, params.MonitoredNodes)
		if err != nil {
			return records, fmt.Errorf("%w: opcua: read nodes: %v", agenterr.ErrCollect, err)
		}
		records = append(records, models.TelemetryRecord{
			ID:        uuid.NewString(),
			Source:    models.SourceOPCUA,
			DeviceID:  target.Host,
			Timestamp: now,
			Data: map[string]interface{}{
				"type":   "nodes",
				"values": values,
			},
			Metadata: models.RecordMetadata{Collector: "opcua", TargetID: target.ID},
		})
	}

	return records, nil
}

func (s *Strategy) getOrConnect(ctx context.Context, host string, params *models.OPCUATargetParams) (client, error) {
	s.mu.Lock()
	c, ok := s.clients[host]
	s.mu.Unlock()
	if ok && c.Connected() {
		return c, nil
	}

	c = s.newClient()
	if err := c.Connect(ctx, params.EndpointURL, params.SecurityMode, params.SecurityPolicy); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.clients[host] = c
	s.mu.Unlock()
	return c, nil
}
