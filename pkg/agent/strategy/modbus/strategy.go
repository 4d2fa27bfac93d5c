// Package modbus implements the Modbus strategy, mirroring the OPC-UA
// strategy's real/mock build-tag split: modbus_real.go (build tag "modbus")
// uses github.com/goburrow/modbus; modbus_mock.go (default) substitutes
// deterministic records of the identical shape.
package modbus

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
// generic collector default.
const DefaultPollInterval = 30_000 * time.Millisecond

// client abstracts the Modbus wire client.
type client interface {
	Connect(address string, protocol string, unitID byte) error
	ReadRegister(reg models.ModbusRegister) (interface{}, error)
	Close() error
	Connected() bool
}

// Strategy implements strategy.Strategy for Modbus targets.
type Strategy struct {
	newClient func() client

	mu       sync.Mutex
	clients  map[string]client
	lastSeen map[string]time.Time
}

// New constructs a Modbus strategy using the build-selected client
// implementation.
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

// Collect connects (or reuses the connection) to the target device, reads
// its configured registers, and emits a device_info record plus a values
// record when any register was configured.
func (s *Strategy) Collect(ctx context.Context, target models.Target) ([]models.TelemetryRecord, error) {
	if target.Modbus == nil {
		return nil, fmt.Errorf("%w: modbus: target %s has no Modbus parameters", agenterr.ErrConfig, target.Host)
	}
	params := target.Modbus

	c, err := s.getOrConnect(target.Host, params)
	if err != nil {
		return nil, fmt.Errorf("%w: modbus: connect %s: %v", agenterr.ErrCollect, target.Host, err)
	}

	s.mu.Lock()
	s.lastSeen[target.Host] = time.Now().UTC()
	lastContact := s.lastSeen[target.Host]
	s.mu.Unlock()

	now := time.Now().UTC()
	records := []models.TelemetryRecord{{
		ID:        uuid.NewString(),
		Source:    models.SourceModbus,
		DeviceID:  target.Host,
		Timestamp: now,
		Data: map[string]interface{}{
			"type":        "device_info",
			"unitId":      params.UnitID,
			"protocol":    params.Protocol,
			"connected":   c.Connected(),
			"lastContact": lastContact,
		},
		Metadata: models.RecordMetadata{Collector: "modbus", TargetID: target.ID},
	}}

	if len(params.Registers) > 0 {
		values := make(map[string]interface{}, len(params.Registers))
		for _, reg := range params.Registers {
			v, err := c.ReadRegister(reg)
			if err != nil {
				return records, fmt.Errorf("%w: modbus: read register %s: %v", agenterr.ErrCollect, reg.Name, err)
			}
			values[reg.Name] = v
		}
		records = append(records, models.TelemetryRecord{
			ID:        uuid.NewString(),
			Source:    models.SourceModbus,
			DeviceID:  target.Host,
			Timestamp: now,
			Data: map[string]interface{}{
				"type":   "values",
				"values": values,
			},
			Metadata: models.RecordMetadata{Collector: "modbus", TargetID: target.ID},
		})
	}

	return records, nil
}

func (s *Strategy) getOrConnect(host string, params *models.ModbusTargetParams) (client, error) {
	s.mu.Lock()
	c, ok := s.clients[host]
	s.mu.Unlock()
	if ok && c.Connected() {
		return c, nil
	}

	c = s.newClient()
	if err := c.Connect(host, params.Protocol, params.UnitID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.clients[host] = c
	s.mu.Unlock()
	return c, nil
}
