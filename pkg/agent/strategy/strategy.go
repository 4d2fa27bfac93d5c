// Package strategy declares the SourceStrategy contract shared by every
// collector variant (SNMPv3, ARP, Routing, NetFlow, Syslog, OPC-UA, Modbus).
//
// Per the architecture spec's design notes, this replaces the source
// system's inheritance-plus-abstract-hooks pattern
// (initialize/collect/cleanup) with composition: collector.Base holds one
// Strategy value and drives its three methods through a uniform lifecycle.
package strategy

import (
	"context"

	"github.com/icsnexus/otcollector/models"
)

// Strategy is the source-specific acquisition model behind one collector.
// Implementations must be safe for concurrent Collect calls — collector.Base
// invokes Collect for multiple targets concurrently, bounded by
// CollectorConfig.MaxConcurrent.
type Strategy interface {
	// Initialize prepares the strategy (opens listener sockets, validates
	// credentials, …). Called once by collector.Base.Start. A non-nil error
	// here is fatal for the owning collector.
	Initialize(ctx context.Context) error

	// Collect gathers telemetry for a single target. Errors are isolated to
	// this target by the caller; they never abort the poll cycle.
	Collect(ctx context.Context, target models.Target) ([]models.TelemetryRecord, error)

	// Cleanup releases resources acquired by Initialize (closes sockets,
	// sessions, …). Errors are logged by the caller, never propagated.
	Cleanup() error
}

// Source names the strategy kind a collector.Base instance wraps.
type Source = models.Source
