package models

import "time"

// Source names the strategy that produced a TelemetryRecord.
type Source string

const (
	SourceSNMP     Source = "snmp"
	SourceARP      Source = "arp"
	SourceNetFlow  Source = "netflow"
	SourceSyslog   Source = "syslog"
	SourceRouting  Source = "routing"
	SourceOPCUA    Source = "opcua"
	SourceModbus   Source = "modbus"
)

// TelemetryRecord is the normalized unit of collected data. Data carries the
// source-tagged payload; the concrete shape is determined by Data's Type
// field and by Source. Created by the strategy, owned by the Collector until
// publish.
type TelemetryRecord struct {
	ID        string                 `json:"id"`
	Source    Source                 `json:"source"`
	DeviceID  string                 `json:"device_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Raw       []byte                 `json:"raw,omitempty"`
	Processed bool                   `json:"processed"`
	Metadata  RecordMetadata         `json:"metadata"`
}

// RecordMetadata carries operational provenance about a record.
type RecordMetadata struct {
	Collector string `json:"collector"`
	TargetID  string `json:"target_id,omitempty"`
}

// Envelope is the on-wire MQTT publish payload: one batch of records from one
// collector cycle.
type Envelope struct {
	Collector string            `json:"collector"`
	Source    Source            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Count     int               `json:"count"`
	Data      []TelemetryRecord `json:"data"`
}
