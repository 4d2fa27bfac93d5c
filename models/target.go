// Package models defines the core data structures shared across every layer
// of the collection agent. These types represent the canonical in-memory form
// of all collected and configured data; every other package depends on this
// package and nothing here depends on any other internal package.
package models

// Target is a single device or endpoint a collector polls or listens for.
// Source-specific extensions live in the per-source pointer fields (SNMP,
// ARP, Routing, OPCUA, Modbus), nil when they do not apply.
type Target struct {
	// ID is opaque and unique within the owning collector.
	ID string

	// Host is the management address of the target (IP or hostname).
	Host string

	// Port is the target's service port. Zero means "use the collector's
	// source-specific default" (e.g. 161 for SNMP).
	Port int

	// Enabled gates whether this target is included in a poll cycle.
	Enabled bool

	// SNMP carries SNMPv3 authentication parameters. Nil for non-SNMP targets.
	SNMP *SNMPTargetParams

	// ARP carries ARP-collector-specific fields. Nil for non-ARP targets.
	ARP *ARPTargetParams

	// Routing carries routing-collector-specific fields.
	Routing *RoutingTargetParams

	// OPCUA carries OPC-UA endpoint fields.
	OPCUA *OPCUATargetParams

	// Modbus carries Modbus device fields.
	Modbus *ModbusTargetParams
}

// SNMPTargetParams holds SNMPv3 authPriv credentials for one target.
type SNMPTargetParams struct {
	SecurityName             string
	AuthenticationProtocol    string // md5, sha, sha224, sha256, sha384, sha512
	AuthenticationPassphrase string
	PrivacyProtocol          string // des, aes, aes192, aes256, aes192c, aes256c
	PrivacyPassphrase        string
}

// ARPCollectType selects what an ARP target collects per cycle.
type ARPCollectType string

const (
	ARPCollectARP  ARPCollectType = "arp"
	ARPCollectMAC  ARPCollectType = "mac"
	ARPCollectBoth ARPCollectType = "both"
)

// ARPTargetParams holds ARP-collector-specific fields.
type ARPTargetParams struct {
	Interface   string
	CollectType ARPCollectType
}

// RoutingProtocol names a routing protocol whose neighbor table may be polled.
type RoutingProtocol string

const (
	RoutingProtocolOSPF RoutingProtocol = "ospf"
	RoutingProtocolBGP  RoutingProtocol = "bgp"
	RoutingProtocolRIP  RoutingProtocol = "rip"
)

// RoutingTargetParams holds routing-collector-specific fields.
type RoutingTargetParams struct {
	CollectRoutes    bool
	CollectNeighbors bool
	Protocols        []RoutingProtocol
}

// OPCUASecurityMode mirrors the OPC-UA message security mode.
type OPCUASecurityMode string

const (
	OPCUASecurityModeNone           OPCUASecurityMode = "None"
	OPCUASecurityModeSign           OPCUASecurityMode = "Sign"
	OPCUASecurityModeSignAndEncrypt OPCUASecurityMode = "SignAndEncrypt"
)

// OPCUATargetParams holds OPC-UA endpoint fields.
type OPCUATargetParams struct {
	EndpointURL     string
	SecurityMode    OPCUASecurityMode
	SecurityPolicy  string
	MonitoredNodes  []string
}

// ModbusTargetParams holds Modbus device fields.
type ModbusTargetParams struct {
	UnitID    byte
	Protocol  string // "tcp" or "rtu"
	Registers []ModbusRegister
}

// ModbusRegister describes a single register (or register range) to read.
type ModbusRegister struct {
	Name     string
	Address  uint16
	Quantity uint16
	Kind     string // "holding", "input", "coil", "discrete"
}
