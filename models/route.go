package models

// RouteProtocol identifies how a route was learned.
type RouteProtocol string

const (
	RouteProtocolConnected RouteProtocol = "connected"
	RouteProtocolStatic    RouteProtocol = "static"
	RouteProtocolOSPF      RouteProtocol = "ospf"
	RouteProtocolBGP       RouteProtocol = "bgp"
	RouteProtocolRIP       RouteProtocol = "rip"
	RouteProtocolOther     RouteProtocol = "other"
)

// RouteEntry is a single resolved routing table entry.
type RouteEntry struct {
	Destination string        `json:"destination"`
	Netmask     string        `json:"netmask"`
	Gateway     string        `json:"gateway,omitempty"`
	Interface   string        `json:"interface,omitempty"`
	Metric      int           `json:"metric"`
	Protocol    RouteProtocol `json:"protocol"`
	Flags       string        `json:"flags,omitempty"`
}

// RoutingNeighbor is a single OSPF/BGP neighbor adjacency, reported via vtysh.
type RoutingNeighbor struct {
	Protocol RouteProtocol `json:"protocol"`
	Address  string        `json:"address"`
	State    string        `json:"state"`
	ASNumber string        `json:"as_number,omitempty"`
}
