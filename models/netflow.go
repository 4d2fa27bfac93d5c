package models

import "time"

// NetFlowTemplate is a NetFlow v9 template definition. Required to decode any
// data flowset referencing the same (exporter, TemplateID) pair. Overwritten
// in place whenever the exporter re-sends the template.
type NetFlowTemplate struct {
	TemplateID uint16
	Fields     []NetFlowTemplateField
}

// NetFlowTemplateField is one ordered (type, length) pair within a template.
type NetFlowTemplateField struct {
	Type   uint16
	Length uint16
}

// NetFlowRecord is a normalized, decoded flow — either a raw v5 record or the
// result of decoding a v9 data flowset against its cached template.
type NetFlowRecord struct {
	SrcAddr   string    `json:"src_address"`
	DstAddr   string    `json:"dst_address"`
	SrcPort   uint16    `json:"src_port"`
	DstPort   uint16    `json:"dst_port"`
	Protocol  uint8     `json:"protocol"`
	Bytes     uint64    `json:"bytes"`
	Packets   uint64    `json:"packets"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	TCPFlags  *uint8    `json:"tcp_flags,omitempty"`
	TOS       *uint8    `json:"tos,omitempty"`
}

// FlowKey identifies the accumulation bucket a NetFlowRecord aggregates into:
// (srcAddr:srcPort, dstAddr:dstPort, protocol).
type FlowKey struct {
	SrcAddr  string
	SrcPort  uint16
	DstAddr  string
	DstPort  uint16
	Protocol uint8
}
