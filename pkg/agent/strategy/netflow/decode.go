// Package netflow implements the NetFlow strategy: a concurrent UDP
// listener decoding v5 and v9 datagrams into models.NetFlowRecord values,
// buffered and aggregated on each poll tick. Binary layout per RFC 3954 (v9)
// and the original Cisco v5 format, decoded the teacher's way — raw
// encoding/binary reads rather than a reflection-based struct decoder.
package netflow

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/agenterr"
)

const (
	v5HeaderLen = 24
	v5RecordLen = 48
	v9HeaderLen = 20

	fieldSrcAddr  = 8
	fieldDstAddr  = 12
	fieldSrcPort  = 7
	fieldDstPort  = 11
	fieldProtocol = 4
	fieldTOS      = 5
	fieldTCPFlags = 6
	fieldInBytes  = 1
	fieldInPkts   = 2
)

// decodePacket dispatches a raw UDP datagram by its NetFlow version, which
// is always the first big-endian uint16.
func decodePacket(exporter string, data []byte, templates *templateCache) ([]models.NetFlowRecord, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: netflow: datagram too short", agenterr.ErrParse)
	}
	version := binary.BigEndian.Uint16(data[0:2])
	switch version {
	case 5:
		return decodeV5(data)
	case 9:
		return decodeV9(exporter, data, templates)
	default:
		return nil, fmt.Errorf("%w: netflow: unsupported version %d", agenterr.ErrParse, version)
	}
}

// decodeV5 parses a fixed-format v5 datagram: a 24-byte header followed by
// count 48-byte records.
func decodeV5(data []byte) ([]models.NetFlowRecord, error) {
	if len(data) < v5HeaderLen {
		return nil, fmt.Errorf("%w: netflow v5: header truncated", agenterr.ErrParse)
	}
	count := binary.BigEndian.Uint16(data[2:4])
	sysUptime := binary.BigEndian.Uint32(data[4:8])
	unixSecs := binary.BigEndian.Uint32(data[8:12])
	baseTimeMs := int64(unixSecs) * 1000

	need := v5HeaderLen + int(count)*v5RecordLen
	if len(data) < need {
		return nil, fmt.Errorf("%w: netflow v5: body truncated, want %d bytes have %d", agenterr.ErrParse, need, len(data))
	}

	records := make([]models.NetFlowRecord, 0, count)
	for i := 0; i < int(count); i++ {
		r := data[v5HeaderLen+i*v5RecordLen : v5HeaderLen+(i+1)*v5RecordLen]

		srcAddr := ipv4String(r[0:4])
		dstAddr := ipv4String(r[4:8])
		dPkts := binary.BigEndian.Uint32(r[16:20])
		dOctets := binary.BigEndian.Uint32(r[20:24])
		first := binary.BigEndian.Uint32(r[24:28])
		last := binary.BigEndian.Uint32(r[28:32])
		srcPort := binary.BigEndian.Uint16(r[32:34])
		dstPort := binary.BigEndian.Uint16(r[34:36])
		tcpFlags := r[37]
		prot := r[38]
		tos := r[39]

		records = append(records, models.NetFlowRecord{
			SrcAddr:   srcAddr,
			DstAddr:   dstAddr,
			SrcPort:   srcPort,
			DstPort:   dstPort,
			Protocol:  prot,
			Bytes:     uint64(dOctets),
			Packets:   uint64(dPkts),
			StartTime: reconstructTime(baseTimeMs, sysUptime, first),
			EndTime:   reconstructTime(baseTimeMs, sysUptime, last),
			TCPFlags:  &tcpFlags,
			TOS:       &tos,
		})
	}
	return records, nil
}

// reconstructTime follows the architecture spec's formula:
// baseTime - (sysUptime - fieldUptime), in milliseconds.
func reconstructTime(baseTimeMs int64, sysUptime, fieldUptime uint32) time.Time {
	ms := baseTimeMs - int64(sysUptime-fieldUptime)
	return time.UnixMilli(ms).UTC()
}

// decodeV9 parses a 20-byte header followed by a sequence of flowsets.
func decodeV9(exporter string, data []byte, templates *templateCache) ([]models.NetFlowRecord, error) {
	if len(data) < v9HeaderLen {
		return nil, fmt.Errorf("%w: netflow v9: header truncated", agenterr.ErrParse)
	}

	var records []models.NetFlowRecord
	offset := v9HeaderLen

	for offset+4 <= len(data) {
		flowSetID := binary.BigEndian.Uint16(data[offset : offset+2])
		length := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		if length < 4 || offset+int(length) > len(data) {
			break // malformed trailing flowset: stop, keep what was already decoded
		}
		body := data[offset+4 : offset+int(length)]

		switch {
		case flowSetID == 0:
			parseTemplateFlowset(exporter, body, templates)
		case flowSetID == 1:
			// options template: acknowledged and ignored per the architecture spec.
		case flowSetID >= 256:
			tmpl, ok := templates.get(exporter, flowSetID)
			if !ok {
				break // unknown template: drop this flowset
			}
			records = append(records, decodeDataFlowset(body, tmpl)...)
		}

		offset += int(length)
	}

	return records, nil
}

func parseTemplateFlowset(exporter string, body []byte, templates *templateCache) {
	offset := 0
	for offset+4 <= len(body) {
		templateID := binary.BigEndian.Uint16(body[offset : offset+2])
		fieldCount := binary.BigEndian.Uint16(body[offset+2 : offset+4])
		offset += 4

		fields := make([]models.NetFlowTemplateField, 0, fieldCount)
		for i := 0; i < int(fieldCount); i++ {
			if offset+4 > len(body) {
				return
			}
			typ := binary.BigEndian.Uint16(body[offset : offset+2])
			length := binary.BigEndian.Uint16(body[offset+2 : offset+4])
			fields = append(fields, models.NetFlowTemplateField{Type: typ, Length: length})
			offset += 4
		}

		templates.put(exporter, models.NetFlowTemplate{TemplateID: templateID, Fields: fields})
	}
}

// decodeDataFlowset walks body as a sequence of fixed-size records, each
// laid out per tmpl.Fields in order.
func decodeDataFlowset(body []byte, tmpl models.NetFlowTemplate) []models.NetFlowRecord {
	recordLen := 0
	for _, f := range tmpl.Fields {
		recordLen += int(f.Length)
	}
	if recordLen == 0 {
		return nil
	}

	var records []models.NetFlowRecord
	for offset := 0; offset+recordLen <= len(body); offset += recordLen {
		rec := decodeOneRecord(body[offset:offset+recordLen], tmpl.Fields)
		records = append(records, rec)
	}
	return records
}

func decodeOneRecord(data []byte, fields []models.NetFlowTemplateField) models.NetFlowRecord {
	var rec models.NetFlowRecord
	offset := 0
	now := time.Now().UTC()
	rec.StartTime, rec.EndTime = now, now

	for _, f := range fields {
		if offset+int(f.Length) > len(data) {
			break
		}
		val := data[offset : offset+int(f.Length)]

		switch f.Type {
		case fieldSrcAddr:
			rec.SrcAddr = ipv4FieldString(val)
		case fieldDstAddr:
			rec.DstAddr = ipv4FieldString(val)
		case fieldSrcPort:
			rec.SrcPort = uint16FromBytes(val)
		case fieldDstPort:
			rec.DstPort = uint16FromBytes(val)
		case fieldProtocol:
			if len(val) > 0 {
				rec.Protocol = val[0]
			}
		case fieldTOS:
			if len(val) > 0 {
				tos := val[0]
				rec.TOS = &tos
			}
		case fieldTCPFlags:
			if len(val) > 0 {
				flags := val[0]
				rec.TCPFlags = &flags
			}
		case fieldInBytes:
			rec.Bytes = uintFromBytes(val)
		case fieldInPkts:
			rec.Packets = uintFromBytes(val)
		}
		// Unknown field types: the loop already advances by f.Length below.
		offset += int(f.Length)
	}
	return rec
}

func ipv4String(b []byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

func ipv4FieldString(b []byte) string {
	if len(b) != 4 {
		return ""
	}
	return ipv4String(b)
}

func uint16FromBytes(b []byte) uint16 {
	if len(b) == 2 {
		return binary.BigEndian.Uint16(b)
	}
	return uint16(uintFromBytes(b))
}

// uintFromBytes accepts 4- or 8-byte big-endian counters, per the
// architecture spec's width tolerance for byte/packet counters.
func uintFromBytes(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	default:
		var v uint64
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v
	}
}
