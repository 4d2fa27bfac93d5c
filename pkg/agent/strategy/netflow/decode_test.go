package netflow

import (
	"encoding/binary"
	"testing"

	"github.com/icsnexus/otcollector/models"
)

func templateOf(id uint16, length uint16) models.NetFlowTemplate {
	return models.NetFlowTemplate{
		TemplateID: id,
		Fields:     []models.NetFlowTemplateField{{Type: fieldSrcAddr, Length: length}},
	}
}

func buildV5Packet(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, v5HeaderLen+v5RecordLen)
	binary.BigEndian.PutUint16(buf[0:2], 5)  // version
	binary.BigEndian.PutUint16(buf[2:4], 1)  // count
	binary.BigEndian.PutUint32(buf[4:8], 1000000)   // sysUptime
	binary.BigEndian.PutUint32(buf[8:12], 1700000000) // unixSecs

	r := buf[v5HeaderLen:]
	copy(r[0:4], []byte{10, 0, 0, 1})   // srcAddr
	copy(r[4:8], []byte{10, 0, 0, 2})   // dstAddr
	binary.BigEndian.PutUint32(r[16:20], 10)   // dPkts
	binary.BigEndian.PutUint32(r[20:24], 1500) // dOctets
	binary.BigEndian.PutUint32(r[24:28], 999000)  // first
	binary.BigEndian.PutUint32(r[28:32], 1000000) // last
	binary.BigEndian.PutUint16(r[32:34], 1234) // srcPort
	binary.BigEndian.PutUint16(r[34:36], 80)   // dstPort
	r[38] = 6 // protocol TCP

	return buf
}

func TestDecodeV5(t *testing.T) {
	packet := buildV5Packet(t)
	records, err := decodeV5(packet)
	if err != nil {
		t.Fatalf("decodeV5() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	r := records[0]
	if r.SrcAddr != "10.0.0.1" || r.DstAddr != "10.0.0.2" {
		t.Fatalf("addresses = %s -> %s", r.SrcAddr, r.DstAddr)
	}
	if r.SrcPort != 1234 || r.DstPort != 80 {
		t.Fatalf("ports = %d -> %d", r.SrcPort, r.DstPort)
	}
	if r.Protocol != 6 {
		t.Fatalf("Protocol = %d, want 6", r.Protocol)
	}
	if r.Bytes != 1500 || r.Packets != 10 {
		t.Fatalf("bytes/packets = %d/%d, want 1500/10", r.Bytes, r.Packets)
	}
}

func TestDecodeV9_TemplateThenData(t *testing.T) {
	templates := newTemplateCache()

	// Template flowset: templateId=256, 3 fields: SRC_ADDR(8,4), DST_ADDR(12,4), L4_SRC_PORT(7,2)
	tmplBody := make([]byte, 4+3*4)
	binary.BigEndian.PutUint16(tmplBody[0:2], 256)
	binary.BigEndian.PutUint16(tmplBody[2:4], 3)
	binary.BigEndian.PutUint16(tmplBody[4:6], fieldSrcAddr)
	binary.BigEndian.PutUint16(tmplBody[6:8], 4)
	binary.BigEndian.PutUint16(tmplBody[8:10], fieldDstAddr)
	binary.BigEndian.PutUint16(tmplBody[10:12], 4)
	binary.BigEndian.PutUint16(tmplBody[12:14], fieldSrcPort)
	binary.BigEndian.PutUint16(tmplBody[14:16], 2)

	templateFlowset := make([]byte, 4+len(tmplBody))
	binary.BigEndian.PutUint16(templateFlowset[0:2], 0) // flowSetID 0 = template
	binary.BigEndian.PutUint16(templateFlowset[2:4], uint16(len(templateFlowset)))
	copy(templateFlowset[4:], tmplBody)

	// Data flowset for templateId 256: one record of 10 bytes (4+4+2)
	dataRecord := make([]byte, 10)
	copy(dataRecord[0:4], []byte{10, 0, 0, 5})
	copy(dataRecord[4:8], []byte{10, 0, 0, 6})
	binary.BigEndian.PutUint16(dataRecord[8:10], 4444)

	dataFlowset := make([]byte, 4+len(dataRecord))
	binary.BigEndian.PutUint16(dataFlowset[0:2], 256)
	binary.BigEndian.PutUint16(dataFlowset[2:4], uint16(len(dataFlowset)))
	copy(dataFlowset[4:], dataRecord)

	header := make([]byte, v9HeaderLen)
	binary.BigEndian.PutUint16(header[0:2], 9)

	packet := append(append(append([]byte{}, header...), templateFlowset...), dataFlowset...)

	records, err := decodeV9("10.1.1.1", packet, templates)
	if err != nil {
		t.Fatalf("decodeV9() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].SrcAddr != "10.0.0.5" || records[0].DstAddr != "10.0.0.6" {
		t.Fatalf("addresses = %s -> %s", records[0].SrcAddr, records[0].DstAddr)
	}
	if records[0].SrcPort != 4444 {
		t.Fatalf("SrcPort = %d, want 4444", records[0].SrcPort)
	}
}

func TestDecodeV9_UnknownTemplateDropsFlowset(t *testing.T) {
	templates := newTemplateCache()
	header := make([]byte, v9HeaderLen)
	binary.BigEndian.PutUint16(header[0:2], 9)

	dataFlowset := make([]byte, 4+8)
	binary.BigEndian.PutUint16(dataFlowset[0:2], 999)
	binary.BigEndian.PutUint16(dataFlowset[2:4], uint16(len(dataFlowset)))

	packet := append(append([]byte{}, header...), dataFlowset...)

	records, err := decodeV9("10.1.1.1", packet, templates)
	if err != nil {
		t.Fatalf("decodeV9() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("len(records) = %d, want 0 for unknown template", len(records))
	}
}

func TestTemplateCache_ScopedPerExporter(t *testing.T) {
	c := newTemplateCache()
	c.put("10.1.1.1", templateOf(256, 4))
	c.put("10.1.1.2", templateOf(256, 8))

	t1, ok := c.get("10.1.1.1", 256)
	if !ok || t1.Fields[0].Length != 4 {
		t.Fatalf("exporter 1 template = %+v, ok=%v", t1, ok)
	}
	t2, ok := c.get("10.1.1.2", 256)
	if !ok || t2.Fields[0].Length != 8 {
		t.Fatalf("exporter 2 template = %+v, ok=%v", t2, ok)
	}
}
