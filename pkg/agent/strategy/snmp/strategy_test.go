package snmp

import (
	"testing"

	"github.com/gosnmp/gosnmp"
)

func TestGroupByIndex(t *testing.T) {
	pdus := []gosnmp.SnmpPDU{
		{Name: "." + oidIfTable + ".2.1", Type: gosnmp.OctetString, Value: []byte("eth0")},
		{Name: "." + oidIfTable + ".8.1", Type: gosnmp.Integer, Value: 1},
		{Name: "." + oidIfTable + ".2.2", Type: gosnmp.OctetString, Value: []byte("eth1")},
		{Name: "." + oidIfTable + ".8.2", Type: gosnmp.Integer, Value: 2},
	}

	grouped := groupByIndex(pdus, oidIfTable)
	if len(grouped) != 2 {
		t.Fatalf("len(grouped) = %d, want 2", len(grouped))
	}
	if grouped["1"]["2"] != "eth0" {
		t.Fatalf("grouped[1][2] = %v, want eth0", grouped["1"]["2"])
	}
	if grouped["2"]["2"] != "eth1" {
		t.Fatalf("grouped[2][2] = %v, want eth1", grouped["2"]["2"])
	}
}

func TestPduValue_MACAddress(t *testing.T) {
	pdu := gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}}
	got := pduValue(pdu)
	if got != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("pduValue() = %v, want aa:bb:cc:dd:ee:ff", got)
	}
}

func TestPduValue_PrintableString(t *testing.T) {
	pdu := gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("PLC-01")}
	got := pduValue(pdu)
	if got != "PLC-01" {
		t.Fatalf("pduValue() = %v, want PLC-01", got)
	}
}

func TestNormalizeOID(t *testing.T) {
	if got := normalizeOID(".1.3.6.1.2.1.1.1.0"); got != "1.3.6.1.2.1.1.1.0" {
		t.Fatalf("normalizeOID() = %q", got)
	}
}

func TestPduString_StripsTrailingNULs(t *testing.T) {
	pdu := gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("PLC Gateway\x00\x00\x00\x00")}
	if got := pduString(pdu); got != "PLC Gateway" {
		t.Fatalf("pduString() = %q, want %q", got, "PLC Gateway")
	}
}
