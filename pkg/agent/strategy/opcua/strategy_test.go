package opcua

import (
	"context"
	"testing"

	"github.com/icsnexus/otcollector/models"
)

func TestStrategy_Collect_ServerInfoAndNodes(t *testing.T) {
	s := New()
	defer s.Cleanup()

	target := models.Target{
		ID:   "t1",
		Host: "plc-1",
		OPCUA: &models.OPCUATargetParams{
			EndpointURL:    "opc.tcp://plc-1:4840",
			SecurityMode:   models.OPCUASecurityModeNone,
			MonitoredNodes: []string{"ns=2;s=Temperature", "ns=2;s=Pressure"},
		},
	}

	records, err := s.Collect(context.Background(), target)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Data["type"] != "server_info" {
		t.Fatalf("records[0].Data[type] = %v, want server_info", records[0].Data["type"])
	}
	if records[0].Data["connected"] != true {
		t.Fatalf("records[0].Data[connected] = %v, want true", records[0].Data["connected"])
	}
	if records[1].Data["type"] != "nodes" {
		t.Fatalf("records[1].Data[type] = %v, want nodes", records[1].Data["type"])
	}
	values, ok := records[1].Data["values"].(map[string]interface{})
	if !ok || len(values) != 2 {
		t.Fatalf("values = %v", records[1].Data["values"])
	}
}

func TestStrategy_Collect_NoParamsIsConfigError(t *testing.T) {
	s := New()
	defer s.Cleanup()

	_, err := s.Collect(context.Background(), models.Target{Host: "plc-1"})
	if err == nil {
		t.Fatal("expected error for target without OPC-UA parameters")
	}
}

func TestStrategy_Collect_ReusesConnection(t *testing.T) {
	s := New()
	defer s.Cleanup()

	target := models.Target{
		Host:  "plc-1",
		OPCUA: &models.OPCUATargetParams{EndpointURL: "opc.tcp://plc-1:4840"},
	}

	if _, err := s.Collect(context.Background(), target); err != nil {
		t.Fatalf("first Collect() error = %v", err)
	}
	s.mu.Lock()
	first := s.clients["plc-1"]
	s.mu.Unlock()

	if _, err := s.Collect(context.Background(), target); err != nil {
		t.Fatalf("second Collect() error = %v", err)
	}
	s.mu.Lock()
	second := s.clients["plc-1"]
	s.mu.Unlock()

	if first != second {
		t.Fatal("expected the same client instance to be reused across cycles")
	}
}
