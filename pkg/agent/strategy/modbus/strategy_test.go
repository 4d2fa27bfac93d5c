package modbus

import (
	"context"
	"testing"

	"github.com/icsnexus/otcollector/models"
)

func TestStrategy_Collect_DeviceInfoAndValues(t *testing.T) {
	s := New()
	defer s.Cleanup()

	target := models.Target{
		ID:   "t1",
		Host: "10.0.0.50",
		Modbus: &models.ModbusTargetParams{
			UnitID:   1,
			Protocol: "tcp",
			Registers: []models.ModbusRegister{
				{Name: "flowRate", Address: 0, Quantity: 2, Kind: "holding"},
			},
		},
	}

	records, err := s.Collect(context.Background(), target)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Data["type"] != "device_info" {
		t.Fatalf("records[0].Data[type] = %v, want device_info", records[0].Data["type"])
	}
	if records[1].Data["type"] != "values" {
		t.Fatalf("records[1].Data[type] = %v, want values", records[1].Data["type"])
	}
	values, ok := records[1].Data["values"].(map[string]interface{})
	if !ok || values["flowRate"] == nil {
		t.Fatalf("values = %v", records[1].Data["values"])
	}
}

func TestStrategy_Collect_NoParamsIsConfigError(t *testing.T) {
	s := New()
	defer s.Cleanup()

	_, err := s.Collect(context.Background(), models.Target{Host: "10.0.0.50"})
	if err == nil {
		t.Fatal("expected error for target without Modbus parameters")
	}
}
