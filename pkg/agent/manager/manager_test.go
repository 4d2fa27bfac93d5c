package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/icsnexus/otcollector/models"
)

type fakeCollector struct {
	name      string
	startErr  error
	started   bool
	stopCalls int
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeCollector) Stop() {
	f.started = false
	f.stopCalls++
}

func (f *fakeCollector) IsRunning() bool { return f.started }

func (f *fakeCollector) GetStatus() models.CollectorStatus {
	return models.CollectorStatus{Name: f.name, Running: f.started, PollCount: 3, SuccessCount: 2, ErrorCount: 1, DataPointsCollected: 7}
}

type fakePublisher struct {
	connected       bool
	connectErr      error
	connectCalls    int
	disconnectCalls int
}

func (f *fakePublisher) Connected() bool { return f.connected }

func (f *fakePublisher) Connect(ctx context.Context) error {
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakePublisher) Disconnect() {
	f.disconnectCalls++
	f.connected = false
}

func TestManager_StartStopAll(t *testing.T) {
	a := &fakeCollector{name: "snmp"}
	b := &fakeCollector{name: "arp"}
	m := New(Config{}, map[string]Collector{"snmp": a, "arp": b}, &fakePublisher{connected: true}, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !a.started || !b.started {
		t.Fatal("expected both collectors started")
	}
	if !m.IsRunning() {
		t.Fatal("expected manager running")
	}

	m.Stop()
	if a.started || b.started {
		t.Fatal("expected both collectors stopped")
	}
	if m.IsRunning() {
		t.Fatal("expected manager stopped")
	}
}

func TestManager_StartFailureLeavesOthersRunning(t *testing.T) {
	ok := &fakeCollector{name: "snmp"}
	bad := &fakeCollector{name: "arp", startErr: errors.New("bind failed")}
	m := New(Config{}, map[string]Collector{"snmp": ok, "arp": bad}, nil, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil (per-collector failures are swallowed)", err)
	}
	defer m.Stop()

	if !m.IsRunning() {
		t.Fatal("expected manager running despite one collector failing to start")
	}
	if !ok.started {
		t.Fatal("expected the healthy collector to be running")
	}
	if bad.started {
		t.Fatal("the failing collector must not report started")
	}
}

func TestManager_StartConnectsPublisherStopDisconnects(t *testing.T) {
	a := &fakeCollector{name: "snmp"}
	pub := &fakePublisher{}
	m := New(Config{}, map[string]Collector{"snmp": a}, pub, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if pub.connectCalls != 1 {
		t.Fatalf("connectCalls = %d, want 1", pub.connectCalls)
	}
	if !pub.connected {
		t.Fatal("expected publisher connected after Start()")
	}

	m.Stop()
	if pub.disconnectCalls != 1 {
		t.Fatalf("disconnectCalls = %d, want 1", pub.disconnectCalls)
	}
	if pub.connected {
		t.Fatal("expected publisher disconnected after Stop()")
	}
}

func TestManager_StartLogsPublisherConnectFailureButStillStarts(t *testing.T) {
	a := &fakeCollector{name: "snmp"}
	pub := &fakePublisher{connectErr: errors.New("broker unreachable")}
	m := New(Config{}, map[string]Collector{"snmp": a}, pub, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil (publisher connect failure must not abort startup)", err)
	}
	defer m.Stop()

	if !m.IsRunning() {
		t.Fatal("expected manager running despite publisher connect failure")
	}
	if !a.started {
		t.Fatal("expected collector to still start despite publisher connect failure")
	}
}

func TestManager_GetStatistics(t *testing.T) {
	a := &fakeCollector{name: "snmp", started: true}
	b := &fakeCollector{name: "arp", started: true}
	m := New(Config{}, map[string]Collector{"snmp": a, "arp": b}, nil, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	stats := m.GetStatistics()
	if stats.TotalPolls != 6 || stats.TotalSuccesses != 4 || stats.TotalErrors != 2 || stats.TotalDataPointsCollected != 14 {
		t.Fatalf("unexpected aggregated stats: %+v", stats)
	}
}

func TestManager_GetStatus_ReportsPublisherConnectivity(t *testing.T) {
	m := New(Config{}, map[string]Collector{}, &fakePublisher{connected: true}, nil)
	status := m.GetStatus()
	if !status.MQTTConnected {
		t.Fatal("expected MQTTConnected = true")
	}
}

func TestManager_HealthCheckRunsOnSchedule(t *testing.T) {
	a := &fakeCollector{name: "snmp", started: true}
	m := New(Config{HealthCheckInterval: 5 * time.Millisecond}, map[string]Collector{"snmp": a}, nil, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	m.Stop()
}
