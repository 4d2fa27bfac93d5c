package netflow

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/agenterr"
	"github.com/icsnexus/otcollector/pkg/agent/buffer"
)

const bufferCapacity = 10_000

// Strategy implements strategy.Strategy for NetFlow v5/v9 collection: a
// concurrent UDP listener decodes incoming datagrams into a bounded
// buffer.Passive; Collect drains and aggregates it on each poll tick.
type Strategy struct {
	port   int
	logger *slog.Logger

	conn      *net.UDPConn
	templates *templateCache
	buf       *buffer.Passive[models.NetFlowRecord]

	wg sync.WaitGroup
}

// New constructs a NetFlow strategy bound to listen on the given UDP port.
func New(port int, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Strategy{
		port:      port,
		logger:    logger,
		templates: newTemplateCache(),
		buf:       buffer.New[models.NetFlowRecord](bufferCapacity),
	}
}

// Initialize binds the UDP listener and starts the read loop.
func (s *Strategy) Initialize(ctx context.Context) error {
	addr := &net.UDPAddr{Port: s.port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: netflow: bind udp :%d: %v", agenterr.ErrInit, s.port, err)
	}
	s.conn = conn

	s.wg.Add(1)
	go s.readLoop()
	return nil
}

// Cleanup closes the listener and waits for the read loop to exit.
func (s *Strategy) Cleanup() error {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *Strategy) readLoop() {
	defer s.wg.Done()
	packet := make([]byte, 65535)
	for {
		n, raddr, err := s.conn.ReadFromUDP(packet)
		if err != nil {
			return // listener closed
		}
		exporter := ""
		if raddr != nil {
			exporter = raddr.IP.String()
		}

		data := make([]byte, n)
		copy(data, packet[:n])

		records, err := decodePacket(exporter, data, s.templates)
		if err != nil {
			s.logger.Debug("netflow: dropped malformed datagram", "exporter", exporter, "error", err.Error())
			continue
		}
		for _, r := range records {
			if s.buf.Push(r) {
				s.logger.Warn("netflow: buffer overflow, dropping oldest", "error", agenterr.ErrBufferOverflow.Error())
			}
		}
	}
}

// Collect drains the buffer and emits a single aggregated {type: netflow}
// record. target only labels the record (DeviceID, TargetID) — one NetFlow
// listener serves every exporter sending to its bound port.
func (s *Strategy) Collect(ctx context.Context, target models.Target) ([]models.TelemetryRecord, error) {
	drained := s.buf.Drain()
	if len(drained) == 0 {
		return nil, nil
	}

	flows := aggregate(drained)

	rec := models.TelemetryRecord{
		ID:        uuid.NewString(),
		Source:    models.SourceNetFlow,
		DeviceID:  target.Host,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"type":  "netflow",
			"flows": flows,
		},
		Metadata: models.RecordMetadata{Collector: "netflow", TargetID: target.ID},
	}
	return []models.TelemetryRecord{rec}, nil
}

// aggregatedFlow is one (srcAddr:srcPort, dstAddr:dstPort, protocol) bucket,
// summed across every NetFlowRecord that shares its FlowKey.
type aggregatedFlow struct {
	SrcAddress string    `json:"srcAddress"`
	DstAddress string    `json:"dstAddress"`
	SrcPort    uint16    `json:"srcPort"`
	DstPort    uint16    `json:"dstPort"`
	Protocol   uint8     `json:"protocol"`
	Bytes      uint64    `json:"bytes"`
	Packets    uint64    `json:"packets"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

// aggregate sums records sharing a FlowKey and widens their time range to
// the observed min/max.
func aggregate(records []models.NetFlowRecord) []aggregatedFlow {
	buckets := make(map[models.FlowKey]*aggregatedFlow)
	order := make([]models.FlowKey, 0)

	for _, r := range records {
		key := models.FlowKey{
			SrcAddr:  r.SrcAddr,
			SrcPort:  r.SrcPort,
			DstAddr:  r.DstAddr,
			DstPort:  r.DstPort,
			Protocol: r.Protocol,
		}
		bucket, ok := buckets[key]
		if !ok {
			bucket = &aggregatedFlow{
				SrcAddress: r.SrcAddr,
				DstAddress: r.DstAddr,
				SrcPort:    r.SrcPort,
				DstPort:    r.DstPort,
				Protocol:   r.Protocol,
				StartTime:  r.StartTime,
				EndTime:    r.EndTime,
			}
			buckets[key] = bucket
			order = append(order, key)
		}
		bucket.Bytes += r.Bytes
		bucket.Packets += r.Packets
		if r.StartTime.Before(bucket.StartTime) {
			bucket.StartTime = r.StartTime
		}
		if r.EndTime.After(bucket.EndTime) {
			bucket.EndTime = r.EndTime
		}
	}

	flows := make([]aggregatedFlow, 0, len(order))
	for _, key := range order {
		flows = append(flows, *buckets[key])
	}
	return flows
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
