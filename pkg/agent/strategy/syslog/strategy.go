package syslog

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/agenterr"
	"github.com/icsnexus/otcollector/pkg/agent/buffer"
)

const bufferCapacity = 50_000

// Protocol selects the transport the Syslog strategy listens on.
type Protocol string

const (
	ProtocolUDP Protocol = "udp"
	ProtocolTCP Protocol = "tcp"
)

// EventSink receives an immediate securityEvent for each high-severity
// message, independent of the buffered summary records.
type EventSink func(models.CollectorEvent)

// Strategy implements strategy.Strategy for syslog collection.
type Strategy struct {
	port     int
	protocol Protocol
	events   EventSink
	logger   *slog.Logger

	udpConn *net.UDPConn
	tcpLn   net.Listener

	buf *buffer.Passive[models.SyslogMessage]
	wg  sync.WaitGroup
}

// New constructs a Syslog strategy bound to listen on port using protocol.
func New(port int, protocol Protocol, events EventSink, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if events == nil {
		events = func(models.CollectorEvent) {}
	}
	return &Strategy{
		port:     port,
		protocol: protocol,
		events:   events,
		logger:   logger,
		buf:      buffer.New[models.SyslogMessage](bufferCapacity),
	}
}

// Initialize binds the listener and starts accepting/reading.
func (s *Strategy) Initialize(ctx context.Context) error {
	switch s.protocol {
	case ProtocolTCP:
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
		if err != nil {
			return fmt.Errorf("%w: syslog: listen tcp :%d: %v", agenterr.ErrInit, s.port, err)
		}
		s.tcpLn = ln
		s.wg.Add(1)
		go s.acceptLoop()
	default:
		addr := &net.UDPAddr{Port: s.port}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			return fmt.Errorf("%w: syslog: listen udp :%d: %v", agenterr.ErrInit, s.port, err)
		}
		s.udpConn = conn
		s.wg.Add(1)
		go s.readUDPLoop()
	}
	return nil
}

// Cleanup closes the listener(s) and waits for all goroutines to exit.
func (s *Strategy) Cleanup() error {
	if s.udpConn != nil {
		_ = s.udpConn.Close()
	}
	if s.tcpLn != nil {
		_ = s.tcpLn.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *Strategy) readUDPLoop() {
	defer s.wg.Done()
	packet := make([]byte, 65535)
	for {
		n, raddr, err := s.udpConn.ReadFromUDP(packet)
		if err != nil {
			return
		}
		line := make([]byte, n)
		copy(line, packet[:n])
		s.ingest(sourceIPOf(raddr), line)
	}
}

func (s *Strategy) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.tcpLn.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.readTCPConn(conn)
	}
}

func (s *Strategy) readTCPConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sourceIP := sourceIPOf(conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		s.ingest(sourceIP, cp)
	}
}

func sourceIPOf(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case *net.TCPAddr:
		return a.IP.String()
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return addr.String()
		}
		return host
	}
}

func (s *Strategy) ingest(sourceIP string, line []byte) {
	msg := Parse(sourceIP, line)
	if s.buf.Push(msg) {
		s.logger.Warn("syslog: buffer overflow, dropping oldest", "error", agenterr.ErrBufferOverflow.Error())
	}
	if IsHighSeverity(msg) {
		rec := msg
		s.events(models.CollectorEvent{
			Kind:      models.EventSecurityEvent,
			Collector: "syslog",
			Record: &models.TelemetryRecord{
				ID:        uuid.NewString(),
				Source:    models.SourceSyslog,
				Timestamp: time.Now().UTC(),
				Data:      map[string]interface{}{"type": "securityEvent", "message": messageToMap(rec)},
			},
		})
	}
}

// Collect drains the buffer and emits up to two records: a security digest
// (only if any buffered message is security-relevant) and a summary.
// target only labels the records (DeviceID, TargetID) — one listener serves
// every source sending to its bound port.
func (s *Strategy) Collect(ctx context.Context, target models.Target) ([]models.TelemetryRecord, error) {
	drained := s.buf.Drain()
	if len(drained) == 0 {
		return nil, nil
	}

	var records []models.TelemetryRecord
	now := time.Now().UTC()

	severityDist := make(map[int]int)
	hostCounts := make(map[string]int)
	var minTime, maxTime time.Time
	var securityMessages []map[string]interface{}

	for i, msg := range drained {
		severityDist[msg.Severity]++
		hostCounts[msg.Hostname]++
		if i == 0 {
			minTime, maxTime = msg.Timestamp, msg.Timestamp
		} else {
			if msg.Timestamp.Before(minTime) {
				minTime = msg.Timestamp
			}
			if msg.Timestamp.After(maxTime) {
				maxTime = msg.Timestamp
			}
		}
		if IsSecurityRelevant(msg) {
			securityMessages = append(securityMessages, messageToMap(msg))
		}
	}

	if len(securityMessages) > 0 {
		records = append(records, models.TelemetryRecord{
			ID:        uuid.NewString(),
			Source:    models.SourceSyslog,
			DeviceID:  target.Host,
			Timestamp: now,
			Data: map[string]interface{}{
				"type":               "syslog",
				"securityEventCount": len(securityMessages),
				"severityDistribution": severityDist,
				"messages":           securityMessages,
			},
			Metadata: models.RecordMetadata{Collector: "syslog", TargetID: target.ID},
		})
	}

	records = append(records, models.TelemetryRecord{
		ID:        uuid.NewString(),
		Source:    models.SourceSyslog,
		DeviceID:  target.Host,
		Timestamp: now,
		Data: map[string]interface{}{
			"type":                  "syslog_summary",
			"totalCount":            len(drained),
			"timeRange":             [2]time.Time{minTime, maxTime},
			"severityDistribution":  severityDist,
			"topHosts":              topHosts(hostCounts, 10),
		},
		Metadata: models.RecordMetadata{Collector: "syslog", TargetID: target.ID},
	})

	return records, nil
}

func topHosts(counts map[string]int, limit int) []map[string]interface{} {
	type hc struct {
		host  string
		count int
	}
	list := make([]hc, 0, len(counts))
	for h, c := range counts {
		list = append(list, hc{h, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].host < list[j].host
	})
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, e := range list {
		out = append(out, map[string]interface{}{"host": e.host, "count": e.count})
	}
	return out
}

func messageToMap(msg models.SyslogMessage) map[string]interface{} {
	return map[string]interface{}{
		"facility":  msg.Facility,
		"severity":  msg.Severity,
		"timestamp": msg.Timestamp,
		"hostname":  msg.Hostname,
		"appName":   msg.AppName,
		"message":   msg.Message,
		"sourceIp":  msg.SourceIP,
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
