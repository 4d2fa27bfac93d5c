// Package routing implements the Routing strategy: parses the OS routing
// table and, optionally, OSPF/BGP neighbor adjacencies via vtysh.
package routing

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/agenterr"
	"github.com/icsnexus/otcollector/pkg/agent/netutil"
)

// Strategy implements strategy.Strategy for routing-table and neighbor
// collection.
type Strategy struct {
	runRouteCommand func(ctx context.Context) (string, error)
	runVtysh        func(ctx context.Context, args ...string) (string, error)
}

// New constructs a Routing strategy bound to the current platform's route
// command and to vtysh, if present on PATH.
func New() *Strategy {
	return &Strategy{
		runRouteCommand: runOSRouteCommand,
		runVtysh:        runVtysh,
	}
}

func (s *Strategy) Initialize(ctx context.Context) error { return nil }
func (s *Strategy) Cleanup() error                        { return nil }

// Collect runs the route command and, if requested, queries vtysh for each
// configured protocol's neighbor table, emitting one neighbors record per
// protocol that returned neighbors. A missing vtysh binary is not an
// error — it simply yields no neighbor record for that protocol.
func (s *Strategy) Collect(ctx context.Context, target models.Target) ([]models.TelemetryRecord, error) {
	var records []models.TelemetryRecord
	now := time.Now().UTC()

	collectRoutes := true
	collectNeighbors := false
	var protocols []models.RoutingProtocol
	if target.Routing != nil {
		collectRoutes = target.Routing.CollectRoutes
		collectNeighbors = target.Routing.CollectNeighbors
		protocols = target.Routing.Protocols
	}

	if collectRoutes {
		output, err := s.runRouteCommand(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: route command: %v", agenterr.ErrCollect, err)
		}
		routes := Parse(runtime.GOOS, output)
		records = append(records, models.TelemetryRecord{
			ID:        uuid.NewString(),
			Source:    models.SourceRouting,
			DeviceID:  target.Host,
			Timestamp: now,
			Data: map[string]interface{}{
				"type":   "routes",
				"routes": routes,
			},
			Metadata: models.RecordMetadata{Collector: "routing", TargetID: target.ID},
		})
	}

	if collectNeighbors {
		for _, proto := range protocols {
			neighbors, ok := s.collectNeighborsFor(ctx, proto)
			if !ok || len(neighbors) == 0 {
				continue
			}
			records = append(records, models.TelemetryRecord{
				ID:        uuid.NewString(),
				Source:    models.SourceRouting,
				DeviceID:  target.Host,
				Timestamp: now,
				Data: map[string]interface{}{
					"type":      "neighbors",
					"neighbors": neighbors,
				},
				Metadata: models.RecordMetadata{Collector: "routing", TargetID: target.ID},
			})
		}
	}

	return records, nil
}

func (s *Strategy) collectNeighborsFor(ctx context.Context, proto models.RoutingProtocol) ([]models.RoutingNeighbor, bool) {
	var args []string
	switch proto {
	case models.RoutingProtocolOSPF:
		args = []string{"show ip ospf neighbor"}
	case models.RoutingProtocolBGP:
		args = []string{"show ip bgp summary"}
	default:
		return nil, false
	}
	output, err := s.runVtysh(ctx, args...)
	if err != nil {
		return nil, false // vtysh absent or failed: not an error for the cycle
	}
	return parseVtyshNeighbors(proto, output), true
}

// runOSRouteCommand runs the routing-table command for the current GOOS.
func runOSRouteCommand(ctx context.Context) (string, error) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.CommandContext(ctx, "ip", "route", "show")
	case "windows":
		cmd = exec.CommandContext(ctx, "route", "print")
	default:
		cmd = exec.CommandContext(ctx, "netstat", "-rn")
	}
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func runVtysh(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "vtysh", "-c", strings.Join(args, " "))
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Parse dispatches to the platform-specific routing table parser.
func Parse(goos, output string) []models.RouteEntry {
	switch goos {
	case "linux":
		return parseLinuxIPRoute(output)
	case "windows":
		return parseWindowsRoutePrint(output)
	default:
		return parseNetstatRN(output)
	}
}

// parseLinuxIPRoute parses `ip route show` lines, e.g.:
//
//	default via 10.0.0.1 dev eth0
//	10.0.0.0/24 dev eth0 proto kernel scope link src 10.0.0.5 metric 100
var linuxRouteMetricRe = regexp.MustCompile(`metric\s+(\d+)`)

func parseLinuxIPRoute(output string) []models.RouteEntry {
	var entries []models.RouteEntry
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		var dest, netmask, gateway, iface string
		if fields[0] == "default" {
			dest, netmask = "0.0.0.0", "0.0.0.0"
		} else {
			dest, netmask = splitCIDR(fields[0])
		}

		for i := 1; i < len(fields)-1; i++ {
			switch fields[i] {
			case "via":
				gateway = fields[i+1]
			case "dev":
				iface = fields[i+1]
			}
		}

		metric := 0
		if m := linuxRouteMetricRe.FindStringSubmatch(line); m != nil {
			metric, _ = strconv.Atoi(m[1])
		}

		proto := models.RouteProtocolOther
		switch {
		case strings.Contains(line, "proto kernel"):
			proto = models.RouteProtocolConnected
		case strings.Contains(line, "proto static") || strings.Contains(line, "proto boot"):
			proto = models.RouteProtocolStatic
		}

		entries = append(entries, models.RouteEntry{
			Destination: dest,
			Netmask:     netmask,
			Gateway:     gateway,
			Interface:   iface,
			Metric:      metric,
			Protocol:    proto,
		})
	}
	return entries
}

func splitCIDR(s string) (dest, netmask string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return s, "255.255.255.255"
	}
	prefix, err := strconv.Atoi(parts[1])
	if err != nil {
		return parts[0], "255.255.255.255"
	}
	return parts[0], netutil.NetmaskFromPrefix(prefix)
}

// parseNetstatRN parses `netstat -rn` (BSD/macOS/Linux fallback) lines, e.g.:
//
//	Destination        Gateway            Flags        Netif Expire
//	default             10.0.0.1           UGSc         en0
//	10.0.0.0/24         link#4             UC           en0
func parseNetstatRN(output string) []models.RouteEntry {
	var entries []models.RouteEntry
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "Destination") || strings.HasPrefix(line, "Routing") ||
			strings.HasPrefix(line, "Internet") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		var dest, netmask string
		if fields[0] == "default" {
			dest, netmask = "0.0.0.0", "0.0.0.0"
		} else {
			dest, netmask = splitCIDR(fields[0])
		}

		gateway := fields[1]
		iface := ""
		if len(fields) >= 4 {
			iface = fields[3]
		}

		proto := models.RouteProtocolOther
		if strings.Contains(fields[2], "S") {
			proto = models.RouteProtocolStatic
		} else if strings.Contains(fields[2], "C") {
			proto = models.RouteProtocolConnected
		}

		entries = append(entries, models.RouteEntry{
			Destination: dest,
			Netmask:     netmask,
			Gateway:     gateway,
			Interface:   iface,
			Protocol:    proto,
			Flags:       fields[2],
		})
	}
	return entries
}

// parseWindowsRoutePrint parses the IPv4 section of `route print` output,
// e.g.:
//
//	Network Destination        Netmask          Gateway       Interface  Metric
//	          0.0.0.0          0.0.0.0      10.0.0.1      10.0.0.5     25
func parseWindowsRoutePrint(output string) []models.RouteEntry {
	var entries []models.RouteEntry
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) != 5 {
			continue
		}
		metric, err := strconv.Atoi(fields[4])
		if err != nil {
			continue
		}
		dest := fields[0]
		proto := models.RouteProtocolOther
		if dest == "0.0.0.0" {
			proto = models.RouteProtocolStatic
		}
		entries = append(entries, models.RouteEntry{
			Destination: dest,
			Netmask:     fields[1],
			Gateway:     fields[2],
			Interface:   fields[3],
			Metric:      metric,
			Protocol:    proto,
		})
	}
	return entries
}

// parseVtyshNeighbors parses vtysh neighbor-summary output into
// RoutingNeighbor values. Only the adjacency address, state, and (for BGP)
// AS number are extracted — full per-protocol field sets are out of scope.
var ospfNeighborRe = regexp.MustCompile(`^(\d+\.\d+\.\d+\.\d+)\s+\d+\s+(\S+)`)
var bgpNeighborRe = regexp.MustCompile(`^(\d+\.\d+\.\d+\.\d+)\s+\d+\s+(\d+)\s+\d+\s+\d+\s+\d+\s+\d+\s+\d+\s+\S+\s+(\S+)`)

func parseVtyshNeighbors(proto models.RoutingProtocol, output string) []models.RoutingNeighbor {
	var neighbors []models.RoutingNeighbor
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch proto {
		case models.RoutingProtocolOSPF:
			if m := ospfNeighborRe.FindStringSubmatch(line); m != nil {
				neighbors = append(neighbors, models.RoutingNeighbor{
					Protocol: proto,
					Address:  m[1],
					State:    m[2],
				})
			}
		case models.RoutingProtocolBGP:
			if m := bgpNeighborRe.FindStringSubmatch(line); m != nil {
				neighbors = append(neighbors, models.RoutingNeighbor{
					Protocol: proto,
					Address:  m[1],
					ASNumber: m[2],
					State:    m[3],
				})
			}
		}
	}
	return neighbors
}
