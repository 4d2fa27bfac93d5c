// Package arp implements the ARP strategy: it shells out to the
// OS-appropriate neighbor-table command and parses the result into
// models.ARPEntry values. There is no third-party ARP library in the
// ecosystem worth adopting here — every platform exposes this only through
// its own command-line tool, so os/exec is the only viable approach (see
// the grounding ledger for this package).
package arp

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/agenterr"
	"github.com/icsnexus/otcollector/pkg/agent/netutil"
)

// Strategy implements strategy.Strategy for ARP/neighbor-table collection.
type Strategy struct {
	// runCommand is overridden in tests to avoid depending on the host OS's
	// actual neighbor table.
	runCommand func(ctx context.Context) (string, error)
}

// New constructs an ARP strategy bound to the real OS command for the
// current platform.
func New() *Strategy {
	return &Strategy{runCommand: runOSCommand}
}

func (s *Strategy) Initialize(ctx context.Context) error { return nil }
func (s *Strategy) Cleanup() error                        { return nil }

// Collect runs the neighbor-table command once and emits up to two records
// depending on target.ARP.CollectType: "arp" (IP-to-MAC entries) and/or
// "mac" (switch-learned MAC table — an extension point that yields empty
// entries in this core, per the architecture spec).
func (s *Strategy) Collect(ctx context.Context, target models.Target) ([]models.TelemetryRecord, error) {
	collectType := models.ARPCollectARP
	var iface string
	if target.ARP != nil {
		if target.ARP.CollectType != "" {
			collectType = target.ARP.CollectType
		}
		iface = target.ARP.Interface
	}

	output, err := s.runCommand(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: neighbor command: %v", agenterr.ErrCollect, err)
	}

	entries := Parse(runtime.GOOS, output)
	if iface != "" {
		entries = filterByInterface(entries, iface)
	}

	var records []models.TelemetryRecord
	now := time.Now().UTC()

	if collectType == models.ARPCollectARP || collectType == models.ARPCollectBoth {
		records = append(records, models.TelemetryRecord{
			ID:        uuid.NewString(),
			Source:    models.SourceARP,
			DeviceID:  target.Host,
			Timestamp: now,
			Data: map[string]interface{}{
				"type":    "arp",
				"entries": entries,
			},
			Metadata: models.RecordMetadata{Collector: "arp", TargetID: target.ID},
		})
	}

	if collectType == models.ARPCollectMAC || collectType == models.ARPCollectBoth {
		records = append(records, models.TelemetryRecord{
			ID:        uuid.NewString(),
			Source:    models.SourceARP,
			DeviceID:  target.Host,
			Timestamp: now,
			Data: map[string]interface{}{
				"type":    "mac",
				"entries": []models.ARPEntry{}, // MAC-from-switch: not implemented in this core
			},
			Metadata: models.RecordMetadata{Collector: "arp", TargetID: target.ID},
		})
	}

	return records, nil
}

// DiscoverSubnet returns the subset of entries whose IP lies within cidr.
// Passive only: it filters an already-polled neighbor table and never
// issues active probes onto the network.
func DiscoverSubnet(entries []models.ARPEntry, cidr string) ([]models.ARPEntry, error) {
	out := make([]models.ARPEntry, 0, len(entries))
	for _, e := range entries {
		in, err := netutil.InCIDR(e.IPAddress, cidr)
		if err != nil {
			return nil, err
		}
		if in {
			out = append(out, e)
		}
	}
	return out, nil
}

func filterByInterface(entries []models.ARPEntry, iface string) []models.ARPEntry {
	out := make([]models.ARPEntry, 0, len(entries))
	for _, e := range entries {
		if e.Interface == iface {
			out = append(out, e)
		}
	}
	return out
}

// runOSCommand runs the neighbor-table command appropriate for the current
// GOOS and returns its combined stdout.
func runOSCommand(ctx context.Context) (string, error) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.CommandContext(ctx, "ip", "neigh", "show")
	case "darwin", "freebsd", "openbsd", "netbsd":
		cmd = exec.CommandContext(ctx, "arp", "-an")
	case "windows":
		cmd = exec.CommandContext(ctx, "arp", "-a")
	default:
		return "", fmt.Errorf("arp: unsupported platform %q", runtime.GOOS)
	}
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Parse dispatches to the platform-specific line parser for goos.
func Parse(goos, output string) []models.ARPEntry {
	switch goos {
	case "linux":
		return parseLinuxIPNeigh(output)
	case "windows":
		return parseWindowsArp(output)
	default:
		return parseBSDArp(output)
	}
}

// parseLinuxIPNeigh parses `ip neigh show` output, e.g.:
//
//	192.168.1.1 dev eth0 lladdr aa:bb:cc:dd:ee:ff STALE
//	192.168.1.2 dev eth0  FAILED
var linuxNeighRe = regexp.MustCompile(`^(\S+)\s+dev\s+(\S+)(?:\s+lladdr\s+(\S+))?\s+(\S+)\s*$`)

func parseLinuxIPNeigh(output string) []models.ARPEntry {
	var entries []models.ARPEntry
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m := linuxNeighRe.FindStringSubmatch(line)
		if m == nil || m[3] == "" {
			continue // no lladdr: unresolved entry, skip
		}
		mac, err := netutil.NormalizeMAC(m[3])
		if err != nil {
			continue
		}
		entries = append(entries, models.ARPEntry{
			IPAddress:  m[1],
			MACAddress: mac,
			Interface:  m[2],
			Type:       entryType(m[4]),
		})
	}
	return entries
}

func entryType(state string) models.ARPEntryType {
	if strings.EqualFold(state, "PERMANENT") || strings.EqualFold(state, "static") {
		return models.ARPEntryStatic
	}
	return models.ARPEntryDynamic
}

// parseBSDArp parses `arp -an` output, e.g.:
//
//	? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
var bsdArpRe = regexp.MustCompile(`^\S+\s+\(([^)]+)\)\s+at\s+(\S+)\s+on\s+(\S+)`)

func parseBSDArp(output string) []models.ARPEntry {
	var entries []models.ARPEntry
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := bsdArpRe.FindStringSubmatch(line)
		if m == nil || strings.EqualFold(m[2], "(incomplete)") {
			continue
		}
		mac, err := netutil.NormalizeMAC(m[2])
		if err != nil {
			continue
		}
		entries = append(entries, models.ARPEntry{
			IPAddress:  m[1],
			MACAddress: mac,
			Interface:  m[3],
			Type:       models.ARPEntryDynamic,
		})
	}
	return entries
}

// parseWindowsArp parses `arp -a` output, e.g.:
//
//	  192.168.1.1          aa-bb-cc-dd-ee-ff     dynamic
var windowsArpRe = regexp.MustCompile(`^(\d+\.\d+\.\d+\.\d+)\s+([0-9a-fA-F-]+)\s+(\w+)\s*$`)

func parseWindowsArp(output string) []models.ARPEntry {
	var entries []models.ARPEntry
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := windowsArpRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mac, err := netutil.NormalizeMAC(m[2])
		if err != nil {
			continue
		}
		typ := models.ARPEntryDynamic
		if strings.EqualFold(m[3], "static") {
			typ = models.ARPEntryStatic
		}
		entries = append(entries, models.ARPEntry{
			IPAddress:  m[1],
			MACAddress: mac,
			Type:       typ,
		})
	}
	return entries
}
