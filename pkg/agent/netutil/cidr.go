// Package netutil holds CIDR and MAC-address helpers shared by the ARP and
// Routing strategies.
package netutil

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// MaskForPrefix computes the IPv4 netmask for a CIDR prefix length, per the
// architecture spec's documented arithmetic: mask = ~((1<<(32-prefix))-1),
// with prefix=0 handled separately to give mask=0 (the naive formula
// overflows a uint32 shift when prefix is 0).
func MaskForPrefix(prefix int) uint32 {
	if prefix <= 0 {
		return 0
	}
	if prefix >= 32 {
		return 0xFFFFFFFF
	}
	return ^uint32((1 << (32 - uint(prefix))) - 1)
}

// IPv4ToUint32 converts a dotted-quad string to its big-endian uint32 form.
func IPv4ToUint32(ip string) (uint32, error) {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return 0, fmt.Errorf("netutil: not an IPv4 address: %q", ip)
	}
	return binary.BigEndian.Uint32(parsed), nil
}

// Uint32ToIPv4 renders a uint32 as a dotted-quad string.
func Uint32ToIPv4(v uint32) string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return net.IP(b).String()
}

// InCIDR reports whether ip lies within the network described by cidr
// (e.g. "10.0.0.0/24"), using the spec's mask arithmetic: ip & mask ==
// network.
func InCIDR(ip, cidr string) (bool, error) {
	parts := strings.SplitN(cidr, "/", 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("netutil: malformed CIDR %q", cidr)
	}
	prefix, err := strconv.Atoi(parts[1])
	if err != nil || prefix < 0 || prefix > 32 {
		return false, fmt.Errorf("netutil: malformed CIDR prefix in %q", cidr)
	}
	network, err := IPv4ToUint32(parts[0])
	if err != nil {
		return false, err
	}
	candidate, err := IPv4ToUint32(ip)
	if err != nil {
		return false, err
	}
	mask := MaskForPrefix(prefix)
	return candidate&mask == network&mask, nil
}

// NetmaskFromPrefix renders a CIDR prefix length as a dotted-quad netmask,
// e.g. 24 -> "255.255.255.0".
func NetmaskFromPrefix(prefix int) string {
	return Uint32ToIPv4(MaskForPrefix(prefix))
}

// PrefixFromNetmask is the inverse of NetmaskFromPrefix: it counts the
// leading one-bits of a dotted-quad netmask.
func PrefixFromNetmask(netmask string) (int, error) {
	v, err := IPv4ToUint32(netmask)
	if err != nil {
		return 0, err
	}
	prefix := 0
	for i := 31; i >= 0; i-- {
		if v&(1<<uint(i)) == 0 {
			break
		}
		prefix++
	}
	return prefix, nil
}

// NormalizeMAC lower-cases and colon-separates a MAC address supplied in any
// of the textual forms net.ParseMAC accepts (colon-, dash-, or
// dot-separated). The
// result always matches ^[0-9a-f]{2}(:[0-9a-f]{2}){5}$. NormalizeMAC is
// idempotent: NormalizeMAC(NormalizeMAC(x)) == NormalizeMAC(x).
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return "", fmt.Errorf("netutil: invalid MAC %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return "", fmt.Errorf("netutil: unsupported MAC length for %q", mac)
	}
	return strings.ToLower(hw.String()), nil
}
