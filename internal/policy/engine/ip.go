package engine

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"streamguard/internal/policy/domain"
)

// ErrInvalidIP is returned for absent or malformed client addresses.
var ErrInvalidIP = errors.New("invalid client ip")

// lanPrefixes are the RFC1918 ranges plus loopback.
var lanPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
}

func parseIP(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty", ErrInvalidIP)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidIP, s)
	}
	return addr.Unmap().WithZone(""), nil
}

// ClassifyIP reports whether s is a LAN or WAN address.
func ClassifyIP(s string) (domain.Network, error) {
	addr, err := parseIP(s)
	if err != nil {
		return "", err
	}
	return classify(addr), nil
}

func classify(addr netip.Addr) domain.Network {
	if addr.IsLoopback() {
		return domain.NetworkLAN
	}
	for _, p := range lanPrefixes {
		if p.Contains(addr) {
			return domain.NetworkLAN
		}
	}
	return domain.NetworkWAN
}

// ipAllowed reports whether addr equals one of allowed or falls inside one of its prefixes.
// Entries that do not parse are ignored.
func ipAllowed(addr netip.Addr, allowed []string) bool {
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err == nil && p.Masked().Contains(addr) {
				return true
			}
			continue
		}
		a, err := netip.ParseAddr(entry)
		if err == nil && a.Unmap() == addr {
			return true
		}
	}
	return false
}
