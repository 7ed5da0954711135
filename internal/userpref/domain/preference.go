package domain

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// NetworkPolicy restricts which side of the LAN boundary a user may stream from.
type NetworkPolicy string

const (
	NetworkBoth NetworkPolicy = "both"
	NetworkLAN  NetworkPolicy = "lan"
	NetworkWAN  NetworkPolicy = "wan"
)

// IPAccessPolicy selects whether AllowedIPs is enforced.
type IPAccessPolicy string

const (
	IPAccessAll        IPAccessPolicy = "all"
	IPAccessRestricted IPAccessPolicy = "restricted"
)

var (
	ErrInvalidPolicy    = errors.New("invalid preference policy")
	ErrInvalidAllowedIP = errors.New("invalid allowed ip")
)

// Preference is the per-user access policy.
type Preference struct {
	UserID string
	// DefaultBlock overrides the global default for pending devices; nil inherits it.
	DefaultBlock   *bool
	NetworkPolicy  NetworkPolicy
	IPAccessPolicy IPAccessPolicy
	// AllowedIPs holds addresses or CIDR prefixes, enforced when IPAccessPolicy is restricted.
	AllowedIPs []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks policies and normalizes AllowedIPs in place.
func (p *Preference) Validate() error {
	switch p.NetworkPolicy {
	case NetworkBoth, NetworkLAN, NetworkWAN:
	default:
		return fmt.Errorf("%w: network policy %q", ErrInvalidPolicy, p.NetworkPolicy)
	}
	switch p.IPAccessPolicy {
	case IPAccessAll, IPAccessRestricted:
	default:
		return fmt.Errorf("%w: ip access policy %q", ErrInvalidPolicy, p.IPAccessPolicy)
	}
	out := make([]string, 0, len(p.AllowedIPs))
	for _, raw := range p.AllowedIPs {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if err := ValidateAllowedIP(s); err != nil {
			return err
		}
		out = append(out, s)
	}
	p.AllowedIPs = out
	return nil
}

// ValidateAllowedIP accepts a single address or a CIDR prefix.
func ValidateAllowedIP(s string) error {
	if strings.Contains(s, "/") {
		if _, err := netip.ParsePrefix(s); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidAllowedIP, s)
		}
		return nil
	}
	if _, err := netip.ParseAddr(s); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAllowedIP, s)
	}
	return nil
}
