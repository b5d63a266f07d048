package domain

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Observation is a single sighting of a device during one scan cycle.
// The MAC is stored in canonical form (lower-case, colon-separated);
// it may be empty when the scan method cannot see layer-2 addresses.
type Observation struct {
	MAC        string    `json:"mac,omitempty"`
	IP         string    `json:"ip"`
	Hostname   string    `json:"hostname,omitempty"`
	Vendor     string    `json:"vendor,omitempty"`
	Subnet     string    `json:"subnet"`
	ObservedAt time.Time `json:"observed_at"`
}

// Key returns the inventory key for this observation: the canonical MAC,
// or a synthetic ip: identifier when no MAC was observed. Routed subnets
// scanned without ARP visibility would otherwise collide on an empty MAC.
func (o Observation) Key() string {
	if o.MAC != "" {
		return o.MAC
	}
	return "ip:" + o.IP
}

// Validate checks that the observation is usable as an inventory update.
func (o Observation) Validate() error {
	if net.ParseIP(o.IP) == nil {
		return fmt.Errorf("invalid ip address: %q", o.IP)
	}
	if o.MAC != "" {
		if _, err := net.ParseMAC(o.MAC); err != nil {
			return fmt.Errorf("invalid mac address: %q", o.MAC)
		}
	}
	return nil
}

// NormalizeMAC converts a MAC address in any common textual form
// (colon, hyphen or dot separated, any case) to the canonical
// lower-case colon-separated form used as the inventory key.
// The same physical device must always map to the same key regardless
// of which scan tool or formatting produced the address.
func NormalizeMAC(s string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("parse mac %q: %w", s, err)
	}
	return strings.ToLower(hw.String()), nil
}
