package domain

import "time"

// Classification is the policy verdict for a device
type Classification string

const (
	// ClassificationWhitelisted - device is on the allow list
	ClassificationWhitelisted Classification = "whitelisted"
	// ClassificationBlacklisted - device is on the deny list
	ClassificationBlacklisted Classification = "blacklisted"
	// ClassificationUnknown - device is on neither list
	ClassificationUnknown Classification = "unknown"
)

// Trusted reports whether devices with this classification are
// exempt from alerting.
func (c Classification) Trusted() bool {
	return c == ClassificationWhitelisted
}

// Device is a persisted inventory entry. Exactly one entry exists per
// key; entries are never deleted automatically (removal is an explicit
// maintenance operation performed outside the monitor).
type Device struct {
	ID             string         `json:"id"`
	MAC            string         `json:"mac,omitempty"`
	LastIP         string         `json:"last_ip"`
	Hostname       string         `json:"hostname,omitempty"`
	Vendor         string         `json:"vendor,omitempty"`
	Subnet         string         `json:"subnet"`
	Classification Classification `json:"classification"`
	FirstSeen      time.Time      `json:"first_seen"`
	LastSeen       time.Time      `json:"last_seen"`
}

// NewDevice builds an inventory entry from the first observation of a device.
func NewDevice(obs Observation, class Classification) Device {
	return Device{
		ID:             obs.Key(),
		MAC:            obs.MAC,
		LastIP:         obs.IP,
		Hostname:       obs.Hostname,
		Vendor:         obs.Vendor,
		Subnet:         obs.Subnet,
		Classification: class,
		FirstSeen:      obs.ObservedAt,
		LastSeen:       obs.ObservedAt,
	}
}

// Apply folds a subsequent observation into the entry. FirstSeen is
// preserved; hostname and vendor keep their previous values when the new
// observation did not capture them.
func (d *Device) Apply(obs Observation, class Classification) {
	d.LastIP = obs.IP
	d.Subnet = obs.Subnet
	d.Classification = class
	if obs.Hostname != "" {
		d.Hostname = obs.Hostname
	}
	if obs.Vendor != "" {
		d.Vendor = obs.Vendor
	}
	if obs.ObservedAt.After(d.LastSeen) {
		d.LastSeen = obs.ObservedAt
	}
}
