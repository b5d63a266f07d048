package domain

import "time"

// SubnetError records a per-subnet scan failure. Failures are isolated:
// one unreachable subnet never aborts the rest of the cycle.
type SubnetError struct {
	Subnet string `json:"subnet"`
	Err    error  `json:"-"`
}

func (e SubnetError) Error() string {
	return "subnet " + e.Subnet + ": " + e.Err.Error()
}

func (e SubnetError) Unwrap() error {
	return e.Err
}

// CycleReport summarizes one scan-reconcile pass.
type CycleReport struct {
	StartedAt             time.Time     `json:"started_at"`
	Duration              time.Duration `json:"duration"`
	SubnetsScanned        int           `json:"subnets_scanned"`
	Observations          int           `json:"observations"`
	NewDevices            int           `json:"new_devices"`
	ReappearedBlacklisted int           `json:"reappeared_blacklisted"`
	Events                []Event       `json:"events,omitempty"`
	Errors                []SubnetError `json:"errors,omitempty"`
}

// Degraded reports whether every configured subnet failed to scan.
// A degraded cycle is logged loudly but is not fatal to the process.
func (r CycleReport) Degraded() bool {
	return r.SubnetsScanned == 0 && len(r.Errors) > 0
}
