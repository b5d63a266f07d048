package adapter

import (
	"context"
	"fmt"

	"netsentry/internal/domain"
)

// Scanner discovers live devices on a single subnet. Implementations wrap
// external discovery tools and normalize their output into observations
// with canonical MAC formatting. A Scanner must honor the context
// deadline; the reconciler applies the per-subnet timeout.
type Scanner interface {
	// Name returns the tool identifier for logs and errors
	Name() string

	// Scan probes one subnet and returns the devices seen. A failed or
	// timed-out scan returns a *ScanError; failures are isolated per
	// subnet and never abort the rest of the cycle.
	Scan(ctx context.Context, subnet string) ([]domain.Observation, error)
}

// ScanError reports a failed subnet scan: tool missing, non-zero exit,
// unparseable output, or timeout.
type ScanError struct {
	Subnet string
	Tool   string
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s scan of %s failed: %v", e.Tool, e.Subnet, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

func scanErr(tool, subnet string, err error) *ScanError {
	return &ScanError{Subnet: subnet, Tool: tool, Err: err}
}
