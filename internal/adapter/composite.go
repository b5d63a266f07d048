package adapter

import (
	"context"
	"net"

	"github.com/rs/zerolog"

	"netsentry/internal/domain"
)

// CompositeScanner routes each subnet to the right tool: ARP scanning for
// subnets attached to a local interface (layer-2 visibility, real MACs),
// nmap ping sweeps for everything routed.
type CompositeScanner struct {
	local     Scanner
	remote    Scanner
	localNets []*net.IPNet
	log       zerolog.Logger
}

// CompositeOption configures a CompositeScanner
type CompositeOption func(*CompositeScanner)

// WithLocalNetworks overrides local-subnet detection (used in tests)
func WithLocalNetworks(nets []*net.IPNet) CompositeOption {
	return func(c *CompositeScanner) { c.localNets = nets }
}

// NewCompositeScanner builds the local/remote routing scanner. Local
// networks are detected from the machine's interfaces at construction
// time; subnets attached to them go to the local scanner.
func NewCompositeScanner(local, remote Scanner, log zerolog.Logger, opts ...CompositeOption) *CompositeScanner {
	c := &CompositeScanner{
		local:  local,
		remote: remote,
		log:    log.With().Str("component", "scanner").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.localNets == nil {
		c.localNets = interfaceNetworks()
	}
	return c
}

// Name returns the tool identifier
func (c *CompositeScanner) Name() string {
	return "composite"
}

// Scan dispatches the subnet to the appropriate scanner
func (c *CompositeScanner) Scan(ctx context.Context, subnet string) ([]domain.Observation, error) {
	scanner := c.remote
	if c.isLocal(subnet) {
		scanner = c.local
	}
	c.log.Debug().Str("subnet", subnet).Str("tool", scanner.Name()).Msg("scanning subnet")
	return scanner.Scan(ctx, subnet)
}

// isLocal reports whether the subnet overlaps a directly-attached network
func (c *CompositeScanner) isLocal(subnet string) bool {
	_, target, err := net.ParseCIDR(subnet)
	if err != nil {
		return false
	}
	for _, local := range c.localNets {
		if local.Contains(target.IP) || target.Contains(local.IP) {
			return true
		}
	}
	return false
}

// interfaceNetworks collects the IPv4 networks of all up, non-loopback
// interfaces
func interfaceNetworks() []*net.IPNet {
	var nets []*net.IPNet

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			nets = append(nets, ipNet)
		}
	}
	return nets
}
