package adapter

import (
	"context"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"

	"netsentry/internal/domain"
)

// NmapScanner discovers hosts on routed subnets with an nmap ping sweep.
// MACs are only visible when the target happens to be on the local
// segment; observations without one are keyed by IP (see domain.Observation).
type NmapScanner struct {
	log zerolog.Logger
}

// NewNmapScanner creates an nmap-based subnet scanner
func NewNmapScanner(log zerolog.Logger) *NmapScanner {
	return &NmapScanner{
		log: log.With().Str("component", "nmap").Logger(),
	}
}

// Name returns the tool identifier
func (s *NmapScanner) Name() string {
	return "nmap"
}

// Scan performs a ping sweep (-sn) of the subnet. The context deadline
// bounds the scan; nmap is terminated when it expires.
func (s *NmapScanner) Scan(ctx context.Context, subnet string) ([]domain.Observation, error) {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(subnet),
		nmap.WithPingScan(),
	)
	if err != nil {
		return nil, scanErr(s.Name(), subnet, err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, scanErr(s.Name(), subnet, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		s.log.Debug().Strs("warnings", *warnings).Str("subnet", subnet).Msg("nmap warnings")
	}

	return s.observations(result, subnet, time.Now()), nil
}

// observations converts an nmap run into normalized observations
func (s *NmapScanner) observations(result *nmap.Run, subnet string, now time.Time) []domain.Observation {
	if result == nil {
		return nil
	}

	var obs []domain.Observation
	for _, host := range result.Hosts {
		if host.Status.State != "up" || len(host.Addresses) == 0 {
			continue
		}

		var ip, mac, vendor string
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				ip = addr.Addr
			case "mac":
				if normalized, err := domain.NormalizeMAC(addr.Addr); err == nil {
					mac = normalized
					vendor = addr.Vendor
				}
			}
		}
		if ip == "" {
			continue
		}

		var hostname string
		if len(host.Hostnames) > 0 {
			hostname = host.Hostnames[0].Name
		}

		obs = append(obs, domain.Observation{
			MAC:        mac,
			IP:         ip,
			Hostname:   hostname,
			Vendor:     vendor,
			Subnet:     subnet,
			ObservedAt: now,
		})
	}
	return obs
}
