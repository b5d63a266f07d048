package adapter

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"netsentry/internal/domain"
)

// arp-scan prints "IP<tab>MAC<tab>Vendor" lines between its header and
// footer; the vendor column may contain spaces.
var arpScanLine = regexp.MustCompile(`(?m)^\s*((?:\d{1,3}\.){3}\d{1,3})\s+((?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2})\s+(.+?)\s*$`)

// "host (192.168.1.5) at aa:bb:cc:dd:ee:ff [ether] on eth0"
var arpTableLine = regexp.MustCompile(`^(\S+)\s+\(((?:\d{1,3}\.){3}\d{1,3})\)\s+at\s+([0-9A-Fa-f:]+)\s+\[ether\]\s+on\s+\S+$`)

// arpTableBudget bounds the `arp -a` fallback. The table read is a fast
// local operation, so it gets its own budget rather than whatever is
// left of the subnet deadline after arp-scan spent it.
const arpTableBudget = 5 * time.Second

// ARPScanner discovers hosts on directly-attached subnets by invoking the
// external arp-scan tool. When arp-scan is unavailable or fails, it falls
// back to reading the kernel ARP table via `arp -a`, which only sees hosts
// the machine has recently talked to but never fails on a quiet network.
type ARPScanner struct {
	binPath string
	iface   string
	retries int
	probeMS int
	log     zerolog.Logger
}

// ARPOption configures an ARPScanner
type ARPOption func(*ARPScanner)

// WithBinaryPath overrides the arp-scan binary location
func WithBinaryPath(path string) ARPOption {
	return func(s *ARPScanner) { s.binPath = path }
}

// WithProbeTimeout sets the per-host probe timeout passed to arp-scan
func WithProbeTimeout(d time.Duration) ARPOption {
	return func(s *ARPScanner) { s.probeMS = int(d.Milliseconds()) }
}

// WithRetries sets the arp-scan retry count
func WithRetries(n int) ARPOption {
	return func(s *ARPScanner) { s.retries = n }
}

// NewARPScanner creates an ARP scanner bound to a network interface
func NewARPScanner(iface string, log zerolog.Logger, opts ...ARPOption) *ARPScanner {
	s := &ARPScanner{
		binPath: "arp-scan",
		iface:   iface,
		retries: 2,
		probeMS: 1000,
		log:     log.With().Str("component", "arpscan").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the tool identifier
func (s *ARPScanner) Name() string {
	return "arp-scan"
}

// Scan runs arp-scan against the subnet and parses its output. The
// context deadline bounds the whole invocation.
func (s *ARPScanner) Scan(ctx context.Context, subnet string) ([]domain.Observation, error) {
	args := []string{
		"--timeout=" + strconv.Itoa(s.probeMS),
		"--retry=" + strconv.Itoa(s.retries),
		subnet,
	}
	if s.iface != "" {
		args = append([]string{"-I", s.iface}, args...)
	}

	out, err := exec.CommandContext(ctx, s.binPath, args...).Output()
	if err != nil {
		// Cancellation means shutdown; a deadline just means arp-scan was
		// too slow, and the table read below can still answer in time
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, scanErr(s.Name(), subnet, ctx.Err())
		}
		s.log.Warn().Err(err).Str("subnet", subnet).
			Msg("arp-scan failed, falling back to kernel ARP table")

		fallbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), arpTableBudget)
		defer cancel()
		return s.scanARPTable(fallbackCtx, subnet)
	}

	obs := parseARPScanOutput(string(out), subnet, time.Now())
	if len(obs) == 0 && len(out) > 0 && !strings.Contains(string(out), "0 responded") {
		// Output present but nothing parsed usually means a format we
		// do not understand; surface it rather than reporting an empty
		// (and therefore plausible-looking) subnet.
		s.log.Debug().Str("subnet", subnet).Msg("arp-scan output yielded no observations")
	}
	return obs, nil
}

// scanARPTable reads `arp -a` and filters entries to the requested subnet
func (s *ARPScanner) scanARPTable(ctx context.Context, subnet string) ([]domain.Observation, error) {
	_, ipNet, err := net.ParseCIDR(subnet)
	if err != nil {
		return nil, scanErr(s.Name(), subnet, err)
	}

	args := []string{"-a"}
	if s.iface != "" {
		args = append(args, "-i", s.iface)
	}

	out, err := exec.CommandContext(ctx, "arp", args...).Output()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, scanErr(s.Name(), subnet, errors.New("neither arp-scan nor arp available"))
		}
		return nil, scanErr(s.Name(), subnet, err)
	}

	return parseARPTableOutput(string(out), ipNet, subnet, time.Now()), nil
}

// parseARPScanOutput extracts observations from arp-scan stdout
func parseARPScanOutput(out, subnet string, now time.Time) []domain.Observation {
	var obs []domain.Observation
	for _, m := range arpScanLine.FindAllStringSubmatch(out, -1) {
		ip, rawMAC, vendor := m[1], m[2], strings.TrimSpace(m[3])

		mac, err := domain.NormalizeMAC(rawMAC)
		if err != nil {
			continue
		}
		if vendor == "(Unknown)" {
			vendor = ""
		}

		obs = append(obs, domain.Observation{
			MAC:        mac,
			IP:         ip,
			Vendor:     vendor,
			Subnet:     subnet,
			ObservedAt: now,
		})
	}
	return obs
}

// parseARPTableOutput extracts observations from `arp -a` stdout,
// keeping only entries inside the requested subnet
func parseARPTableOutput(out string, ipNet *net.IPNet, subnet string, now time.Time) []domain.Observation {
	var obs []domain.Observation
	for _, line := range strings.Split(out, "\n") {
		m := arpTableLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		hostname, ip, rawMAC := m[1], m[2], m[3]

		parsed := net.ParseIP(ip)
		if parsed == nil || !ipNet.Contains(parsed) {
			continue
		}
		mac, err := domain.NormalizeMAC(rawMAC)
		if err != nil {
			continue
		}
		if hostname == "?" {
			hostname = ""
		}

		obs = append(obs, domain.Observation{
			MAC:        mac,
			IP:         ip,
			Hostname:   hostname,
			Subnet:     subnet,
			ObservedAt: now,
		})
	}
	return obs
}

