package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentry/internal/config"
	"netsentry/internal/domain"
	"netsentry/internal/policy"
	"netsentry/internal/repository"
)

// stubScanner returns canned per-subnet results.
type stubScanner struct {
	results map[string][]domain.Observation
	errs    map[string]error

	mu    sync.Mutex
	scans int
}

func (s *stubScanner) Name() string { return "stub" }

func (s *stubScanner) Scan(_ context.Context, subnet string) ([]domain.Observation, error) {
	s.mu.Lock()
	s.scans++
	s.mu.Unlock()
	if err, ok := s.errs[subnet]; ok {
		return nil, err
	}
	return s.results[subnet], nil
}

func (s *stubScanner) scanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// memStore is an in-memory repository.Store for loop tests.
type memStore struct {
	mu         sync.Mutex
	devices    map[string]domain.Device
	upsertErr  error
	upsertSeen int
}

func newMemStore() *memStore {
	return &memStore{devices: make(map[string]domain.Device)}
}

func (m *memStore) Upsert(ctx context.Context, obs domain.Observation, class domain.Classification) (domain.Device, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Device{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertSeen++
	if m.upsertErr != nil {
		return domain.Device{}, false, m.upsertErr
	}
	dev, ok := m.devices[obs.Key()]
	if !ok {
		dev = domain.NewDevice(obs, class)
		m.devices[dev.ID] = dev
		return dev, true, nil
	}
	dev.Apply(obs, class)
	m.devices[dev.ID] = dev
	return dev, false, nil
}

func (m *memStore) Get(_ context.Context, id string) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dev, ok := m.devices[id]; ok {
		return &dev, nil
	}
	return nil, nil
}

func (m *memStore) LoadAll(_ context.Context) (map[string]domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Device, len(m.devices))
	for id, dev := range m.devices {
		out[id] = dev
	}
	return out, nil
}

func (m *memStore) History(context.Context, int) ([]repository.HistoryEntry, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func writePolicyFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testPolicy(t *testing.T, allow, deny []string) *policy.Store {
	t.Helper()
	dir := t.TempDir()
	allowPath := writePolicyFile(t, dir, "whitelist.txt", allow...)
	denyPath := writePolicyFile(t, dir, "blacklist.txt", deny...)
	return policy.NewStore(allowPath, denyPath, zerolog.Nop())
}

func scanCfg(subnets ...string) config.ScanConfig {
	return config.ScanConfig{
		Subnets:       subnets,
		Interval:      config.Duration(5 * time.Minute),
		SubnetTimeout: config.Duration(10 * time.Second),
		CycleTimeout:  config.Duration(time.Minute),
		MaxConcurrent: 2,
	}
}

func obs(mac, ip, subnet string) domain.Observation {
	return domain.Observation{
		MAC:        mac,
		IP:         ip,
		Subnet:     subnet,
		ObservedAt: time.Now().UTC(),
	}
}

func TestRunCycleEmitsEventsForUntrustedDevices(t *testing.T) {
	scanner := &stubScanner{results: map[string][]domain.Observation{
		"192.168.1.0/24": {
			obs("aa:bb:cc:dd:ee:01", "192.168.1.10", "192.168.1.0/24"), // whitelisted
			obs("aa:bb:cc:dd:ee:02", "192.168.1.11", "192.168.1.0/24"), // blacklisted
			obs("aa:bb:cc:dd:ee:03", "192.168.1.12", "192.168.1.0/24"), // unknown
		},
	}}
	pol := testPolicy(t, []string{"aa:bb:cc:dd:ee:01"}, []string{"aa:bb:cc:dd:ee:02"})
	store := newMemStore()

	r := NewReconciler(scanner, store, pol, scanCfg("192.168.1.0/24"), nil, zerolog.Nop())
	report, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.SubnetsScanned)
	assert.Equal(t, 3, report.Observations)
	assert.Equal(t, 3, report.NewDevices)
	require.Len(t, report.Events, 2)

	byDevice := map[string]domain.Event{}
	for _, ev := range report.Events {
		assert.Equal(t, domain.EventUnauthorizedDevice, ev.Kind)
		assert.True(t, ev.IsNew)
		byDevice[ev.Device.ID] = ev
	}
	assert.Equal(t, domain.ClassificationBlacklisted, byDevice["aa:bb:cc:dd:ee:02"].Classification)
	assert.Equal(t, domain.ClassificationUnknown, byDevice["aa:bb:cc:dd:ee:03"].Classification)
}

func TestRunCycleCountsReappearedBlacklisted(t *testing.T) {
	scanner := &stubScanner{results: map[string][]domain.Observation{
		"192.168.1.0/24": {obs("aa:bb:cc:dd:ee:02", "192.168.1.11", "192.168.1.0/24")},
	}}
	pol := testPolicy(t, nil, []string{"aa:bb:cc:dd:ee:02"})
	store := newMemStore()
	r := NewReconciler(scanner, store, pol, scanCfg("192.168.1.0/24"), nil, zerolog.Nop())

	first, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first.ReappearedBlacklisted)
	assert.Equal(t, 1, first.NewDevices)

	second, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.ReappearedBlacklisted)
	assert.Equal(t, 0, second.NewDevices)
	require.Len(t, second.Events, 1)
	assert.False(t, second.Events[0].IsNew)
}

func TestRunCyclePartialSubnetFailure(t *testing.T) {
	scanner := &stubScanner{
		results: map[string][]domain.Observation{
			"192.168.1.0/24": {obs("aa:bb:cc:dd:ee:03", "192.168.1.12", "192.168.1.0/24")},
		},
		errs: map[string]error{
			"10.0.0.0/24": errors.New("network unreachable"),
		},
	}
	store := newMemStore()
	r := NewReconciler(scanner, store, testPolicy(t, nil, nil), scanCfg("192.168.1.0/24", "10.0.0.0/24"), nil, zerolog.Nop())

	report, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	// The healthy subnet is still reconciled
	assert.Equal(t, 1, report.SubnetsScanned)
	assert.Equal(t, 1, report.Observations)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "10.0.0.0/24", report.Errors[0].Subnet)
	assert.False(t, report.Degraded())
}

func TestRunCycleAllSubnetsFailedIsDegraded(t *testing.T) {
	scanner := &stubScanner{errs: map[string]error{
		"192.168.1.0/24": errors.New("no such device"),
		"10.0.0.0/24":    errors.New("network unreachable"),
	}}
	r := NewReconciler(scanner, newMemStore(), testPolicy(t, nil, nil), scanCfg("192.168.1.0/24", "10.0.0.0/24"), nil, zerolog.Nop())

	report, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Degraded())
	assert.Len(t, report.Errors, 2)
}

func TestRunCyclePersistenceFailureAborts(t *testing.T) {
	scanner := &stubScanner{results: map[string][]domain.Observation{
		"192.168.1.0/24": {obs("aa:bb:cc:dd:ee:03", "192.168.1.12", "192.168.1.0/24")},
	}}
	store := newMemStore()
	store.upsertErr = errors.New("disk full")
	r := NewReconciler(scanner, store, testPolicy(t, nil, nil), scanCfg("192.168.1.0/24"), nil, zerolog.Nop())

	_, err := r.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
}

func TestRunCycleIsIdempotent(t *testing.T) {
	scanner := &stubScanner{results: map[string][]domain.Observation{
		"192.168.1.0/24": {obs("aa:bb:cc:dd:ee:03", "192.168.1.12", "192.168.1.0/24")},
	}}
	store := newMemStore()
	r := NewReconciler(scanner, store, testPolicy(t, nil, nil), scanCfg("192.168.1.0/24"), nil, zerolog.Nop())

	_, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	after, err := store.LoadAll(context.Background())
	require.NoError(t, err)

	_, err = r.RunCycle(context.Background())
	require.NoError(t, err)
	again, err := store.LoadAll(context.Background())
	require.NoError(t, err)

	require.Len(t, again, 1)
	first := after["aa:bb:cc:dd:ee:03"]
	second := again["aa:bb:cc:dd:ee:03"]
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.FirstSeen, second.FirstSeen)
}

// hangingScanner serves one subnet instantly and blocks on the other
// until its context expires.
type hangingScanner struct {
	fast    map[string][]domain.Observation
	hanging string
}

func (s *hangingScanner) Name() string { return "hanging" }

func (s *hangingScanner) Scan(ctx context.Context, subnet string) ([]domain.Observation, error) {
	if subnet == s.hanging {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.fast[subnet], nil
}

func TestRunCycleTimeoutStillReconcilesCompletedSubnets(t *testing.T) {
	scanner := &hangingScanner{
		fast: map[string][]domain.Observation{
			"192.168.1.0/24": {obs("aa:bb:cc:dd:ee:ff", "192.168.1.50", "192.168.1.0/24")},
		},
		hanging: "10.0.0.0/24",
	}
	store := newMemStore()
	cfg := scanCfg("192.168.1.0/24", "10.0.0.0/24")
	cfg.SubnetTimeout = config.Duration(10 * time.Second)
	r := NewReconciler(scanner, store, testPolicy(t, nil, nil), cfg, nil, zerolog.Nop())

	// The cycle deadline expires while the slow subnet is still scanning
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	report, err := r.RunCycle(ctx)
	require.NoError(t, err, "abandoning the cycle must not abort persistence of completed subnets")

	assert.Equal(t, 1, report.SubnetsScanned)
	assert.Equal(t, 1, report.Observations)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "10.0.0.0/24", report.Errors[0].Subnet)
	require.Len(t, report.Events, 1)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", report.Events[0].Device.ID)

	all, loadErr := store.LoadAll(context.Background())
	require.NoError(t, loadErr)
	assert.Len(t, all, 1)
}

func TestMergeObservations(t *testing.T) {
	merged := mergeObservations([]domain.Observation{
		{MAC: "aa:bb:cc:dd:ee:01", IP: "192.168.1.10"},
		{MAC: "aa:bb:cc:dd:ee:01", IP: "192.168.1.10", Hostname: "printer", Vendor: "Acme"},
		{MAC: "aa:bb:cc:dd:ee:02", IP: "192.168.1.11"},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "aa:bb:cc:dd:ee:01", merged[0].MAC)
	assert.Equal(t, "printer", merged[0].Hostname, "later sightings fill in missing fields")
	assert.Equal(t, "Acme", merged[0].Vendor)
}
