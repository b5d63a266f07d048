package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "already canonical", in: "aa:bb:cc:dd:ee:ff", want: "aa:bb:cc:dd:ee:ff"},
		{name: "upper case", in: "AA:BB:CC:DD:EE:FF", want: "aa:bb:cc:dd:ee:ff"},
		{name: "hyphen separated", in: "AA-BB-CC-DD-EE-FF", want: "aa:bb:cc:dd:ee:ff"},
		{name: "cisco dotted", in: "aabb.ccdd.eeff", want: "aa:bb:cc:dd:ee:ff"},
		{name: "surrounding whitespace", in: "  aa:bb:cc:dd:ee:ff\n", want: "aa:bb:cc:dd:ee:ff"},
		{name: "garbage", in: "not-a-mac", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "truncated", in: "aa:bb:cc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMAC(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObservationKey(t *testing.T) {
	withMAC := Observation{MAC: "aa:bb:cc:dd:ee:ff", IP: "192.168.1.50"}
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", withMAC.Key())

	withoutMAC := Observation{IP: "10.0.0.7"}
	assert.Equal(t, "ip:10.0.0.7", withoutMAC.Key())
}

func TestObservationValidate(t *testing.T) {
	ok := Observation{MAC: "aa:bb:cc:dd:ee:ff", IP: "192.168.1.50"}
	assert.NoError(t, ok.Validate())

	badIP := Observation{MAC: "aa:bb:cc:dd:ee:ff", IP: "999.1.1.1"}
	assert.Error(t, badIP.Validate())

	badMAC := Observation{MAC: "zz:zz", IP: "192.168.1.50"}
	assert.Error(t, badMAC.Validate())

	noMAC := Observation{IP: "192.168.1.50"}
	assert.NoError(t, noMAC.Validate())
}

func TestDeviceApply(t *testing.T) {
	first := Observation{
		MAC:        "aa:bb:cc:dd:ee:ff",
		IP:         "192.168.1.50",
		Hostname:   "printer",
		Vendor:     "Acme",
		Subnet:     "192.168.1.0/24",
		ObservedAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	dev := NewDevice(first, ClassificationUnknown)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", dev.ID)
	assert.Equal(t, dev.FirstSeen, dev.LastSeen)

	later := first
	later.IP = "192.168.1.99"
	later.Hostname = ""
	later.Vendor = ""
	later.ObservedAt = first.ObservedAt.Add(time.Hour)

	dev.Apply(later, ClassificationWhitelisted)

	assert.Equal(t, "192.168.1.99", dev.LastIP)
	assert.Equal(t, "printer", dev.Hostname, "empty hostname must not clobber a known one")
	assert.Equal(t, "Acme", dev.Vendor)
	assert.Equal(t, ClassificationWhitelisted, dev.Classification)
	assert.Equal(t, first.ObservedAt, dev.FirstSeen)
	assert.Equal(t, later.ObservedAt, dev.LastSeen)
	assert.True(t, dev.LastSeen.After(dev.FirstSeen) || dev.LastSeen.Equal(dev.FirstSeen))
}

func TestClassificationTrusted(t *testing.T) {
	assert.True(t, ClassificationWhitelisted.Trusted())
	assert.False(t, ClassificationBlacklisted.Trusted())
	assert.False(t, ClassificationUnknown.Trusted())
}

func TestCycleReportDegraded(t *testing.T) {
	errAll := CycleReport{
		SubnetsScanned: 0,
		Errors:         []SubnetError{{Subnet: "10.0.0.0/24", Err: errors.New("timeout")}},
	}
	assert.True(t, errAll.Degraded())

	partial := CycleReport{
		SubnetsScanned: 1,
		Errors:         []SubnetError{{Subnet: "10.0.0.0/24", Err: errors.New("timeout")}},
	}
	assert.False(t, partial.Degraded())

	clean := CycleReport{SubnetsScanned: 2}
	assert.False(t, clean.Degraded())
}

func TestEventDedupKey(t *testing.T) {
	ev := Event{
		Kind:   EventUnauthorizedDevice,
		Device: Device{ID: "aa:bb:cc:dd:ee:ff"},
	}
	assert.Equal(t, "aa:bb:cc:dd:ee:ff|unauthorized_device_detected", ev.DedupKey())
}
