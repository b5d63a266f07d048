// Package policy implements the allow/deny classification of observed
// devices.
//
// The two lists live in flat files maintained by the operator's CLI, one
// MAC or IP per line with '#' comments. The monitor never writes them; it
// re-reads them lazily whenever they have been marked stale (the file
// watcher does that on change, and the reconciler refreshes at the start
// of every cycle), so edits made while the monitor runs take effect on
// the next cycle without a restart.
//
// Classification order encodes deny-precedence: deny by MAC, deny by IP,
// allow by MAC, allow by IP, otherwise unknown. An operator who
// deny-lists a device can therefore never be silently overridden by a
// stale allow entry for the same reassignable IP.
//
// A missing or unreadable list file is treated as an empty list with a
// loud warning. For an alerting tool, failing open to "everything
// unknown" is safer than crashing and alerting on nothing.
package policy

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"netsentry/internal/domain"
)

// list is one membership table, keyed by canonical MAC and by IP
type list struct {
	macs map[string]struct{}
	ips  map[string]struct{}
}

func newList() *list {
	return &list{macs: make(map[string]struct{}), ips: make(map[string]struct{})}
}

func (l *list) hasMAC(mac string) bool {
	_, ok := l.macs[mac]
	return ok
}

func (l *list) hasIP(ip string) bool {
	_, ok := l.ips[ip]
	return ok
}

func (l *list) size() int {
	return len(l.macs) + len(l.ips)
}

// Store holds the loaded allow/deny lists and re-reads them when stale.
type Store struct {
	allowPath string
	denyPath  string
	log       zerolog.Logger

	mu    sync.RWMutex
	allow *list
	deny  *list
	stale bool
}

// NewStore creates a policy store over the two list files. Call Refresh
// before the first Classify.
func NewStore(allowPath, denyPath string, log zerolog.Logger) *Store {
	return &Store{
		allowPath: allowPath,
		denyPath:  denyPath,
		log:       log.With().Str("component", "policy").Logger(),
		allow:     newList(),
		deny:      newList(),
		stale:     true,
	}
}

// Invalidate marks the cached lists stale. Wired to the file watcher so
// CLI edits are picked up on the next Refresh.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Refresh re-reads the list files if they have been invalidated since the
// last load. Returns the allow/deny entry counts after the refresh.
func (s *Store) Refresh() (allowCount, denyCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale {
		s.allow = s.loadList(s.allowPath, "allow")
		s.deny = s.loadList(s.denyPath, "deny")
		s.stale = false
	}
	return s.allow.size(), s.deny.size()
}

// Classify returns the policy verdict for a device. Deny wins: both
// identifiers are checked against the deny list before the allow list is
// consulted at all.
func (s *Store) Classify(mac, ip string) domain.Classification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if (mac != "" && s.deny.hasMAC(mac)) || (ip != "" && s.deny.hasIP(ip)) {
		return domain.ClassificationBlacklisted
	}
	if (mac != "" && s.allow.hasMAC(mac)) || (ip != "" && s.allow.hasIP(ip)) {
		return domain.ClassificationWhitelisted
	}
	return domain.ClassificationUnknown
}

// loadList reads one flat file into a membership table. Missing or
// unreadable files yield an empty list; malformed entries are skipped.
// Both cases are logged so an operator notices a silently-empty policy.
func (s *Store) loadList(path, kind string) *list {
	l := newList()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn().Str("path", path).Str("list", kind).
				Msg("policy list file missing, treating as empty")
		} else {
			s.log.Warn().Err(err).Str("path", path).Str("list", kind).
				Msg("policy list unreadable, treating as empty")
		}
		return l
	}
	defer f.Close()

	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		entry := scanner.Text()
		if idx := strings.Index(entry, "#"); idx >= 0 {
			entry = entry[:idx]
		}
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if err := l.add(entry); err != nil {
			s.log.Warn().Str("path", path).Int("line", lineNo).Str("entry", entry).
				Msg("skipping malformed policy entry")
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("error reading policy list")
	}

	s.log.Debug().Str("list", kind).Int("entries", l.size()).Msg("policy list loaded")
	return l
}

// add classifies an entry as MAC or IP and stores it canonically
func (l *list) add(entry string) error {
	if mac, err := domain.NormalizeMAC(entry); err == nil {
		l.macs[mac] = struct{}{}
		return nil
	}
	if ip := net.ParseIP(entry); ip != nil {
		l.ips[ip.String()] = struct{}{}
		return nil
	}
	return fmt.Errorf("entry %q is neither a MAC nor an IP", entry)
}

// Empty reports whether both lists are empty after the last refresh.
// Used for the startup warning.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allow.size() == 0 && s.deny.size() == 0
}
