package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"netsentry/internal/domain"
	"netsentry/internal/repository"
)

// Store implements repository.Store using SQLite
type Store struct {
	db *sql.DB
}

// New opens (or creates) the inventory database at path
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		mac TEXT,
		last_ip TEXT NOT NULL,
		hostname TEXT,
		vendor TEXT,
		subnet TEXT NOT NULL,
		classification TEXT NOT NULL DEFAULT 'unknown',
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		change TEXT NOT NULL,
		classification TEXT NOT NULL,
		ip TEXT NOT NULL,
		at DATETIME NOT NULL,
		FOREIGN KEY (device_id) REFERENCES devices(id)
	);

	CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices(last_seen);
	CREATE INDEX IF NOT EXISTS idx_history_device ON history(device_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Upsert records an observation inside a single transaction. The bool
// result is true iff no entry existed for the observation's key.
func (s *Store) Upsert(ctx context.Context, obs domain.Observation, class domain.Classification) (domain.Device, bool, error) {
	if err := obs.Validate(); err != nil {
		return domain.Device{}, false, fmt.Errorf("invalid observation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Device{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := getDevice(ctx, tx, obs.Key())
	if err != nil {
		return domain.Device{}, false, err
	}

	var dev domain.Device
	isNew := existing == nil

	if isNew {
		dev = domain.NewDevice(obs, class)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO devices (id, mac, last_ip, hostname, vendor, subnet, classification, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, dev.ID, toNull(dev.MAC), dev.LastIP, toNull(dev.Hostname), toNull(dev.Vendor),
			dev.Subnet, string(dev.Classification), formatTime(dev.FirstSeen), formatTime(dev.LastSeen)); err != nil {
			return domain.Device{}, false, fmt.Errorf("failed to insert device: %w", err)
		}

		if err := recordHistory(ctx, tx, dev.ID, "first_seen", dev.Classification, dev.LastIP, dev.FirstSeen); err != nil {
			return domain.Device{}, false, err
		}
	} else {
		dev = *existing
		prevClass := dev.Classification
		dev.Apply(obs, class)

		if _, err := tx.ExecContext(ctx, `
			UPDATE devices
			SET last_ip = ?, hostname = ?, vendor = ?, subnet = ?, classification = ?, last_seen = ?
			WHERE id = ?
		`, dev.LastIP, toNull(dev.Hostname), toNull(dev.Vendor), dev.Subnet,
			string(dev.Classification), formatTime(dev.LastSeen), dev.ID); err != nil {
			return domain.Device{}, false, fmt.Errorf("failed to update device: %w", err)
		}

		if prevClass != dev.Classification {
			if err := recordHistory(ctx, tx, dev.ID, "reclassified", dev.Classification, dev.LastIP, obs.ObservedAt); err != nil {
				return domain.Device{}, false, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Device{}, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return dev, isNew, nil
}

// Get retrieves a single device by ID, or nil if absent
func (s *Store) Get(ctx context.Context, id string) (*domain.Device, error) {
	return getDevice(ctx, s.db, id)
}

// LoadAll returns the complete inventory keyed by device ID
func (s *Store) LoadAll(ctx context.Context) (map[string]domain.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mac, last_ip, hostname, vendor, subnet, classification, first_seen, last_seen
		FROM devices
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := make(map[string]domain.Device)
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices[dev.ID] = dev
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

// History returns the most recent inventory transitions, newest first
func (s *Store) History(ctx context.Context, limit int) ([]repository.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, change, classification, ip, at
		FROM history
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []repository.HistoryEntry
	for rows.Next() {
		var (
			entry repository.HistoryEntry
			class string
			at    string
		)
		if err := rows.Scan(&entry.DeviceID, &entry.Change, &class, &entry.IP, &at); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Classification = domain.Classification(class)
		entry.At, err = parseTime(at)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
