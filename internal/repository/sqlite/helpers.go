package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"netsentry/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// toNull converts an empty string to NULL for optional columns
func toNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func fromNull(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanDevice
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice reads one device row in column order
// (id, mac, last_ip, hostname, vendor, subnet, classification, first_seen, last_seen)
func scanDevice(row rowScanner) (domain.Device, error) {
	var (
		dev                   domain.Device
		mac, hostname, vendor sql.NullString
		class                 string
		firstSeen, lastSeen   string
	)

	if err := row.Scan(&dev.ID, &mac, &dev.LastIP, &hostname, &vendor, &dev.Subnet, &class, &firstSeen, &lastSeen); err != nil {
		return domain.Device{}, fmt.Errorf("failed to scan device: %w", err)
	}

	dev.MAC = fromNull(mac)
	dev.Hostname = fromNull(hostname)
	dev.Vendor = fromNull(vendor)
	dev.Classification = domain.Classification(class)

	var err error
	if dev.FirstSeen, err = parseTime(firstSeen); err != nil {
		return domain.Device{}, err
	}
	if dev.LastSeen, err = parseTime(lastSeen); err != nil {
		return domain.Device{}, err
	}

	return dev, nil
}

// getDevice loads a device by ID from a DB or an open transaction
func getDevice(ctx context.Context, q querier, id string) (*domain.Device, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, mac, last_ip, hostname, vendor, subnet, classification, first_seen, last_seen
		FROM devices WHERE id = ?
	`, id)

	dev, err := scanDevice(row)
	if err == nil {
		return &dev, nil
	}
	if isNoRows(err) {
		return nil, nil
	}
	return nil, err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// recordHistory appends one inventory transition inside the upsert tx
func recordHistory(ctx context.Context, q querier, deviceID, change string, class domain.Classification, ip string, at time.Time) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO history (device_id, change, classification, ip, at)
		VALUES (?, ?, ?, ?, ?)
	`, deviceID, change, string(class), ip, formatTime(at)); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}
