package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed-width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

// ErrMissingPath is returned when an entry or query lacks a device, node or
// property id.
var ErrMissingPath = errors.New("history: device, node and property ids are required")

// ErrInvalidRetention is returned by Prune for a non-positive age.
var ErrInvalidRetention = errors.New("history: retention must be positive")

// Entry is one recorded property value.
type Entry struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	NodeID     string    `json:"node_id"`
	PropertyID string    `json:"property_id"`
	Value      string    `json:"value"`
	Datatype   string    `json:"datatype"`
	Unit       *string   `json:"unit,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Repository stores and retrieves property history.
type Repository interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, deviceID, nodeID, propertyID string, limit int) ([]Entry, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository implements Repository on the property_history table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository returns a repository using db. The schema is created by
// the property_history migration.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts e. A zero RecordedAt is stamped with the current time.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.DeviceID == "" || e.NodeID == "" || e.PropertyID == "" {
		return ErrMissingPath
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = r.now()
	}

	var unit sql.NullString
	if e.Unit != nil {
		unit = sql.NullString{String: *e.Unit, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO property_history
		 (device_id, node_id, property_id, value, datatype, unit, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.DeviceID, e.NodeID, e.PropertyID, e.Value, e.Datatype, unit,
		e.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting property history: %w", err)
	}
	return nil
}

// List returns up to limit entries for one property, newest first.
// limit defaults to 50 and is capped at 200.
func (r *SQLiteRepository) List(ctx context.Context, deviceID, nodeID, propertyID string, limit int) ([]Entry, error) {
	if deviceID == "" || nodeID == "" || propertyID == "" {
		return nil, ErrMissingPath
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, node_id, property_id, value, datatype, unit, recorded_at
		 FROM property_history
		 WHERE device_id = ? AND node_id = ? AND property_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		deviceID, nodeID, propertyID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying property history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var unit sql.NullString
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.NodeID, &e.PropertyID, &e.Value, &e.Datatype, &unit, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning property history: %w", err)
		}
		if unit.Valid {
			u := unit.String
			e.Unit = &u
		}
		e.RecordedAt, err = time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries recorded more than olderThan ago and returns how many
// were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidRetention, olderThan)
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM property_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting property history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
