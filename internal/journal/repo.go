package journal

import (
	"fmt"
	"time"
)

// Attempt statuses.
const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
	StatusPlanned = "planned"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// Entry is one row of the journal.
type Entry struct {
	ID               int64     `json:"id"`
	Path             string    `json:"path"`
	Occurrence       string    `json:"occurrence"`
	Status           string    `json:"status"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	OccurrencesFound int       `json:"occurrences_found"`
	BytesBefore      int       `json:"bytes_before"`
	BytesAfter       int       `json:"bytes_after"`
	ChecksumBefore   string    `json:"checksum_before,omitempty"`
	ChecksumAfter    string    `json:"checksum_after,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Filter narrows List results.
type Filter struct {
	Path  string
	Limit int
}

// Record appends e and returns its id. A zero CreatedAt is set to now.
func (db *DB) Record(e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := db.conn.Exec(`
		INSERT INTO attempts (
			path, occurrence, status, error_code, error_message,
			occurrences_found, bytes_before, bytes_after,
			checksum_before, checksum_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Path, e.Occurrence, e.Status, e.ErrorCode, e.ErrorMessage,
		e.OccurrencesFound, e.BytesBefore, e.BytesAfter,
		e.ChecksumBefore, e.ChecksumAfter, e.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("journal: record: %w", err)
	}
	return res.LastInsertId()
}

// List returns entries newest first.
func (db *DB) List(f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, path, occurrence, status, error_code, error_message,
		occurrences_found, bytes_before, bytes_after,
		checksum_before, checksum_after, created_at
		FROM attempts`
	var args []any
	if f.Path != "" {
		query += ` WHERE path = ?`
		args = append(args, f.Path)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Path, &e.Occurrence, &e.Status, &e.ErrorCode, &e.ErrorMessage,
			&e.OccurrencesFound, &e.BytesBefore, &e.BytesAfter,
			&e.ChecksumBefore, &e.ChecksumAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
