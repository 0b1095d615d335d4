package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clockwork-home/clockworkd/internal/calc"
)

// SQLite is a Store backed by a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("open store: empty db path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("open store: create db dir: %w", err)
	}

	dsn := "file:" + dbPath + "?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: sql open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open store: ping: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open store: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS calculation_states (
		id         TEXT PRIMARY KEY,
		calc_type  TEXT NOT NULL,
		state      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create calculation_states: %w", err)
	}
	return nil
}

// Save upserts the full record in one statement (last-writer-wins per key).
func (s *SQLite) Save(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("save: empty id")
	}
	payload, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("save %s: encode state: %w", rec.ID, err)
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err = s.db.Exec(`INSERT INTO calculation_states (id, calc_type, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET calc_type = excluded.calc_type,
			state = excluded.state, updated_at = excluded.updated_at`,
		rec.ID, string(rec.Type), string(payload), updated.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save %s: upsert: %w", rec.ID, err)
	}
	return nil
}

// Load reads the record for id.
func (s *SQLite) Load(id string) (Record, error) {
	var (
		calcType string
		payload  string
		updated  string
	)
	row := s.db.QueryRow(`SELECT calc_type, state, updated_at FROM calculation_states WHERE id = ?`, id)
	err := row.Scan(&calcType, &payload, &updated)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load %s: %w", id, err)
	}

	rec := Record{ID: id, Type: calc.Type(calcType)}
	if err := json.Unmarshal([]byte(payload), &rec.State); err != nil {
		return Record{}, fmt.Errorf("load %s: decode state: %w", id, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

// Delete removes the record for id, if present.
func (s *SQLite) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM calculation_states WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
