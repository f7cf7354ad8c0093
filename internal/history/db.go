package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS improvement_records (
	id         TEXT PRIMARY KEY,
	outcome_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_outcome ON improvement_records (outcome_id);
`

// DB persists improvement records to dataDir/history.db. Pure-Go SQLite,
// WAL mode; no system library needed.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database under dataDir.
// Caller must Close when done.
func Open(dataDir string) (*DB, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("history: data_dir is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	dbPath := filepath.Join(dataDir, "history.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) SaveRecord(rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO improvement_records (id, outcome_id, created_at, payload)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
		rec.ID, rec.OutcomeID, rec.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (d *DB) LoadRecords() ([]Record, error) {
	rows, err := d.db.Query(`SELECT payload FROM improvement_records ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (d *DB) ClearRecords() error {
	if _, err := d.db.Exec(`DELETE FROM improvement_records`); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}
