package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"prozorro/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  startDate TEXT,
  endDate TEXT,
  countsJson TEXT NOT NULL DEFAULT '{}',
  startedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  finishedAt TEXT
);

CREATE TABLE IF NOT EXISTS failed_tenders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tenderId TEXT NOT NULL UNIQUE,
  recordId TEXT,
  reason TEXT NOT NULL,
  rawPath TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_failed_tenders_createdAt ON failed_tenders(createdAt);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertRun(traceID, startDate, endDate string) (int64, error) {
	result, err := d.conn.Exec(`
INSERT INTO runs (traceId, startDate, endDate) VALUES (?, ?, ?)
`, traceID, startDate, endDate)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) FinishRun(runID int64, counts internal.RunCounts) error {
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`
UPDATE runs SET countsJson = ?, finishedAt = CURRENT_TIMESTAMP WHERE id = ?
`, string(countsJSON), runID)
	return err
}

// RecordFailure indexes one side-channel entry; a repeat failure of the
// same tender replaces the previous entry.
func (d *DB) RecordFailure(tenderID, recordID, reason, rawPath string) error {
	_, err := d.conn.Exec(`
INSERT INTO failed_tenders (tenderId, recordId, reason, rawPath)
VALUES (?, ?, ?, ?)
ON CONFLICT(tenderId) DO UPDATE SET
  recordId=excluded.recordId,
  reason=excluded.reason,
  rawPath=excluded.rawPath,
  createdAt=CURRENT_TIMESTAMP
`, tenderID, recordID, reason, rawPath)
	return err
}

func (d *DB) ListFailures(limit int) ([]internal.FailureRow, error) {
	rows, err := d.conn.Query(`
SELECT id, tenderId, recordId, reason, rawPath, createdAt
FROM failed_tenders ORDER BY createdAt ASC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.FailureRow
	for rows.Next() {
		var row internal.FailureRow
		var recordID sql.NullString
		if err := rows.Scan(&row.ID, &row.TenderID, &recordID, &row.Reason, &row.RawPath, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.RecordID = recordID.String
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) DeleteFailure(tenderID string) error {
	_, err := d.conn.Exec(`DELETE FROM failed_tenders WHERE tenderId = ?`, tenderID)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
