/*
Copyright © 2026 the GreenGrids authors.
This file is part of GreenGrids.

GreenGrids is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GreenGrids is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GreenGrids.  If not, see <http://www.gnu.org/licenses/>.*/

package scenario

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	key        TEXT PRIMARY KEY,
	scenario   TEXT NOT NULL,
	year       TEXT NOT NULL,
	params     TEXT NOT NULL,
	summary    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_scenario ON runs(scenario);
CREATE INDEX IF NOT EXISTS runs_year ON runs(year);
`

// History persists workflow run summaries to a SQLite database so past
// runs can be inspected after the process exits. Runs are keyed by
// their configuration; re-running a configuration replaces the earlier
// record.
type History struct {
	db *sql.DB
}

// OpenHistory opens the run history database at path, creating it if
// necessary.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("greengrids: opening run history: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with a single writer.
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("greengrids: initializing run history: %w", err)
	}
	return &History{db: db}, nil
}

// Record stores a completed run, replacing any earlier run with the
// same configuration.
func (h *History) Record(ctx context.Context, s *RunSummary) error {
	params, err := json.Marshal(s.Params)
	if err != nil {
		return fmt.Errorf("greengrids: encoding run params: %w", err)
	}
	summary, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("greengrids: encoding run summary: %w", err)
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (key, scenario, year, params, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.Params.key(), s.Scenario, s.Year, string(params), string(summary),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("greengrids: recording run: %w", err)
	}
	return nil
}

// Run is one stored run history entry.
type Run struct {
	Key       string      `json:"key"`
	Scenario  string      `json:"scenario_name"`
	Year      string      `json:"year"`
	CreatedAt time.Time   `json:"created_at"`
	Summary   *RunSummary `json:"summary"`
}

// Runs lists stored runs, newest first. A nonempty scenario or year
// narrows the listing; empty strings match everything.
func (h *History) Runs(ctx context.Context, scenario, year string) ([]*Run, error) {
	query := `SELECT key, scenario, year, summary, created_at FROM runs`
	var clauses []string
	var args []interface{}
	if scenario != "" {
		clauses = append(clauses, "scenario = ?")
		args = append(args, scenario)
	}
	if year != "" {
		clauses = append(clauses, "year = ?")
		args = append(args, year)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("greengrids: querying run history: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var r Run
		var summary, createdAt string
		if err := rows.Scan(&r.Key, &r.Scenario, &r.Year, &summary, &createdAt); err != nil {
			return nil, fmt.Errorf("greengrids: scanning run history: %w", err)
		}
		if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
			return nil, fmt.Errorf("greengrids: decoding run summary: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("greengrids: parsing run timestamp: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Close closes the history database.
func (h *History) Close() error {
	return h.db.Close()
}
