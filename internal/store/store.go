// Package store persists finalized analysis results in SQLite and, when
// enabled, maintains a full-text search index over their findings.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openauditlabs/sentry/internal/config"
	"github.com/openauditlabs/sentry/internal/schema"
)

// Store is the result archive. All writes go through SaveResult; reads are
// either whole-result lookups or finding-level queries.
type Store struct {
	db    *sql.DB
	index *FindingIndex
	path  string
}

// ResultSummary is the listing shape for stored results
type ResultSummary struct {
	RequestID     string    `json:"request_id"`
	Targets       []string  `json:"targets"`
	TotalFindings int       `json:"total_findings"`
	ToolErrors    int       `json:"tool_errors"`
	StartTime     time.Time `json:"start_time"`
	Duration      float64   `json:"duration_seconds"`
}

// Open creates or opens the result store under cfg.Path
func Open(cfg config.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Path, "results.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: cfg.Path}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if cfg.Indexed {
		index, err := OpenFindingIndex(cfg.Path)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.index = index
	}

	return s, nil
}

// init creates the database schema
func (s *Store) init() error {
	ddl := `
		CREATE TABLE IF NOT EXISTS results (
			request_id TEXT PRIMARY KEY,
			targets TEXT NOT NULL,
			total_findings INTEGER NOT NULL,
			tool_errors INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			duration REAL NOT NULL,
			payload TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS findings (
			finding_id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			swc_id TEXT,
			severity TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			confidence REAL NOT NULL,
			payload TEXT NOT NULL,
			FOREIGN KEY (request_id) REFERENCES results(request_id)
		);

		CREATE INDEX IF NOT EXISTS idx_findings_request ON findings(request_id);
		CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(severity);
		CREATE INDEX IF NOT EXISTS idx_findings_tool ON findings(tool_name);
		CREATE INDEX IF NOT EXISTS idx_findings_swc ON findings(swc_id);
	`

	_, err := s.db.Exec(ddl)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveResult persists one finalized result and indexes its findings.
// Re-saving the same request id replaces the previous record.
func (s *Store) SaveResult(result *schema.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	targets, err := json.Marshal(result.Targets)
	if err != nil {
		return fmt.Errorf("failed to marshal targets: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO results
		(request_id, targets, total_findings, tool_errors, start_time, duration, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RequestID,
		string(targets),
		result.TotalFindings,
		len(result.ToolErrors),
		result.StartTime.Format(time.RFC3339Nano),
		result.Duration,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM findings WHERE request_id = ?", result.RequestID); err != nil {
		return fmt.Errorf("failed to clear stale findings: %w", err)
	}
	for i := range result.Findings {
		f := &result.Findings[i]
		fp, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to marshal finding %s: %w", f.ID, err)
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO findings
			(finding_id, request_id, swc_id, severity, tool_name, file_path, confidence, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID,
			result.RequestID,
			f.SWCID,
			string(f.Severity),
			f.ToolName,
			f.FilePath,
			f.Confidence,
			string(fp),
		)
		if err != nil {
			return fmt.Errorf("failed to insert finding %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	if s.index != nil {
		if err := s.index.IndexResult(result); err != nil {
			return fmt.Errorf("failed to index findings: %w", err)
		}
	}
	return nil
}

// GetResult loads one stored result by request id
func (s *Store) GetResult(requestID string) (*schema.AnalysisResult, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM results WHERE request_id = ?", requestID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no result for request %s", requestID)
	}
	if err != nil {
		return nil, err
	}

	var result schema.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", requestID, err)
	}
	return &result, nil
}

// ListResults returns summaries of stored results, most recent first
func (s *Store) ListResults(limit int) ([]ResultSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT request_id, targets, total_findings, tool_errors, start_time, duration
		FROM results ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var summaries []ResultSummary
	for rows.Next() {
		var sum ResultSummary
		var targets, start string
		if err := rows.Scan(&sum.RequestID, &targets, &sum.TotalFindings, &sum.ToolErrors, &start, &sum.Duration); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(targets), &sum.Targets); err != nil {
			return nil, fmt.Errorf("failed to decode targets for %s: %w", sum.RequestID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, start); err == nil {
			sum.StartTime = t
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// FindingsBySeverity returns all stored findings at the given severity
func (s *Store) FindingsBySeverity(severity schema.Severity) ([]schema.Finding, error) {
	rows, err := s.db.Query("SELECT payload FROM findings WHERE severity = ?", string(severity))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanFindings(rows)
}

// FindingsByRequest returns the findings stored for one result
func (s *Store) FindingsByRequest(requestID string) ([]schema.Finding, error) {
	rows, err := s.db.Query("SELECT payload FROM findings WHERE request_id = ?", requestID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanFindings(rows)
}

func scanFindings(rows *sql.Rows) ([]schema.Finding, error) {
	var findings []schema.Finding
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var f schema.Finding
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			return nil, fmt.Errorf("failed to decode finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// DeleteResult removes a result and its findings from both the database and
// the search index.
func (s *Store) DeleteResult(requestID string) error {
	findings, err := s.FindingsByRequest(requestID)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM findings WHERE request_id = ?", requestID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM results WHERE request_id = ?", requestID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if s.index != nil {
		for _, f := range findings {
			if err := s.index.Delete(f.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Search runs a full-text query over indexed findings. It fails when the
// store was opened without indexing.
func (s *Store) Search(query string, limit int) ([]SearchResult, error) {
	if s.index == nil {
		return nil, fmt.Errorf("store at %s was opened without a search index", s.path)
	}
	return s.index.Search(query, limit)
}

// Count returns the number of stored results
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM results").Scan(&count)
	return count, err
}

// Close closes the database and, if open, the search index
func (s *Store) Close() error {
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			_ = s.db.Close()
			return err
		}
	}
	return s.db.Close()
}
