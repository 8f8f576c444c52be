package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pipewatch/internal/eventlog"
)

// tsLayout is fixed-width so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal persists event records to SQLite.
type Journal struct {
	db        *sql.DB
	path      string
	sessionID string
}

// HistoryFilter narrows history queries. Limit <= 0 is unlimited and keeps
// the most recent rows.
type HistoryFilter struct {
	PipelineID string
	Component  string
	Limit      int
}

// PipelineSummary aggregates journal rows for one pipeline id.
type PipelineSummary struct {
	ID         string
	FirstSeen  time.Time
	LastSeen   time.Time
	LastEvent  string
	EventCount int
}

// Open initializes or connects to the journal database at path. Rows written
// through this handle are tagged with sessionID.
func Open(path, sessionID string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path, sessionID: sessionID}
	if err := j.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database location.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Write inserts one record.
func (j *Journal) Write(record eventlog.Record) error {
	data, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("marshal record data: %w", err)
	}
	_, err = j.db.ExecContext(context.Background(),
		`INSERT INTO events (session_id, seq, ts, component, event, pipeline_id, data_json)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.sessionID,
		int64(record.Sequence),
		record.Timestamp.UTC().Format(tsLayout),
		record.Component,
		record.Event,
		record.PipelineID,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// History returns journaled records matching filter, oldest first.
func (j *Journal) History(ctx context.Context, filter HistoryFilter) ([]eventlog.Record, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.PipelineID != "" {
		clauses = append(clauses, "pipeline_id = ?")
		args = append(args, filter.PipelineID)
	}
	if filter.Component != "" {
		clauses = append(clauses, "component = ?")
		args = append(args, filter.Component)
	}
	query := "SELECT seq, ts, component, event, pipeline_id, data_json FROM events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []eventlog.Record
	for rows.Next() {
		var (
			seq      int64
			ts, data string
			record   eventlog.Record
		)
		if err := rows.Scan(&seq, &ts, &record.Component, &record.Event, &record.PipelineID, &data); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		record.Sequence = uint64(seq)
		record.Timestamp = parseTime(ts)
		if err := json.Unmarshal([]byte(data), &record.Data); err != nil {
			record.Data = map[string]any{"raw": data}
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// Pipelines lists pipeline ids seen in the journal, most recently active first.
func (j *Journal) Pipelines(ctx context.Context, limit int) ([]PipelineSummary, error) {
	query := `SELECT pipeline_id, MIN(ts), MAX(ts), COUNT(1),
        (SELECT e2.event FROM events e2 WHERE e2.pipeline_id = e.pipeline_id ORDER BY e2.id DESC LIMIT 1)
        FROM events e
        WHERE pipeline_id != ?
        GROUP BY pipeline_id
        ORDER BY MAX(id) DESC`
	args := []any{eventlog.SystemPipelineID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pipelines: %w", err)
	}
	defer rows.Close()

	var out []PipelineSummary
	for rows.Next() {
		var (
			summary     PipelineSummary
			first, last string
		)
		if err := rows.Scan(&summary.ID, &first, &last, &summary.EventCount, &summary.LastEvent); err != nil {
			return nil, fmt.Errorf("scan pipelines: %w", err)
		}
		summary.FirstSeen = parseTime(first)
		summary.LastSeen = parseTime(last)
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Prune deletes rows older than cutoff and returns the number removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM events WHERE ts < ?", cutoff.UTC().Format(tsLayout))
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func parseTime(value string) time.Time {
	if t, err := time.Parse(tsLayout, value); err == nil {
		return t
	}
	return time.Time{}
}
