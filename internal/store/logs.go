// ABOUTME: Log entry persistence: save, batch save, search, delete, retention
// ABOUTME: Every save triggers the retention sweep and the max-count eviction

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/query"
)

// SaveLog persists a single log entry and runs the retention policy.
// An empty ID is assigned a new UUID. Returns the entry's id.
func (s *Store) SaveLog(ctx context.Context, entry *model.LogEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = nowMillis()
	}

	if err := s.insertLog(ctx, s.db, entry); err != nil {
		return "", fmt.Errorf("saving log: %w", err)
	}

	if _, err := s.CleanupLogs(ctx); err != nil {
		s.logger.Warn("log retention sweep failed", "error", err)
	}

	return entry.ID, nil
}

// SaveLogs persists a batch of entries in a single transaction, then runs
// the retention policy once.
func (s *Store) SaveLogs(ctx context.Context, entries []model.LogEntry) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning batch save: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.New().String()
		}
		if entries[i].Timestamp == 0 {
			entries[i].Timestamp = nowMillis()
		}
		if err := s.insertLog(ctx, tx, &entries[i]); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("saving log batch: %w", err)
		}
		ids = append(ids, entries[i].ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing log batch: %w", err)
	}

	if _, err := s.CleanupLogs(ctx); err != nil {
		s.logger.Warn("log retention sweep failed", "error", err)
	}

	return ids, nil
}

// execer abstracts *sql.DB and *sql.Tx for shared insert paths.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertLog(ctx context.Context, db execer, e *model.LogEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO logs (id, timestamp, level, message, stack_trace, url,
			ctx_table, ctx_record_id, ctx_user, ctx_session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, e.Level, e.Message, e.StackTrace, e.URL,
		e.Context.Table, e.Context.RecordID, e.Context.User, e.Context.SessionID,
	)
	return err
}

// GetLog retrieves a single entry by id. Returns nil (not an error) when the
// entry does not exist or the read fails.
func (s *Store) GetLog(ctx context.Context, id string) *model.LogEntry {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, level, message, stack_trace, url,
		       ctx_table, ctx_record_id, ctx_user, ctx_session_id
		FROM logs WHERE id = ?`, id)

	var e model.LogEntry
	err := row.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Message, &e.StackTrace, &e.URL,
		&e.Context.Table, &e.Context.RecordID, &e.Context.User, &e.Context.SessionID)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("reading log failed", "id", id, "error", err)
		}
		return nil
	}
	return &e
}

// SearchLogs retrieves entries matching the filter bag, newest first, with
// optional limit/offset pagination. The timestamp index narrows retrieval
// when a time range is present; the remaining predicates are applied in
// memory after full materialization.
func (s *Store) SearchLogs(ctx context.Context, f model.LogFilters) ([]model.LogEntry, error) {
	q := `SELECT id, timestamp, level, message, stack_trace, url,
	             ctx_table, ctx_record_id, ctx_user, ctx_session_id
	      FROM logs`
	var args []any
	switch {
	case f.StartTime != 0 && f.EndTime != 0:
		q += ` WHERE timestamp BETWEEN ? AND ?`
		args = append(args, f.StartTime, f.EndTime)
	case f.StartTime != 0:
		q += ` WHERE timestamp >= ?`
		args = append(args, f.StartTime)
	case f.EndTime != 0:
		q += ` WHERE timestamp <= ?`
		args = append(args, f.EndTime)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Message, &e.StackTrace, &e.URL,
			&e.Context.Table, &e.Context.RecordID, &e.Context.User, &e.Context.SessionID); err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log rows: %w", err)
	}

	entries = query.FilterLogs(entries, f)
	query.SortLogsNewestFirst(entries)
	return query.Paginate(entries, f.Limit, f.Offset), nil
}

// LogStats computes aggregate counts over the entries matching the filter
// bag (ignoring pagination). Returns zeroed stats on read failure.
func (s *Store) LogStats(ctx context.Context, f model.LogFilters) model.LogStats {
	f.Limit = 0
	f.Offset = 0
	entries, err := s.SearchLogs(ctx, f)
	if err != nil {
		s.logger.Warn("log stats read failed", "error", err)
		return model.LogStats{ByLevel: map[string]int{}, ByTable: map[string]int{}}
	}
	return query.LogStats(entries)
}

// DeleteLog removes a single entry by id. Returns false on failure.
func (s *Store) DeleteLog(ctx context.Context, id string) bool {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE id = ?`, id); err != nil {
		s.logger.Warn("deleting log failed", "id", id, "error", err)
		return false
	}
	return true
}

// ClearLogs removes every log entry. Idempotent.
func (s *Store) ClearLogs(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM logs`); err != nil {
		return fmt.Errorf("clearing logs: %w", err)
	}
	s.logger.Info("all logs cleared")
	return nil
}

// CountLogs returns the number of stored entries, 0 on failure.
func (s *Store) CountLogs(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs`).Scan(&n); err != nil {
		s.logger.Warn("counting logs failed", "error", err)
		return 0
	}
	return n
}

// CleanupLogs deletes entries older than the retention window via the
// timestamp index, then evicts the oldest entries beyond the max-count cap.
// Redundant concurrent sweeps are harmless.
func (s *Store) CleanupLogs(ctx context.Context) (int, error) {
	opts := s.opt.get()
	cutoff := nowMillis() - opts.LogRetention.Milliseconds()

	res, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired logs: %w", err)
	}
	expired, _ := res.RowsAffected()

	evicted, err := s.enforceCap(ctx, "logs", opts.MaxLogs)
	if err != nil {
		return int(expired), err
	}

	total := int(expired) + evicted
	if total > 0 {
		s.logger.Debug("log retention sweep", "expired", expired, "evicted", evicted)
	}
	return total, nil
}

// enforceCap deletes the oldest rows of the named collection beyond max.
func (s *Store) enforceCap(ctx context.Context, table string, max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	if count <= max {
		return 0, nil
	}

	excess := count - max
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM `+table+` WHERE id IN (
			SELECT id FROM `+table+` ORDER BY timestamp ASC LIMIT ?
		)`, excess)
	if err != nil {
		return 0, fmt.Errorf("evicting oldest %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
