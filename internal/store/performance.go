// ABOUTME: Measurement persistence: sampled save, search, aggregates, retention
// ABOUTME: The sampling draw happens before any write; rejected samples return an empty id

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/query"
)

// SaveMeasurement persists a measurement subject to the sampling rate, then
// runs the retention policy. A rejected sample returns an empty id and nil
// error without touching storage; rejected samples are not retried.
func (s *Store) SaveMeasurement(ctx context.Context, m *model.Measurement) (string, error) {
	opts := s.opt.get()
	if sampleDraw() >= opts.SamplingRate {
		return "", nil
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp == 0 {
		m.Timestamp = nowMillis()
	}

	if err := s.insertMeasurement(ctx, s.db, m); err != nil {
		return "", fmt.Errorf("saving measurement: %w", err)
	}

	if _, err := s.CleanupMeasurements(ctx); err != nil {
		s.logger.Warn("measurement retention sweep failed", "error", err)
	}

	return m.ID, nil
}

// SaveMeasurements persists a batch in one transaction, drawing the sampling
// rate per measurement. Returns the ids of the persisted subset.
func (s *Store) SaveMeasurements(ctx context.Context, ms []model.Measurement) ([]string, error) {
	opts := s.opt.get()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning batch save: %w", err)
	}

	var ids []string
	for i := range ms {
		if sampleDraw() >= opts.SamplingRate {
			continue
		}
		if ms[i].ID == "" {
			ms[i].ID = uuid.New().String()
		}
		if ms[i].Timestamp == 0 {
			ms[i].Timestamp = nowMillis()
		}
		if err := s.insertMeasurement(ctx, tx, &ms[i]); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("saving measurement batch: %w", err)
		}
		ids = append(ids, ms[i].ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing measurement batch: %w", err)
	}

	if _, err := s.CleanupMeasurements(ctx); err != nil {
		s.logger.Warn("measurement retention sweep failed", "error", err)
	}

	return ids, nil
}

func (s *Store) insertMeasurement(ctx context.Context, db execer, m *model.Measurement) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO performance (id, timestamp, type, duration, url, method, status, error,
			ctx_table, ctx_query, ctx_record_id, ctx_record_count, stack_trace)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Timestamp, m.Type, m.Duration, m.URL, m.Method, m.Status, m.Error,
		m.Context.Table, m.Context.Query, m.Context.RecordID, m.Context.RecordCount, m.StackTrace,
	)
	return err
}

// GetMeasurement retrieves one measurement by id, nil when absent or on
// read failure.
func (s *Store) GetMeasurement(ctx context.Context, id string) *model.Measurement {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, type, duration, url, method, status, error,
		       ctx_table, ctx_query, ctx_record_id, ctx_record_count, stack_trace
		FROM performance WHERE id = ?`, id)

	var m model.Measurement
	err := row.Scan(&m.ID, &m.Timestamp, &m.Type, &m.Duration, &m.URL, &m.Method, &m.Status, &m.Error,
		&m.Context.Table, &m.Context.Query, &m.Context.RecordID, &m.Context.RecordCount, &m.StackTrace)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("reading measurement failed", "id", id, "error", err)
		}
		return nil
	}
	return &m
}

// SearchMeasurements retrieves measurements matching the filter bag, newest
// first, paginated. The type index narrows retrieval when a type filter is
// present; other predicates are applied in memory.
func (s *Store) SearchMeasurements(ctx context.Context, f model.MeasurementFilters) ([]model.Measurement, error) {
	q := `SELECT id, timestamp, type, duration, url, method, status, error,
	             ctx_table, ctx_query, ctx_record_id, ctx_record_count, stack_trace
	      FROM performance`
	var args []any
	if f.Type != "" {
		q += ` WHERE type = ?`
		args = append(args, f.Type)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer rows.Close()

	var ms []model.Measurement
	for rows.Next() {
		var m model.Measurement
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Type, &m.Duration, &m.URL, &m.Method, &m.Status, &m.Error,
			&m.Context.Table, &m.Context.Query, &m.Context.RecordID, &m.Context.RecordCount, &m.StackTrace); err != nil {
			return nil, fmt.Errorf("scanning measurement row: %w", err)
		}
		ms = append(ms, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurement rows: %w", err)
	}

	ms = query.FilterMeasurements(ms, f, s.opt.get().Thresholds)
	query.SortMeasurementsNewestFirst(ms)
	return query.Paginate(ms, f.Limit, f.Offset), nil
}

// PerfStats computes aggregate statistics over the measurements matching the
// filter bag (ignoring pagination).
func (s *Store) PerfStats(ctx context.Context, f model.MeasurementFilters) model.PerfStats {
	f.Limit = 0
	f.Offset = 0
	ms, err := s.SearchMeasurements(ctx, f)
	if err != nil {
		s.logger.Warn("perf stats read failed", "error", err)
		return model.PerfStats{ByType: map[string]int{}}
	}
	return query.PerfStats(ms, s.opt.get().Thresholds)
}

// TableStats groups statistics per table over record-query measurements.
func (s *Store) TableStats(ctx context.Context) map[string]model.TableStats {
	ms, err := s.SearchMeasurements(ctx, model.MeasurementFilters{Type: model.TypeRecordQuery})
	if err != nil {
		s.logger.Warn("table stats read failed", "error", err)
		return map[string]model.TableStats{}
	}
	return query.TableStats(ms, s.opt.get().Thresholds)
}

// TimeSeries buckets the measurements matching the filter bag into
// fixed-width windows for charting.
func (s *Store) TimeSeries(ctx context.Context, f model.MeasurementFilters, bucketSize int64) []model.TimeBucket {
	f.Limit = 0
	f.Offset = 0
	ms, err := s.SearchMeasurements(ctx, f)
	if err != nil {
		s.logger.Warn("time series read failed", "error", err)
		return nil
	}
	return query.TimeSeries(ms, bucketSize)
}

// TopSlowQueries returns the slowest record-query measurements, slowest
// first. Returns an empty slice on read failure.
func (s *Store) TopSlowQueries(ctx context.Context, limit int) []model.Measurement {
	ms, err := s.SearchMeasurements(ctx, model.MeasurementFilters{Type: model.TypeRecordQuery})
	if err != nil {
		s.logger.Warn("slow query read failed", "error", err)
		return []model.Measurement{}
	}
	query.SortMeasurementsByDuration(ms)
	if limit > 0 && len(ms) > limit {
		ms = ms[:limit]
	}
	return ms
}

// DeleteMeasurement removes one measurement by id. Returns false on failure.
func (s *Store) DeleteMeasurement(ctx context.Context, id string) bool {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM performance WHERE id = ?`, id); err != nil {
		s.logger.Warn("deleting measurement failed", "id", id, "error", err)
		return false
	}
	return true
}

// ClearMeasurements removes every measurement. Idempotent.
func (s *Store) ClearMeasurements(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM performance`); err != nil {
		return fmt.Errorf("clearing measurements: %w", err)
	}
	s.logger.Info("all measurements cleared")
	return nil
}

// CountMeasurements returns the number of stored measurements, 0 on failure.
func (s *Store) CountMeasurements(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM performance`).Scan(&n); err != nil {
		s.logger.Warn("counting measurements failed", "error", err)
		return 0
	}
	return n
}

// CleanupMeasurements deletes measurements older than the retention window,
// then evicts the oldest beyond the cap.
func (s *Store) CleanupMeasurements(ctx context.Context) (int, error) {
	opts := s.opt.get()
	cutoff := nowMillis() - opts.PerfRetention.Milliseconds()

	res, err := s.db.ExecContext(ctx, `DELETE FROM performance WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired measurements: %w", err)
	}
	expired, _ := res.RowsAffected()

	evicted, err := s.enforceCap(ctx, "performance", opts.MaxMeasurements)
	if err != nil {
		return int(expired), err
	}

	total := int(expired) + evicted
	if total > 0 {
		s.logger.Debug("measurement retention sweep", "expired", expired, "evicted", evicted)
	}
	return total, nil
}
