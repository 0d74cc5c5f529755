// ABOUTME: Settings document row: a single JSON document under a constant key
// ABOUTME: Updates are whole-document read-merge-write, never patch-in-place

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// settingsKey is the constant key of the sole settings document.
const settingsKey = "main"

// GetSettingsDoc reads the persisted settings document. The second return
// is false when no document has been saved yet or the read fails.
func (s *Store) GetSettingsDoc(ctx context.Context) (map[string]any, bool) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("reading settings failed", "error", err)
		return nil, false
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		s.logger.Warn("decoding settings failed", "error", err)
		return nil, false
	}
	return doc, true
}

// PutSettingsDoc replaces the settings document wholesale.
func (s *Store) PutSettingsDoc(ctx context.Context, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated = excluded.updated`,
		settingsKey, string(raw), nowMillis())
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	s.logger.Debug("settings saved")
	return nil
}
