// ABOUTME: Snippet persistence: validated save, search, import/export, tag index
// ABOUTME: Inserts get store-assigned sequential ids; updates preserve id and refresh updated

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/glidescope/glidescope/internal/model"
	"github.com/glidescope/glidescope/internal/query"
)

// validateSnippet enforces the write-time contract: title, code, and
// category required, code bounded by the size cap. Runs before any write.
func validateSnippet(sn *model.Snippet) error {
	err := validation.ValidateStruct(sn,
		validation.Field(&sn.Title, validation.Required),
		validation.Field(&sn.Code, validation.Required, validation.Length(1, model.MaxSnippetCodeSize)),
		validation.Field(&sn.Category, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// SaveSnippet validates and persists a snippet. A zero ID inserts and
// returns the newly assigned id; a nonzero ID updates in place, preserving
// Created and refreshing Updated. Validation failure leaves storage
// untouched.
func (s *Store) SaveSnippet(ctx context.Context, sn *model.Snippet) (int64, error) {
	if err := validateSnippet(sn); err != nil {
		return 0, err
	}

	now := nowMillis()
	if sn.Created == 0 {
		sn.Created = now
	}
	sn.Updated = now

	tags, err := json.Marshal(sn.Tags)
	if err != nil {
		return 0, fmt.Errorf("encoding tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning snippet save: %w", err)
	}
	defer tx.Rollback()

	if sn.ID != 0 {
		res, err := tx.ExecContext(ctx, `
			UPDATE snippets SET title = ?, description = ?, code = ?, category = ?,
				tags = ?, language = ?, is_favorite = ?, updated = ?
			WHERE id = ?`,
			sn.Title, sn.Description, sn.Code, sn.Category,
			string(tags), sn.Language, boolToInt(sn.IsFavorite), sn.Updated, sn.ID)
		if err != nil {
			return 0, fmt.Errorf("updating snippet: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return 0, fmt.Errorf("%w: snippet %d", ErrNotFound, sn.ID)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO snippets (title, description, code, category, tags, language,
				is_favorite, created, updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sn.Title, sn.Description, sn.Code, sn.Category, string(tags), sn.Language,
			boolToInt(sn.IsFavorite), sn.Created, sn.Updated)
		if err != nil {
			return 0, fmt.Errorf("inserting snippet: %w", err)
		}
		sn.ID, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading assigned snippet id: %w", err)
		}
	}

	// Rebuild the tag index rows for this snippet
	if _, err := tx.ExecContext(ctx, `DELETE FROM snippet_tags WHERE snippet_id = ?`, sn.ID); err != nil {
		return 0, fmt.Errorf("clearing snippet tags: %w", err)
	}
	for _, tag := range sn.Tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO snippet_tags (snippet_id, tag) VALUES (?, ?)`, sn.ID, tag); err != nil {
			return 0, fmt.Errorf("indexing snippet tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing snippet save: %w", err)
	}

	return sn.ID, nil
}

// GetSnippet retrieves one snippet by id, nil when absent or on read failure.
func (s *Store) GetSnippet(ctx context.Context, id int64) *model.Snippet {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, code, category, tags, language, is_favorite, created, updated
		FROM snippets WHERE id = ?`, id)

	sn, err := scanSnippet(row)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("reading snippet failed", "id", id, "error", err)
		}
		return nil
	}
	return sn
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (*model.Snippet, error) {
	var sn model.Snippet
	var tags string
	var fav int
	err := row.Scan(&sn.ID, &sn.Title, &sn.Description, &sn.Code, &sn.Category,
		&tags, &sn.Language, &fav, &sn.Created, &sn.Updated)
	if err != nil {
		return nil, err
	}
	sn.IsFavorite = fav != 0
	if err := json.Unmarshal([]byte(tags), &sn.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return &sn, nil
}

// SearchSnippets retrieves snippets matching the filter bag, sorted by the
// requested field. The tag index narrows retrieval when a tag filter is
// present.
func (s *Store) SearchSnippets(ctx context.Context, f model.SnippetFilters) ([]model.Snippet, error) {
	q := `SELECT s.id, s.title, s.description, s.code, s.category, s.tags, s.language,
	             s.is_favorite, s.created, s.updated
	      FROM snippets s`
	var args []any
	if f.Tag != "" {
		q += ` JOIN snippet_tags st ON st.snippet_id = s.id AND st.tag = ?`
		args = append(args, f.Tag)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snippets: %w", err)
	}
	defer rows.Close()

	var snippets []model.Snippet
	for rows.Next() {
		sn, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snippet row: %w", err)
		}
		snippets = append(snippets, *sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snippet rows: %w", err)
	}

	snippets = query.FilterSnippets(snippets, f)
	query.SortSnippets(snippets, f.SortBy, f.SortOrder)
	return snippets, nil
}

// DeleteSnippet removes one snippet by id. Returns false on failure.
func (s *Store) DeleteSnippet(ctx context.Context, id int64) bool {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id); err != nil {
		s.logger.Warn("deleting snippet failed", "id", id, "error", err)
		return false
	}
	return true
}

// ClearSnippets removes every snippet. Idempotent.
func (s *Store) ClearSnippets(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snippets`); err != nil {
		return fmt.Errorf("clearing snippets: %w", err)
	}
	s.logger.Info("all snippets cleared")
	return nil
}

// AllTags returns the distinct tags across all snippets, sorted. Empty on
// read failure.
func (s *Store) AllTags(ctx context.Context) []string {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tag FROM snippet_tags ORDER BY tag`)
	if err != nil {
		s.logger.Warn("reading tags failed", "error", err)
		return []string{}
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			s.logger.Warn("scanning tag failed", "error", err)
			return []string{}
		}
		tags = append(tags, tag)
	}
	return tags
}

// ImportSnippets parses a JSON array of snippets and inserts each as a new
// record (incoming ids are discarded). Invalid entries are skipped with a
// warning. When replaceExisting is set, the collection is cleared first.
// Returns the number imported.
func (s *Store) ImportSnippets(ctx context.Context, jsonData string, replaceExisting bool) (int, error) {
	var snippets []model.Snippet
	if err := json.Unmarshal([]byte(jsonData), &snippets); err != nil {
		return 0, fmt.Errorf("%w: parsing snippet import: %v", ErrValidation, err)
	}

	if replaceExisting {
		if err := s.ClearSnippets(ctx); err != nil {
			return 0, err
		}
	}

	count := 0
	for i := range snippets {
		snippets[i].ID = 0
		snippets[i].Created = 0 // reassigned at save time
		if _, err := s.SaveSnippet(ctx, &snippets[i]); err != nil {
			s.logger.Warn("skipping invalid snippet on import", "title", snippets[i].Title, "error", err)
			continue
		}
		count++
	}

	s.logger.Info("snippets imported", "count", count)
	return count, nil
}

// ExportSnippets serializes the given snippets (all, when ids is empty) as
// pretty-printed JSON.
func (s *Store) ExportSnippets(ctx context.Context, ids []int64) (string, error) {
	var snippets []model.Snippet
	if len(ids) > 0 {
		for _, id := range ids {
			if sn := s.GetSnippet(ctx, id); sn != nil {
				snippets = append(snippets, *sn)
			}
		}
	} else {
		var err error
		snippets, err = s.SearchSnippets(ctx, model.SnippetFilters{})
		if err != nil {
			return "", err
		}
	}

	data, err := json.MarshalIndent(snippets, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snippet export: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
