package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/edupath/coursesync/internal/events"
	"github.com/edupath/coursesync/internal/storage"
)

// SaveEntry upserts a pending glossary entry keyed by
// (site, glossary, concept, timeCreated). The previous pending edit for the
// same identity is replaced in full.
func (s *Storage) SaveEntry(ctx context.Context, entry *storage.OfflineEntry) error {
	options, err := json.Marshal(entry.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal entry options: %w", err)
	}

	existing, err := s.GetEntry(ctx, entry.SiteID, entry.GlossaryID, entry.Concept, entry.TimeCreated)
	if err != nil && !errors.Is(err, storage.ErrEntryNotFound) {
		return fmt.Errorf("failed to check existing entry: %w", err)
	}

	if existing != nil {
		query := `
			UPDATE offline_entries
			SET course_id = ?, user_id = ?, definition = ?, definition_format = ?,
			    options = ?, attachment_item_id = ?, stored_files = ?,
			    baseline_time_modified = ?
			WHERE site_id = ? AND glossary_id = ? AND concept = ? AND time_created = ?
		`

		_, err = s.db.ExecContext(ctx, query,
			entry.CourseID,
			entry.UserID,
			entry.Definition,
			entry.DefinitionFormat,
			string(options),
			entry.AttachmentItemID,
			entry.StoredFiles,
			entry.BaselineTimeModified,
			entry.SiteID,
			entry.GlossaryID,
			entry.Concept,
			entry.TimeCreated,
		)
		if err != nil {
			return fmt.Errorf("failed to update pending entry: %w", err)
		}

		s.publish(events.Event{
			Name:   events.EntryUpdated,
			SiteID: entry.SiteID,
			Payload: events.EntryPayload{
				GlossaryID:  entry.GlossaryID,
				Concept:     entry.Concept,
				TimeCreated: entry.TimeCreated,
				UserID:      entry.UserID,
				Offline:     true,
			},
		})
		return nil
	}

	query := `
		INSERT INTO offline_entries (
			site_id, glossary_id, course_id, user_id, concept, definition,
			definition_format, options, attachment_item_id, stored_files,
			time_created, baseline_time_modified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.SiteID,
		entry.GlossaryID,
		entry.CourseID,
		entry.UserID,
		entry.Concept,
		entry.Definition,
		entry.DefinitionFormat,
		string(options),
		entry.AttachmentItemID,
		entry.StoredFiles,
		entry.TimeCreated,
		entry.BaselineTimeModified,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pending entry: %w", err)
	}

	s.publish(events.Event{
		Name:   events.EntryAdded,
		SiteID: entry.SiteID,
		Payload: events.EntryPayload{
			GlossaryID:  entry.GlossaryID,
			Concept:     entry.Concept,
			TimeCreated: entry.TimeCreated,
			UserID:      entry.UserID,
			Offline:     true,
		},
	})
	return nil
}

// GetEntry retrieves one pending entry by its identity tuple.
// Returns ErrEntryNotFound when nothing is pending.
func (s *Storage) GetEntry(ctx context.Context, siteID string, glossaryID int64, concept string, timeCreated int64) (*storage.OfflineEntry, error) {
	query := `
		SELECT site_id, glossary_id, course_id, user_id, concept, definition,
		       definition_format, options, attachment_item_id, stored_files,
		       time_created, baseline_time_modified
		FROM offline_entries
		WHERE site_id = ? AND glossary_id = ? AND concept = ? AND time_created = ?
	`

	row := s.db.QueryRowContext(ctx, query, siteID, glossaryID, concept, timeCreated)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get pending entry: %w", err)
	}

	return entry, nil
}

// GetGlossaryEntries returns the pending entries of one glossary ordered by
// concept, then creation time.
func (s *Storage) GetGlossaryEntries(ctx context.Context, siteID string, glossaryID int64) ([]*storage.OfflineEntry, error) {
	query := `
		SELECT site_id, glossary_id, course_id, user_id, concept, definition,
		       definition_format, options, attachment_item_id, stored_files,
		       time_created, baseline_time_modified
		FROM offline_entries
		WHERE site_id = ? AND glossary_id = ?
		ORDER BY concept COLLATE NOCASE ASC, time_created ASC
	`

	rows, err := s.db.QueryContext(ctx, query, siteID, glossaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEntries(rows)
}

// GetAllEntries returns every pending entry for the site across glossaries.
func (s *Storage) GetAllEntries(ctx context.Context, siteID string) ([]*storage.OfflineEntry, error) {
	query := `
		SELECT site_id, glossary_id, course_id, user_id, concept, definition,
		       definition_format, options, attachment_item_id, stored_files,
		       time_created, baseline_time_modified
		FROM offline_entries
		WHERE site_id = ?
		ORDER BY glossary_id ASC, concept COLLATE NOCASE ASC, time_created ASC
	`

	rows, err := s.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEntries(rows)
}

// DeleteEntry removes a pending entry. Deleting a non-existent entry is not
// an error; the deleted event fires only when a row was actually removed.
func (s *Storage) DeleteEntry(ctx context.Context, siteID string, glossaryID int64, concept string, timeCreated int64) error {
	query := `
		DELETE FROM offline_entries
		WHERE site_id = ? AND glossary_id = ? AND concept = ? AND time_created = ?
	`

	result, err := s.db.ExecContext(ctx, query, siteID, glossaryID, concept, timeCreated)
	if err != nil {
		return fmt.Errorf("failed to delete pending entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		s.publish(events.Event{
			Name:   events.EntryDeleted,
			SiteID: siteID,
			Payload: events.EntryPayload{
				GlossaryID:  glossaryID,
				Concept:     concept,
				TimeCreated: timeCreated,
				Offline:     true,
			},
		})
	}

	return nil
}

// IsConceptUsed reports whether another pending entry in the glossary uses
// the concept, excluding the one created at excludingTimeCreated.
func (s *Storage) IsConceptUsed(ctx context.Context, siteID string, glossaryID int64, concept string, excludingTimeCreated int64) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM offline_entries
		WHERE site_id = ? AND glossary_id = ? AND concept = ? COLLATE NOCASE
		  AND time_created != ?
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, siteID, glossaryID, concept, excludingTimeCreated).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check concept usage: %w", err)
	}

	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*storage.OfflineEntry, error) {
	entry := &storage.OfflineEntry{}
	var options string

	err := row.Scan(
		&entry.SiteID,
		&entry.GlossaryID,
		&entry.CourseID,
		&entry.UserID,
		&entry.Concept,
		&entry.Definition,
		&entry.DefinitionFormat,
		&options,
		&entry.AttachmentItemID,
		&entry.StoredFiles,
		&entry.TimeCreated,
		&entry.BaselineTimeModified,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(options), &entry.Options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry options: %w", err)
	}

	return entry, nil
}

func scanEntries(rows *sql.Rows) ([]*storage.OfflineEntry, error) {
	entries := []*storage.OfflineEntry{}

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}
