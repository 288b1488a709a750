package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/norelinorth/statements/internal/services/statements/document"
	"github.com/norelinorth/statements/internal/services/statements/storage"
)

const documentColumns = "id, org_unit, provider, period, file_path, status, preview_json, lines_found, error_log, import_date, created_at, updated_at"

// PutDocument inserts or updates one document row.
func (s *Store) PutDocument(ctx context.Context, record storage.DocumentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeDocumentRecord(record)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	org_unit = excluded.org_unit,
	provider = excluded.provider,
	period = excluded.period,
	file_path = excluded.file_path,
	status = excluded.status,
	preview_json = excluded.preview_json,
	lines_found = excluded.lines_found,
	error_log = excluded.error_log,
	import_date = excluded.import_date,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at
`,
		normalized.ID,
		normalized.OrgUnit,
		normalized.Provider,
		normalized.Period,
		normalized.FilePath,
		normalized.Status,
		normalized.PreviewJSON,
		normalized.LinesFound,
		normalized.ErrorLog,
		toMillis(normalized.ImportDate),
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

// GetDocument loads one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (storage.DocumentRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.DocumentRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.DocumentRecord{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.DocumentRecord{}, fmt.Errorf("document id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = ?
`, id)
	record, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DocumentRecord{}, storage.ErrNotFound
		}
		return storage.DocumentRecord{}, fmt.Errorf("get document: %w", err)
	}
	return record, nil
}

// SavePreview stores the extraction payload and resets the error log.
func (s *Store) SavePreview(ctx context.Context, id string, previewJSON string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	if strings.TrimSpace(previewJSON) == "" {
		return fmt.Errorf("preview payload is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE documents
SET preview_json = ?, updated_at = ?
WHERE id = ?
`, previewJSON, toMillis(now), id)
	if err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save preview rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AcquireProcessing atomically moves a document into processing.
//
// The transition is a single conditional UPDATE: the status filter and the
// write happen in one statement, so two concurrent callers can never both
// see an acquirable status. Exactly one gets a row; the other reads the
// document back to distinguish "held" from "missing".
func (s *Store) AcquireProcessing(ctx context.Context, id string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("document id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE documents
SET status = ?, updated_at = ?
WHERE id = ? AND status IN (?, ?, ?)
`,
		document.StatusProcessing,
		toMillis(now),
		id,
		document.StatusDraft,
		document.StatusCompleted,
		document.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("acquire processing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire processing rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	if _, err := s.GetDocument(ctx, id); err != nil {
		return err
	}
	return storage.ErrAlreadyProcessing
}

// FinishProcessing releases the processing lock into a terminal status.
func (s *Store) FinishProcessing(ctx context.Context, id string, status string, linesFound int, errorLog string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	parsed, err := document.ParseStatus(status)
	if err != nil {
		return err
	}
	if !parsed.Terminal() {
		return fmt.Errorf("finish status must be completed or failed, got %q", status)
	}
	if linesFound < 0 {
		return fmt.Errorf("lines found must be non-negative")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE documents
SET status = ?, lines_found = ?, error_log = ?, updated_at = ?
WHERE id = ? AND status = ?
`, parsed, linesFound, strings.TrimSpace(errorLog), toMillis(now), id, document.StatusProcessing)
	if err != nil {
		return fmt.Errorf("finish processing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish processing rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	if _, err := s.GetDocument(ctx, id); err != nil {
		return err
	}
	return storage.ErrNotProcessing
}

func normalizeDocumentRecord(record storage.DocumentRecord) (storage.DocumentRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.OrgUnit = strings.TrimSpace(record.OrgUnit)
	record.Provider = strings.TrimSpace(record.Provider)
	record.Period = strings.TrimSpace(record.Period)
	record.FilePath = strings.TrimSpace(record.FilePath)
	record.ErrorLog = strings.TrimSpace(record.ErrorLog)
	if record.ID == "" {
		return storage.DocumentRecord{}, fmt.Errorf("document id is required")
	}
	if record.OrgUnit == "" {
		return storage.DocumentRecord{}, fmt.Errorf("org unit is required")
	}
	if record.Provider == "" {
		return storage.DocumentRecord{}, fmt.Errorf("provider is required")
	}
	if record.FilePath == "" {
		return storage.DocumentRecord{}, fmt.Errorf("file path is required")
	}
	status, err := document.ParseStatus(record.Status)
	if err != nil {
		return storage.DocumentRecord{}, err
	}
	record.Status = string(status)
	if record.ImportDate.IsZero() {
		return storage.DocumentRecord{}, fmt.Errorf("import date is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.DocumentRecord{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		return storage.DocumentRecord{}, fmt.Errorf("updated_at is required")
	}
	record.ImportDate = record.ImportDate.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func scanDocument(scan scanner) (storage.DocumentRecord, error) {
	var record storage.DocumentRecord
	var importDate int64
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.OrgUnit,
		&record.Provider,
		&record.Period,
		&record.FilePath,
		&record.Status,
		&record.PreviewJSON,
		&record.LinesFound,
		&record.ErrorLog,
		&importDate,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.DocumentRecord{}, err
	}
	record.ImportDate = fromMillis(importDate)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
