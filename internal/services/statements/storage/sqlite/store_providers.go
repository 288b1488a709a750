package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/norelinorth/statements/internal/services/statements/storage"
)

const providerColumns = "name, enabled, prompt_template, rules_json, created_at, updated_at"

// PutProvider inserts or updates one provider row.
func (s *Store) PutProvider(ctx context.Context, record storage.ProviderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeProviderRecord(record)
	if err != nil {
		return err
	}

	enabled := 0
	if normalized.Enabled {
		enabled = 1
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO providers (`+providerColumns+`)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	enabled = excluded.enabled,
	prompt_template = excluded.prompt_template,
	rules_json = excluded.rules_json,
	updated_at = excluded.updated_at
`,
		normalized.Name,
		enabled,
		normalized.PromptTemplate,
		normalized.RulesJSON,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put provider: %w", err)
	}
	return nil
}

// GetProvider loads one provider by name.
func (s *Store) GetProvider(ctx context.Context, name string) (storage.ProviderRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProviderRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ProviderRecord{}, fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.ProviderRecord{}, fmt.Errorf("provider name is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+providerColumns+`
FROM providers
WHERE name = ?
`, name)
	record, err := scanProvider(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ProviderRecord{}, storage.ErrNotFound
		}
		return storage.ProviderRecord{}, fmt.Errorf("get provider: %w", err)
	}
	return record, nil
}

// ListProviders returns all providers ordered by name.
func (s *Store) ListProviders(ctx context.Context) ([]storage.ProviderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+providerColumns+`
FROM providers
ORDER BY name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var results []storage.ProviderRecord
	for rows.Next() {
		record, scanErr := scanProvider(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan provider row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider rows: %w", err)
	}
	return results, nil
}

func normalizeProviderRecord(record storage.ProviderRecord) (storage.ProviderRecord, error) {
	record.Name = strings.TrimSpace(record.Name)
	record.PromptTemplate = strings.TrimSpace(record.PromptTemplate)
	record.RulesJSON = strings.TrimSpace(record.RulesJSON)
	if record.Name == "" {
		return storage.ProviderRecord{}, fmt.Errorf("provider name is required")
	}
	if record.RulesJSON == "" {
		record.RulesJSON = "[]"
	}
	if record.CreatedAt.IsZero() {
		return storage.ProviderRecord{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		return storage.ProviderRecord{}, fmt.Errorf("updated_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func scanProvider(scan scanner) (storage.ProviderRecord, error) {
	var record storage.ProviderRecord
	var enabled int
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.Name,
		&enabled,
		&record.PromptTemplate,
		&record.RulesJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.ProviderRecord{}, err
	}
	record.Enabled = enabled != 0
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
