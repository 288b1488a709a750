package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/norelinorth/statements/internal/services/statements/storage"
	"github.com/norelinorth/statements/internal/services/statements/transaction"
)

const lineColumns = "id, document_id, position, date, description, currency, debit_account, debit_amount, credit_account, credit_amount, status, ledger_entry_id, error_message, created_at, updated_at"

// ReplaceLines swaps the document's unposted lines for a new set in one
// transaction. Rows that are posted, or that carry a ledger entry id, are
// never touched: re-validation must not orphan synthesized entries.
func (s *Store) ReplaceLines(ctx context.Context, documentID string, lines []storage.LineRecord, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return fmt.Errorf("document id is required")
	}

	normalized := make([]storage.LineRecord, 0, len(lines))
	for _, line := range lines {
		record, err := normalizeLineRecord(line)
		if err != nil {
			return err
		}
		if record.DocumentID != documentID {
			return fmt.Errorf("line %s belongs to document %s, not %s", record.ID, record.DocumentID, documentID)
		}
		normalized = append(normalized, record)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace lines: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback replace lines: %v", cause, rollbackErr)
		}
		return cause
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM transaction_lines
WHERE document_id = ?
  AND ledger_entry_id = ''
  AND status IN (?, ?, ?)
`, documentID, transaction.StatusPending, transaction.StatusValidated, transaction.StatusError); err != nil {
		return rollbackWith(fmt.Errorf("delete unposted lines: %w", err))
	}

	for _, record := range normalized {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO transaction_lines (`+lineColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			record.ID,
			record.DocumentID,
			record.Position,
			record.Date,
			record.Description,
			record.Currency,
			record.DebitAccount,
			record.DebitAmount,
			record.CreditAccount,
			record.CreditAmount,
			record.Status,
			record.LedgerEntryID,
			record.ErrorMessage,
			toMillis(now),
			toMillis(now),
		); err != nil {
			if isUniqueConstraintError(err) {
				return rollbackWith(storage.ErrConflict)
			}
			return rollbackWith(fmt.Errorf("insert line %s: %w", record.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace lines: %w", err)
	}
	return nil
}

// ListLines returns the document's lines in position order.
func (s *Store) ListLines(ctx context.Context, documentID string) ([]storage.LineRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, fmt.Errorf("document id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+lineColumns+`
FROM transaction_lines
WHERE document_id = ?
ORDER BY position ASC, created_at ASC, id ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()

	var results []storage.LineRecord
	for rows.Next() {
		record, scanErr := scanLine(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan line row: %w", scanErr)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line rows: %w", err)
	}
	return results, nil
}

// MarkLinePosted records a created ledger entry behind one line.
func (s *Store) MarkLinePosted(ctx context.Context, lineID string, ledgerEntryID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	lineID = strings.TrimSpace(lineID)
	ledgerEntryID = strings.TrimSpace(ledgerEntryID)
	if lineID == "" {
		return fmt.Errorf("line id is required")
	}
	if ledgerEntryID == "" {
		return fmt.Errorf("ledger entry id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE transaction_lines
SET status = ?, ledger_entry_id = ?, error_message = '', updated_at = ?
WHERE id = ?
`, transaction.StatusPosted, ledgerEntryID, toMillis(now), lineID)
	if err != nil {
		return fmt.Errorf("mark line posted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark line posted rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkLineError records a synthesis failure on one line.
func (s *Store) MarkLineError(ctx context.Context, lineID string, message string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return fmt.Errorf("line id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE transaction_lines
SET status = ?, error_message = ?, updated_at = ?
WHERE id = ?
`, transaction.StatusError, strings.TrimSpace(message), toMillis(now), lineID)
	if err != nil {
		return fmt.Errorf("mark line error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark line error rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func normalizeLineRecord(record storage.LineRecord) (storage.LineRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.DocumentID = strings.TrimSpace(record.DocumentID)
	record.Date = strings.TrimSpace(record.Date)
	record.Description = strings.TrimSpace(record.Description)
	record.Currency = strings.TrimSpace(record.Currency)
	record.DebitAccount = strings.TrimSpace(record.DebitAccount)
	record.DebitAmount = strings.TrimSpace(record.DebitAmount)
	record.CreditAccount = strings.TrimSpace(record.CreditAccount)
	record.CreditAmount = strings.TrimSpace(record.CreditAmount)
	record.LedgerEntryID = strings.TrimSpace(record.LedgerEntryID)
	record.ErrorMessage = strings.TrimSpace(record.ErrorMessage)
	if record.ID == "" {
		return storage.LineRecord{}, fmt.Errorf("line id is required")
	}
	if record.DocumentID == "" {
		return storage.LineRecord{}, fmt.Errorf("document id is required")
	}
	if record.Position < 0 {
		return storage.LineRecord{}, fmt.Errorf("position must be non-negative")
	}
	if record.Date == "" {
		return storage.LineRecord{}, fmt.Errorf("date is required")
	}
	if record.Description == "" {
		return storage.LineRecord{}, fmt.Errorf("description is required")
	}
	status, err := transaction.ParseStatus(record.Status)
	if err != nil {
		return storage.LineRecord{}, err
	}
	record.Status = string(status)
	return record, nil
}

func scanLine(scan scanner) (storage.LineRecord, error) {
	var record storage.LineRecord
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.DocumentID,
		&record.Position,
		&record.Date,
		&record.Description,
		&record.Currency,
		&record.DebitAccount,
		&record.DebitAmount,
		&record.CreditAccount,
		&record.CreditAmount,
		&record.Status,
		&record.LedgerEntryID,
		&record.ErrorMessage,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.LineRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
