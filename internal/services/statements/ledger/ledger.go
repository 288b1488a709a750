// Package ledger turns validated transaction lines into ledger entries.
//
// Synthesis is deliberately per-line: one bad line never blocks its siblings,
// and a re-run over already-posted lines creates nothing. The engine trusts
// nothing it did not check this run; accounts and amounts are re-validated
// even though the transaction validator saw them earlier.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/norelinorth/statements/internal/services/statements/accounting"
	"github.com/norelinorth/statements/internal/services/statements/storage"
	"github.com/norelinorth/statements/internal/services/statements/transaction"
)

// balanceTolerance mirrors the validator's sub-cent allowance.
var balanceTolerance = decimal.RequireFromString("0.01")

// LineError reports one line that could not be synthesized.
type LineError struct {
	LineID   string
	Position int
	Reason   string
}

// Result summarizes one synthesis run.
type Result struct {
	// Attempted counts lines the engine actually tried to post this run.
	// Already-posted and orphaned lines are skipped, not attempted.
	Attempted int
	// Created counts ledger entries created this run.
	Created int
	// EntryIDs holds the identifiers of entries created this run, in line
	// order.
	EntryIDs []string
	// Errors holds per-line failures. The run itself still succeeds.
	Errors []LineError
}

// Engine synthesizes ledger entries for one document's lines.
type Engine struct {
	lines      storage.LineStore
	accounting accounting.Service
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine builds a synthesis engine.
func NewEngine(lines storage.LineStore, accountingService accounting.Service, logger *zap.Logger, now func() time.Time) (*Engine, error) {
	if lines == nil {
		return nil, fmt.Errorf("line store is required")
	}
	if accountingService == nil {
		return nil, fmt.Errorf("accounting service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{lines: lines, accounting: accountingService, logger: logger, now: now}, nil
}

// Synthesize processes the document's lines in order and creates one ledger
// entry per eligible line. It returns an error only when the run itself
// cannot proceed; individual line failures land in the result.
func (e *Engine) Synthesize(ctx context.Context, doc storage.DocumentRecord) (Result, error) {
	lines, err := e.lines.ListLines(ctx, doc.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list document lines: %w", err)
	}

	var result Result
	for _, line := range lines {
		status, err := transaction.ParseStatus(line.Status)
		if err != nil {
			e.logger.Error("line carries unknown status",
				zap.String("document_id", doc.ID),
				zap.String("line_id", line.ID),
				zap.String("status", line.Status))
			result.Errors = append(result.Errors, LineError{
				LineID:   line.ID,
				Position: line.Position,
				Reason:   fmt.Sprintf("unknown line status %q", line.Status),
			})
			continue
		}

		switch status {
		case transaction.StatusPosted:
			if line.LedgerEntryID == "" {
				// A posted line with no entry behind it means state was
				// mutated outside the pipeline. Never guess an entry id.
				e.logger.Error("data integrity: posted line has no ledger entry",
					zap.String("document_id", doc.ID),
					zap.String("line_id", line.ID))
				result.Errors = append(result.Errors, LineError{
					LineID:   line.ID,
					Position: line.Position,
					Reason:   "posted line has no ledger entry reference",
				})
			}
			continue
		case transaction.StatusError:
			continue
		case transaction.StatusPending, transaction.StatusValidated:
			if line.LedgerEntryID != "" {
				// Orphan: an entry exists but the status write was lost.
				// Posting again would duplicate the entry.
				e.logger.Warn("skipping orphaned line with existing ledger entry",
					zap.String("document_id", doc.ID),
					zap.String("line_id", line.ID),
					zap.String("ledger_entry_id", line.LedgerEntryID))
				continue
			}
		}

		result.Attempted++
		if reason := e.postLine(ctx, doc, line, &result); reason != "" {
			result.Errors = append(result.Errors, LineError{
				LineID:   line.ID,
				Position: line.Position,
				Reason:   reason,
			})
			if err := e.lines.MarkLineError(ctx, line.ID, reason, e.now()); err != nil {
				e.logger.Error("record line failure",
					zap.String("line_id", line.ID),
					zap.Error(err))
			}
		}
	}

	return result, nil
}

// postLine validates and posts one line. It returns a rejection reason, or ""
// when the entry was created.
func (e *Engine) postLine(ctx context.Context, doc storage.DocumentRecord, line storage.LineRecord, result *Result) string {
	for _, account := range []string{line.DebitAccount, line.CreditAccount} {
		if reason := e.checkAccount(ctx, account, doc.OrgUnit); reason != "" {
			return reason
		}
	}

	debit, err := decimal.NewFromString(line.DebitAmount)
	if err != nil {
		return fmt.Sprintf("debit amount %q is not numeric", line.DebitAmount)
	}
	credit, err := decimal.NewFromString(line.CreditAmount)
	if err != nil {
		return fmt.Sprintf("credit amount %q is not numeric", line.CreditAmount)
	}
	if !debit.IsPositive() || !credit.IsPositive() {
		return "amounts must be strictly positive"
	}
	if debit.Sub(credit).Abs().GreaterThan(balanceTolerance) {
		return fmt.Sprintf("unbalanced: debit %s vs credit %s", debit, credit)
	}

	entryID, err := e.accounting.CreateEntry(ctx, accounting.EntryInput{
		OrgUnit:       doc.OrgUnit,
		PostingDate:   line.Date,
		Description:   line.Description,
		Currency:      line.Currency,
		DebitAccount:  line.DebitAccount,
		DebitAmount:   debit,
		CreditAccount: line.CreditAccount,
		CreditAmount:  credit,
	})
	if err != nil {
		return fmt.Sprintf("create ledger entry: %v", err)
	}

	if err := e.lines.MarkLinePosted(ctx, line.ID, entryID, e.now()); err != nil {
		// The entry exists; losing the status write must not look like a
		// posting failure, or a re-run would duplicate it.
		e.logger.Error("mark line posted",
			zap.String("line_id", line.ID),
			zap.String("ledger_entry_id", entryID),
			zap.Error(err))
	}

	result.Created++
	result.EntryIDs = append(result.EntryIDs, entryID)
	return ""
}

func (e *Engine) checkAccount(ctx context.Context, name string, orgUnit string) string {
	info, err := e.accounting.LookupAccount(ctx, name)
	if err != nil {
		return fmt.Sprintf("lookup account %q: %v", name, err)
	}
	if !info.Exists {
		return fmt.Sprintf("account %q does not exist", name)
	}
	if info.IsGroup {
		return fmt.Sprintf("account %q is a group account", name)
	}
	if info.OrgUnit != orgUnit {
		return fmt.Sprintf("account %q belongs to %q, not %q", name, info.OrgUnit, orgUnit)
	}
	if info.Disabled {
		return fmt.Sprintf("account %q is disabled", name)
	}
	return ""
}
