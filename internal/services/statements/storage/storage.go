// Package storage defines persistence contracts for the statements service.
//
// Records carry amounts as decimal text and dates as ISO strings; the app
// layer owns conversion to domain types. Status transitions with concurrency
// semantics (AcquireProcessing, FinishProcessing) are part of the contract,
// not an implementation detail: stores must make them atomic.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
	// ErrAlreadyProcessing indicates another parse run holds the document.
	ErrAlreadyProcessing = errors.New("document is already processing")
	// ErrNotProcessing indicates a finish or reset was attempted on a
	// document that is not in the processing state.
	ErrNotProcessing = errors.New("document is not processing")
)

// DocumentRecord stores one statement document row.
type DocumentRecord struct {
	ID          string
	OrgUnit     string
	Provider    string
	Period      string
	FilePath    string
	Status      string
	PreviewJSON string
	LinesFound  int
	ErrorLog    string
	ImportDate  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LineRecord stores one transaction line row. Date is ISO (YYYY-MM-DD);
// amounts are decimal text so no precision is lost in the round trip.
type LineRecord struct {
	ID            string
	DocumentID    string
	Position      int
	Date          string
	Description   string
	Currency      string
	DebitAccount  string
	DebitAmount   string
	CreditAccount string
	CreditAmount  string
	Status        string
	LedgerEntryID string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProviderRecord stores one statement provider row. Rules are kept as a JSON
// blob; the provider domain package owns their shape.
type ProviderRecord struct {
	Name           string
	Enabled        bool
	PromptTemplate string
	RulesJSON      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DocumentStore persists statement documents and their status transitions.
type DocumentStore interface {
	PutDocument(ctx context.Context, record DocumentRecord) error
	GetDocument(ctx context.Context, id string) (DocumentRecord, error)
	// SavePreview stores the extraction payload on the document.
	SavePreview(ctx context.Context, id string, previewJSON string, now time.Time) error
	// AcquireProcessing atomically moves the document into processing. It
	// fails with ErrAlreadyProcessing when another run holds it, and with
	// ErrNotFound when the document does not exist.
	AcquireProcessing(ctx context.Context, id string, now time.Time) error
	// FinishProcessing releases the lock into a terminal status, recording
	// the line count and error log of the run. Fails with ErrNotProcessing
	// when the document is not currently held.
	FinishProcessing(ctx context.Context, id string, status string, linesFound int, errorLog string, now time.Time) error
}

// LineStore persists transaction lines.
type LineStore interface {
	// ReplaceLines replaces the document's unposted lines with a new set.
	// Lines that are posted, or that reference a ledger entry, survive the
	// replacement untouched.
	ReplaceLines(ctx context.Context, documentID string, lines []LineRecord, now time.Time) error
	// ListLines returns the document's lines in position order.
	ListLines(ctx context.Context, documentID string) ([]LineRecord, error)
	MarkLinePosted(ctx context.Context, lineID string, ledgerEntryID string, now time.Time) error
	MarkLineError(ctx context.Context, lineID string, message string, now time.Time) error
}

// ProviderStore persists statement providers.
type ProviderStore interface {
	PutProvider(ctx context.Context, record ProviderRecord) error
	GetProvider(ctx context.Context, name string) (ProviderRecord, error)
	ListProviders(ctx context.Context) ([]ProviderRecord, error)
}
