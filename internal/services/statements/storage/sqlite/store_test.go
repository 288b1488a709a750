package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/norelinorth/statements/internal/services/statements/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "statements.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testDocument(id string) storage.DocumentRecord {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	return storage.DocumentRecord{
		ID:         id,
		OrgUnit:    "Noreli North",
		Provider:   "Interactive Brokers",
		Period:     "2026-02",
		FilePath:   "/data/statements/ib-feb.pdf",
		Status:     "draft",
		ImportDate: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func testLine(id, documentID string, position int) storage.LineRecord {
	return storage.LineRecord{
		ID:            id,
		DocumentID:    documentID,
		Position:      position,
		Date:          "2025-01-15",
		Description:   "Buy AAPL",
		Currency:      "USD",
		DebitAccount:  "Investments",
		DebitAmount:   "1000.00",
		CreditAccount: "Cash",
		CreditAmount:  "1000.00",
		Status:        "pending",
	}
}

func TestPutGetDocument(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	record := testDocument("doc-1")
	if err := store.PutDocument(ctx, record); err != nil {
		t.Fatalf("put document: %v", err)
	}

	got, err := store.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.OrgUnit != record.OrgUnit || got.Status != "draft" {
		t.Fatalf("document = %+v", got)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, record.CreatedAt)
	}

	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSavePreview(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutDocument(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("put document: %v", err)
	}
	if err := store.SavePreview(ctx, "doc-1", `{"text":"hello","page_count":1}`, now); err != nil {
		t.Fatalf("save preview: %v", err)
	}

	got, err := store.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.PreviewJSON == "" {
		t.Fatal("preview not stored")
	}

	if err := store.SavePreview(ctx, "missing", `{}`, now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAcquireProcessing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutDocument(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("put document: %v", err)
	}

	if err := store.AcquireProcessing(ctx, "doc-1", now); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	got, err := store.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Status != "processing" {
		t.Fatalf("status = %q, want processing", got.Status)
	}

	if err := store.AcquireProcessing(ctx, "doc-1", now); !errors.Is(err, storage.ErrAlreadyProcessing) {
		t.Fatalf("err = %v, want ErrAlreadyProcessing", err)
	}
	if err := store.AcquireProcessing(ctx, "missing", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAcquireProcessingReacquireAfterFinish(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutDocument(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("put document: %v", err)
	}
	if err := store.AcquireProcessing(ctx, "doc-1", now); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := store.FinishProcessing(ctx, "doc-1", "failed", 0, "model response invalid", now); err != nil {
		t.Fatalf("finish: %v", err)
	}

	if err := store.AcquireProcessing(ctx, "doc-1", now); err != nil {
		t.Fatalf("re-acquire after failure: %v", err)
	}
}

func TestConcurrentAcquireProcessing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutDocument(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("put document: %v", err)
	}

	const attempts = 8
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = store.AcquireProcessing(ctx, "doc-1", now)
		}(i)
	}
	wg.Wait()

	var acquired, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			acquired++
		case errors.Is(err, storage.ErrAlreadyProcessing):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if acquired != 1 {
		t.Fatalf("acquired = %d, want exactly 1", acquired)
	}
	if rejected != attempts-1 {
		t.Fatalf("rejected = %d, want %d", rejected, attempts-1)
	}
}

func TestFinishProcessing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutDocument(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("put document: %v", err)
	}

	if err := store.FinishProcessing(ctx, "doc-1", "completed", 3, "", now); !errors.Is(err, storage.ErrNotProcessing) {
		t.Fatalf("err = %v, want ErrNotProcessing", err)
	}

	if err := store.AcquireProcessing(ctx, "doc-1", now); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := store.FinishProcessing(ctx, "doc-1", "draft", 0, "", now); err == nil {
		t.Fatal("expected rejection of non-terminal finish status")
	}
	if err := store.FinishProcessing(ctx, "doc-1", "completed", 3, "", now); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := store.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Status != "completed" || got.LinesFound != 3 {
		t.Fatalf("document = %+v", got)
	}
}

func TestReplaceLinesPreservesPostedLines(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutDocument(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("put document: %v", err)
	}

	first := []storage.LineRecord{
		testLine("line-1", "doc-1", 0),
		testLine("line-2", "doc-1", 1),
	}
	if err := store.ReplaceLines(ctx, "doc-1", first, now); err != nil {
		t.Fatalf("replace lines: %v", err)
	}
	if err := store.MarkLinePosted(ctx, "line-1", "JE-001", now); err != nil {
		t.Fatalf("mark posted: %v", err)
	}

	second := []storage.LineRecord{
		testLine("line-3", "doc-1", 0),
	}
	if err := store.ReplaceLines(ctx, "doc-1", second, now); err != nil {
		t.Fatalf("replace lines again: %v", err)
	}

	lines, err := store.ListLines(ctx, "doc-1")
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2 (posted survivor + new line)", len(lines))
	}
	byID := make(map[string]storage.LineRecord, len(lines))
	for _, line := range lines {
		byID[line.ID] = line
	}
	if _, ok := byID["line-2"]; ok {
		t.Fatal("pending line-2 should have been replaced")
	}
	posted, ok := byID["line-1"]
	if !ok {
		t.Fatal("posted line-1 must survive replacement")
	}
	if posted.Status != "posted" || posted.LedgerEntryID != "JE-001" {
		t.Fatalf("posted line = %+v", posted)
	}
	if _, ok := byID["line-3"]; !ok {
		t.Fatal("new line-3 missing")
	}
}

func TestMarkLineError(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutDocument(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("put document: %v", err)
	}
	if err := store.ReplaceLines(ctx, "doc-1", []storage.LineRecord{testLine("line-1", "doc-1", 0)}, now); err != nil {
		t.Fatalf("replace lines: %v", err)
	}

	if err := store.MarkLineError(ctx, "line-1", "account disabled", now); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	lines, err := store.ListLines(ctx, "doc-1")
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if lines[0].Status != "error" || lines[0].ErrorMessage != "account disabled" {
		t.Fatalf("line = %+v", lines[0])
	}

	if err := store.MarkLineError(ctx, "missing", "x", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestProvidersRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	record := storage.ProviderRecord{
		Name:           "Interactive Brokers",
		Enabled:        true,
		PromptTemplate: "Extract transactions from {text}",
		RulesJSON:      `[{"pattern":"dividend","debit_account":"Cash","credit_account":"Dividend Income","enabled":true}]`,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.PutProvider(ctx, record); err != nil {
		t.Fatalf("put provider: %v", err)
	}
	if err := store.PutProvider(ctx, storage.ProviderRecord{Name: "Comdirect", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put second provider: %v", err)
	}

	got, err := store.GetProvider(ctx, "Interactive Brokers")
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	if !got.Enabled || got.PromptTemplate != record.PromptTemplate {
		t.Fatalf("provider = %+v", got)
	}

	all, err := store.ListProviders(ctx)
	if err != nil {
		t.Fatalf("list providers: %v", err)
	}
	if len(all) != 2 || all[0].Name != "Comdirect" {
		t.Fatalf("providers = %+v", all)
	}

	if _, err := store.GetProvider(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
