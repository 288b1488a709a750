package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/norelinorth/statements/internal/services/statements/accounting"
	"github.com/norelinorth/statements/internal/services/statements/storage"
)

type fakeLineStore struct {
	lines   []storage.LineRecord
	listErr error
}

func (f *fakeLineStore) ReplaceLines(ctx context.Context, documentID string, lines []storage.LineRecord, now time.Time) error {
	return fmt.Errorf("not implemented")
}

func (f *fakeLineStore) ListLines(ctx context.Context, documentID string) ([]storage.LineRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.lines, nil
}

func (f *fakeLineStore) MarkLinePosted(ctx context.Context, lineID string, ledgerEntryID string, now time.Time) error {
	for i := range f.lines {
		if f.lines[i].ID == lineID {
			f.lines[i].Status = "posted"
			f.lines[i].LedgerEntryID = ledgerEntryID
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeLineStore) MarkLineError(ctx context.Context, lineID string, message string, now time.Time) error {
	for i := range f.lines {
		if f.lines[i].ID == lineID {
			f.lines[i].Status = "error"
			f.lines[i].ErrorMessage = message
			return nil
		}
	}
	return storage.ErrNotFound
}

type fakeAccounting struct {
	accounts  map[string]accounting.AccountInfo
	created   []accounting.EntryInput
	entrySeq  int
	createErr error
}

func (f *fakeAccounting) LookupAccount(ctx context.Context, name string) (accounting.AccountInfo, error) {
	info, ok := f.accounts[name]
	if !ok {
		return accounting.AccountInfo{}, nil
	}
	return info, nil
}

func (f *fakeAccounting) CreateEntry(ctx context.Context, input accounting.EntryInput) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, input)
	f.entrySeq++
	return fmt.Sprintf("JE-%03d", f.entrySeq), nil
}

func activeAccount(orgUnit string) accounting.AccountInfo {
	return accounting.AccountInfo{Exists: true, OrgUnit: orgUnit}
}

func testDoc() storage.DocumentRecord {
	return storage.DocumentRecord{ID: "doc-1", OrgUnit: "Noreli North"}
}

func pendingLine(id string, position int) storage.LineRecord {
	return storage.LineRecord{
		ID:            id,
		DocumentID:    "doc-1",
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

func newTestEngine(t *testing.T, lines *fakeLineStore, accountingService accounting.Service) *Engine {
	t.Helper()
	engine, err := NewEngine(lines, accountingService, nil, func() time.Time {
		return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestSynthesizePostsEligibleLines(t *testing.T) {
	t.Parallel()

	lines := &fakeLineStore{lines: []storage.LineRecord{pendingLine("line-1", 0), pendingLine("line-2", 1)}}
	acct := &fakeAccounting{accounts: map[string]accounting.AccountInfo{
		"Investments": activeAccount("Noreli North"),
		"Cash":        activeAccount("Noreli North"),
	}}
	engine := newTestEngine(t, lines, acct)

	result, err := engine.Synthesize(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if result.Attempted != 2 || result.Created != 2 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.EntryIDs) != 2 || result.EntryIDs[0] != "JE-001" {
		t.Fatalf("entry ids = %v", result.EntryIDs)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("errors = %v", result.Errors)
	}
	for _, line := range lines.lines {
		if line.Status != "posted" || line.LedgerEntryID == "" {
			t.Fatalf("line = %+v", line)
		}
	}
}

func TestSynthesizeIsIdempotentOverPostedLines(t *testing.T) {
	t.Parallel()

	posted := pendingLine("line-1", 0)
	posted.Status = "posted"
	posted.LedgerEntryID = "JE-900"

	lines := &fakeLineStore{lines: []storage.LineRecord{posted}}
	acct := &fakeAccounting{accounts: map[string]accounting.AccountInfo{
		"Investments": activeAccount("Noreli North"),
		"Cash":        activeAccount("Noreli North"),
	}}
	engine := newTestEngine(t, lines, acct)

	result, err := engine.Synthesize(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if result.Attempted != 0 || result.Created != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(acct.created) != 0 {
		t.Fatalf("created entries = %v", acct.created)
	}
}

func TestSynthesizeIsolatesPerLineFailures(t *testing.T) {
	t.Parallel()

	bad := pendingLine("line-1", 0)
	bad.DebitAccount = "Disabled Account"
	good := pendingLine("line-2", 1)

	lines := &fakeLineStore{lines: []storage.LineRecord{bad, good}}
	acct := &fakeAccounting{accounts: map[string]accounting.AccountInfo{
		"Investments":      activeAccount("Noreli North"),
		"Cash":             activeAccount("Noreli North"),
		"Disabled Account": {Exists: true, OrgUnit: "Noreli North", Disabled: true},
	}}
	engine := newTestEngine(t, lines, acct)

	result, err := engine.Synthesize(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if result.Attempted != 2 || result.Created != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v", result.Errors)
	}
	if result.Errors[0].LineID != "line-1" || !strings.Contains(result.Errors[0].Reason, "disabled") {
		t.Fatalf("error = %+v", result.Errors[0])
	}
	if lines.lines[0].Status != "error" {
		t.Fatalf("bad line = %+v", lines.lines[0])
	}
	if lines.lines[1].Status != "posted" {
		t.Fatalf("good line = %+v", lines.lines[1])
	}
}

func TestSynthesizeAccountChecks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		info    accounting.AccountInfo
		wantErr string
	}{
		{"missing", accounting.AccountInfo{}, "does not exist"},
		{"group", accounting.AccountInfo{Exists: true, IsGroup: true, OrgUnit: "Noreli North"}, "group account"},
		{"wrong org unit", accounting.AccountInfo{Exists: true, OrgUnit: "Other Corp"}, "belongs to"},
		{"disabled", accounting.AccountInfo{Exists: true, OrgUnit: "Noreli North", Disabled: true}, "disabled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			lines := &fakeLineStore{lines: []storage.LineRecord{pendingLine("line-1", 0)}}
			acct := &fakeAccounting{accounts: map[string]accounting.AccountInfo{
				"Investments": tc.info,
				"Cash":        activeAccount("Noreli North"),
			}}
			engine := newTestEngine(t, lines, acct)

			result, err := engine.Synthesize(context.Background(), testDoc())
			if err != nil {
				t.Fatalf("synthesize: %v", err)
			}
			if result.Created != 0 || len(result.Errors) != 1 {
				t.Fatalf("result = %+v", result)
			}
			if !strings.Contains(result.Errors[0].Reason, tc.wantErr) {
				t.Fatalf("reason = %q, want containing %q", result.Errors[0].Reason, tc.wantErr)
			}
		})
	}
}

func TestSynthesizeConsistencyGuards(t *testing.T) {
	t.Parallel()

	brokenPosted := pendingLine("line-1", 0)
	brokenPosted.Status = "posted" // no entry id behind it

	orphan := pendingLine("line-2", 1)
	orphan.LedgerEntryID = "JE-500" // entry exists but status write was lost

	lines := &fakeLineStore{lines: []storage.LineRecord{brokenPosted, orphan}}
	acct := &fakeAccounting{accounts: map[string]accounting.AccountInfo{
		"Investments": activeAccount("Noreli North"),
		"Cash":        activeAccount("Noreli North"),
	}}
	engine := newTestEngine(t, lines, acct)

	result, err := engine.Synthesize(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if result.Attempted != 0 || result.Created != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(acct.created) != 0 {
		t.Fatalf("created entries = %v", acct.created)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0].Reason, "no ledger entry") {
		t.Fatalf("errors = %v", result.Errors)
	}
}

func TestSynthesizeCreateEntryFailureMarksLine(t *testing.T) {
	t.Parallel()

	lines := &fakeLineStore{lines: []storage.LineRecord{pendingLine("line-1", 0)}}
	acct := &fakeAccounting{
		accounts: map[string]accounting.AccountInfo{
			"Investments": activeAccount("Noreli North"),
			"Cash":        activeAccount("Noreli North"),
		},
		createErr: fmt.Errorf("validation failed"),
	}
	engine := newTestEngine(t, lines, acct)

	result, err := engine.Synthesize(context.Background(), testDoc())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if result.Attempted != 1 || result.Created != 0 {
		t.Fatalf("result = %+v", result)
	}
	if lines.lines[0].Status != "error" || !strings.Contains(lines.lines[0].ErrorMessage, "validation failed") {
		t.Fatalf("line = %+v", lines.lines[0])
	}
}
