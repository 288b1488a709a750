package document

import (
	"errors"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"draft", StatusDraft, false},
		{"Processing", StatusProcessing, false},
		{"  completed  ", StatusCompleted, false},
		{"FAILED", StatusFailed, false},
		{"archived", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseStatus(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseStatus(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStatusLockable(t *testing.T) {
	t.Parallel()

	lockable := []Status{StatusDraft, StatusCompleted, StatusFailed}
	for _, s := range lockable {
		if !s.Lockable() {
			t.Fatalf("expected %s to be lockable", s)
		}
	}
	if StatusProcessing.Lockable() {
		t.Fatal("processing must not be lockable")
	}
}

func TestCreateNormalizesInput(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC) }
	doc, err := Create(CreateInput{
		OrgUnit:  "  Noreli North  ",
		Provider: "Interactive Brokers",
		Period:   " 2026-02 ",
		FilePath: "/data/statements/ib-feb.pdf",
	}, now)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected generated id")
	}
	if doc.Status != StatusDraft {
		t.Fatalf("status = %q, want draft", doc.Status)
	}
	if doc.OrgUnit != "Noreli North" {
		t.Fatalf("org unit = %q", doc.OrgUnit)
	}
	if doc.Period != "2026-02" {
		t.Fatalf("period = %q", doc.Period)
	}
	if !doc.ImportDate.Equal(now()) {
		t.Fatalf("import date = %v", doc.ImportDate)
	}
	if doc.HasPreview() {
		t.Fatal("new document must not carry a preview")
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{"missing org unit", CreateInput{Provider: "IB", FilePath: "f.pdf"}, ErrEmptyOrgUnit},
		{"missing provider", CreateInput{OrgUnit: "NN", FilePath: "f.pdf"}, ErrEmptyProvider},
		{"missing file", CreateInput{OrgUnit: "NN", Provider: "IB"}, ErrEmptyFilePath},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Create(tc.input, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
