// Package document models one brokerage statement under processing.
//
// A document is created Draft, moves to Processing only through the storage
// layer's atomic conditional update, and settles back to Completed or Failed
// when a parse run finishes. Processing is the only exclusive state.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a statement document.
type Status string

const (
	// StatusDraft marks a freshly created document, nothing processed yet.
	StatusDraft Status = "draft"
	// StatusProcessing marks a document whose parse run is in flight. At most
	// one holder may have a document in this state.
	StatusProcessing Status = "processing"
	// StatusCompleted marks a document whose last parse run succeeded.
	StatusCompleted Status = "completed"
	// StatusFailed marks a document whose last parse run failed.
	StatusFailed Status = "failed"
)

var (
	// ErrEmptyOrgUnit indicates the owning organizational unit is required.
	ErrEmptyOrgUnit = errors.New("organizational unit is required")
	// ErrEmptyProvider indicates a statement provider reference is required.
	ErrEmptyProvider = errors.New("statement provider is required")
	// ErrEmptyFilePath indicates the statement file path is required.
	ErrEmptyFilePath = errors.New("statement file path is required")
)

// ParseStatus converts a stored string into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusDraft, StatusProcessing, StatusCompleted, StatusFailed:
		return status, nil
	}
	return "", fmt.Errorf("unknown document status %q", value)
}

// Lockable reports whether a parse run may begin from this status. The actual
// transition must still go through the storage conditional update; this only
// exists for presentation and early rejection.
func (s Status) Lockable() bool {
	switch s {
	case StatusDraft, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status represents a finished parse run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is one statement submitted for processing.
type Document struct {
	ID         string
	OrgUnit    string
	Provider   string
	Period     string
	FilePath   string
	Status     Status
	Preview    json.RawMessage // extracted text+tables payload, opaque here
	LinesFound int
	ErrorLog   string
	ImportDate time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasPreview reports whether extraction has stored a payload on the document.
func (d Document) HasPreview() bool {
	return len(d.Preview) > 0
}

// CreateInput captures caller-provided fields for creating a document.
type CreateInput struct {
	OrgUnit  string
	Provider string
	Period   string
	FilePath string
}

// NormalizeCreateInput validates and canonicalizes create input.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.OrgUnit = strings.TrimSpace(input.OrgUnit)
	if input.OrgUnit == "" {
		return CreateInput{}, ErrEmptyOrgUnit
	}

	input.Provider = strings.TrimSpace(input.Provider)
	if input.Provider == "" {
		return CreateInput{}, ErrEmptyProvider
	}

	input.FilePath = strings.TrimSpace(input.FilePath)
	if input.FilePath == "" {
		return CreateInput{}, ErrEmptyFilePath
	}

	input.Period = strings.TrimSpace(input.Period)
	return input, nil
}

// Create constructs a normalized Draft document with a generated identifier.
func Create(input CreateInput, now func() time.Time) (Document, error) {
	if now == nil {
		now = time.Now
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Document{}, err
	}

	createdAt := now().UTC()
	return Document{
		ID:         uuid.NewString(),
		OrgUnit:    normalized.OrgUnit,
		Provider:   normalized.Provider,
		Period:     normalized.Period,
		FilePath:   normalized.FilePath,
		Status:     StatusDraft,
		ImportDate: createdAt,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}, nil
}
