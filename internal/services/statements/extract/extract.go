// Package extract defines the statement-file extraction boundary.
//
// The pipeline only depends on the Extractor interface and the Payload shape;
// the PDF implementation lives in pdf.go. Extraction quality is a collaborator
// concern: the pipeline treats the payload as an opaque preview blob.
package extract

import (
	"context"
	"errors"
)

var (
	// ErrEmptyDocument indicates the file has no extractable pages.
	ErrEmptyDocument = errors.New("document is empty or corrupted")
	// ErrTooLarge indicates the file exceeds the configured size limit.
	ErrTooLarge = errors.New("document exceeds the size limit")
)

// Table is one extracted grid of cells, rows first.
type Table [][]string

// Payload is the structured result of extracting one statement file.
type Payload struct {
	Text      string  `json:"text"`
	Tables    []Table `json:"tables"`
	PageCount int     `json:"page_count"`
}

// Extractor turns a statement file into a structured payload.
type Extractor interface {
	Extract(ctx context.Context, path string) (Payload, error)
}
