package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := (PDFExtractor{}).Extract(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestExtractMissingFile(t *testing.T) {
	t.Parallel()

	_, err := (PDFExtractor{}).Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractRejectsOversizedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "big.pdf")
	if err := os.WriteFile(path, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := (PDFExtractor{MaxBytes: 1024}).Extract(context.Background(), path)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestExtractRejectsCorruptedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := (PDFExtractor{}).Extract(context.Background(), path)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}
