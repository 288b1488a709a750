package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"
)

// pageExtractConcurrency bounds parallel per-page content extraction.
const pageExtractConcurrency = 4

// PDFExtractor extracts preview payloads from PDF statements using pdfcpu.
//
// pdfcpu yields decompressed page content streams rather than layout-aware
// text, and it has no table detection, so Tables is always empty here. That is
// acceptable for the preview boundary: the text-generation prompt carries the
// raw stream text and the model does the structuring.
type PDFExtractor struct {
	// MaxBytes rejects files larger than this size. Zero disables the check.
	MaxBytes int64
}

// Extract validates the PDF and returns its page count and content text.
func (e PDFExtractor) Extract(ctx context.Context, path string) (Payload, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Payload{}, fmt.Errorf("statement file path is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return Payload{}, fmt.Errorf("stat statement file: %w", err)
	}
	if e.MaxBytes > 0 && info.Size() > e.MaxBytes {
		return Payload{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, info.Size(), e.MaxBytes)
	}

	if err := api.ValidateFile(path, nil); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrEmptyDocument, err)
	}

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return Payload{}, fmt.Errorf("count pages: %w", err)
	}
	if pageCount == 0 {
		return Payload{}, ErrEmptyDocument
	}

	text, err := extractContentText(ctx, path, pageCount)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		Text:      text,
		Tables:    nil,
		PageCount: pageCount,
	}, nil
}

// extractContentText pulls page content streams in parallel and joins them in
// page order.
func extractContentText(ctx context.Context, path string, pageCount int) (string, error) {
	workDir, err := os.MkdirTemp("", "statements-extract-*")
	if err != nil {
		return "", fmt.Errorf("create extract work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pages := make([]string, pageCount)
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(pageExtractConcurrency)

	for i := 0; i < pageCount; i++ {
		page := i + 1
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pageDir := filepath.Join(workDir, strconv.Itoa(page))
			if err := os.MkdirAll(pageDir, 0o755); err != nil {
				return fmt.Errorf("create page dir %d: %w", page, err)
			}
			if err := api.ExtractContentFile(path, pageDir, []string{strconv.Itoa(page)}, nil); err != nil {
				return fmt.Errorf("extract page %d content: %w", page, err)
			}
			content, err := readPageContent(pageDir)
			if err != nil {
				return fmt.Errorf("read page %d content: %w", page, err)
			}
			pages[page-1] = content
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return "", err
	}

	var builder strings.Builder
	for _, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		builder.WriteString(page)
		builder.WriteString("\n\n")
	}
	return builder.String(), nil
}

func readPageContent(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return "", err
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n"), nil
}
