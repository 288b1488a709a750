// Package recovery parses model output into transaction candidates,
// tolerating responses cut off mid-record.
//
// The parser never guesses field values. Its only repair is structural: when
// the input matches the truncation signature (a JSON array cut inside an open
// record that follows a complete one), it drops the open record, re-closes
// the array, and retries exactly once. Anything else fails loudly.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// snippetRadius is how many characters around the failure offset are carried
// into a ParseError for diagnostics.
const snippetRadius = 20

// Candidate is one untyped record produced by the model. Field types are not
// trusted here; the transaction validator owns all semantic checks.
type Candidate map[string]any

// Result is the outcome of a successful parse.
type Result struct {
	// Candidates holds the structurally complete records, in input order.
	Candidates []Candidate
	// Recovered reports whether a truncated tail record was dropped. Callers
	// must surface a warning when set: records may be missing.
	Recovered bool
	// TotalAttempted counts records the model appears to have emitted,
	// including a dropped truncated one.
	TotalAttempted int
}

// ParseError reports an unrecoverable parse failure with its location.
type ParseError struct {
	Offset  int64
	Snippet string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("parse model response: %v", e.Cause)
	}
	return fmt.Sprintf("parse model response at offset %d near %q: %v", e.Offset, e.Snippet, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Parse turns raw model text into transaction candidates.
//
// Empty input yields an empty result, not an error. Valid JSON that is not an
// array is a schema violation and fails.
func Parse(raw string) (Result, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return Result{}, nil
	}

	candidates, err := decodeCandidates(text)
	if err == nil {
		return Result{Candidates: candidates, TotalAttempted: len(candidates)}, nil
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return Result{}, newParseError(text, 0, err)
	}

	repaired, ok := repairTruncated(text, int(syntaxErr.Offset))
	if !ok {
		return Result{}, newParseError(text, syntaxErr.Offset, err)
	}

	candidates, retryErr := decodeCandidates(repaired)
	if retryErr != nil {
		// Report the original failure; the repair attempt is an internal
		// detail.
		return Result{}, newParseError(text, syntaxErr.Offset, err)
	}

	return Result{
		Candidates: candidates,
		Recovered:  true,
		// The dropped tail record counts as attempted.
		TotalAttempted: len(candidates) + 1,
	}, nil
}

// decodeCandidates runs the strict parse. UseNumber keeps amounts as
// json.Number so the validator can convert them without float rounding.
func decodeCandidates(text string) ([]Candidate, error) {
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()

	var candidates []Candidate
	if err := decoder.Decode(&candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// repairTruncated checks the truncation signature and, when it matches,
// returns the input cut back to its last complete record with the array
// re-closed.
//
// The signature: the input is an unterminated array whose text after the last
// complete record is either empty or the opening of another record. A tail
// containing "]" means the array was closed and the failure lies elsewhere.
func repairTruncated(text string, offset int) (string, bool) {
	if !strings.HasPrefix(text, "[") {
		return "", false
	}

	limit := offset
	if limit <= 0 || limit > len(text) {
		limit = len(text)
	}
	last := strings.LastIndex(text[:limit], "}")
	if last < 0 {
		last = strings.LastIndex(text, "}")
	}
	if last < 0 {
		return "", false
	}

	tail := strings.TrimSpace(text[last+1:])
	if strings.Contains(tail, "]") {
		return "", false
	}
	if tail != "" && !strings.HasPrefix(tail, ",") {
		return "", false
	}

	return text[:last+1] + "]", true
}

// stripCodeFence removes surrounding Markdown code-fence lines, which models
// frequently wrap JSON output in.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func newParseError(text string, offset int64, cause error) *ParseError {
	return &ParseError{
		Offset:  offset,
		Snippet: snippetAround(text, offset),
		Cause:   cause,
	}
}

func snippetAround(text string, offset int64) string {
	if len(text) == 0 {
		return ""
	}
	pos := int(offset)
	if pos < 0 {
		pos = 0
	}
	if pos > len(text) {
		pos = len(text)
	}
	start := pos - snippetRadius
	if start < 0 {
		start = 0
	}
	end := pos + snippetRadius
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
