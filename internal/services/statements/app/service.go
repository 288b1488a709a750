// Package app orchestrates the statement processing pipeline.
//
// The service owns sequencing and the processing lock discipline; all real
// work is delegated: extraction, text generation, parsing, validation, and
// synthesis each live in their own package.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformerrors "github.com/norelinorth/statements/internal/platform/errors"
	"github.com/norelinorth/statements/internal/services/statements/accounting"
	"github.com/norelinorth/statements/internal/services/statements/document"
	"github.com/norelinorth/statements/internal/services/statements/extract"
	"github.com/norelinorth/statements/internal/services/statements/ledger"
	"github.com/norelinorth/statements/internal/services/statements/prompt"
	"github.com/norelinorth/statements/internal/services/statements/provider"
	"github.com/norelinorth/statements/internal/services/statements/recovery"
	"github.com/norelinorth/statements/internal/services/statements/storage"
	"github.com/norelinorth/statements/internal/services/statements/textgen"
	"github.com/norelinorth/statements/internal/services/statements/transaction"
)

const (
	// previewTextLimit caps the text carried back in extraction summaries.
	previewTextLimit = 1000
	// previewTableLimit caps the tables carried back in extraction summaries.
	previewTableLimit = 3
	// resetErrorLog is the error log written by an operator reset.
	resetErrorLog = "manually reset by operator"
)

// Store bundles the persistence interfaces the service needs.
type Store interface {
	storage.DocumentStore
	storage.LineStore
	storage.ProviderStore
}

// Service orchestrates statement ingestion.
type Service struct {
	store           Store
	extractor       extract.Extractor
	completer       textgen.Completer
	accounting      accounting.Service
	logger          *zap.Logger
	now             func() time.Time
	completeTimeout time.Duration
}

// Options carries optional collaborators and knobs for NewService.
type Options struct {
	Extractor  extract.Extractor
	Completer  textgen.Completer
	Accounting accounting.Service
	Logger     *zap.Logger
	Now        func() time.Time
	// CompleteTimeout bounds one text-generation call. Zero means no extra
	// deadline beyond the caller's context.
	CompleteTimeout time.Duration
}

// NewService builds the statements service. Collaborators may be nil; the
// operations needing them fail with a configuration error instead.
func NewService(store Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:           store,
		extractor:       opts.Extractor,
		completer:       opts.Completer,
		accounting:      opts.Accounting,
		logger:          logger,
		now:             now,
		completeTimeout: opts.CompleteTimeout,
	}, nil
}

// DocumentDetail pairs a document with its transaction lines.
type DocumentDetail struct {
	Document document.Document
	Lines    []transaction.Line
}

// CreateDocument registers a new statement document in draft state.
func (s *Service) CreateDocument(ctx context.Context, input document.CreateInput) (document.Document, error) {
	doc, err := document.Create(input, s.now)
	if err != nil {
		return document.Document{}, platformerrors.Wrap(platformerrors.CodeDocumentFileMissing, err.Error(), err)
	}
	if err := s.store.PutDocument(ctx, documentToRecord(doc)); err != nil {
		return document.Document{}, s.storageError("create document", err)
	}
	return doc, nil
}

// GetDocument loads one document and its lines.
func (s *Service) GetDocument(ctx context.Context, id string) (DocumentDetail, error) {
	record, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return DocumentDetail{}, s.documentError(err)
	}
	doc, err := recordToDocument(record)
	if err != nil {
		return DocumentDetail{}, s.storageError("decode document", err)
	}

	lineRecords, err := s.store.ListLines(ctx, id)
	if err != nil {
		return DocumentDetail{}, s.storageError("list lines", err)
	}
	lines := make([]transaction.Line, 0, len(lineRecords))
	for _, lineRecord := range lineRecords {
		line, convertErr := recordToLine(lineRecord)
		if convertErr != nil {
			return DocumentDetail{}, s.storageError("decode line", convertErr)
		}
		lines = append(lines, line)
	}
	return DocumentDetail{Document: doc, Lines: lines}, nil
}

// ExtractSummary reports what extraction found, trimmed for presentation.
type ExtractSummary struct {
	PageCount   int
	TextPreview string
	TableCount  int
	Tables      []extract.Table
}

// ExtractPreview runs the extraction collaborator over the document's file
// and stores the payload as the document preview.
func (s *Service) ExtractPreview(ctx context.Context, id string) (ExtractSummary, error) {
	if s.extractor == nil {
		return ExtractSummary{}, platformerrors.New(platformerrors.CodeExtractFailed, "extraction is not configured")
	}

	record, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return ExtractSummary{}, s.documentError(err)
	}

	payload, err := s.extractor.Extract(ctx, record.FilePath)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrEmptyDocument):
			return ExtractSummary{}, platformerrors.Wrap(platformerrors.CodeExtractEmptyDocument, "document is empty or corrupted", err)
		case errors.Is(err, extract.ErrTooLarge):
			return ExtractSummary{}, platformerrors.Wrap(platformerrors.CodeExtractTooLarge, "document exceeds the size limit", err)
		}
		return ExtractSummary{}, platformerrors.WrapInternal(platformerrors.CodeExtractFailed,
			fmt.Sprintf("extract %s: %v", record.FilePath, err), "extraction failed", err)
	}

	previewJSON, err := json.Marshal(payload)
	if err != nil {
		return ExtractSummary{}, s.storageError("encode preview", err)
	}
	if err := s.store.SavePreview(ctx, id, string(previewJSON), s.now()); err != nil {
		return ExtractSummary{}, s.documentError(err)
	}

	summary := ExtractSummary{
		PageCount:   payload.PageCount,
		TextPreview: payload.Text,
		TableCount:  len(payload.Tables),
		Tables:      payload.Tables,
	}
	if len(summary.TextPreview) > previewTextLimit {
		summary.TextPreview = summary.TextPreview[:previewTextLimit]
	}
	if len(summary.Tables) > previewTableLimit {
		summary.Tables = summary.Tables[:previewTableLimit]
	}
	return summary, nil
}

// RejectionSummary reports one candidate the validator refused.
type RejectionSummary struct {
	Position int
	Reason   string
}

// ParseSummary reports the outcome of one parse run.
type ParseSummary struct {
	LinesAccepted  int
	LinesRejected  int
	Rejections     []RejectionSummary
	Recovered      bool
	TotalAttempted int
	// Warning carries the non-fatal truncation notice when Recovered is set.
	Warning string
}

// ParseTransactions runs the full parse pipeline for one document: lock,
// prompt, completion, recovery parse, validation, line replacement, unlock.
func (s *Service) ParseTransactions(ctx context.Context, id string) (ParseSummary, error) {
	record, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return ParseSummary{}, s.documentError(err)
	}

	prov, err := s.loadProvider(ctx, record.Provider)
	if err != nil {
		return ParseSummary{}, err
	}
	if err := s.checkProviderReady(prov); err != nil {
		return ParseSummary{}, err
	}
	if strings.TrimSpace(record.PreviewJSON) == "" {
		return ParseSummary{}, platformerrors.New(platformerrors.CodeDocumentPreviewMissing,
			"document has no extracted preview; run extraction first")
	}
	if s.completer == nil {
		return ParseSummary{}, platformerrors.New(platformerrors.CodeTextGenFailure, "text generation is not configured")
	}

	var payload extract.Payload
	if err := json.Unmarshal([]byte(record.PreviewJSON), &payload); err != nil {
		return ParseSummary{}, s.storageError("decode preview payload", err)
	}

	if err := s.store.AcquireProcessing(ctx, id, s.now()); err != nil {
		return ParseSummary{}, s.documentError(err)
	}

	summary, runErr := s.runParse(ctx, record, prov, payload)
	if runErr != nil {
		s.finish(ctx, id, document.StatusFailed, record.LinesFound, runErr.Error())
		return ParseSummary{}, runErr
	}

	errorLog := ""
	if len(summary.Rejections) > 0 {
		errorLog = formatRejectionLog(summary.Rejections)
	}
	s.finish(ctx, id, document.StatusCompleted, summary.LinesAccepted, errorLog)
	return summary, nil
}

// runParse executes the pipeline between lock acquisition and release.
func (s *Service) runParse(ctx context.Context, record storage.DocumentRecord, prov provider.Provider, payload extract.Payload) (ParseSummary, error) {
	promptText := prompt.Build(prompt.Input{
		Provider:   prov,
		OrgUnit:    record.OrgUnit,
		Period:     record.Period,
		ImportDate: record.ImportDate,
		Payload:    payload,
	})

	completeCtx := ctx
	if s.completeTimeout > 0 {
		var cancel context.CancelFunc
		completeCtx, cancel = context.WithTimeout(ctx, s.completeTimeout)
		defer cancel()
	}
	response, err := s.completer.Complete(completeCtx, promptText)
	if err != nil {
		return ParseSummary{}, platformerrors.WrapInternal(platformerrors.CodeTextGenFailure,
			fmt.Sprintf("complete prompt: %v", err), "text generation failed", err)
	}
	if err := textgen.ValidateResponse(response); err != nil {
		return ParseSummary{}, err
	}

	parsed, err := recovery.Parse(response)
	if err != nil {
		return ParseSummary{}, platformerrors.WrapInternal(platformerrors.CodeModelResponseUnrecoverable,
			fmt.Sprintf("parse model response: %v", err), "model response could not be parsed", err)
	}
	if parsed.Recovered {
		s.logger.Warn("model response was truncated; recovered partial transaction list",
			zap.String("document_id", record.ID),
			zap.Int("candidates", len(parsed.Candidates)),
			zap.Int("total_attempted", parsed.TotalAttempted))
	}

	accepted, rejected := transaction.Validate(parsed.Candidates, record.ID)
	if len(accepted) == 0 {
		return ParseSummary{}, platformerrors.New(platformerrors.CodeModelNoValidTransactions,
			"no valid transactions found in the model response")
	}

	lineRecords := make([]storage.LineRecord, 0, len(accepted))
	for _, line := range accepted {
		line.ID = uuid.NewString()
		lineRecords = append(lineRecords, lineToRecord(line))
	}
	if err := s.store.ReplaceLines(ctx, record.ID, lineRecords, s.now()); err != nil {
		return ParseSummary{}, s.storageError("replace lines", err)
	}

	summary := ParseSummary{
		LinesAccepted:  len(accepted),
		LinesRejected:  len(rejected),
		Recovered:      parsed.Recovered,
		TotalAttempted: parsed.TotalAttempted,
	}
	for _, rejection := range rejected {
		summary.Rejections = append(summary.Rejections, RejectionSummary{
			Position: rejection.Position,
			Reason:   rejection.Reason,
		})
	}
	if parsed.Recovered {
		summary.Warning = "model response was truncated; some transactions may be missing"
	}
	return summary, nil
}

// SynthesisSummary reports the outcome of one synthesis run.
type SynthesisSummary struct {
	Attempted int
	Created   int
	EntryIDs  []string
	Errors    []RejectionSummary
	// Message distinguishes "nothing was eligible" from an all-failed batch.
	Message string
}

// Synthesize creates ledger entries for the document's eligible lines.
func (s *Service) Synthesize(ctx context.Context, id string) (SynthesisSummary, error) {
	if s.accounting == nil {
		return SynthesisSummary{}, platformerrors.New(platformerrors.CodeAccountingFailure, "accounting is not configured")
	}

	record, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return SynthesisSummary{}, s.documentError(err)
	}
	if record.Status == string(document.StatusProcessing) {
		return SynthesisSummary{}, platformerrors.New(platformerrors.CodeDocumentAlreadyProcessing,
			"document is processing; wait for the parse run to finish")
	}

	engine, err := ledger.NewEngine(s.store, s.accounting, s.logger, s.now)
	if err != nil {
		return SynthesisSummary{}, s.storageError("build synthesis engine", err)
	}
	result, err := engine.Synthesize(ctx, record)
	if err != nil {
		return SynthesisSummary{}, s.storageError("synthesize ledger entries", err)
	}

	summary := SynthesisSummary{
		Attempted: result.Attempted,
		Created:   result.Created,
		EntryIDs:  result.EntryIDs,
	}
	if result.Attempted == 0 && len(result.Errors) == 0 {
		s.logger.Info("synthesis found no eligible lines",
			zap.String("document_id", id))
		summary.Message = "no lines in pending or validated status"
	}
	for _, lineErr := range result.Errors {
		summary.Errors = append(summary.Errors, RejectionSummary{
			Position: lineErr.Position,
			Reason:   lineErr.Reason,
		})
	}
	return summary, nil
}

// ResetProcessing releases a stuck processing lock into the failed state.
// There is no automatic lease expiry; this is the operator's escape hatch.
func (s *Service) ResetProcessing(ctx context.Context, id string) (document.Document, error) {
	record, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return document.Document{}, s.documentError(err)
	}
	if record.Status != string(document.StatusProcessing) {
		return document.Document{}, platformerrors.New(platformerrors.CodeDocumentInvalidStatus,
			fmt.Sprintf("document is %s, not processing", record.Status))
	}

	if err := s.store.FinishProcessing(ctx, id, string(document.StatusFailed), record.LinesFound, resetErrorLog, s.now()); err != nil {
		return document.Document{}, s.documentError(err)
	}

	updated, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return document.Document{}, s.documentError(err)
	}
	return recordToDocument(updated)
}

// PutProvider registers or updates a statement provider.
func (s *Service) PutProvider(ctx context.Context, input provider.CreateInput) (provider.Provider, error) {
	prov, err := provider.Create(input, s.now)
	if err != nil {
		return provider.Provider{}, platformerrors.Wrap(platformerrors.CodeProviderMissing, err.Error(), err)
	}
	record, err := providerToRecord(prov)
	if err != nil {
		return provider.Provider{}, s.storageError("encode provider", err)
	}
	if err := s.store.PutProvider(ctx, record); err != nil {
		return provider.Provider{}, s.storageError("put provider", err)
	}
	return prov, nil
}

// GetProvider loads one provider by name.
func (s *Service) GetProvider(ctx context.Context, name string) (provider.Provider, error) {
	return s.loadProvider(ctx, name)
}

// ListProviders returns all registered providers.
func (s *Service) ListProviders(ctx context.Context) ([]provider.Provider, error) {
	records, err := s.store.ListProviders(ctx)
	if err != nil {
		return nil, s.storageError("list providers", err)
	}
	providers := make([]provider.Provider, 0, len(records))
	for _, record := range records {
		prov, convertErr := recordToProvider(record)
		if convertErr != nil {
			return nil, s.storageError("decode provider", convertErr)
		}
		providers = append(providers, prov)
	}
	return providers, nil
}

func (s *Service) loadProvider(ctx context.Context, name string) (provider.Provider, error) {
	record, err := s.store.GetProvider(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return provider.Provider{}, platformerrors.New(platformerrors.CodeProviderNotFound,
				fmt.Sprintf("provider %q is not registered", name))
		}
		return provider.Provider{}, s.storageError("get provider", err)
	}
	return recordToProvider(record)
}

func (s *Service) checkProviderReady(prov provider.Provider) error {
	err := prov.CheckReady()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrDisabled):
		return platformerrors.Wrap(platformerrors.CodeProviderDisabled, err.Error(), err)
	case errors.Is(err, provider.ErrTemplateMissing):
		return platformerrors.Wrap(platformerrors.CodeProviderTemplateMissing, err.Error(), err)
	}
	return platformerrors.Wrap(platformerrors.CodeProviderMissing, err.Error(), err)
}

// finish releases the processing lock; a failure here is logged, not
// returned, so it never masks the run's own outcome.
func (s *Service) finish(ctx context.Context, id string, status document.Status, linesFound int, errorLog string) {
	if err := s.store.FinishProcessing(ctx, id, string(status), linesFound, errorLog, s.now()); err != nil {
		s.logger.Error("release processing lock",
			zap.String("document_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func (s *Service) documentError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return platformerrors.Wrap(platformerrors.CodeDocumentNotFound, "document not found", err)
	case errors.Is(err, storage.ErrAlreadyProcessing):
		return platformerrors.Wrap(platformerrors.CodeDocumentAlreadyProcessing,
			"document is already being processed", err)
	case errors.Is(err, storage.ErrNotProcessing):
		return platformerrors.Wrap(platformerrors.CodeDocumentInvalidStatus,
			"document is not processing", err)
	}
	return s.storageError("document operation", err)
}

func (s *Service) storageError(operation string, err error) error {
	return platformerrors.WrapInternal(platformerrors.CodeStorageFailure,
		fmt.Sprintf("%s: %v", operation, err), "storage operation failed", err)
}

func formatRejectionLog(rejections []RejectionSummary) string {
	parts := make([]string, 0, len(rejections))
	for _, rejection := range rejections {
		parts = append(parts, fmt.Sprintf("line %d: %s", rejection.Position+1, rejection.Reason))
	}
	return strings.Join(parts, "; ")
}
