// Package errors provides structured error handling for the statement pipeline.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Document errors
	CodeDocumentNotFound          Code = "DOCUMENT_NOT_FOUND"
	CodeDocumentFileMissing       Code = "DOCUMENT_FILE_MISSING"
	CodeDocumentPreviewMissing    Code = "DOCUMENT_PREVIEW_MISSING"
	CodeDocumentAlreadyProcessing Code = "DOCUMENT_ALREADY_PROCESSING"
	CodeDocumentInvalidStatus     Code = "DOCUMENT_INVALID_STATUS"

	// Provider errors
	CodeProviderNotFound        Code = "PROVIDER_NOT_FOUND"
	CodeProviderDisabled        Code = "PROVIDER_DISABLED"
	CodeProviderTemplateMissing Code = "PROVIDER_TEMPLATE_MISSING"
	CodeProviderMissing         Code = "PROVIDER_MISSING"

	// Extraction errors
	CodeExtractEmptyDocument Code = "EXTRACT_EMPTY_DOCUMENT"
	CodeExtractTooLarge      Code = "EXTRACT_FILE_TOO_LARGE"
	CodeExtractFailed        Code = "EXTRACT_FAILED"

	// Model output errors
	CodeModelResponseInvalid       Code = "MODEL_RESPONSE_INVALID"
	CodeModelResponseUnrecoverable Code = "MODEL_RESPONSE_UNRECOVERABLE"
	CodeModelNoValidTransactions   Code = "MODEL_NO_VALID_TRANSACTIONS"

	// Synthesis errors
	CodeDataIntegrity     Code = "DATA_INTEGRITY"
	CodeLedgerEntryFailed Code = "LEDGER_ENTRY_FAILED"

	// Collaborator errors
	CodeTextGenFailure    Code = "TEXT_GENERATION_FAILURE"
	CodeAccountingFailure Code = "ACCOUNTING_FAILURE"

	// Storage errors
	CodeNotFound       Code = "NOT_FOUND"
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeDocumentFileMissing,
		CodeDocumentPreviewMissing,
		CodeProviderMissing,
		CodeExtractEmptyDocument:
		return http.StatusBadRequest

	// Not found
	case CodeDocumentNotFound,
		CodeProviderNotFound,
		CodeNotFound:
		return http.StatusNotFound

	// Conflict - concurrent processing attempts
	case CodeDocumentAlreadyProcessing:
		return http.StatusConflict

	// Precondition failed - state doesn't allow operation
	case CodeDocumentInvalidStatus,
		CodeProviderDisabled,
		CodeProviderTemplateMissing:
		return http.StatusPreconditionFailed

	// Payload too large
	case CodeExtractTooLarge:
		return http.StatusRequestEntityTooLarge

	// Unprocessable - model output could not be used
	case CodeModelResponseInvalid,
		CodeModelResponseUnrecoverable,
		CodeModelNoValidTransactions:
		return http.StatusUnprocessableEntity

	// Upstream collaborator failures
	case CodeTextGenFailure,
		CodeAccountingFailure,
		CodeExtractFailed:
		return http.StatusBadGateway

	// Internal
	case CodeDataIntegrity,
		CodeLedgerEntryFailed,
		CodeStorageFailure,
		CodeUnknown:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
