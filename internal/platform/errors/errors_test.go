package errors

import (
	stderrors "errors"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := New(CodeDocumentAlreadyProcessing, "document is already being processed")
	target := New(CodeDocumentAlreadyProcessing, "other message")
	if !stderrors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}

	other := New(CodeDocumentNotFound, "missing")
	if stderrors.Is(err, other) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")
	err := Wrap(CodeStorageFailure, "save document", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
}

func TestPublicHidesInternalMessage(t *testing.T) {
	t.Parallel()

	err := Internal(CodeStorageFailure, "sqlite disk I/O error at offset 4096", "Failed to save the document. Try again later.")
	if err.Public() == err.Message {
		t.Fatal("expected public message to differ from internal message")
	}
	if err.Public() != "Failed to save the document. Try again later." {
		t.Fatalf("public message = %q", err.Public())
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want int
	}{
		{CodeDocumentAlreadyProcessing, http.StatusConflict},
		{CodeDocumentNotFound, http.StatusNotFound},
		{CodeProviderDisabled, http.StatusPreconditionFailed},
		{CodeModelResponseUnrecoverable, http.StatusUnprocessableEntity},
		{CodeExtractTooLarge, http.StatusRequestEntityTooLarge},
		{CodeTextGenFailure, http.StatusBadGateway},
		{CodeStorageFailure, http.StatusInternalServerError},
		{Code("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}
