package textgen

import (
	"errors"
	"strings"
	"testing"

	platformerrors "github.com/norelinorth/statements/internal/platform/errors"
)

func TestValidateResponseAcceptsPlausibleOutput(t *testing.T) {
	t.Parallel()

	cases := []string{
		`[{"date":"2025-01-15","description":"Buy AAPL"}]`,
		"```json\n[]\n```",
		"[]",
	}
	for _, response := range cases {
		if err := ValidateResponse(response); err != nil {
			t.Fatalf("ValidateResponse(%q): %v", response, err)
		}
	}
}

func TestValidateResponseRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		response string
	}{
		{"empty", "   \n  "},
		{"html page", "<!DOCTYPE html><html><body>502 Bad Gateway</body></html>"},
		{"html fragment", "<html>service unavailable</html>"},
		{"serialized error", "Error: quota exceeded"},
		{"error occurred", "An error occurred while processing your request"},
		{"refusal", "I cannot process financial documents."},
		{"apology refusal", "I'm sorry, but I am not able to help with that."},
		{"oversized", "[" + strings.Repeat("1,", maxResponseBytes/2) + "1]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateResponse(tc.response)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !errors.Is(err, platformerrors.New(platformerrors.CodeModelResponseInvalid, "")) {
				t.Fatalf("err = %v, want CodeModelResponseInvalid", err)
			}
		})
	}
}
