// Package textgen is the text-generation collaborator boundary.
//
// The pipeline consumes model output exclusively through the recovery parser,
// but a raw response still gets a sanity check first: gateway error pages,
// refusals, and runaway output are cheaper to reject before parsing.
package textgen

import (
	"context"
	"fmt"
	"strings"

	platformerrors "github.com/norelinorth/statements/internal/platform/errors"
)

// maxResponseBytes bounds a plausible structured response. Anything larger is
// runaway generation, not statement data.
const maxResponseBytes = 500 * 1024

// Completer produces a completion for one prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// errorPrefixes mark responses where an upstream proxy or SDK serialized a
// failure into the body instead of returning an error.
var errorPrefixes = []string{
	"error:",
	"an error occurred",
	"internal server error",
}

// refusalPhrases mark responses where the model declined the task instead of
// producing data.
var refusalPhrases = []string{
	"i cannot",
	"i can't",
	"i am unable",
	"i'm unable",
	"i am sorry",
	"i'm sorry",
	"as an ai",
}

// ValidateResponse rejects raw model output that cannot possibly be a
// transaction list: empty responses, HTML error pages, serialized errors,
// refusals, and oversized output. It does not check structure; that is the
// recovery parser's job.
func ValidateResponse(response string) error {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return platformerrors.New(platformerrors.CodeModelResponseInvalid, "model returned an empty response")
	}
	if len(response) > maxResponseBytes {
		return platformerrors.New(platformerrors.CodeModelResponseInvalid,
			fmt.Sprintf("model response too large: %d bytes", len(response)))
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "<!doctype") || strings.HasPrefix(lowered, "<html") {
		return platformerrors.New(platformerrors.CodeModelResponseInvalid, "model returned an HTML error page")
	}
	for _, prefix := range errorPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return platformerrors.New(platformerrors.CodeModelResponseInvalid,
				fmt.Sprintf("model returned an error response: %.80s", trimmed))
		}
	}
	for _, phrase := range refusalPhrases {
		if strings.HasPrefix(lowered, phrase) {
			return platformerrors.New(platformerrors.CodeModelResponseInvalid,
				fmt.Sprintf("model refused the request: %.80s", trimmed))
		}
	}
	return nil
}
