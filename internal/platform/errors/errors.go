package errors

// Domain is the error domain for statement importer errors.
const Domain = "github.com/norelinorth/statements"

// Error is the domain error type with structured metadata.
//
// Message is the internal description used in logs; UserMessage is the
// sanitized text that may reach API callers. Raw diagnostics (offsets, SQL
// errors, collaborator payloads) belong in Cause or Metadata, never in
// UserMessage.
type Error struct {
	Code        Code              // Machine-readable error code
	Message     string            // Internal message (for logs)
	UserMessage string            // Sanitized, actionable text for callers
	Metadata    map[string]string // Additional context for logging
	Cause       error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Public returns the caller-facing message, falling back to a generic line
// when no sanitized message was set.
func (e *Error) Public() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return "The request could not be completed. Check the service logs for details."
}

// New creates a domain error whose message is safe to show to callers.
func New(code Code, message string) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		UserMessage: message,
	}
}

// Internal creates a domain error whose message must stay in the logs. The
// caller sees the sanitized userMessage instead.
func Internal(code Code, message, userMessage string) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		UserMessage: userMessage,
	}
}

// Wrap creates a caller-safe domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		UserMessage: message,
		Cause:       cause,
	}
}

// WrapInternal wraps a cause while keeping the internal message out of the
// caller-facing text.
func WrapInternal(code Code, message, userMessage string, cause error) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		UserMessage: userMessage,
		Cause:       cause,
	}
}

// WithMetadata returns a copy of the error carrying extra logging context.
func (e *Error) WithMetadata(metadata map[string]string) *Error {
	clone := *e
	clone.Metadata = metadata
	return &clone
}
