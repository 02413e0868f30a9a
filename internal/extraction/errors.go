package extraction

import "fmt"

// ErrorCode identifies a class of extraction failure.
type ErrorCode string

const (
	ErrGeminiUnavailable ErrorCode = "GEMINI_UNAVAILABLE"
	ErrGeminiRateLimited ErrorCode = "GEMINI_RATE_LIMITED"
	ErrInvalidDocument   ErrorCode = "INVALID_DOCUMENT"
	ErrBadResponse       ErrorCode = "BAD_RESPONSE"
	ErrNotConfigured     ErrorCode = "NOT_CONFIGURED"
)

// ExtractionError is a structured error for receipt extraction failures.
type ExtractionError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether retrying the same call may succeed.
func (e *ExtractionError) IsRetryable() bool {
	return e.Retryable
}
