package llm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorType classifies LLM failures for callers deciding whether to
// retry, fall back, or surface the error.
type ErrorType string

const (
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error is a provider failure with enough classification attached for the
// retry layer to act on.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
	Model      string
	Endpoint   string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " HTTP %d", e.StatusCode)
	}
	if e.Model != "" {
		fmt.Fprintf(&b, " model=%s", e.Model)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the operation can be retried.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// classifyRule maps an error-string pattern onto a classification. Rules are
// checked in order; the first match wins.
type classifyRule struct {
	matches   func(raw, lower string) bool
	errType   ErrorType
	message   string
	retryable bool
}

var classifyRules = []classifyRule{
	{
		matches: func(raw, lower string) bool {
			return strings.Contains(raw, "401") || strings.Contains(lower, "unauthorized") ||
				strings.Contains(lower, "invalid api key")
		},
		errType: ErrorTypeAuth, message: "authentication failed", retryable: false,
	},
	{
		matches: func(raw, lower string) bool {
			return strings.Contains(lower, "model") &&
				(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist"))
		},
		errType: ErrorTypeModel, message: "model not found", retryable: false,
	},
	{
		matches: func(raw, lower string) bool {
			return strings.Contains(raw, "404")
		},
		errType: ErrorTypeEndpoint, message: "endpoint not found", retryable: false,
	},
	{
		matches: func(raw, lower string) bool {
			return strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host")
		},
		errType: ErrorTypeEndpoint, message: "connection failed", retryable: true,
	},
	{
		matches: func(raw, lower string) bool {
			return strings.Contains(lower, "timeout") ||
				strings.Contains(lower, "deadline exceeded") ||
				strings.Contains(lower, "context canceled")
		},
		errType: ErrorTypeEndpoint, message: "request timeout", retryable: true,
	},
	{
		matches: func(raw, lower string) bool {
			return strings.Contains(raw, "429") || strings.Contains(lower, "rate limit")
		},
		errType: ErrorTypeUnknown, message: "rate limited", retryable: true,
	},
	{
		matches: func(raw, lower string) bool {
			for _, code := range []string{"500", "502", "503", "504"} {
				if strings.Contains(raw, code) {
					return true
				}
			}
			return false
		},
		errType: ErrorTypeEndpoint, message: "server error", retryable: true,
	},
}

// ClassifyError categorizes an arbitrary provider error into an *Error.
// Already-classified errors pass through unchanged.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	raw := err.Error()
	lower := strings.ToLower(raw)

	for _, rule := range classifyRules {
		if rule.matches(raw, lower) {
			classified := NewError(rule.errType, rule.message, rule.retryable, err)
			classified.StatusCode = sniffStatusCode(raw)
			return classified
		}
	}

	classified := NewError(ErrorTypeUnknown, "llm error", false, err)
	classified.StatusCode = sniffStatusCode(raw)
	return classified
}

// sniffStatusCode digs an HTTP status code out of an error string, since
// provider SDKs rarely expose one in a typed way.
func sniffStatusCode(s string) int {
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(s, strconv.Itoa(code)) {
			return code
		}
	}
	return 0
}

// IsRetryable reports whether err is a retryable LLM error.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
