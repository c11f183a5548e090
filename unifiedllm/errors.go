package unifiedllm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// SDKError is the base of every error this package returns.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SDKError) Unwrap() error { return e.Cause }

// ProviderError is a failure reported by a provider. The concrete types
// below embed it so callers can match on the kind with errors.As.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	ErrorCode  string
	Retryable  bool
	RetryAfter *float64
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Provider, e.Message, e.StatusCode)
}

func (e *ProviderError) provider() *ProviderError { return e }

type (
	AuthenticationError struct{ ProviderError }
	AccessDeniedError   struct{ ProviderError }
	NotFoundError       struct{ ProviderError }
	InvalidRequestError struct{ ProviderError }
	RateLimitError      struct{ ProviderError }
	ServerError         struct{ ProviderError }
	ContextLengthError  struct{ ProviderError }
)

// ToolNotDeclaredError reports that the model asked for a tool the request
// did not declare, whether the provider rejected the call or returned it.
type ToolNotDeclaredError struct {
	ProviderError
	ToolName string
}

func (e *ToolNotDeclaredError) Error() string {
	if e.ToolName == "" {
		return fmt.Sprintf("%s: model called an undeclared tool: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: model called undeclared tool %q: %s", e.Provider, e.ToolName, e.Message)
}

// Failures that happen before or around the provider call.
type (
	RequestTimeoutError struct{ SDKError }
	AbortError          struct{ SDKError }
	NetworkError        struct{ SDKError }
	ConfigurationError  struct{ SDKError }
)

// toolUseFailedCode is the error code Groq and LiteLLM attach to rejected tool calls.
const toolUseFailedCode = "tool_use_failed"

var undeclaredToolPattern = regexp.MustCompile(`(?i)attempted to call tool '([^']+)'`)

// ErrorFromStatusCode maps a provider's HTTP failure onto the error types.
// Tool validation rejections become *ToolNotDeclaredError whatever the status.
func ErrorFromStatusCode(statusCode int, message, provider, errorCode string, retryAfter *float64) error {
	pe := ProviderError{
		SDKError:   SDKError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		RetryAfter: retryAfter,
	}
	if isToolRejection(message, errorCode) {
		return &ToolNotDeclaredError{ProviderError: pe, ToolName: undeclaredToolName(message)}
	}

	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{pe}
	case 401:
		return &AuthenticationError{pe}
	case 403:
		return &AccessDeniedError{pe}
	case 404:
		return &NotFoundError{pe}
	case 408:
		return &RequestTimeoutError{SDKError{Message: message}}
	case 413:
		return &ContextLengthError{pe}
	case 429:
		pe.Retryable = true
		return &RateLimitError{pe}
	case 500, 502, 503, 504:
		pe.Retryable = true
		return &ServerError{pe}
	}
	pe.Retryable = true
	return &pe
}

func isToolRejection(message, errorCode string) bool {
	if errorCode == toolUseFailedCode {
		return true
	}
	lower := strings.ToLower(message)
	return strings.Contains(lower, "not in request.tools") ||
		strings.Contains(lower, "tool call validation failed")
}

func undeclaredToolName(message string) string {
	if m := undeclaredToolPattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	return ""
}

// IsToolNotDeclared reports whether err, or anything it wraps, is a
// *ToolNotDeclaredError.
func IsToolNotDeclared(err error) bool {
	var tnd *ToolNotDeclaredError
	return errors.As(err, &tnd)
}

// IsRetryable reports whether err is worth retrying at the transport level.
// Provider errors carry their own verdict; errors from outside this package
// are assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe interface{ provider() *ProviderError }
	if errors.As(err, &pe) {
		return pe.provider().Retryable
	}
	var (
		network *NetworkError
		timeout *RequestTimeoutError
		abort   *AbortError
		config  *ConfigurationError
	)
	switch {
	case errors.As(err, &network), errors.As(err, &timeout):
		return true
	case errors.As(err, &abort), errors.As(err, &config):
		return false
	}
	return true
}
