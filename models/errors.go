package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses, scan diagnostics and internal error handling.
const (
	ErrCodeTimeout      = "FETCH_TIMEOUT"
	ErrCodeFetch        = "FETCH_FAILED"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeNonHTML      = "NON_HTML_RESPONSE"
	ErrCodeBlocked      = "BLOCKED_ADDRESS"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"

	// ErrCodePipelineFatal marks a scan that could not produce any result
	// because a condition outside the pipeline aborted it.
	ErrCodePipelineFatal = "PIPELINE_FATAL"

	// LLM-related error codes surfaced in raw.ai.error_code.
	ErrCodeLLMFailure     = "LLM_FAILURE"
	ErrCodeLLMAuthFailure = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited = "LLM_RATE_LIMITED"
	ErrCodeLLMTimeout     = "LLM_TIMEOUT"
	ErrCodeAISchema       = "AI_SCHEMA_MISMATCH"
	ErrCodeAIDisabled     = "AI_DISABLED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScanError is the internal error type carrying an error code.
type ScanError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// NewScanError creates a new ScanError.
func NewScanError(code, message string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScanError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// ErrorCode returns the code of the first ScanError in err's chain,
// or fallback when there is none.
func ErrorCode(err error, fallback string) string {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Code
	}
	return fallback
}
