// Package aierr classifies provider failures into stable error codes.
package aierr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Code is a machine-readable failure category.
type Code string

const (
	CodeRateLimit           Code = "RATE_LIMIT"
	CodeAuth                Code = "AUTH_ERROR"
	CodeBudgetExceeded      Code = "BUDGET_EXCEEDED"
	CodeTimeout             Code = "TIMEOUT"
	CodeContentTooLong      Code = "CONTENT_TOO_LONG"
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeInvalidResponse     Code = "INVALID_RESPONSE"
	CodeEmptyResponse       Code = "EMPTY_RESPONSE"
	CodeUnknown             Code = "UNKNOWN"
)

// Error is a classified AI failure.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
}

func (e *Error) Error() string { return e.Message }

// New returns an Error with the retryable flag derived from code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: IsRetryableCode(string(code))}
}

// RateLimit is returned when the vendor throttles the caller.
func RateLimit() *Error {
	return New(CodeRateLimit, "Rate limit exceeded. Please try again later.")
}

// Auth is returned for a rejected API key.
func Auth() *Error {
	return New(CodeAuth, "Invalid API key or unauthorized access.")
}

// Timeout is returned when the vendor does not answer in time.
func Timeout() *Error {
	return New(CodeTimeout, "Request timed out. Please try again.")
}

// ContentTooLong is returned when the prompt exceeds the model's input window.
func ContentTooLong(maxTokens int) *Error {
	return New(CodeContentTooLong, fmt.Sprintf("Content exceeds maximum length of %d tokens.", maxTokens))
}

// ProviderUnavailable is returned when a vendor cannot be reached.
func ProviderUnavailable(provider string) *Error {
	return New(CodeProviderUnavailable, fmt.Sprintf("%s is currently unavailable. Please try again later.", provider))
}

// InvalidResponse is returned when a vendor reply cannot be decoded.
func InvalidResponse(detail string) *Error {
	msg := "Invalid response from AI provider."
	if detail != "" {
		msg = "Invalid response from AI provider: " + detail
	}
	return New(CodeInvalidResponse, msg)
}

// IsRetryableCode reports whether a failure with this code may succeed on retry.
func IsRetryableCode(code string) bool {
	switch Code(code) {
	case CodeRateLimit, CodeTimeout, CodeProviderUnavailable, CodeInvalidResponse:
		return true
	}
	return false
}

// IsRetryable reports whether err is a classified, retryable failure.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// Classify maps an arbitrary error onto a classified Error by substring match
// on its message. Already classified errors are returned unchanged.
func Classify(err error) *Error {
	if err == nil {
		return New(CodeUnknown, "An unknown error occurred")
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var te interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout()) {
		return Timeout()
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate"):
		return RateLimit()
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return Auth()
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "ETIMEDOUT"):
		return Timeout()
	}
	return New(CodeUnknown, msg)
}
