package providers

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures so callers never pattern-match on
// message text.
type ErrorKind string

const (
	KindRateLimited   ErrorKind = "rate_limited"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	KindInvalidInput  ErrorKind = "invalid_input"
	KindTimeout       ErrorKind = "timeout"
	KindUnexpected    ErrorKind = "unexpected"
)

// Error is the tagged failure every provider returns. Message is safe to
// surface to the user; Detail carries the raw provider response for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("provider: %s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("provider: %s: %s", e.Kind, e.Message)
}

// UserMessage is the actionable text shown on the failed job.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindRateLimited:
		return "the provider is rate limiting requests; your credits were refunded, please retry in a few minutes"
	case KindQuotaExceeded:
		return "the provider quota is exhausted; your credits were refunded, please retry later"
	case KindTimeout:
		return "the provider did not finish in time; your credits were refunded"
	case KindInvalidInput:
		if e.Message != "" {
			return "the provider rejected the request: " + e.Message
		}
		return "the provider rejected the request"
	}
	return "generation failed; your credits were refunded"
}

// NewError builds a tagged provider error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errf builds a tagged provider error with a formatted detail.
func Errf(kind ErrorKind, message, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: message, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, defaulting to unexpected for plain errors.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnexpected
}

// AsError normalizes any error into a *Error, wrapping plain errors as
// unexpected so downstream handling is uniform.
func AsError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return &Error{Kind: KindUnexpected, Message: "generation failed", Detail: err.Error()}
}

// ClassifyStatus maps an HTTP status from a provider API onto the taxonomy.
func ClassifyStatus(status int, body string) *Error {
	switch {
	case status == 429:
		return &Error{Kind: KindRateLimited, Message: "rate limited", Detail: body}
	case status == 402 || status == 403:
		return &Error{Kind: KindQuotaExceeded, Message: "quota exceeded", Detail: body}
	case status >= 400 && status < 500:
		return &Error{Kind: KindInvalidInput, Message: "request rejected", Detail: body}
	default:
		return &Error{Kind: KindUnexpected, Message: fmt.Sprintf("status %d", status), Detail: body}
	}
}
