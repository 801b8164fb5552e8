package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind is the persisted classification of a pipeline failure.
type Kind string

const (
	KindSourceUnreachable Kind = "source-unreachable"
	KindMalformedItem     Kind = "malformed-item"
	KindDuplicate         Kind = "duplicate"
	KindProviderAuth      Kind = "provider-auth"
	KindProviderRateLimit Kind = "provider-rate-limit"
	KindProviderTimeout   Kind = "provider-timeout"
	KindProviderMalformed Kind = "provider-malformed-response"
	KindProviderTransient Kind = "provider-transient"
	KindStoreWrite        Kind = "store-write-failure"
	KindPublishFailed     Kind = "platform-publish-failure"
	KindValidation        Kind = "validation"
	KindConfiguration     Kind = "configuration"
	KindCanceled          Kind = "canceled"
	KindUnknown           Kind = "unknown"
)

var (
	ErrSourceUnreachable = errors.New("source unreachable")
	ErrMalformedItem     = errors.New("malformed item")
	ErrDuplicate         = errors.New("duplicate item")
	ErrProviderAuth      = errors.New("provider authentication failed")
	ErrProviderRateLimit = errors.New("provider rate limited")
	ErrProviderTimeout   = errors.New("provider timeout")
	ErrProviderMalformed = errors.New("provider malformed response")
	ErrProviderTransient = errors.New("provider transient failure")
	ErrStoreWrite        = errors.New("store write failure")
	ErrPublishFailed     = errors.New("platform publish failure")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
)

var markerKinds = []struct {
	marker error
	kind   Kind
}{
	{ErrSourceUnreachable, KindSourceUnreachable},
	{ErrMalformedItem, KindMalformedItem},
	{ErrDuplicate, KindDuplicate},
	{ErrProviderAuth, KindProviderAuth},
	{ErrProviderRateLimit, KindProviderRateLimit},
	{ErrProviderTimeout, KindProviderTimeout},
	{ErrProviderMalformed, KindProviderMalformed},
	{ErrProviderTransient, KindProviderTransient},
	{ErrStoreWrite, KindStoreWrite},
	{ErrPublishFailed, KindPublishFailed},
	{ErrValidation, KindValidation},
	{ErrConfiguration, KindConfiguration},
}

// Error is a classified failure carrying the component and operation that produced it.
type Error struct {
	Marker     error
	Component  string
	Operation  string
	Message    string
	Hint       string
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Component, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Marker, e.Cause}
	}
	return []error{e.Marker}
}

// Wrap builds an error that includes component context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrProviderTransient
	}
	return &Error{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// WithHint attaches an operator hint to a classified error.
func WithHint(err error, hint string) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		clone := *svcErr
		clone.Hint = strings.TrimSpace(hint)
		return &clone
	}
	return err
}

// ErrorDetails summarizes a classified error for logging and persistence.
type ErrorDetails struct {
	Kind       Kind
	Component  string
	Operation  string
	Message    string
	Hint       string
	RetryAfter time.Duration
	Cause      error
}

// Details extracts the classification of err. Unclassified errors report KindUnknown.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindOf(err), Message: err.Error()}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		details.Component = svcErr.Component
		details.Operation = svcErr.Operation
		details.Message = svcErr.Message
		details.Hint = svcErr.Hint
		details.RetryAfter = svcErr.RetryAfter
		details.Cause = svcErr.Cause
	}
	return details
}

// KindOf returns the classification of err.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		for _, mk := range markerKinds {
			if svcErr.Marker == mk.marker {
				return mk.kind
			}
		}
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProviderTimeout
	}
	return KindUnknown
}

// Retryable reports whether err should be retried with backoff. Rate limits,
// timeouts, transient provider failures, and store write failures qualify.
// Authentication and malformed responses are fatal for the item.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindProviderRateLimit, KindProviderTimeout, KindProviderTransient, KindStoreWrite:
		return true
	default:
		return false
	}
}

// ClassifyHTTP maps a non-success HTTP response from a provider or platform to a
// classified error. The body snippet is included in the message.
func ClassifyHTTP(component, operation string, status int, retryAfter string, body []byte) error {
	var marker error
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		marker = ErrProviderAuth
	case status == http.StatusTooManyRequests:
		marker = ErrProviderRateLimit
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		marker = ErrProviderTimeout
	case status >= http.StatusInternalServerError:
		marker = ErrProviderTransient
	default:
		marker = ErrProviderMalformed
	}
	err := &Error{
		Marker:    marker,
		Component: component,
		Operation: operation,
		Message:   fmt.Sprintf("http %d: %s", status, snippet(body)),
	}
	if delay, ok := ParseRetryAfter(retryAfter); ok {
		err.RetryAfter = delay
	}
	switch marker {
	case ErrProviderAuth:
		err.Hint = "verify the API key or token for this provider"
	case ErrProviderRateLimit:
		err.Hint = "lower the matching rate_limits value"
	}
	return err
}

// ClassifyTransport maps a transport-level failure (dial, timeout, reset) to a
// classified error. Context cancellation is returned unchanged.
func ClassifyTransport(component, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	marker := ErrProviderTransient
	if errors.Is(err, context.DeadlineExceeded) {
		marker = ErrProviderTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		marker = ErrProviderTimeout
	}
	return Wrap(marker, component, operation, "request failed", err)
}

// ParseRetryAfter parses a Retry-After header given in seconds or as an HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "(empty body)"
	}
	return text
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
