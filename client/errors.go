package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gateflow/api"
)

const snippetLimit = 512

// ConfigurationError reports missing or malformed client settings, such as
// an absent API key. Retrying will not help.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("gate client configuration: %s %s", e.Field, e.Reason)
}

// TransportError reports a failure to complete the HTTP exchange, or a non
// success status whose body carried no structured error. StatusCode is zero
// when no response was received.
type TransportError struct {
	Method     api.Method
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gate %s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("gate %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non success response carrying Gate's {label, message} body.
type APIError struct {
	Method     api.Method
	Path       string
	StatusCode int
	Label      string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gate %s %s: status %d: %s: %s", e.Method, e.Path, e.StatusCode, e.Label, e.Message)
}

// TooManyRequests reports whether the request was rejected by the rate limiter.
func (e *APIError) TooManyRequests() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Label == "TOO_MANY_REQUESTS"
}

// DecodeError reports a response body that does not match the expected type.
type DecodeError struct {
	Method  api.Method
	Path    string
	Field   string
	Offset  int64
	Snippet string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("gate %s %s: decode response: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("gate %s %s: decode response at %s: %v", e.Method, e.Path, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errEmptyBody = errors.New("empty response body")

type apiErrorBody struct {
	Label   string `json:"label"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// parseAPIError returns the structured error in body, or nil when the body
// is not one.
func parseAPIError(method api.Method, path string, status int, header http.Header, body []byte) *APIError {
	var b apiErrorBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil
	}
	label := b.Label
	if label == "" {
		label = b.Code
	}
	if label == "" {
		return nil
	}
	msg := b.Message
	if msg == "" {
		msg = b.Detail
	}
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Label:      label,
		Message:    msg,
		RetryAfter: retryAfterFromHeader(header),
	}
}

func retryAfterFromHeader(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	if len(body) > snippetLimit {
		return string(body[:snippetLimit]) + "..."
	}
	return string(body)
}
