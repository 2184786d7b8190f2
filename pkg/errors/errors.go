// Package errors defines the error types returned by the client.
package errors

import (
	"fmt"
	"strings"
)

// ConfigError indicates a problem with the client configuration or with the
// parameters of a request before it is sent.
type ConfigError struct {
	// Field names the offending configuration or request field.
	Field string
	// Message describes what is wrong with it.
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthError indicates an authentication failure.
type AuthError struct {
	// StatusCode is the HTTP status of the token endpoint response, if any.
	StatusCode int
	// Body is the raw response body, which may hold more detail.
	Body string
	// Err is the underlying error, e.g. a network or decoding failure.
	Err error
}

func (e *AuthError) Error() string {
	var sb strings.Builder
	sb.WriteString("auth error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status code %d", e.StatusCode)
	}
	if e.Body != "" {
		fmt.Fprintf(&sb, ", body: %q", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ", err: %v", e.Err)
	}
	return sb.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// StateError indicates an operation was attempted while the client is not in
// a state that allows it, e.g. before Connect.
type StateError struct {
	Operation string
	Message   string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// RequestError indicates a request could not be built or executed.
type RequestError struct {
	// Operation names the API operation that failed.
	Operation string
	// URL is the target URL, when known.
	URL string
	// Err is the underlying error.
	Err error
}

func (e *RequestError) Error() string {
	switch {
	case e.Operation != "" && e.URL != "":
		return fmt.Sprintf("request error during %s to %s: %v", e.Operation, e.URL, e.Err)
	case e.Operation != "":
		return fmt.Sprintf("request error during %s: %v", e.Operation, e.Err)
	default:
		return fmt.Sprintf("request error: %v", e.Err)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// ParseError indicates a response could not be decoded into the expected
// shape.
type ParseError struct {
	Operation string
	Message   string
	Err       error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// APIError represents an error response from the Reddit API itself.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// ErrorCode is Reddit's error code, when present.
	ErrorCode string
	// Message is the error message reported by Reddit.
	Message string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("reddit API error (status %d, code %s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}
