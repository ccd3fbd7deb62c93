package hubapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is matched by a StatusError carrying 401
var ErrUnauthorized = errors.New("session missing or expired")

// ErrNoLoginURL is returned when /auth/url answers without an auth_url field
var ErrNoLoginURL = errors.New("No auth URL received")

// StatusError is a non-success HTTP answer from the upload API. Op names
// the endpoint for logs and is kept out of Error, which visitors see.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string // Server-provided message, may be empty
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 answers
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// UserMessage is the text shown to the visitor for a failed upload
func (e *StatusError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Upload failed: %d", e.StatusCode)
}
