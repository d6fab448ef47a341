package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrStructuredOutputUnsupported is returned when a schema is requested from a
	// model that cannot honor strict structured output.
	ErrStructuredOutputUnsupported = errors.New("model does not support strict structured output")
	// ErrEmptyResponse is returned when the provider answered without any text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// StatusError is a provider failure carrying an HTTP-like status code.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Message)
}

// HTTPStatusCode returns the status code.
func (e *StatusError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.Code
}

// SchemaViolationError reports a response that does not match the requested schema.
type SchemaViolationError struct {
	Schema string
	Err    error
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("response does not match schema %q: %v", e.Schema, e.Err)
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

// LLMError is an unrecoverable gateway failure.
type LLMError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("model %s failed after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// UserMessage is safe to show to the person being interviewed.
func (e *LLMError) UserMessage() string {
	return "I ran into a problem generating a response. Please try again."
}
