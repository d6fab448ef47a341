package interview

import "fmt"

// ValidationError is user input that cannot be accepted. Session state is left
// untouched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UserMessage is safe to show to the person being interviewed.
func (e *ValidationError) UserMessage() string {
	return e.Message
}

// SessionStateError is an operation that is not allowed in the current state of
// the session.
type SessionStateError struct {
	Op     string
	State  State
	Reason string
}

func (e *SessionStateError) Error() string {
	return fmt.Sprintf("%s: session is %s: %s", e.Op, e.State, e.Reason)
}

// UserMessage is safe to show to the person being interviewed.
func (e *SessionStateError) UserMessage() string {
	return "This action is not available right now: " + e.Reason + "."
}
