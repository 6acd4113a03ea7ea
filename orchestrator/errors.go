package orchestrator

import "fmt"

// ValidationError reports a malformed or unresolvable request. It is
// surfaced synchronously, before any operation record exists.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid request: %s", e.Reason)
}
