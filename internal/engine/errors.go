package engine

import "fmt"

// ValidationError means the post-write self-check failed: the engine
// produced bytes that violate its own structural invariants. Internal fault.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// LimitError means the document exceeds the configured page limit. Client
// fault, distinct from the plan bounds errors.
type LimitError struct {
	Pages int
	Max   int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("document has %d pages, limit is %d", e.Pages, e.Max)
}
