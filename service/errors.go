package service

import "fmt"

// Error kinds callers can branch on with errors.As. Each kind maps to a
// distinct failure mode of the pipeline rather than a message to parse.

// ValidationError indicates malformed, oversized, or wrong-type input
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ExtractionError indicates text extraction failed on corrupt, encrypted,
// or structurally invalid content
type ExtractionError struct {
	MimeType string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed (%s): %v", e.MimeType, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DependencyError indicates an AI collaborator was unreachable or returned
// output that failed schema validation
type DependencyError struct {
	Collaborator string // "embedding", "language-model"
	Err          error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s collaborator failed: %v", e.Collaborator, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// PreconditionError indicates a comparison was requested before both
// documents reached processed status
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// PersistenceError indicates a storage collaborator failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
