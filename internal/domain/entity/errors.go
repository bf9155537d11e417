package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrRelevanceRejected marks an item that failed the KY-relevance gate
	// (spec §4.9 step 5). Non-error outcome: the item is not persisted, or
	// unlinked if it was newly created for this feed only.
	ErrRelevanceRejected = errors.New("item rejected: not KY-relevant")

	// ErrTooShort marks an item whose effective body fell below the
	// word-count gate (spec §4.10 step 3). The item is retained with queue
	// status rejected_short, not deleted.
	ErrTooShort = errors.New("item rejected: body too short")

	// ErrSummarizationFailed wraps a failed external-summarizer call
	// (spec §7). The queue row transitions to failed with LastError set.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrStorage wraps a failure from the Storage Gateway. The scheduler
	// catches it, records it, and continues to the next cycle.
	ErrStorage = errors.New("storage error")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
