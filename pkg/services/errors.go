// Package services holds the business logic behind the API: guild,
// template, game, and participant operations, mention validation, and the
// schedule-table bookkeeping that keeps the daemons in sync with game rows.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity does not exist or is hidden
	// from the caller. Handlers map it to 404.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to create a duplicate entity.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrForbidden is returned when the caller lacks the role or host
	// standing an operation requires.
	ErrForbidden = errors.New("operation not permitted")

	// ErrDefaultTemplate is returned when deleting a guild's default template.
	ErrDefaultTemplate = errors.New("cannot delete the default template")

	// ErrGameNotJoinable is returned for joins on non-SCHEDULED or
	// host-selected games.
	ErrGameNotJoinable = errors.New("game is not open for signup")
)

// ValidationError wraps a field-specific validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// MentionSuggestion is one disambiguation candidate for an unresolvable
// mention.
type MentionSuggestion struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// InvalidMention describes one participant entry that failed to resolve.
type InvalidMention struct {
	Input       string              `json:"input"`
	Reason      string              `json:"reason"`
	Suggestions []MentionSuggestion `json:"suggestions"`
}

// MentionValidationError reports every failed mention alongside the entries
// that did resolve, so the client can keep its form state and offer
// one-click corrections. Handlers map it to 422.
type MentionValidationError struct {
	Invalid []InvalidMention  `json:"invalid_mentions"`
	Valid   []ResolvedMention `json:"valid_participants"`
}

func (e *MentionValidationError) Error() string {
	return fmt.Sprintf("%d participant mention(s) could not be resolved", len(e.Invalid))
}

// IsMentionValidationError checks if an error is a mention validation error.
func IsMentionValidationError(err error) (*MentionValidationError, bool) {
	var me *MentionValidationError
	ok := errors.As(err, &me)
	return me, ok
}
