package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("not found")
	ErrNotAssigned       = errors.New("actor is not assigned to the current stage")
	ErrStaleEscalation   = errors.New("escalation no longer applies")
)

// ValidationError identifies the rule a template, stage or section broke.
type ValidationError struct {
	StageID string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.StageID != "" && e.Field != "":
		return fmt.Sprintf("validation failed: stage %s: %s: %s", e.StageID, e.Field, e.Reason)
	case e.StageID != "":
		return fmt.Sprintf("validation failed: stage %s: %s", e.StageID, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
	default:
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func NewStageValidationError(stageID, field, reason string) *ValidationError {
	return &ValidationError{StageID: stageID, Field: field, Reason: reason}
}

type InvalidTransitionError struct {
	DocumentID string
	From       DocumentStatus
	Event      Event
	Reason     string
	Err        error
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition: document %s: %s not allowed from %s", e.DocumentID, e.Event, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidTransition, e.Err}
	}
	return []error{ErrInvalidTransition}
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
