package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/grading-integrity-service/internal/validator"
)

// ===== SENTINEL ERRORS =====

var (
	// Not found
	ErrExamNotFound    = errors.New("exam not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrAnswerNotFound  = errors.New("answer not found")
	ErrGradeNotFound   = errors.New("grade not found")

	// Attempt lifecycle
	ErrAttemptNotActive        = errors.New("attempt is not in progress")
	ErrAttemptAlreadySubmitted = errors.New("attempt has already been submitted")
	ErrAttemptTimeExpired      = errors.New("attempt time has expired")
	ErrAttemptCannotStart      = errors.New("attempt cannot be started")

	// Submission integrity
	ErrIntegrity   = errors.New("integrity check failed")
	ErrRateLimited = errors.New("submission rate budget exhausted")

	// Grading
	ErrGradeLocked           = errors.New("grade is locked")
	ErrQueueUnavailable      = errors.New("grading queue unavailable")
	ErrExternalScorerFailure = errors.New("external scorer failed")

	// Auth
	ErrUnauthorized = errors.New("unauthorized")
)

// ===== TYPED ERRORS =====

// ValidationErrors re-exports the validator error type so handlers can
// match on it without importing the validator package.
type ValidationErrors = validator.ValidationErrors

// BusinessRuleError marks a domain rule violation (422-class failures).
type BusinessRuleError struct {
	Message string
	Rule    string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", e.Rule, e.Message)
}

func NewBusinessRuleError(message, rule string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Message: message,
		Rule:    rule,
		Context: context,
	}
}

// PermissionError marks an authorization failure on a specific resource.
type PermissionError struct {
	UserID   string
	Resource string
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s: %s", e.UserID, e.Action, e.Resource, e.Reason)
}

func NewPermissionError(userID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:   userID,
		Resource: resource,
		Action:   action,
		Reason:   reason,
	}
}

// NewValidationError builds a single-field validation failure.
func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business_logic",
	}}
}
