package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
)

// ValidationError describes a single failed rule.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
	Rule    string      `json:"rule"`
}

// ValidationErrors is the error type every Validate call returns.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

// HasErrors reports whether any rule failed.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// ToResponse converts validation errors into the API response shape.
func (ve ValidationErrors) ToResponse() []models.ValidationErrorResponse {
	out := make([]models.ValidationErrorResponse, 0, len(ve))
	for _, e := range ve {
		out = append(out, models.ValidationErrorResponse{
			Field:   e.Field,
			Message: e.Message,
			Value:   fmt.Sprintf("%v", e.Value),
			Code:    e.Rule,
		})
	}
	return out
}

// Validator wraps go-playground/validator with the service's custom rules.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with all custom rules registered.
func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerCustomRules()

	return v
}

// Validate runs struct-tag validation. Returns nil or ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func (v *Validator) registerCustomRules() {
	// request_id: idempotency key bounds, 8..128 bytes
	v.validate.RegisterValidation("request_id", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return len(id) >= 8 && len(id) <= 128
	})

	// future_date: timestamps that must lie ahead of now
	v.validate.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		date, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		return date.After(time.Now())
	})

	// exam_duration: minutes, bounded
	v.validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		d := fl.Field().Int()
		return d >= 1 && d <= 600
	})
}

func toValidationErrors(err error) ValidationErrors {
	var out ValidationErrors

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationErrors{{
			Field:   "request",
			Message: err.Error(),
			Rule:    "invalid",
		}}
	}

	for _, fe := range validationErrs {
		out = append(out, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: messageForTag(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}

	return out
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "request_id":
		return "must be between 8 and 128 bytes"
	case "future_date":
		return "must be in the future"
	case "exam_duration":
		return "must be between 1 and 600 minutes"
	default:
		return fmt.Sprintf("failed validation rule %s", fe.Tag())
	}
}

// ===== BUSINESS RULE HELPERS =====

// ValidateAttemptStart validates attempt start conditions
func ValidateAttemptStart(examStatus models.ExamStatus, dueDate *time.Time, hasActiveAttempt bool) ValidationErrors {
	var errors ValidationErrors

	// Exam must be active
	if examStatus != models.ExamActive {
		errors = append(errors, ValidationError{
			Field:   "exam_status",
			Message: "exam is not active",
			Value:   examStatus,
			Rule:    "business_logic",
		})
	}

	// Check due date
	if dueDate != nil && time.Now().After(*dueDate) {
		errors = append(errors, ValidationError{
			Field:   "due_date",
			Message: "exam due date has passed",
			Value:   dueDate,
			Rule:    "business_logic",
		})
	}

	// One active attempt per student
	if hasActiveAttempt {
		errors = append(errors, ValidationError{
			Field:   "attempt",
			Message: "an attempt is already in progress",
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateHumanGrade validates a human grade write against the
// question's point budget.
func ValidateHumanGrade(score float64, maxScore float64) ValidationErrors {
	var errors ValidationErrors

	if score < 0 {
		errors = append(errors, ValidationError{
			Field:   "score",
			Message: "must not be negative",
			Value:   score,
			Rule:    "business_logic",
		})
	}
	if score > maxScore {
		errors = append(errors, ValidationError{
			Field:   "score",
			Message: fmt.Sprintf("must not exceed the question maximum of %.2f", maxScore),
			Value:   score,
			Rule:    "business_logic",
		})
	}

	return errors
}
