package validator

import (
	"testing"
	"time"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
)

func TestValidate_SubmitAttemptRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		req     models.SubmitAttemptRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  models.SubmitAttemptRequest{RequestID: "req-12345678", IntegrityNonce: "nonce"},
		},
		{
			// Request id bounds are an integrity concern, not a shape
			// concern: the validator lets a missing or short id through
			// so the submit path can reject it as tampering.
			name: "missing request id passes shape validation",
			req:  models.SubmitAttemptRequest{IntegrityNonce: "nonce"},
		},
		{
			name: "short request id passes shape validation",
			req:  models.SubmitAttemptRequest{RequestID: "short", IntegrityNonce: "nonce"},
		},
		{
			name:    "missing nonce",
			req:     models.SubmitAttemptRequest{RequestID: "req-12345678"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_RecordProctorEventRequest(t *testing.T) {
	v := New()

	valid := models.RecordProctorEventRequest{
		Type:       models.EventFocusLost,
		OccurredAt: time.Now(),
	}
	if err := v.Validate(&valid); err != nil {
		t.Errorf("valid event rejected: %v", err)
	}

	unknown := models.RecordProctorEventRequest{
		Type:       "screenshot",
		OccurredAt: time.Now(),
	}
	if err := v.Validate(&unknown); err == nil {
		t.Error("unknown event type accepted")
	}
}

func TestValidateAttemptStart(t *testing.T) {
	due := time.Now().Add(time.Hour)
	pastDue := time.Now().Add(-time.Hour)

	tests := []struct {
		name       string
		status     models.ExamStatus
		dueDate    *time.Time
		hasAttempt bool
		wantErrs   int
	}{
		{name: "active exam", status: models.ExamActive, dueDate: &due},
		{name: "draft exam", status: models.ExamDraft, wantErrs: 1},
		{name: "past due date", status: models.ExamActive, dueDate: &pastDue, wantErrs: 1},
		{name: "active attempt exists", status: models.ExamActive, hasAttempt: true, wantErrs: 1},
		{name: "everything wrong", status: models.ExamArchived, dueDate: &pastDue, hasAttempt: true, wantErrs: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateAttemptStart(tt.status, tt.dueDate, tt.hasAttempt)
			if len(errs) != tt.wantErrs {
				t.Errorf("got %d errors (%v), want %d", len(errs), errs, tt.wantErrs)
			}
		})
	}
}

func TestValidateHumanGrade(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		maxScore float64
		wantErrs int
	}{
		{name: "in range", score: 7.5, maxScore: 10},
		{name: "zero", score: 0, maxScore: 10},
		{name: "at maximum", score: 10, maxScore: 10},
		{name: "negative", score: -1, maxScore: 10, wantErrs: 1},
		{name: "above maximum", score: 11, maxScore: 10, wantErrs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateHumanGrade(tt.score, tt.maxScore)
			if len(errs) != tt.wantErrs {
				t.Errorf("got %d errors (%v), want %d", len(errs), errs, tt.wantErrs)
			}
		})
	}
}
