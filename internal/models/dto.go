package models

import (
	"time"
)

// ===== ATTEMPT DTOs =====

type StartAttemptRequest struct {
	ExamID uint `json:"exam_id" validate:"required"`
}

type StartAttemptResponse struct {
	AttemptID      uint          `json:"attempt_id"`
	ExamID         uint          `json:"exam_id"`
	Status         AttemptStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at"`
	IntegrityNonce string        `json:"integrity_nonce"`
}

type SaveAnswerRequest struct {
	QuestionID uint              `json:"question_id" validate:"required"`
	Segments   map[uint]string   `json:"segments" validate:"required,min=1"`
}

type SubmitAttemptRequest struct {
	// RequestID bounds are enforced by the integrity check, not the
	// validator: a malformed idempotency key is rejected as tampering.
	RequestID      string `json:"request_id"`
	IntegrityNonce string `json:"integrity_nonce" validate:"required"`
}

type SubmitAttemptResponse struct {
	AttemptID   uint          `json:"attempt_id"`
	Status      AttemptStatus `json:"status"`
	SubmittedAt *time.Time    `json:"submitted_at"`
	Replay      bool          `json:"replay"`
	AutoGraded  int           `json:"auto_graded"`
}

type RecordProctorEventRequest struct {
	Type       ProctorEventType       `json:"type" validate:"required,oneof=focus_lost focus_gained tab_switch fullscreen_exit copy paste"`
	OccurredAt time.Time              `json:"occurred_at" validate:"required"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type AttemptSummary struct {
	ID          uint          `json:"id"`
	ExamID      uint          `json:"exam_id"`
	StudentID   string        `json:"student_id"`
	StudentName string        `json:"student_name"`
	Status      AttemptStatus `json:"status"`
	StartedAt   *time.Time    `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at"`
	TotalScore  *float64      `json:"total_score"`
	MaxScore    float64       `json:"max_score"`
}

// ===== GRADING DTOs =====

type HumanGradeRequest struct {
	Score    float64 `json:"score" validate:"min=0"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

type EnqueueGradingRequest struct {
	AnswerID     *uint `json:"answer_id"`
	ForceRegrade bool  `json:"force_regrade"`
}

type EnqueueGradingResponse struct {
	Total    int `json:"total"`
	Enqueued int `json:"enqueued"`
	Skipped  int `json:"skipped"`
}

type ResetStuckResponse struct {
	ExamID     uint `json:"exam_id"`
	ResetCount int  `json:"reset_count"`
}

type GradeResponse struct {
	AnswerID  uint       `json:"answer_id"`
	Score     float64    `json:"score"`
	MaxScore  float64    `json:"max_score"`
	IsCorrect bool       `json:"is_correct"`
	Feedback  *string    `json:"feedback"`
	Rationale *string    `json:"rationale"`
	GradedBy  *string    `json:"graded_by"`
	Automatic bool       `json:"automatic"`
	Locked    bool       `json:"locked"`
	GradedAt  *time.Time `json:"graded_at"`
}

// ===== PROCTORING DTOs =====

type CopyPasteMatch struct {
	CopyAt          time.Time `json:"copy_at"`
	PasteAt         time.Time `json:"paste_at"`
	SelectionLength int       `json:"selection_length"`
	PasteLength     int       `json:"paste_length"`
	Strong          bool      `json:"strong"`
}

type SuspicionReport struct {
	AttemptID        uint                     `json:"attempt_id"`
	EventCounts      map[ProctorEventType]int `json:"event_counts"`
	SuspiciousPairs  []CopyPasteMatch         `json:"suspicious_pairs"`
	ExternalPastes   int                      `json:"external_pastes"`
	AnswersNearFocus int                      `json:"answers_near_focus_loss"`
	AnswersTotal     int                      `json:"answers_total"`
	FocusPattern     SuspicionLevel           `json:"focus_pattern"`
	CompositeScore   int                      `json:"composite_score"`
}

// ===== VALIDATION RESPONSES =====

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value"`
	Code    string `json:"code"`
}

type BusinessRuleViolation struct {
	Rule        string `json:"rule"`
	Message     string `json:"message"`
	Severity    string `json:"severity"` // error, warning, info
	CanOverride bool   `json:"can_override"`
}

// ===== ERROR RESPONSES =====

type ErrorResponse struct {
	Error                  string                    `json:"error"`
	Message                string                    `json:"message"`
	Code                   string                    `json:"code"`
	Details                interface{}               `json:"details,omitempty"`
	Timestamp              time.Time                 `json:"timestamp"`
	Path                   string                    `json:"path"`
	ValidationErrors       []ValidationErrorResponse `json:"validation_errors,omitempty"`
	BusinessRuleViolations []BusinessRuleViolation   `json:"business_rule_violations,omitempty"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
