package repositories

import (
	"time"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Status    *models.ExamStatus `json:"status"`
	CreatedBy *string            `json:"created_by"`
	DateFrom  *time.Time         `json:"date_from"`
	DateTo    *time.Time         `json:"date_to"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title", "due_date"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	ExamID    *uint                 `json:"exam_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type AnswerFilters struct {
	HasGrade *bool      `json:"has_grade"`
	GradedBy *string    `json:"graded_by"`
	DateFrom *time.Time `json:"date_from"`
	DateTo   *time.Time `json:"date_to"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}

// ===== SHARED HELPER STRUCTS =====

// AttemptGradingCounts is the per-attempt answer/grade tally the status
// derivation runs on.
type AttemptGradingCounts struct {
	AttemptID uint `json:"attempt_id"`
	Total     int  `json:"total"`
	Graded    int  `json:"graded"`
}

// AnswerTimestamp is the last autosave time of one answer, used by the
// proctoring analyzer's focus-loss window.
type AnswerTimestamp struct {
	AnswerID   uint      `json:"answer_id"`
	QuestionID uint      `json:"question_id"`
	SavedAt    time.Time `json:"saved_at"`
}

// ===== SHARED STATISTICS STRUCTS =====

type GradingStats struct {
	TotalAnswers   int     `json:"total_answers"`
	GradedAnswers  int     `json:"graded_answers"`
	PendingAnswers int     `json:"pending_answers"`
	AutoGraded     int     `json:"auto_graded"`
	ManualGraded   int     `json:"manual_graded"`
	LockedGrades   int     `json:"locked_grades"`
	AverageScore   float64 `json:"average_score"`
}

type AttemptStats struct {
	TotalAttempts   int                          `json:"total_attempts"`
	StatusBreakdown map[models.AttemptStatus]int `json:"status_breakdown"`
	AverageScore    float64                      `json:"average_score"`
}
