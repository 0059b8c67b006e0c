package models

import (
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress        AttemptStatus = "in_progress"
	AttemptSubmitted         AttemptStatus = "submitted"
	AttemptGradingInProgress AttemptStatus = "grading_in_progress"
	AttemptGraded            AttemptStatus = "graded"
)

const (
	AttemptEndReasonManual  = "manual"
	AttemptEndReasonTimeout = "time_out"
)

// ExamAttempt is one student's single exam-taking session. One row per
// (student, exam).
type ExamAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	ExamID    uint          `json:"exam_id" gorm:"not null;index;uniqueIndex:idx_student_exam_attempt"`
	StudentID string        `json:"student_id" gorm:"not null;index;size:255;uniqueIndex:idx_student_exam_attempt"`
	Status    AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing
	StartedAt   *time.Time `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"` // hard deadline derived from exam duration
	SubmittedAt *time.Time `json:"submitted_at"`
	EndReason   *string    `json:"end_reason" gorm:"type:text"`

	// IntegrityNonce is issued once when the attempt starts and never
	// rotated; the submit request must present it bit-for-bit.
	IntegrityNonce string `json:"-" gorm:"not null;size:64"`

	// Metadata
	IPAddress *string `json:"ip_address" gorm:"size:45"`
	UserAgent *string `json:"user_agent" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam          Exam           `json:"exam" gorm:"foreignKey:ExamID"`
	Student       User           `json:"student" gorm:"foreignKey:StudentID"`
	Answers       []Answer       `json:"answers" gorm:"foreignKey:AttemptID"`
	ProctorEvents []ProctorEvent `json:"proctor_events" gorm:"foreignKey:AttemptID"`
}

// Answer holds a student's response to one question of one attempt.
type Answer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt  ExamAttempt     `json:"attempt" gorm:"foreignKey:AttemptID"`
	Question Question        `json:"question" gorm:"foreignKey:QuestionID"`
	Segments []AnswerSegment `json:"segments" gorm:"foreignKey:AnswerID"`
	Grade    *Grade          `json:"grade" gorm:"foreignKey:AnswerID"`
}

// AnswerSegment is a sub-answer for a multi-part question, autosaved
// while the attempt is in progress.
type AnswerSegment struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	AnswerID  uint `json:"answer_id" gorm:"not null;index;uniqueIndex:idx_answer_segment"`
	SegmentID uint `json:"segment_id" gorm:"not null;index;uniqueIndex:idx_answer_segment"`

	Content string     `json:"content" gorm:"type:text"`
	SavedAt *time.Time `json:"saved_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answer  Answer          `json:"answer" gorm:"foreignKey:AnswerID"`
	Segment QuestionSegment `json:"segment" gorm:"foreignKey:SegmentID"`
}

// SelectionValue reports whether the stored content counts as a
// selection for multi-select scoring: non-empty and not "false".
func (s *AnswerSegment) Selected() bool {
	return s.Content != "" && s.Content != "false"
}
