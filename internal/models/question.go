package models

import (
	"time"
)

type QuestionType string

const (
	MultiSelect QuestionType = "multi_select"
	OpenEnded   QuestionType = "open_ended"
)

// ScoringMode applies to multi-select questions only.
type ScoringMode string

const (
	ScoringPartialCredit ScoringMode = "partial_credit"
	ScoringExactMatch    ScoringMode = "exact_match" // all-or-nothing
)

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	ExamID uint         `json:"exam_id" gorm:"not null;index"`
	Type   QuestionType `json:"type" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Order  int          `json:"order" gorm:"default:0"`

	// PointsCap overrides the sum of segment points when set.
	PointsCap   *int        `json:"points_cap" validate:"omitempty,min=1,max=100"`
	ScoringMode ScoringMode `json:"scoring_mode" gorm:"default:partial_credit"`

	// Rubric drives the external grading model for open-ended questions.
	Rubric *string `json:"rubric" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam     Exam              `json:"exam" gorm:"foreignKey:ExamID"`
	Segments []QuestionSegment `json:"segments" gorm:"foreignKey:QuestionID"`
	Creator  User              `json:"creator" gorm:"foreignKey:CreatedBy"`
}

// QuestionSegment is one selectable option (multi-select) or one
// sub-answer slot (multi-part open-ended question).
type QuestionSegment struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`

	Text    string `json:"text" gorm:"type:text"`
	Correct bool   `json:"correct" gorm:"default:false"`
	Points  int    `json:"points" gorm:"default:0"`
	Order   int    `json:"order" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Question Question `json:"question" gorm:"foreignKey:QuestionID"`
}

// MaxPoints resolves the question's point budget: the explicit cap when
// set, otherwise the sum of the segments' point values.
func (q *Question) MaxPoints() int {
	if q.PointsCap != nil {
		return *q.PointsCap
	}
	total := 0
	for _, seg := range q.Segments {
		total += seg.Points
	}
	return total
}

// IsAutoScorable reports whether the deterministic scorer can grade the
// question inline; open-ended questions go through the async pipeline.
func (q *Question) IsAutoScorable() bool {
	return q.Type == MultiSelect
}
