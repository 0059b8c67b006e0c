package models

import (
	"time"
)

// Grade is the 1:1 scoring record for an answer.
//
// GradedBy nil means the grade was produced automatically (inline
// objective scoring or the async grading worker). A non-nil GradedBy is
// a human grader's user id. Locked is monotonic: once true it never
// goes back to false except through an explicit forced re-grade.
type Grade struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	AnswerID uint `json:"answer_id" gorm:"not null;uniqueIndex"`

	Score     float64 `json:"score" gorm:"not null"`
	MaxScore  float64 `json:"max_score" gorm:"not null"`
	IsCorrect bool    `json:"is_correct" gorm:"default:false"`

	Feedback  *string `json:"feedback" gorm:"type:text"`
	Rationale *string `json:"rationale" gorm:"type:text"` // model-produced explanation

	GradedBy *string    `json:"graded_by" gorm:"index;size:255"`
	Locked   bool       `json:"locked" gorm:"default:false"`
	GradedAt *time.Time `json:"graded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answer Answer `json:"-" gorm:"foreignKey:AnswerID"`
	Grader *User  `json:"grader,omitempty" gorm:"foreignKey:GradedBy"`
}

// IsHuman reports whether the grade was written by a human grader.
func (g *Grade) IsHuman() bool {
	return g.GradedBy != nil
}

// AllowsAutomaticWrite reports whether an automatic grader may overwrite
// this grade: only unlocked automatic grades are replaceable.
func (g *Grade) AllowsAutomaticWrite() bool {
	return !g.IsHuman() && !g.Locked
}
