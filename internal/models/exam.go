package models

import (
	"time"
)

type ExamStatus string

const (
	ExamDraft    ExamStatus = "draft"
	ExamActive   ExamStatus = "active"
	ExamArchived ExamStatus = "archived"
)

type Exam struct {
	ID       uint       `json:"id" gorm:"primaryKey"`
	Title    string     `json:"title" gorm:"not null;size:200" validate:"required"`
	Status   ExamStatus `json:"status" gorm:"default:draft;index"`
	Duration int        `json:"duration"` // minutes

	// Results become visible to students only when this flag is set,
	// independently of individual attempts reaching the graded state.
	ResultsReleased bool `json:"results_released" gorm:"default:false"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	DueDate   *time.Time `json:"due_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Questions []Question `json:"questions" gorm:"foreignKey:ExamID"`
	Creator   User       `json:"creator" gorm:"foreignKey:CreatedBy"`
}
