package models

import (
	"time"
)

// IdempotencyOperation names the guarded mutation a record covers.
type IdempotencyOperation string

const (
	OpSubmitAttempt IdempotencyOperation = "submit_attempt"
)

// IdempotencyRecord marks one guarded request as already processed.
// The unique index makes the first INSERT win; a conflicting insert
// inside the same transaction as the mutation rolls everything back, so
// a duplicate request can never commit its side effects twice.
type IdempotencyRecord struct {
	ID        uint                 `json:"id" gorm:"primaryKey"`
	AttemptID uint                 `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_request_op"`
	RequestID string               `json:"request_id" gorm:"not null;size:128;uniqueIndex:idx_attempt_request_op"`
	Operation IdempotencyOperation `json:"operation" gorm:"not null;size:64;uniqueIndex:idx_attempt_request_op"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Attempt ExamAttempt `json:"-" gorm:"foreignKey:AttemptID"`
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}
