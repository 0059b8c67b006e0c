package repositories

import (
	"context"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"gorm.io/gorm"
)

// GradeRepository interface for grade record operations
type GradeRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, grade *models.Grade) error
	Update(ctx context.Context, tx *gorm.DB, grade *models.Grade) error
	GetByAnswer(ctx context.Context, tx *gorm.DB, answerID uint) (*models.Grade, error)

	// GetByAnswerForUpdate takes a row-level lock on the grade so the
	// provenance check and the write happen under the same lock.
	GetByAnswerForUpdate(ctx context.Context, tx *gorm.DB, answerID uint) (*models.Grade, error)

	// Provenance operations
	ClearProvenance(ctx context.Context, tx *gorm.DB, answerID uint) error

	// Statistics
	GetGradingStats(ctx context.Context, tx *gorm.DB, examID uint) (*GradingStats, error)
}

// IdempotencyRepository interface for idempotency record operations
type IdempotencyRepository interface {
	// Create inserts the record; a unique-violation error means the
	// (attempt, request, operation) tuple was already processed.
	Create(ctx context.Context, tx *gorm.DB, record *models.IdempotencyRecord) error
	Get(ctx context.Context, tx *gorm.DB, attemptID uint, requestID string, op models.IdempotencyOperation) (*models.IdempotencyRecord, error)
}

// ProctorEventRepository interface for proctoring signal operations
type ProctorEventRepository interface {
	Create(ctx context.Context, tx *gorm.DB, event *models.ProctorEvent) error
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.ProctorEvent, error)
	CountByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error)
}
