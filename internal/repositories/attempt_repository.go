package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"gorm.io/gorm"
)

// AttemptRepository interface for exam attempt operations
type AttemptRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) // Include answers, grades, segments
	Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamAttempt, error)
	HasActiveAttempt(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (bool, error)

	// Status operations
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error
	GetIDsByExamAndStatus(ctx context.Context, tx *gorm.DB, examID uint, status models.AttemptStatus) ([]uint, error)
	BulkUpdateStatus(ctx context.Context, tx *gorm.DB, ids []uint, status models.AttemptStatus) error

	// Grading support
	GradingCounts(ctx context.Context, tx *gorm.DB, attemptID uint) (*AttemptGradingCounts, error)

	// Statistics
	GetExamAttemptStats(ctx context.Context, tx *gorm.DB, examID uint) (*AttemptStats, error)
}

// AnswerRepository interface for answer and answer segment operations
type AnswerRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) // Include question, segments, grade

	// Bulk operations
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error

	// Query operations
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error)
	GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error)

	// Autosave support
	SaveSegments(ctx context.Context, tx *gorm.DB, answerID uint, contents map[uint]string, savedAt time.Time) error
	GetAnswerTimestamps(ctx context.Context, tx *gorm.DB, attemptID uint) ([]AnswerTimestamp, error)
}
