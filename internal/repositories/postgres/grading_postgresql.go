package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GradePostgreSQL implements the GradeRepository interface
type GradePostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewGradePostgreSQL(db *gorm.DB) repositories.GradeRepository {
	return &GradePostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (g *GradePostgreSQL) Create(ctx context.Context, tx *gorm.DB, grade *models.Grade) error {
	db := g.getDB(tx)
	if err := db.WithContext(ctx).Create(grade).Error; err != nil {
		return fmt.Errorf("failed to create grade: %w", err)
	}
	return nil
}

func (g *GradePostgreSQL) Update(ctx context.Context, tx *gorm.DB, grade *models.Grade) error {
	db := g.getDB(tx)
	if err := db.WithContext(ctx).Save(grade).Error; err != nil {
		return fmt.Errorf("failed to update grade: %w", err)
	}
	return nil
}

func (g *GradePostgreSQL) GetByAnswer(ctx context.Context, tx *gorm.DB, answerID uint) (*models.Grade, error) {
	db := g.getDB(tx)
	var grade models.Grade
	if err := db.WithContext(ctx).
		Where("answer_id = ?", answerID).
		First(&grade).Error; err != nil {
		return nil, err
	}
	return &grade, nil
}

// GetByAnswerForUpdate locks the grade row (SELECT ... FOR UPDATE) so a
// provenance check and the subsequent write can't interleave with a
// concurrent grader. Must run inside a transaction.
func (g *GradePostgreSQL) GetByAnswerForUpdate(ctx context.Context, tx *gorm.DB, answerID uint) (*models.Grade, error) {
	db := g.getDB(tx)
	var grade models.Grade
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("answer_id = ?", answerID).
		First(&grade).Error; err != nil {
		return nil, err
	}
	return &grade, nil
}

// ClearProvenance strips the human/lock markers from a grade so the
// next automatic write goes through. Used by forced re-grade only.
func (g *GradePostgreSQL) ClearProvenance(ctx context.Context, tx *gorm.DB, answerID uint) error {
	db := g.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.Grade{}).
		Where("answer_id = ?", answerID).
		Updates(map[string]interface{}{
			"graded_by": nil,
			"locked":    false,
		}).Error; err != nil {
		return fmt.Errorf("failed to clear grade provenance: %w", err)
	}
	return nil
}

func (g *GradePostgreSQL) GetGradingStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.GradingStats, error) {
	db := g.getDB(tx)
	stats := &repositories.GradingStats{}

	// Total answers for the exam
	var totalAnswers int64
	if err := db.WithContext(ctx).
		Table("answers ans").
		Joins("JOIN exam_attempts ea ON ea.id = ans.attempt_id").
		Where("ea.exam_id = ?", examID).
		Count(&totalAnswers).Error; err != nil {
		return nil, fmt.Errorf("failed to count total answers: %w", err)
	}
	stats.TotalAnswers = int(totalAnswers)

	// Graded answers
	var gradedAnswers int64
	if err := db.WithContext(ctx).
		Table("grades g").
		Joins("JOIN answers ans ON ans.id = g.answer_id").
		Joins("JOIN exam_attempts ea ON ea.id = ans.attempt_id").
		Where("ea.exam_id = ?", examID).
		Count(&gradedAnswers).Error; err != nil {
		return nil, fmt.Errorf("failed to count graded answers: %w", err)
	}
	stats.GradedAnswers = int(gradedAnswers)
	stats.PendingAnswers = int(totalAnswers - gradedAnswers)

	// Automatic grades (graded_by IS NULL)
	var autoGraded int64
	if err := db.WithContext(ctx).
		Table("grades g").
		Joins("JOIN answers ans ON ans.id = g.answer_id").
		Joins("JOIN exam_attempts ea ON ea.id = ans.attempt_id").
		Where("ea.exam_id = ? AND g.graded_by IS NULL", examID).
		Count(&autoGraded).Error; err != nil {
		return nil, fmt.Errorf("failed to count automatic grades: %w", err)
	}
	stats.AutoGraded = int(autoGraded)
	stats.ManualGraded = int(gradedAnswers - autoGraded)

	// Locked grades
	var locked int64
	if err := db.WithContext(ctx).
		Table("grades g").
		Joins("JOIN answers ans ON ans.id = g.answer_id").
		Joins("JOIN exam_attempts ea ON ea.id = ans.attempt_id").
		Where("ea.exam_id = ? AND g.locked = true", examID).
		Count(&locked).Error; err != nil {
		return nil, fmt.Errorf("failed to count locked grades: %w", err)
	}
	stats.LockedGrades = int(locked)

	// Average score
	var avgScore float64
	if err := db.WithContext(ctx).
		Table("grades g").
		Joins("JOIN answers ans ON ans.id = g.answer_id").
		Joins("JOIN exam_attempts ea ON ea.id = ans.attempt_id").
		Where("ea.exam_id = ?", examID).
		Select("COALESCE(AVG(g.score), 0)").
		Scan(&avgScore).Error; err != nil {
		return nil, fmt.Errorf("failed to get average score: %w", err)
	}
	stats.AverageScore = avgScore

	return stats, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (g *GradePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return g.db
}

// ===== IDEMPOTENCY REPOSITORY IMPLEMENTATION =====

// IdempotencyPostgreSQL implements the IdempotencyRepository interface
type IdempotencyPostgreSQL struct {
	db *gorm.DB
}

func NewIdempotencyPostgreSQL(db *gorm.DB) repositories.IdempotencyRepository {
	return &IdempotencyPostgreSQL{db: db}
}

// Create inserts the record. The unique index on
// (attempt_id, request_id, operation) makes the first writer win; a
// duplicate insert comes back as gorm.ErrDuplicatedKey.
func (i *IdempotencyPostgreSQL) Create(ctx context.Context, tx *gorm.DB, record *models.IdempotencyRecord) error {
	db := i.getDB(tx)
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return gorm.ErrDuplicatedKey
		}
		return fmt.Errorf("failed to create idempotency record: %w", err)
	}
	return nil
}

func (i *IdempotencyPostgreSQL) Get(ctx context.Context, tx *gorm.DB, attemptID uint, requestID string, op models.IdempotencyOperation) (*models.IdempotencyRecord, error) {
	db := i.getDB(tx)
	var record models.IdempotencyRecord
	if err := db.WithContext(ctx).
		Where("attempt_id = ? AND request_id = ? AND operation = ?", attemptID, requestID, op).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (i *IdempotencyPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return i.db
}

// ===== PROCTOR EVENT REPOSITORY IMPLEMENTATION =====

// ProctorEventPostgreSQL implements the ProctorEventRepository interface
type ProctorEventPostgreSQL struct {
	db *gorm.DB
}

func NewProctorEventPostgreSQL(db *gorm.DB) repositories.ProctorEventRepository {
	return &ProctorEventPostgreSQL{db: db}
}

func (p *ProctorEventPostgreSQL) Create(ctx context.Context, tx *gorm.DB, event *models.ProctorEvent) error {
	db := p.getDB(tx)
	if err := db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create proctor event: %w", err)
	}
	return nil
}

// GetByAttempt returns the attempt's events in occurrence order, which
// the analyzer's copy/paste pairing depends on.
func (p *ProctorEventPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.ProctorEvent, error) {
	db := p.getDB(tx)
	var events []*models.ProctorEvent
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to get proctor events: %w", err)
	}
	return events, nil
}

func (p *ProctorEventPostgreSQL) CountByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error) {
	db := p.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.ProctorEvent{}).
		Where("attempt_id = ?", attemptID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (p *ProctorEventPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}
