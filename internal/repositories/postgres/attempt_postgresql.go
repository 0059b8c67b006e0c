package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/grading-integrity-service/internal/cache"
	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	db := a.getDB(tx)
	// Writes inside transactions must see the current row, never a
	// cached copy.
	if tx != nil {
		var attempt models.ExamAttempt
		if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
			return nil, err
		}
		return &attempt, nil
	}

	cacheKey := fmt.Sprintf("attempt:id:%d", id)
	var attempt models.ExamAttempt

	err := a.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &attempt, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbAttempt models.ExamAttempt
		if err := db.WithContext(ctx).First(&dbAttempt, id).Error; err != nil {
			return nil, err
		}
		return &dbAttempt, nil
	})

	return &attempt, err
}

func (a *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	db := a.getDB(tx)
	var attempt models.ExamAttempt
	if err := db.WithContext(ctx).
		Preload("Exam").
		Preload("Answers").
		Preload("Answers.Question.Segments").
		Preload("Answers.Segments").
		Preload("Answers.Grade").
		First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get attempt with details: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	cache.InvalidateAttemptCache(ctx, a.cacheManager, attempt.ID)
	return nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.ExamAttempt
	var total int64

	// apply filter first
	query := db.WithContext(ctx).Model(&models.ExamAttempt{})
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Student").Preload("Exam").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	filters.ExamID = &examID
	return a.List(ctx, tx, filters)
}

func (a *AttemptPostgreSQL) GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamAttempt, error) {
	db := a.getDB(tx)
	var attempt models.ExamAttempt
	if err := db.WithContext(ctx).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) HasActiveAttempt(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (bool, error) {
	db := a.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("student_id = ? AND exam_id = ? AND status = ?", studentID, examID, models.AttemptInProgress).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *AttemptPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update attempt status: %w", err)
	}
	cache.InvalidateAttemptCache(ctx, a.cacheManager, id)
	return nil
}

func (a *AttemptPostgreSQL) GetIDsByExamAndStatus(ctx context.Context, tx *gorm.DB, examID uint, status models.AttemptStatus) ([]uint, error) {
	db := a.getDB(tx)
	var ids []uint
	if err := db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ? AND status = ?", examID, status).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempt ids by status: %w", err)
	}
	return ids, nil
}

func (a *AttemptPostgreSQL) BulkUpdateStatus(ctx context.Context, tx *gorm.DB, ids []uint, status models.AttemptStatus) error {
	if err := a.helpers.BulkUpdateAttemptStatus(ctx, tx, ids, status); err != nil {
		return err
	}
	for _, id := range ids {
		cache.InvalidateAttemptCache(ctx, a.cacheManager, id)
	}
	return nil
}

// GradingCounts tallies the attempt's answers and how many carry a
// grade, in one query each. The status derivation runs on this.
func (a *AttemptPostgreSQL) GradingCounts(ctx context.Context, tx *gorm.DB, attemptID uint) (*repositories.AttemptGradingCounts, error) {
	db := a.getDB(tx)
	counts := &repositories.AttemptGradingCounts{AttemptID: attemptID}

	var total int64
	if err := db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("attempt_id = ?", attemptID).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count answers: %w", err)
	}
	counts.Total = int(total)

	var graded int64
	if err := db.WithContext(ctx).
		Table("answers").
		Joins("JOIN grades g ON g.answer_id = answers.id").
		Where("answers.attempt_id = ?", attemptID).
		Count(&graded).Error; err != nil {
		return nil, fmt.Errorf("failed to count graded answers: %w", err)
	}
	counts.Graded = int(graded)

	return counts, nil
}

func (a *AttemptPostgreSQL) GetExamAttemptStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.AttemptStats, error) {
	totalAttempts, err := a.helpers.CountAttempts(ctx, examID)
	if err != nil {
		return nil, err
	}

	statusBreakdown := make(map[models.AttemptStatus]int)
	statuses := []models.AttemptStatus{models.AttemptInProgress, models.AttemptSubmitted, models.AttemptGradingInProgress, models.AttemptGraded}
	for _, status := range statuses {
		count, err := a.helpers.CountAttemptsByStatus(ctx, examID, status)
		if err != nil {
			return nil, err
		}
		statusBreakdown[status] = int(count)
	}

	var avgScore float64
	a.db.WithContext(ctx).
		Table("grades g").
		Joins("JOIN answers ans ON ans.id = g.answer_id").
		Joins("JOIN exam_attempts ea ON ea.id = ans.attempt_id").
		Where("ea.exam_id = ?", examID).
		Select("COALESCE(AVG(g.score), 0)").
		Scan(&avgScore)

	return &repositories.AttemptStats{
		TotalAttempts:   int(totalAttempts),
		StatusBreakdown: statusBreakdown,
		AverageScore:    avgScore,
	}, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// ===== ANSWER REPOSITORY IMPLEMENTATION =====

// AnswerPostgreSQL implements the AnswerRepository interface
type AnswerPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

// NewAnswerPostgreSQL creates a new answer repository instance
func NewAnswerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// Create creates a new answer
func (ar *AnswerPostgreSQL) Create(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	db := ar.getDB(tx)
	if err := db.WithContext(ctx).Create(answer).Error; err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	// Invalidate related caches
	ar.cacheManager.Fast.Delete(ctx,
		fmt.Sprintf("attempt:%d:answers", answer.AttemptID),
		fmt.Sprintf("attempt:%d:question:%d", answer.AttemptID, answer.QuestionID),
	)

	return nil
}

// GetByID retrieves an answer by ID
func (ar *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	db := ar.getDB(tx)
	var answer models.Answer
	if err := db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

// GetByIDWithDetails retrieves an answer by ID with related data
func (ar *AnswerPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	db := ar.getDB(tx)
	var answer models.Answer
	if err := db.WithContext(ctx).
		Preload("Attempt").
		Preload("Question.Segments").
		Preload("Segments").
		Preload("Grade").
		First(&answer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get answer with details: %w", err)
	}
	return &answer, nil
}

// CreateBatch creates multiple answers in a batch
func (ar *AnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	if len(answers) == 0 {
		return nil
	}

	db := ar.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(answers, 100).Error; err != nil {
		return fmt.Errorf("failed to create answers batch: %w", err)
	}

	// Invalidate caches for all affected attempts
	attemptIDs := make(map[uint]bool)
	for _, answer := range answers {
		attemptIDs[answer.AttemptID] = true
	}
	for attemptID := range attemptIDs {
		ar.cacheManager.Fast.InvalidatePattern(ctx, fmt.Sprintf("attempt:%d:*", attemptID))
	}

	return nil
}

// GetByAttempt retrieves all answers for an attempt with question,
// segment and grade details preloaded
func (ar *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	db := ar.getDB(tx)
	var answers []*models.Answer
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Preload("Question.Segments").
		Preload("Segments").
		Preload("Grade").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get answers by attempt: %w", err)
	}
	return answers, nil
}

// GetByAttemptAndQuestion retrieves a specific answer for an attempt and question
func (ar *AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error) {
	db := ar.getDB(tx)
	var answer models.Answer
	if err := db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		Preload("Segments").
		First(&answer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return &answer, nil
}

// SaveSegments upserts the autosaved contents for an answer, one row per
// question segment, stamping saved_at on every touched row.
func (ar *AnswerPostgreSQL) SaveSegments(ctx context.Context, tx *gorm.DB, answerID uint, contents map[uint]string, savedAt time.Time) error {
	if len(contents) == 0 {
		return nil
	}

	db := ar.getDB(tx)
	rows := make([]models.AnswerSegment, 0, len(contents))
	for segmentID, content := range contents {
		rows = append(rows, models.AnswerSegment{
			AnswerID:  answerID,
			SegmentID: segmentID,
			Content:   content,
			SavedAt:   &savedAt,
		})
	}

	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "answer_id"}, {Name: "segment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "saved_at", "updated_at"}),
		}).
		Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save answer segments: %w", err)
	}

	return nil
}

// GetAnswerTimestamps returns the latest autosave time per answer for an
// attempt. Answers that were never saved are omitted.
func (ar *AnswerPostgreSQL) GetAnswerTimestamps(ctx context.Context, tx *gorm.DB, attemptID uint) ([]repositories.AnswerTimestamp, error) {
	db := ar.getDB(tx)
	var timestamps []repositories.AnswerTimestamp
	if err := db.WithContext(ctx).
		Table("answer_segments seg").
		Joins("JOIN answers a ON a.id = seg.answer_id").
		Where("a.attempt_id = ? AND seg.saved_at IS NOT NULL", attemptID).
		Select("a.id AS answer_id, a.question_id AS question_id, MAX(seg.saved_at) AS saved_at").
		Group("a.id, a.question_id").
		Order("saved_at ASC").
		Scan(&timestamps).Error; err != nil {
		return nil, fmt.Errorf("failed to get answer timestamps: %w", err)
	}
	return timestamps, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (ar *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}
