package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
)

// mockRepository implements repositories.Repository with per-method
// function hooks. Unset hooks return gorm.ErrRecordNotFound for lookups
// and nil for writes, so each test only wires what it exercises.
// WithTransaction runs the callback against the same mock.
type mockRepository struct {
	exam         mockExamRepo
	question     mockQuestionRepo
	attempt      mockAttemptRepo
	answer       mockAnswerRepo
	grade        mockGradeRepo
	idempotency  mockIdempotencyRepo
	proctorEvent mockProctorEventRepo
	user         mockUserRepo
}

func newMockRepository() *mockRepository {
	return &mockRepository{}
}

func (m *mockRepository) Exam() repositories.ExamRepository                 { return &m.exam }
func (m *mockRepository) Question() repositories.QuestionRepository         { return &m.question }
func (m *mockRepository) Attempt() repositories.AttemptRepository           { return &m.attempt }
func (m *mockRepository) Answer() repositories.AnswerRepository             { return &m.answer }
func (m *mockRepository) Grade() repositories.GradeRepository               { return &m.grade }
func (m *mockRepository) Idempotency() repositories.IdempotencyRepository   { return &m.idempotency }
func (m *mockRepository) ProctorEvent() repositories.ProctorEventRepository { return &m.proctorEvent }
func (m *mockRepository) User() repositories.UserRepository                 { return &m.user }

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

// ===== EXAM =====

type mockExamRepo struct {
	GetByIDFn              func(id uint) (*models.Exam, error)
	GetByIDWithQuestionsFn func(id uint) (*models.Exam, error)
	IsOwnerFn              func(examID uint, userID string) (bool, error)
}

func (m *mockExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error { return nil }
func (m *mockExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockExamRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	if m.GetByIDWithQuestionsFn != nil {
		return m.GetByIDWithQuestionsFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error { return nil }
func (m *mockExamRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error           { return nil }
func (m *mockExamRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	return nil, 0, nil
}
func (m *mockExamRepo) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	return nil, 0, nil
}
func (m *mockExamRepo) IsOwner(ctx context.Context, tx *gorm.DB, examID uint, userID string) (bool, error) {
	if m.IsOwnerFn != nil {
		return m.IsOwnerFn(examID, userID)
	}
	return false, nil
}

// ===== QUESTION =====

type mockQuestionRepo struct{}

func (m *mockQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return nil
}
func (m *mockQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	return nil, gorm.ErrRecordNotFound
}
func (m *mockQuestionRepo) GetByIDWithSegments(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	return nil, gorm.ErrRecordNotFound
}
func (m *mockQuestionRepo) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return nil
}
func (m *mockQuestionRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error { return nil }
func (m *mockQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	return nil, nil
}
func (m *mockQuestionRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) {
	return nil, nil
}
func (m *mockQuestionRepo) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int, error) {
	return 0, nil
}

// ===== ATTEMPT =====

type mockAttemptRepo struct {
	CreateFn                func(attempt *models.ExamAttempt) error
	GetByIDFn               func(id uint) (*models.ExamAttempt, error)
	GetByIDWithDetailsFn    func(id uint) (*models.ExamAttempt, error)
	UpdateFn                func(attempt *models.ExamAttempt) error
	HasActiveAttemptFn      func(studentID string, examID uint) (bool, error)
	UpdateStatusFn          func(id uint, status models.AttemptStatus) error
	GetIDsByExamAndStatusFn func(examID uint, status models.AttemptStatus) ([]uint, error)
	BulkUpdateStatusFn      func(ids []uint, status models.AttemptStatus) error
	GradingCountsFn         func(attemptID uint) (*repositories.AttemptGradingCounts, error)
}

func (m *mockAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	if m.CreateFn != nil {
		return m.CreateFn(attempt)
	}
	return nil
}
func (m *mockAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockAttemptRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	if m.GetByIDWithDetailsFn != nil {
		return m.GetByIDWithDetailsFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(attempt)
	}
	return nil
}
func (m *mockAttemptRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	return nil, 0, nil
}
func (m *mockAttemptRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	return nil, 0, nil
}
func (m *mockAttemptRepo) GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamAttempt, error) {
	return nil, gorm.ErrRecordNotFound
}
func (m *mockAttemptRepo) HasActiveAttempt(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (bool, error) {
	if m.HasActiveAttemptFn != nil {
		return m.HasActiveAttemptFn(studentID, examID)
	}
	return false, nil
}
func (m *mockAttemptRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(id, status)
	}
	return nil
}
func (m *mockAttemptRepo) GetIDsByExamAndStatus(ctx context.Context, tx *gorm.DB, examID uint, status models.AttemptStatus) ([]uint, error) {
	if m.GetIDsByExamAndStatusFn != nil {
		return m.GetIDsByExamAndStatusFn(examID, status)
	}
	return nil, nil
}
func (m *mockAttemptRepo) BulkUpdateStatus(ctx context.Context, tx *gorm.DB, ids []uint, status models.AttemptStatus) error {
	if m.BulkUpdateStatusFn != nil {
		return m.BulkUpdateStatusFn(ids, status)
	}
	return nil
}
func (m *mockAttemptRepo) GradingCounts(ctx context.Context, tx *gorm.DB, attemptID uint) (*repositories.AttemptGradingCounts, error) {
	if m.GradingCountsFn != nil {
		return m.GradingCountsFn(attemptID)
	}
	return &repositories.AttemptGradingCounts{AttemptID: attemptID}, nil
}
func (m *mockAttemptRepo) GetExamAttemptStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.AttemptStats, error) {
	return &repositories.AttemptStats{}, nil
}

// ===== ANSWER =====

type mockAnswerRepo struct {
	GetByIDFn            func(id uint) (*models.Answer, error)
	GetByIDWithDetailsFn func(id uint) (*models.Answer, error)
	CreateBatchFn        func(answers []*models.Answer) error
	SaveSegmentsFn       func(answerID uint, contents map[uint]string, savedAt time.Time) error
}

func (m *mockAnswerRepo) Create(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	return nil
}
func (m *mockAnswerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockAnswerRepo) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	if m.GetByIDWithDetailsFn != nil {
		return m.GetByIDWithDetailsFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockAnswerRepo) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	if m.CreateBatchFn != nil {
		return m.CreateBatchFn(answers)
	}
	return nil
}
func (m *mockAnswerRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	return nil, nil
}
func (m *mockAnswerRepo) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error) {
	return nil, gorm.ErrRecordNotFound
}
func (m *mockAnswerRepo) SaveSegments(ctx context.Context, tx *gorm.DB, answerID uint, contents map[uint]string, savedAt time.Time) error {
	if m.SaveSegmentsFn != nil {
		return m.SaveSegmentsFn(answerID, contents, savedAt)
	}
	return nil
}
func (m *mockAnswerRepo) GetAnswerTimestamps(ctx context.Context, tx *gorm.DB, attemptID uint) ([]repositories.AnswerTimestamp, error) {
	return nil, nil
}

// ===== GRADE =====

type mockGradeRepo struct {
	CreateFn              func(grade *models.Grade) error
	UpdateFn              func(grade *models.Grade) error
	GetByAnswerFn         func(answerID uint) (*models.Grade, error)
	GetByAnswerForUpdateF func(answerID uint) (*models.Grade, error)
	ClearProvenanceFn     func(answerID uint) error
}

func (m *mockGradeRepo) Create(ctx context.Context, tx *gorm.DB, grade *models.Grade) error {
	if m.CreateFn != nil {
		return m.CreateFn(grade)
	}
	return nil
}
func (m *mockGradeRepo) Update(ctx context.Context, tx *gorm.DB, grade *models.Grade) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(grade)
	}
	return nil
}
func (m *mockGradeRepo) GetByAnswer(ctx context.Context, tx *gorm.DB, answerID uint) (*models.Grade, error) {
	if m.GetByAnswerFn != nil {
		return m.GetByAnswerFn(answerID)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockGradeRepo) GetByAnswerForUpdate(ctx context.Context, tx *gorm.DB, answerID uint) (*models.Grade, error) {
	if m.GetByAnswerForUpdateF != nil {
		return m.GetByAnswerForUpdateF(answerID)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockGradeRepo) ClearProvenance(ctx context.Context, tx *gorm.DB, answerID uint) error {
	if m.ClearProvenanceFn != nil {
		return m.ClearProvenanceFn(answerID)
	}
	return nil
}
func (m *mockGradeRepo) GetGradingStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.GradingStats, error) {
	return &repositories.GradingStats{}, nil
}

// ===== IDEMPOTENCY =====

type mockIdempotencyRepo struct {
	CreateFn func(record *models.IdempotencyRecord) error
}

func (m *mockIdempotencyRepo) Create(ctx context.Context, tx *gorm.DB, record *models.IdempotencyRecord) error {
	if m.CreateFn != nil {
		return m.CreateFn(record)
	}
	return nil
}
func (m *mockIdempotencyRepo) Get(ctx context.Context, tx *gorm.DB, attemptID uint, requestID string, op models.IdempotencyOperation) (*models.IdempotencyRecord, error) {
	return nil, gorm.ErrRecordNotFound
}

// ===== PROCTOR EVENT =====

type mockProctorEventRepo struct {
	CreateFn       func(event *models.ProctorEvent) error
	GetByAttemptFn func(attemptID uint) ([]*models.ProctorEvent, error)
}

func (m *mockProctorEventRepo) Create(ctx context.Context, tx *gorm.DB, event *models.ProctorEvent) error {
	if m.CreateFn != nil {
		return m.CreateFn(event)
	}
	return nil
}
func (m *mockProctorEventRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.ProctorEvent, error) {
	if m.GetByAttemptFn != nil {
		return m.GetByAttemptFn(attemptID)
	}
	return nil, nil
}
func (m *mockProctorEventRepo) CountByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (int64, error) {
	return 0, nil
}

// ===== USER =====

type mockUserRepo struct {
	GetByIDFn func(id string) (*models.User, error)
	HasRoleFn func(id string, role models.UserRole) (bool, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(id)
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *mockUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}
func (m *mockUserRepo) Search(ctx context.Context, query string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}
func (m *mockUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	if m.HasRoleFn != nil {
		return m.HasRoleFn(id, role)
	}
	return false, nil
}
