package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/grading-integrity-service/internal/cache"
	"github.com/SAP-F-2025/grading-integrity-service/internal/events"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
	"github.com/SAP-F-2025/grading-integrity-service/internal/scorer"
	"github.com/SAP-F-2025/grading-integrity-service/internal/validator"
)

// Dependencies carries the external collaborators the services need
// beyond the database and repositories.
type Dependencies struct {
	Publisher  events.EventPublisher
	Subscriber message.Subscriber
	Scorer     scorer.ExternalScorer
	RateBudget *cache.RateBudget
	NonceCache *cache.NonceCache

	// GradingWorkers is the size of the async grading pool; zero
	// disables the in-process worker (another replica consumes jobs).
	GradingWorkers int
}

// serviceManager implements ServiceManager.
type serviceManager struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	deps      Dependencies

	integrityService    IntegrityService
	attemptService      AttemptService
	gradingService      GradingService
	orchestratorService OrchestratorService
	proctoringService   ProctoringService
	worker              *GradingWorker

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a service manager with all dependencies.
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps Dependencies) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		deps:      deps,
	}
}

// NewDefaultServiceManager is NewServiceManager with the production
// default of four grading workers when none is set.
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps Dependencies) ServiceManager {
	if deps.GradingWorkers == 0 && deps.Subscriber != nil {
		deps.GradingWorkers = 4
	}
	return NewServiceManager(db, repo, logger, validator, deps)
}

// Initialize wires the services together and starts the grading worker
// pool.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.integrityService = NewIntegrityService(sm.logger, sm.deps.RateBudget, sm.deps.NonceCache)
	sm.attemptService = NewAttemptService(sm.repo, sm.db, sm.logger, sm.validator, sm.integrityService, sm.deps.Publisher)
	sm.gradingService = NewGradingService(sm.db, sm.repo, sm.logger, sm.validator, sm.deps.Publisher)
	sm.orchestratorService = NewOrchestratorService(sm.repo, sm.logger, sm.deps.Publisher)
	sm.proctoringService = NewProctoringService(sm.repo, sm.logger, sm.validator)

	if sm.deps.Subscriber != nil && sm.deps.GradingWorkers > 0 {
		sm.worker = NewGradingWorker(sm.repo, sm.logger, sm.gradingService, sm.deps.Scorer, sm.deps.Subscriber, sm.deps.GradingWorkers)
		if err := sm.worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start grading worker: %w", err)
		}
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// ===== SERVICE GETTERS =====

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.attemptService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.gradingService
}

func (sm *serviceManager) Orchestrator() OrchestratorService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.orchestratorService
}

func (sm *serviceManager) Proctoring() ProctoringService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.proctoringService
}

func (sm *serviceManager) Integrity() IntegrityService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.integrityService
}

// ===== HEALTH AND LIFECYCLE =====

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.worker != nil {
		sm.worker.Stop()
	}

	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	if repoManager, ok := sm.repo.(repositories.RepositoryManager); ok {
		if err := repoManager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
