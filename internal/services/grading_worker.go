package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/SAP-F-2025/grading-integrity-service/internal/events"
	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
	"github.com/SAP-F-2025/grading-integrity-service/internal/scorer"
)

// GradingWorker consumes grading jobs and writes the resulting grades
// through the provenance-checked automatic path. Delivery is
// at-least-once: a redelivered job re-scores the answer and the write
// path tolerates the duplicate.
type GradingWorker struct {
	repo       repositories.Repository
	logger     *slog.Logger
	grading    GradingService
	scorer     scorer.ExternalScorer
	subscriber message.Subscriber
	workers    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGradingWorker(
	repo repositories.Repository,
	logger *slog.Logger,
	grading GradingService,
	extScorer scorer.ExternalScorer,
	subscriber message.Subscriber,
	workers int,
) *GradingWorker {
	if workers < 1 {
		workers = 1
	}
	return &GradingWorker{
		repo:       repo,
		logger:     logger,
		grading:    grading,
		scorer:     extScorer,
		subscriber: subscriber,
		workers:    workers,
	}
}

// Start subscribes to the grading jobs topic and fans messages out to
// the worker pool. Returns once the subscription is established.
func (w *GradingWorker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	messages, err := w.subscriber.Subscribe(ctx, events.TopicGradingJobs)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to grading jobs: %w", err)
	}

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func(workerID int) {
			defer w.wg.Done()
			for msg := range messages {
				w.handleMessage(ctx, workerID, msg)
			}
		}(i)
	}

	w.logger.Info("Grading worker started", "workers", w.workers)
	return nil
}

// Stop cancels the subscription and waits for in-flight jobs.
func (w *GradingWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("Grading worker stopped")
}

// handleMessage always acks: a job that fails permanently would
// otherwise redeliver forever, and failed answers stay visible as
// ungraded, so the operator can re-enqueue them.
func (w *GradingWorker) handleMessage(ctx context.Context, workerID int, msg *message.Message) {
	defer msg.Ack()

	job, err := decodeGradingJob(msg.Payload)
	if err != nil {
		w.logger.Error("failed to decode grading job",
			"worker", workerID,
			"message_id", msg.UUID,
			"error", err)
		return
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Error("grading job failed",
			"worker", workerID,
			"attempt_id", job.AttemptID,
			"answer_id", job.AnswerID,
			"error", err)
		return
	}

	w.logger.Debug("grading job processed",
		"worker", workerID,
		"answer_id", job.AnswerID)
}

func (w *GradingWorker) processJob(ctx context.Context, job *events.GradingJobPayload) error {
	answer, err := w.repo.Answer().GetByIDWithDetails(ctx, nil, job.AnswerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAnswerNotFound
		}
		return fmt.Errorf("failed to load answer: %w", err)
	}

	// Multi-select jobs are unusual (submission scores them inline) but
	// harmless: the deterministic scorer reproduces the same grade.
	if answer.Question.IsAutoScorable() {
		result := ScoreMultiSelect(&answer.Question, answer.Segments)
		_, err := w.grading.WriteAutomaticGrade(ctx, answer.ID, result.Score, result.MaxScore, nil, nil)
		return err
	}

	result, err := w.scoreOpenEnded(ctx, answer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalScorerFailure, err)
	}

	written, err := w.grading.WriteAutomaticGrade(ctx, answer.ID, result.Score, float64(answer.Question.MaxPoints()), strOrNil(result.Feedback), strOrNil(result.Rationale))
	if err != nil {
		return err
	}
	if !written {
		w.logger.Info("worker grade skipped, human or locked grade present",
			"answer_id", answer.ID)
	}
	return nil
}

func (w *GradingWorker) scoreOpenEnded(ctx context.Context, answer *models.Answer) (*scorer.ScoreResult, error) {
	rubric := ""
	if answer.Question.Rubric != nil {
		rubric = *answer.Question.Rubric
	}

	responses := make([]string, 0, len(answer.Segments))
	for _, seg := range answer.Segments {
		responses = append(responses, seg.Content)
	}

	return w.scorer.Score(ctx, &scorer.ScoreRequest{
		QuestionText: answer.Question.Text,
		Rubric:       rubric,
		MaxPoints:    answer.Question.MaxPoints(),
		Responses:    responses,
	})
}

func decodeGradingJob(payload []byte) (*events.GradingJobPayload, error) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("invalid event envelope: %w", err)
	}

	var job events.GradingJobPayload
	if err := json.Unmarshal(envelope.Data, &job); err != nil {
		return nil, fmt.Errorf("invalid job payload: %w", err)
	}
	if job.AnswerID == 0 {
		return nil, fmt.Errorf("job has no answer id")
	}
	return &job, nil
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
