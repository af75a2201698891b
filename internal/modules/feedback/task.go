package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/pkg/apperr"
	"github.com/interviewlab/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

// TaskDetailed is the queue task type for background detailed feedback.
const TaskDetailed = "feedback:detailed"

// ErrShuttingDown is returned for background requests after Close.
var ErrShuttingDown = errors.New("feedback service is shutting down")

// TaskQueue is the subset of the task queue the feedback service uses.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType, ownerID string, payload interface{}, dedupKey string) (*taskqueue.Task, bool, error)
	GetByID(ctx context.Context, id string) (*taskqueue.Task, error)
	UpdateStatus(ctx context.Context, id string, status taskqueue.TaskStatus, result interface{}, errMsg string) error
}

type detailedPayload struct {
	AnswerID string `json:"answer_id"`
}

// DetailedJob is the outcome of an async detailed request: either the
// feedback is already complete or a task tracks its generation.
type DetailedJob struct {
	Task     *taskqueue.Task             `json:"task,omitempty"`
	Feedback *models.AnswerFeedbackModel `json:"feedback,omitempty"`
}

// WithQueue enables background detailed generation.
func (s *Service) WithQueue(q TaskQueue) *Service {
	s.queue = q
	return s
}

// AsyncEnabled reports whether a task queue is configured.
func (s *Service) AsyncEnabled() bool { return s.queue != nil }

// EnqueueDetailed schedules detailed generation in the background. Ownership
// and the quick-first precondition are checked before anything is queued.
// Repeated requests for the same answer share one pending task.
func (s *Service) EnqueueDetailed(ctx context.Context, userID, answerID string) (*DetailedJob, error) {
	if s.queue == nil {
		return nil, apperr.Precondition("background generation is disabled")
	}
	if _, err := s.loadOwnedAnswer(ctx, userID, answerID); err != nil {
		return nil, err
	}
	fb, err := s.requireQuick(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if fb.HasDetailed() {
		return &DetailedJob{Feedback: fb}, nil
	}

	if !s.beginBackground() {
		return nil, apperr.Upstream("feedback generation unavailable", ErrShuttingDown)
	}
	task, created, err := s.queue.Enqueue(ctx, TaskDetailed, userID, detailedPayload{AnswerID: answerID}, answerID)
	if err != nil {
		s.wg.Done()
		return nil, apperr.Internal("enqueue feedback task failed", err)
	}
	if !created {
		s.wg.Done()
		return &DetailedJob{Task: task}, nil
	}
	go s.executeDetailed(task.ID, userID, answerID)
	return &DetailedJob{Task: task}, nil
}

func (s *Service) executeDetailed(taskID, userID, answerID string) {
	defer s.wg.Done()
	ctx := context.Background()
	log := s.log.With(zap.String("task_id", taskID), zap.String("answer_id", answerID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("detailed feedback task panicked", zap.Any("panic", r))
			_ = s.queue.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := s.queue.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, nil, ""); err != nil {
		log.Warn("mark task running failed", zap.Error(err))
	}

	fb, err := s.EnsureDetailed(ctx, userID, answerID)
	if err != nil {
		if uerr := s.queue.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, apperr.PublicMessage(err)); uerr != nil {
			log.Warn("mark task failed failed", zap.Error(uerr))
		}
		return
	}
	if err := s.queue.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, fb, ""); err != nil {
		log.Warn("mark task completed failed", zap.Error(err))
	}
}

// Task returns a feedback task owned by userID.
func (s *Service) Task(ctx context.Context, userID, taskID string) (*taskqueue.Task, error) {
	if s.queue == nil {
		return nil, apperr.NotFound("task not found")
	}
	task, err := s.queue.GetByID(ctx, taskID)
	if err != nil {
		return nil, apperr.Internal("load task failed", err)
	}
	if task == nil || task.Type != TaskDetailed {
		return nil, apperr.NotFound("task not found")
	}
	if task.OwnerID != userID {
		return nil, apperr.Forbidden("task belongs to another user")
	}
	return task, nil
}
