package feedback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/pkg/apperr"
	"github.com/interviewlab/core/internal/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const defaultGenerationTimeout = 90 * time.Second

// Options tune feedback generation.
type Options struct {
	Timeout time.Duration
}

// Service manages the two-tier feedback cache. Quick feedback is produced on
// first request; detailed feedback only on explicit request once quick exists.
type Service struct {
	db       *gorm.DB
	store    *Store
	quick    QuickGenerator
	detailed DetailedGenerator
	queue    TaskQueue
	opts     Options
	log      *zap.Logger
	now      func() time.Time

	group singleflight.Group

	bgMu   sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewService(db *gorm.DB, quick QuickGenerator, detailed DetailedGenerator, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultGenerationTimeout
	}
	return &Service{
		db:       db,
		store:    NewStore(db),
		quick:    quick,
		detailed: detailed,
		opts:     opts,
		log:      log.Named("feedback"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// subject is an owned answer with its parent question.
type subject struct {
	answer   models.AnswerModel
	question models.QuestionModel
}

// Get returns the cached feedback for an owned answer, or nil when none exists.
func (s *Service) Get(ctx context.Context, userID, answerID string) (*models.AnswerFeedbackModel, error) {
	if _, err := s.loadOwnedAnswer(ctx, userID, answerID); err != nil {
		return nil, err
	}
	fb, err := s.store.Find(ctx, answerID)
	if err != nil {
		return nil, apperr.Internal("load feedback failed", err)
	}
	return fb, nil
}

// EnsureQuick returns the quick feedback for an owned answer, generating and
// storing it on the first call.
func (s *Service) EnsureQuick(ctx context.Context, userID, answerID string) (*models.AnswerFeedbackModel, error) {
	sub, err := s.loadOwnedAnswer(ctx, userID, answerID)
	if err != nil {
		return nil, err
	}

	fb, err := s.store.Find(ctx, answerID)
	if err != nil {
		return nil, apperr.Internal("load feedback failed", err)
	}
	if fb != nil {
		metrics.FeedbackCacheResults.WithLabelValues(axisQuick, "hit").Inc()
		return fb, nil
	}
	metrics.FeedbackCacheResults.WithLabelValues(axisQuick, "miss").Inc()

	v, err, _ := s.group.Do(answerID+":"+axisQuick, func() (interface{}, error) {
		return s.generateQuick(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.AnswerFeedbackModel), nil
}

// detach returns a context bounded by the generation timeout that is not
// cancelled with the caller. Generation, store writes and re-reads all use it.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
}

func (s *Service) generateQuick(ctx context.Context, sub *subject) (*models.AnswerFeedbackModel, error) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	// Another request may have stored it while this one waited.
	if fb, err := s.store.Find(ctx, sub.answer.ID); err != nil {
		return nil, apperr.Internal("load feedback failed", err)
	} else if fb != nil {
		return fb, nil
	}

	res, err := s.quick.GenerateQuickFeedback(ctx, QuickInput{
		Question: sub.question.Content,
		Hint:     sub.question.Hint,
		Answer:   sub.answer.Content,
		Topic:    sub.question.Topic,
	})
	if err == nil && res == nil {
		err = errors.New("generator returned no result")
	}
	if err != nil {
		metrics.FeedbackGenerations.WithLabelValues(axisQuick, "error").Inc()
		s.log.Error("quick feedback generation failed", zap.String("answer_id", sub.answer.ID), zap.Error(err))
		return nil, apperr.Upstream("feedback generation failed", err)
	}
	metrics.FeedbackGenerations.WithLabelValues(axisQuick, "ok").Inc()

	outcome, err := s.store.UpsertQuick(ctx, &models.AnswerFeedbackModel{
		AnswerID:         sub.answer.ID,
		UserID:           sub.answer.UserID,
		Keywords:         models.StringArray(res.Keywords),
		Score:            res.Score,
		Summary:          res.Summary,
		ModelID:          res.Model,
		TokensUsed:       res.InputTokens + res.OutputTokens,
		QuickGeneratedAt: s.now(),
	})
	if err != nil {
		return nil, apperr.Internal("save feedback failed", err)
	}
	s.log.Debug("quick feedback stored", zap.String("answer_id", sub.answer.ID), zap.String("outcome", string(outcome)))

	fb, err := s.store.Find(ctx, sub.answer.ID)
	if err != nil {
		return nil, apperr.Internal("load feedback failed", err)
	}
	return fb, nil
}

// EnsureDetailed fills in the detailed group of an owned answer's feedback.
// Quick feedback must already exist.
func (s *Service) EnsureDetailed(ctx context.Context, userID, answerID string) (*models.AnswerFeedbackModel, error) {
	sub, err := s.loadOwnedAnswer(ctx, userID, answerID)
	if err != nil {
		return nil, err
	}
	fb, err := s.requireQuick(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if fb.HasDetailed() {
		metrics.FeedbackCacheResults.WithLabelValues(axisDetailed, "hit").Inc()
		return fb, nil
	}
	metrics.FeedbackCacheResults.WithLabelValues(axisDetailed, "miss").Inc()

	v, err, _ := s.group.Do(answerID+":"+axisDetailed, func() (interface{}, error) {
		return s.generateDetailed(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.AnswerFeedbackModel), nil
}

func (s *Service) requireQuick(ctx context.Context, answerID string) (*models.AnswerFeedbackModel, error) {
	fb, err := s.store.Find(ctx, answerID)
	if err != nil {
		return nil, apperr.Internal("load feedback failed", err)
	}
	if fb == nil {
		return nil, apperr.Precondition("quick feedback must be generated first")
	}
	return fb, nil
}

func (s *Service) generateDetailed(ctx context.Context, sub *subject) (*models.AnswerFeedbackModel, error) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	fb, err := s.requireQuick(ctx, sub.answer.ID)
	if err != nil {
		return nil, err
	}
	if fb.HasDetailed() {
		return fb, nil
	}

	res, err := s.detailed.GenerateDetailedFeedback(ctx, DetailedInput{
		Question: sub.question.Content,
		Hint:     sub.question.Hint,
		Answer:   sub.answer.Content,
		Topic:    sub.question.Topic,
		Keywords: fb.Keywords,
		Score:    fb.Score,
		Summary:  fb.Summary,
	})
	if err == nil && res == nil {
		err = errors.New("generator returned no result")
	}
	if err != nil {
		metrics.FeedbackGenerations.WithLabelValues(axisDetailed, "error").Inc()
		s.log.Error("detailed feedback generation failed", zap.String("answer_id", sub.answer.ID), zap.Error(err))
		return nil, apperr.Upstream("feedback generation failed", err)
	}
	metrics.FeedbackGenerations.WithLabelValues(axisDetailed, "ok").Inc()

	detail := res.Feedback
	generatedAt := s.now()
	fields := &models.AnswerFeedbackModel{
		Strengths:           models.StringArray(detail.Strengths),
		Improvements:        models.StringArray(detail.Improvements),
		FollowUpQuestions:   models.StringArray(detail.FollowUpQuestions),
		DetailedFeedback:    &detail,
		DetailedModelID:     res.Model,
		DetailedGeneratedAt: &generatedAt,
	}
	if ma := detail.ModelAnswer; ma != nil {
		fields.ModelAnswer = &ma.Text
		fields.ModelAnswerKeyPoints = models.StringArray(ma.KeyPoints)
		if ma.CodeExample != "" {
			fields.ModelAnswerCode = &ma.CodeExample
		}
	}

	merged, err := s.store.MergeDetailed(ctx, sub.answer.ID, fields)
	if err != nil {
		return nil, apperr.Internal("save feedback failed", err)
	}
	if !merged {
		s.log.Debug("detailed feedback already present", zap.String("answer_id", sub.answer.ID))
	}

	out, err := s.store.Find(ctx, sub.answer.ID)
	if err != nil {
		return nil, apperr.Internal("load feedback failed", err)
	}
	return out, nil
}

// loadOwnedAnswer resolves the answer and its question, checking ownership
// after existence.
func (s *Service) loadOwnedAnswer(ctx context.Context, userID, answerID string) (*subject, error) {
	answerID = strings.TrimSpace(answerID)
	if _, err := uuid.Parse(answerID); err != nil {
		return nil, apperr.Validation("answer id must be a UUID")
	}

	var sub subject
	err := s.db.WithContext(ctx).Where("id = ?", answerID).First(&sub.answer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("answer not found")
	}
	if err != nil {
		return nil, apperr.Internal("load answer failed", err)
	}
	if sub.answer.UserID != userID {
		return nil, apperr.Forbidden("answer belongs to another user")
	}

	err = s.db.WithContext(ctx).Unscoped().Where("id = ?", sub.answer.QuestionID).First(&sub.question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("question not found")
	}
	if err != nil {
		return nil, apperr.Internal("load question failed", err)
	}
	return &sub, nil
}

// Wait blocks until background detailed generations finish.
func (s *Service) Wait() { s.wg.Wait() }

// Close stops accepting background work and waits for running tasks.
func (s *Service) Close() {
	s.bgMu.Lock()
	s.closed = true
	s.bgMu.Unlock()
	s.wg.Wait()
}

// beginBackground reserves a slot for one background task. It fails once
// Close has been called.
func (s *Service) beginBackground() bool {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}
