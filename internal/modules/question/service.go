package question

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/modules/history"
	"github.com/interviewlab/core/internal/pkg/apperr"
	"github.com/interviewlab/core/internal/pkg/fingerprint"
	"github.com/interviewlab/core/internal/pkg/metrics"
	"github.com/interviewlab/core/internal/pkg/pagination"
	"github.com/interviewlab/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxTopicRunes  = 255
	maxAnswerRunes = 20000
)

var digestPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Options tune generation.
type Options struct {
	Timeout             time.Duration
	FilterDuplicates    bool
	SimilarityThreshold float64
}

// Service orchestrates question generation against the user's history.
type Service struct {
	db      *gorm.DB
	history *history.Service
	gen     Generator
	refs    ReferenceResolver
	opts    Options
	log     *zap.Logger
}

func NewService(db *gorm.DB, hist *history.Service, gen Generator, refs ReferenceResolver, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = fingerprint.DefaultThreshold
	}
	return &Service{db: db, history: hist, gen: gen, refs: refs, opts: opts, log: log.Named("question")}
}

// Generate produces a batch of new questions steered away from the user's
// recent history and records the accepted ones.
func (s *Service) Generate(ctx context.Context, userID string, in GenerateInput) (*GenerateResult, error) {
	in, err := validateGenerateInput(in)
	if err != nil {
		return nil, err
	}

	refText, digest, err := s.resolveReference(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	var previous []string
	if digest != "" {
		previous = s.history.RecentByReference(ctx, userID, digest, 0)
	} else {
		previous = s.history.Recent(ctx, userID, 0)
	}

	prompt := buildPrompt(in.Topic, in.Difficulty, refText, s.history.DiversityInstruction(previous))

	genCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	generated, err := s.gen.GenerateQuestions(genCtx, GenerationRequest{
		Prompt:     prompt,
		Exclude:    previous,
		Count:      in.Count,
		Difficulty: in.Difficulty,
	})
	if err != nil {
		s.log.Error("generate questions failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperr.Upstream("question generation failed", err)
	}
	if generated == nil || len(generated.Questions) == 0 {
		return nil, apperr.Upstream("question generation failed", errors.New("generator returned no questions"))
	}

	candidates := generated.Questions
	if len(candidates) > in.Count {
		candidates = candidates[:in.Count]
	}
	signatures := make([]string, len(candidates))
	for i, c := range candidates {
		signatures[i] = fingerprint.Signature(c.Content)
	}

	kept := make([]int, 0, len(candidates))
	filtered := 0
	if s.opts.FilterDuplicates {
		recent := s.history.RecentEntries(ctx, userID, "", 0)
		res := history.FilterDuplicates(signatures, recent, s.opts.SimilarityThreshold)
		kept = res.Kept
		filtered = res.AgainstHistory + res.WithinBatch
		metrics.DuplicatesFiltered.WithLabelValues("history").Add(float64(res.AgainstHistory))
		metrics.DuplicatesFiltered.WithLabelValues("batch").Add(float64(res.WithinBatch))
	} else {
		for i := range candidates {
			kept = append(kept, i)
		}
	}

	rows := make([]models.QuestionModel, 0, len(kept))
	for _, i := range kept {
		c := candidates[i]
		rows = append(rows, models.QuestionModel{
			UserID:          userID,
			Content:         c.Content,
			Hint:            c.Hint,
			Category:        c.Category,
			Topic:           in.Topic,
			Difficulty:      in.Difficulty,
			Signature:       signatures[i],
			ReferenceDigest: optional(digest),
			CategoryID:      in.CategoryID,
			SessionID:       in.SessionID,
		})
	}

	if len(rows) > 0 {
		if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
			return nil, apperr.Internal("save questions failed", err)
		}
		contents := make([]string, len(rows))
		for i := range rows {
			contents[i] = rows[i].Content
		}
		s.history.Record(ctx, userID, contents, history.RecordOptions{
			ReferenceDigest: digest,
			CategoryID:      deref(in.CategoryID),
			SessionID:       deref(in.SessionID),
		})
		metrics.QuestionsGenerated.Add(float64(len(rows)))
	}

	s.log.Info("questions generated",
		zap.String("user_id", userID),
		zap.Int("requested", in.Count),
		zap.Int("kept", len(rows)),
		zap.Int("filtered", filtered),
		zap.String("model", generated.Model))

	return &GenerateResult{
		Questions:       rows,
		ReferenceDigest: digest,
		Requested:       in.Count,
		Filtered:        filtered,
	}, nil
}

func (s *Service) resolveReference(ctx context.Context, userID string, in GenerateInput) (string, string, error) {
	if text := strings.TrimSpace(in.ReferenceText); text != "" {
		digest := fingerprint.Digest(text)
		if in.ReferenceDigest != "" && in.ReferenceDigest != digest {
			return "", "", apperr.Validation("reference_digest does not match reference_text")
		}
		return text, digest, nil
	}
	if in.ReferenceDigest == "" {
		return "", "", nil
	}
	if s.refs == nil {
		return "", "", apperr.NotFound("reference not found")
	}
	text, err := s.refs.Text(ctx, userID, in.ReferenceDigest)
	if err != nil {
		return "", "", err
	}
	return text, in.ReferenceDigest, nil
}

func validateGenerateInput(in GenerateInput) (GenerateInput, error) {
	in.Topic = strings.TrimSpace(in.Topic)
	in.Difficulty = strings.ToLower(strings.TrimSpace(in.Difficulty))
	in.ReferenceDigest = strings.ToLower(strings.TrimSpace(in.ReferenceDigest))

	if in.Topic == "" && in.ReferenceDigest == "" && strings.TrimSpace(in.ReferenceText) == "" {
		return in, apperr.Validation("topic or reference is required")
	}
	if utf8.RuneCountInString(in.Topic) > maxTopicRunes {
		return in, apperr.Validation("topic is too long")
	}
	if in.Count == 0 {
		in.Count = DefaultCount
	}
	if in.Count < MinCount || in.Count > MaxCount {
		return in, apperr.Validation("count must be between 1 and 10")
	}
	if !difficulties[in.Difficulty] {
		return in, apperr.Validation("difficulty must be easy, medium or hard")
	}
	if in.ReferenceDigest != "" && !digestPattern.MatchString(in.ReferenceDigest) {
		return in, apperr.Validation("reference_digest is malformed")
	}
	var err error
	if in.CategoryID, err = normalizeID("category_id", in.CategoryID); err != nil {
		return in, err
	}
	if in.SessionID, err = normalizeID("session_id", in.SessionID); err != nil {
		return in, err
	}
	return in, nil
}

func normalizeID(field string, id *string) (*string, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*id))
	if err != nil {
		return nil, apperr.Validation(field + " must be a UUID")
	}
	v := parsed.String()
	return &v, nil
}

// Get returns a question owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.QuestionModel, error) {
	var q models.QuestionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("question not found")
	}
	if err != nil {
		return nil, apperr.Internal("load question failed", err)
	}
	if q.UserID != userID {
		return nil, apperr.Forbidden("question belongs to another user")
	}
	return &q, nil
}

// List pages through the user's questions, newest first. sessionID narrows
// the list when non-empty.
func (s *Service) List(ctx context.Context, userID, sessionID string, q pagination.Query) ([]models.QuestionModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.QuestionModel{}).Where("user_id = ?", userID)
	if sessionID != "" {
		tx = tx.Where("session_id = ?", sessionID)
	}
	var rows []models.QuestionModel
	pag, err := pagination.Paginate(tx.Order("created_at DESC"), q, &rows)
	if err != nil {
		return nil, response.Pagination{}, apperr.Internal("list questions failed", err)
	}
	return rows, pag, nil
}

// SubmitAnswer stores an answer to one of the user's questions.
func (s *Service) SubmitAnswer(ctx context.Context, userID, questionID, content string) (*models.AnswerModel, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("answer content is required")
	}
	if utf8.RuneCountInString(content) > maxAnswerRunes {
		return nil, apperr.Validation("answer is too long")
	}
	if _, err := s.Get(ctx, userID, questionID); err != nil {
		return nil, err
	}
	a := &models.AnswerModel{QuestionID: questionID, UserID: userID, Content: content}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, apperr.Internal("save answer failed", err)
	}
	return a, nil
}

// Answers lists the answers to one of the user's questions, oldest first.
func (s *Service) Answers(ctx context.Context, userID, questionID string) ([]models.AnswerModel, error) {
	if _, err := s.Get(ctx, userID, questionID); err != nil {
		return nil, err
	}
	var rows []models.AnswerModel
	if err := s.db.WithContext(ctx).
		Where("question_id = ? AND user_id = ?", questionID, userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, apperr.Internal("list answers failed", err)
	}
	return rows, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
