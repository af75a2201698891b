// Package ai implements the LLM-backed question and feedback generators.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	appcfg "github.com/interviewlab/core/internal/config"
	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/modules/feedback"
	"github.com/interviewlab/core/internal/modules/question"
	"github.com/interviewlab/core/internal/pkg/metrics"
	"go.uber.org/zap"
)

const (
	taskQuestions = "questions"
	taskQuick     = "quick_feedback"
	taskDetailed  = "detailed_feedback"

	maxKeywords  = 5
	maxListItems = 5
)

// Generator talks to the configured providers. One value serves question
// generation and both feedback tiers.
type Generator struct {
	cfg    appcfg.AIConfig
	log    *zap.Logger
	client *http.Client
}

var (
	_ question.Generator         = (*Generator)(nil)
	_ feedback.QuickGenerator    = (*Generator)(nil)
	_ feedback.DetailedGenerator = (*Generator)(nil)
)

func NewGenerator(cfg appcfg.AIConfig, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		cfg:    cfg,
		log:    log.Named("ai"),
		client: &http.Client{},
	}
}

// Available reports whether any provider is enabled.
func (g *Generator) Available() bool {
	return selectAIProvider(g.cfg, nil) != nil
}

func (g *Generator) complete(ctx context.Context, task string, assignment *appcfg.AIModelAssignment, systemPrompt, prompt string) (*completion, error) {
	provider := selectAIProvider(g.cfg, assignment)
	if provider == nil {
		return nil, ErrNoProvider
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	out, err := callProvider(ctx, g.client, provider, systemPrompt, prompt, g.maxTokens())
	metrics.ObserveLLM(task, started, err)
	if err != nil {
		g.log.Error("provider call failed",
			zap.String("task", task),
			zap.String("provider", provider.ID),
			zap.Duration("took", time.Since(started)),
			zap.Error(err))
		return nil, err
	}
	metrics.AddTokens(out.Model, out.InputTokens, out.OutputTokens)
	g.log.Debug("provider call finished",
		zap.String("task", task),
		zap.String("model", out.Model),
		zap.Int("input_tokens", out.InputTokens),
		zap.Int("output_tokens", out.OutputTokens))
	return out, nil
}

func (g *Generator) maxTokens() int {
	if g.cfg.MaxOutputTokens > 0 {
		return g.cfg.MaxOutputTokens
	}
	return appcfg.DefaultAIMaxOutputTokens
}

func (g *Generator) GenerateQuestions(ctx context.Context, req question.GenerationRequest) (*question.GeneratedQuestions, error) {
	prompt := buildQuestionPrompt(req.Prompt, req.Exclude, req.Count, req.Difficulty)
	out, err := g.complete(ctx, taskQuestions, g.cfg.QuestionModel, questionSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	questions, err := parseQuestions(out.Text, req.Count)
	if err != nil {
		return nil, err
	}
	return &question.GeneratedQuestions{
		Questions:    questions,
		Model:        out.Model,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
	}, nil
}

func (g *Generator) GenerateQuickFeedback(ctx context.Context, in feedback.QuickInput) (*feedback.QuickResult, error) {
	prompt := buildQuickFeedbackPrompt(in.Question, in.Hint, in.Answer, in.Topic)
	out, err := g.complete(ctx, taskQuick, g.cfg.QuickFeedbackModel, quickFeedbackSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	result, err := parseQuickFeedback(out.Text)
	if err != nil {
		return nil, err
	}
	result.Model = out.Model
	result.InputTokens = out.InputTokens
	result.OutputTokens = out.OutputTokens
	return result, nil
}

func (g *Generator) GenerateDetailedFeedback(ctx context.Context, in feedback.DetailedInput) (*feedback.DetailedResult, error) {
	prompt := buildDetailedFeedbackPrompt(in.Question, in.Hint, in.Answer, in.Topic, in.Keywords, in.Score, in.Summary)
	out, err := g.complete(ctx, taskDetailed, g.cfg.DetailedFeedbackModel, detailedFeedbackSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	fb, err := parseDetailedFeedback(out.Text)
	if err != nil {
		return nil, err
	}
	return &feedback.DetailedResult{
		Feedback:     *fb,
		Model:        out.Model,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
	}, nil
}

func parseQuestions(raw string, count int) ([]question.GeneratedQuestion, error) {
	var payload struct {
		Questions []question.GeneratedQuestion `json:"questions"`
	}
	if err := unmarshalAIJSON(raw, &payload); err != nil {
		return nil, err
	}
	out := make([]question.GeneratedQuestion, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		q.Content = strings.TrimSpace(q.Content)
		if q.Content == "" {
			continue
		}
		q.Hint = strings.TrimSpace(q.Hint)
		q.Category = strings.TrimSpace(q.Category)
		out = append(out, q)
		if count > 0 && len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no questions in AI response")
	}
	return out, nil
}

func parseQuickFeedback(raw string) (*feedback.QuickResult, error) {
	var payload struct {
		Keywords []string `json:"keywords"`
		Score    float64  `json:"score"`
		Summary  string   `json:"summary"`
	}
	if err := unmarshalAIJSON(raw, &payload); err != nil {
		return nil, err
	}
	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		return nil, fmt.Errorf("summary is empty in AI response")
	}
	return &feedback.QuickResult{
		Keywords: cleanList(payload.Keywords, maxKeywords),
		Score:    clampScore(payload.Score),
		Summary:  summary,
	}, nil
}

func parseDetailedFeedback(raw string) (*models.DetailedFeedback, error) {
	var payload struct {
		Overall           string   `json:"overall"`
		Strengths         []string `json:"strengths"`
		Improvements      []string `json:"improvements"`
		FollowUpQuestions []string `json:"follow_up_questions"`
		Criteria          []struct {
			Name    string  `json:"name"`
			Score   float64 `json:"score"`
			Comment string  `json:"comment"`
		} `json:"criteria"`
		ModelAnswer *struct {
			Text        string   `json:"text"`
			KeyPoints   []string `json:"key_points"`
			CodeExample string   `json:"code_example"`
		} `json:"model_answer"`
	}
	if err := unmarshalAIJSON(raw, &payload); err != nil {
		return nil, err
	}

	fb := &models.DetailedFeedback{
		Overall:           strings.TrimSpace(payload.Overall),
		Strengths:         cleanList(payload.Strengths, maxListItems),
		Improvements:      cleanList(payload.Improvements, maxListItems),
		FollowUpQuestions: cleanList(payload.FollowUpQuestions, maxListItems),
	}
	if fb.Overall == "" && len(fb.Strengths) == 0 && len(fb.Improvements) == 0 {
		return nil, fmt.Errorf("detailed feedback is empty in AI response")
	}
	for _, c := range payload.Criteria {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		fb.Criteria = append(fb.Criteria, models.CriterionScore{
			Name:    name,
			Score:   clampScore(c.Score),
			Comment: strings.TrimSpace(c.Comment),
		})
	}
	if ma := payload.ModelAnswer; ma != nil && strings.TrimSpace(ma.Text) != "" {
		fb.ModelAnswer = &models.ModelAnswerBlock{
			Text:        strings.TrimSpace(ma.Text),
			KeyPoints:   cleanList(ma.KeyPoints, maxListItems),
			CodeExample: strings.TrimSpace(ma.CodeExample),
		}
	}
	return fb, nil
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v + 0.5)
	}
}

// cleanList trims items, drops blanks and case-insensitive repeats, and caps the length.
func cleanList(items []string, max int) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
		if len(out) == max {
			break
		}
	}
	return out
}
