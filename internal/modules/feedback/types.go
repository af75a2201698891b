package feedback

import (
	"context"

	"github.com/interviewlab/core/internal/models"
)

// QuickInput is the context sent to the quick feedback generator.
type QuickInput struct {
	Question string
	Hint     string
	Answer   string
	Topic    string
}

type QuickResult struct {
	Keywords     []string
	Score        int
	Summary      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// DetailedInput carries the quick result so the detailed pass can build on it.
type DetailedInput struct {
	Question string
	Hint     string
	Answer   string
	Topic    string
	Keywords []string
	Score    int
	Summary  string
}

type DetailedResult struct {
	Feedback     models.DetailedFeedback
	Model        string
	InputTokens  int
	OutputTokens int
}

type QuickGenerator interface {
	GenerateQuickFeedback(ctx context.Context, in QuickInput) (*QuickResult, error)
}

type DetailedGenerator interface {
	GenerateDetailedFeedback(ctx context.Context, in DetailedInput) (*DetailedResult, error)
}

// UpsertOutcome tells whether UpsertQuick inserted a new row or overwrote one.
type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
)

const (
	axisQuick    = "quick"
	axisDetailed = "detailed"
)
