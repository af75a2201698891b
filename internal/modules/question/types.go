package question

import (
	"context"

	"github.com/interviewlab/core/internal/models"
)

const (
	MinCount     = 1
	MaxCount     = 10
	DefaultCount = 5
)

var difficulties = map[string]bool{"": true, "easy": true, "medium": true, "hard": true}

// GenerationRequest is what the generator receives for one batch.
type GenerationRequest struct {
	Prompt     string
	Exclude    []string
	Count      int
	Difficulty string
}

type GeneratedQuestion struct {
	Content  string `json:"content"`
	Hint     string `json:"hint"`
	Category string `json:"category"`
}

type GeneratedQuestions struct {
	Questions    []GeneratedQuestion
	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator produces question candidates for a prompt.
type Generator interface {
	GenerateQuestions(ctx context.Context, req GenerationRequest) (*GeneratedQuestions, error)
}

// ReferenceResolver loads the extracted text of a stored reference document.
type ReferenceResolver interface {
	Text(ctx context.Context, userID, digest string) (string, error)
}

type GenerateInput struct {
	Topic           string  `json:"topic"`
	Count           int     `json:"count"`
	Difficulty      string  `json:"difficulty"`
	CategoryID      *string `json:"category_id"`
	SessionID       *string `json:"session_id"`
	ReferenceDigest string  `json:"reference_digest"`
	ReferenceText   string  `json:"reference_text"`
}

type GenerateResult struct {
	Questions       []models.QuestionModel `json:"questions"`
	ReferenceDigest string                 `json:"reference_digest,omitempty"`
	Requested       int                    `json:"requested"`
	Filtered        int                    `json:"filtered"`
}

type answerRequest struct {
	Content string `json:"content" binding:"required"`
}
