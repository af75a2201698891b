package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnswerFeedbackModel caches AI feedback for one answer. The quick columns are
// filled first; the detailed columns stay empty until DetailedGeneratedAt is set.
type AnswerFeedbackModel struct {
	ID       string `json:"id"        gorm:"type:char(36);primaryKey"`
	AnswerID string `json:"answer_id" gorm:"type:char(36);uniqueIndex;not null"`
	UserID   string `json:"user_id"   gorm:"type:char(36);index;not null"`

	Keywords         StringArray `json:"keywords"           gorm:"type:text"`
	Score            int         `json:"score"`
	Summary          string      `json:"summary"            gorm:"type:text"`
	ModelID          string      `json:"model_id"           gorm:"type:varchar(128)"`
	TokensUsed       int         `json:"tokens_used"`
	QuickGeneratedAt time.Time   `json:"quick_generated_at"`

	Strengths            StringArray       `json:"strengths"               gorm:"type:text"`
	Improvements         StringArray       `json:"improvements"            gorm:"type:text"`
	FollowUpQuestions    StringArray       `json:"follow_up_questions"     gorm:"type:text"`
	DetailedFeedback     *DetailedFeedback `json:"detailed_feedback"       gorm:"type:longtext;serializer:json"`
	ModelAnswer          *string           `json:"model_answer"            gorm:"type:longtext"`
	ModelAnswerKeyPoints StringArray       `json:"model_answer_key_points" gorm:"type:text"`
	ModelAnswerCode      *string           `json:"model_answer_code"       gorm:"type:longtext"`
	DetailedModelID      string            `json:"detailed_model_id"       gorm:"type:varchar(128)"`
	DetailedGeneratedAt  *time.Time        `json:"detailed_generated_at"`

	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}

func (AnswerFeedbackModel) TableName() string { return "answer_feedback" }

func (f *AnswerFeedbackModel) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// HasDetailed reports whether the detailed group has been generated.
func (f *AnswerFeedbackModel) HasDetailed() bool {
	return f != nil && f.DetailedGeneratedAt != nil
}

// DetailedFeedback is the full structured payload returned by the detailed generator.
type DetailedFeedback struct {
	Overall           string            `json:"overall"`
	Strengths         []string          `json:"strengths"`
	Improvements      []string          `json:"improvements"`
	FollowUpQuestions []string          `json:"follow_up_questions"`
	Criteria          []CriterionScore  `json:"criteria,omitempty"`
	ModelAnswer       *ModelAnswerBlock `json:"model_answer,omitempty"`
}

type CriterionScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

type ModelAnswerBlock struct {
	Text        string   `json:"text"`
	KeyPoints   []string `json:"key_points,omitempty"`
	CodeExample string   `json:"code_example,omitempty"`
}
