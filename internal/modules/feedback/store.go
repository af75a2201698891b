package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/interviewlab/core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var quickColumns = []string{
	"keywords", "score", "summary", "model_id", "tokens_used", "quick_generated_at", "updated_at",
}

var detailedColumns = []string{
	"strengths", "improvements", "follow_up_questions", "detailed_feedback",
	"model_answer", "model_answer_key_points", "model_answer_code",
	"detailed_model_id", "detailed_generated_at", "updated_at",
}

// Store persists feedback records, one per answer.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Find returns the record for answerID, or (nil, nil) when there is none.
func (s *Store) Find(ctx context.Context, answerID string) (*models.AnswerFeedbackModel, error) {
	var row models.AnswerFeedbackModel
	err := s.db.WithContext(ctx).Where("answer_id = ?", answerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertQuick writes the quick group for row.AnswerID. The insert is skipped
// on a unique conflict, in which case the quick columns of the existing row
// are overwritten. Detailed columns are never touched.
func (s *Store) UpsertQuick(ctx context.Context, row *models.AnswerFeedbackModel) (UpsertOutcome, error) {
	now := time.Now().UTC()
	if row.QuickGeneratedAt.IsZero() {
		row.QuickGeneratedAt = now
	}
	row.UpdatedAt = now

	insert := &models.AnswerFeedbackModel{
		AnswerID:         row.AnswerID,
		UserID:           row.UserID,
		Keywords:         row.Keywords,
		Score:            row.Score,
		Summary:          row.Summary,
		ModelID:          row.ModelID,
		TokensUsed:       row.TokensUsed,
		QuickGeneratedAt: row.QuickGeneratedAt,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "answer_id"}},
			DoNothing: true,
		}).
		Create(insert)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 1 {
		return OutcomeCreated, nil
	}

	err := s.db.WithContext(ctx).
		Model(&models.AnswerFeedbackModel{}).
		Where("answer_id = ? AND user_id = ?", row.AnswerID, row.UserID).
		Select(quickColumns).
		Updates(&models.AnswerFeedbackModel{
			Keywords:         row.Keywords,
			Score:            row.Score,
			Summary:          row.Summary,
			ModelID:          row.ModelID,
			TokensUsed:       row.TokensUsed,
			QuickGeneratedAt: row.QuickGeneratedAt,
			UpdatedAt:        now,
		}).Error
	if err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

// MergeDetailed fills the detailed group of an existing record. It reports
// false when the record is missing or already has detailed feedback.
func (s *Store) MergeDetailed(ctx context.Context, answerID string, fields *models.AnswerFeedbackModel) (bool, error) {
	now := time.Now().UTC()
	generatedAt := now
	if fields.DetailedGeneratedAt != nil {
		generatedAt = *fields.DetailedGeneratedAt
	}

	res := s.db.WithContext(ctx).
		Model(&models.AnswerFeedbackModel{}).
		Where("answer_id = ? AND detailed_generated_at IS NULL", answerID).
		Select(detailedColumns).
		Updates(&models.AnswerFeedbackModel{
			Strengths:            fields.Strengths,
			Improvements:         fields.Improvements,
			FollowUpQuestions:    fields.FollowUpQuestions,
			DetailedFeedback:     fields.DetailedFeedback,
			ModelAnswer:          fields.ModelAnswer,
			ModelAnswerKeyPoints: fields.ModelAnswerKeyPoints,
			ModelAnswerCode:      fields.ModelAnswerCode,
			DetailedModelID:      fields.DetailedModelID,
			DetailedGeneratedAt:  &generatedAt,
			UpdatedAt:            now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
