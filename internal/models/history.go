package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuestionHistoryModel is an immutable ledger row. Rows past ExpiresAt are
// hidden by reads and removed by the sweep job.
type QuestionHistoryModel struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	UserID          string    `json:"user_id"          gorm:"type:char(36);not null;index:idx_history_user_expires,priority:1;index:idx_history_user_reference,priority:1"`
	Content         string    `json:"content"          gorm:"type:text;not null"`
	Signature       string    `json:"signature"        gorm:"type:text;not null"`
	ReferenceDigest *string   `json:"reference_digest" gorm:"type:char(32);index:idx_history_user_reference,priority:2"`
	CategoryID      *string   `json:"category_id"      gorm:"type:char(36)"`
	SessionID       *string   `json:"session_id"       gorm:"type:char(36)"`
	CreatedAt       time.Time `json:"created"          gorm:"not null;index"`
	ExpiresAt       time.Time `json:"expires_at"       gorm:"not null;index:idx_history_user_expires,priority:2"`
}

func (QuestionHistoryModel) TableName() string { return "question_history" }

func (h *QuestionHistoryModel) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return nil
}
