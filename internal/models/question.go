package models

// QuestionModel is a generated interview question owned by one user.
type QuestionModel struct {
	Base
	UserID          string  `json:"user_id"          gorm:"type:char(36);index:idx_question_user_created,priority:1;not null"`
	Content         string  `json:"content"          gorm:"type:text;not null"`
	Hint            string  `json:"hint"             gorm:"type:text"`
	Category        string  `json:"category"         gorm:"type:varchar(128)"`
	Topic           string  `json:"topic"            gorm:"type:varchar(255)"`
	Difficulty      string  `json:"difficulty"       gorm:"type:varchar(32)"`
	Signature       string  `json:"-"                gorm:"type:text"`
	ReferenceDigest *string `json:"reference_digest" gorm:"type:char(32);index"`
	CategoryID      *string `json:"category_id"      gorm:"type:char(36)"`
	SessionID       *string `json:"session_id"       gorm:"type:char(36);index"`
}

func (QuestionModel) TableName() string { return "questions" }

// AnswerModel is a user's answer to a question; feedback is cached per answer.
type AnswerModel struct {
	Base
	QuestionID string `json:"question_id" gorm:"type:char(36);index;not null"`
	UserID     string `json:"user_id"     gorm:"type:char(36);index;not null"`
	Content    string `json:"content"     gorm:"type:longtext;not null"`
}

func (AnswerModel) TableName() string { return "answers" }
