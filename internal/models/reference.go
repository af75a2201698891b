package models

// ReferenceDocumentModel is a document (resume, job posting, notes) that
// questions can be grounded on. Digest identifies it per user.
type ReferenceDocumentModel struct {
	Base
	UserID     string `json:"user_id"     gorm:"type:char(36);not null;uniqueIndex:idx_reference_user_digest,priority:1"`
	Digest     string `json:"digest"      gorm:"type:char(32);not null;uniqueIndex:idx_reference_user_digest,priority:2"`
	Title      string `json:"title"       gorm:"type:varchar(255)"`
	Format     string `json:"format"      gorm:"type:varchar(16)"`
	CharCount  int    `json:"char_count"`
	StorageKey string `json:"-"           gorm:"type:varchar(512)"`
	Content    string `json:"-"           gorm:"type:longtext"`
}

func (ReferenceDocumentModel) TableName() string { return "reference_documents" }
