package history

import (
	"context"
	"strings"
	"time"

	"github.com/interviewlab/core/internal/config"
	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/pkg/fingerprint"
	"github.com/interviewlab/core/internal/pkg/metrics"
	"github.com/interviewlab/core/internal/pkg/pagination"
	"github.com/interviewlab/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultRecentLimit    = 100
	DefaultReferenceLimit = 50
	maxReadLimit          = 500
)

// Service is the per-user question ledger. Entries are append-only and hidden
// from reads once expired.
type Service struct {
	db  *gorm.DB
	cfg config.HistoryConfig
	log *zap.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, cfg config.HistoryConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RetentionDays < 1 {
		cfg.RetentionDays = 30
	}
	return &Service{
		db:  db,
		cfg: cfg,
		log: log.Named("history"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordOptions scopes a batch of recorded questions.
type RecordOptions struct {
	ReferenceDigest string
	CategoryID      string
	SessionID       string
}

// Entry is an active ledger row as seen by readers.
type Entry struct {
	Content         string    `json:"content"`
	Signature       string    `json:"signature"`
	ReferenceDigest string    `json:"reference_digest,omitempty"`
	CreatedAt       time.Time `json:"created"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Record appends questions to the user's ledger. Blank contents are skipped.
// Failures are logged and never returned.
func (s *Service) Record(ctx context.Context, userID string, questions []string, opts RecordOptions) {
	if strings.TrimSpace(userID) == "" || len(questions) == 0 {
		return
	}

	now := s.now().UTC()
	expires := now.Add(s.cfg.Retention())
	rows := make([]models.QuestionHistoryModel, 0, len(questions))
	for _, content := range questions {
		if strings.TrimSpace(content) == "" {
			continue
		}
		rows = append(rows, models.QuestionHistoryModel{
			UserID:          userID,
			Content:         content,
			Signature:       fingerprint.Signature(content),
			ReferenceDigest: optional(opts.ReferenceDigest),
			CategoryID:      optional(opts.CategoryID),
			SessionID:       optional(opts.SessionID),
			CreatedAt:       now,
			ExpiresAt:       expires,
		})
	}
	if len(rows) == 0 {
		return
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		metrics.HistoryWriteFailures.Inc()
		s.log.Warn("record history failed",
			zap.String("user_id", userID),
			zap.Int("count", len(rows)),
			zap.Error(err),
		)
	}
}

// Recent returns the user's active question contents, newest first.
func (s *Service) Recent(ctx context.Context, userID string, limit int) []string {
	return contents(s.RecentEntries(ctx, userID, "", s.limitOr(limit, s.cfg.RecentLimit, DefaultRecentLimit)))
}

// RecentByReference is Recent restricted to one reference digest.
func (s *Service) RecentByReference(ctx context.Context, userID, referenceDigest string, limit int) []string {
	if strings.TrimSpace(referenceDigest) == "" {
		return []string{}
	}
	return contents(s.RecentEntries(ctx, userID, referenceDigest, s.limitOr(limit, s.cfg.ReferenceLimit, DefaultReferenceLimit)))
}

// RecentEntries returns active entries, optionally matching referenceDigest
// exactly. Storage errors yield an empty slice.
func (s *Service) RecentEntries(ctx context.Context, userID, referenceDigest string, limit int) []Entry {
	if strings.TrimSpace(userID) == "" {
		return []Entry{}
	}
	if limit <= 0 {
		limit = s.limitOr(0, s.cfg.RecentLimit, DefaultRecentLimit)
	}

	var rows []models.QuestionHistoryModel
	err := s.activeQuery(ctx, userID, referenceDigest).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		s.log.Warn("read history failed",
			zap.String("user_id", userID),
			zap.String("reference_digest", referenceDigest),
			zap.Error(err),
		)
		return []Entry{}
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEntry(row))
	}
	return out
}

// List pages through the user's active entries for display.
func (s *Service) List(ctx context.Context, userID, referenceDigest string, q pagination.Query) ([]Entry, response.Pagination, error) {
	var rows []models.QuestionHistoryModel
	pag, err := pagination.Paginate(s.activeQuery(ctx, userID, referenceDigest).Order("created_at DESC"), q, &rows)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEntry(row))
	}
	return out, pag, nil
}

// Sweep deletes expired rows and returns how many were removed.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().UTC()).
		Delete(&models.QuestionHistoryModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	metrics.HistorySwept.Add(float64(res.RowsAffected))
	return res.RowsAffected, nil
}

// DiversityInstruction builds the prompt block for previous using the
// configured item cap.
func (s *Service) DiversityInstruction(previous []string) string {
	return buildDiversityInstruction(previous, s.cfg.DiversityMaxItems)
}

func (s *Service) activeQuery(ctx context.Context, userID, referenceDigest string) *gorm.DB {
	q := s.db.WithContext(ctx).
		Model(&models.QuestionHistoryModel{}).
		Where("user_id = ? AND expires_at > ?", userID, s.now().UTC())
	if d := strings.TrimSpace(referenceDigest); d != "" {
		q = q.Where("reference_digest = ?", d)
	}
	return q
}

func (s *Service) limitOr(limit, configured, fallback int) int {
	switch {
	case limit > 0:
	case configured > 0:
		limit = configured
	default:
		limit = fallback
	}
	if limit > maxReadLimit {
		limit = maxReadLimit
	}
	return limit
}

func toEntry(row models.QuestionHistoryModel) Entry {
	e := Entry{
		Content:   row.Content,
		Signature: row.Signature,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}
	if row.ReferenceDigest != nil {
		e.ReferenceDigest = *row.ReferenceDigest
	}
	return e
}

func contents(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Content)
	}
	return out
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
