package reference

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/pkg/apperr"
	"github.com/interviewlab/core/internal/pkg/fingerprint"
	"github.com/interviewlab/core/internal/pkg/pagination"
	"github.com/interviewlab/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxContentRunes = 200000
	maxTitleRunes   = 255
	textCacheTTL    = time.Hour
	textCachePrefix = "iv:reference:text:"
)

// TextCache caches extracted text by key. Get returns "" on a miss.
type TextCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type CreateInput struct {
	Title   string `json:"title"`
	Content string `json:"content" binding:"required"`
	Format  string `json:"format"`
}

// Service stores reference documents and serves their text to generation.
type Service struct {
	db      *gorm.DB
	objects ObjectStore
	prefix  string
	cache   TextCache
	log     *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log.Named("reference")}
}

// WithObjectStore keeps document text in store under prefix instead of the database row.
func (s *Service) WithObjectStore(store ObjectStore, prefix string) *Service {
	s.objects = store
	s.prefix = prefix
	return s
}

func (s *Service) WithCache(cache TextCache) *Service {
	s.cache = cache
	return s
}

// Create extracts and stores a document. Uploading the same text twice
// returns the existing row with created=false.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.ReferenceDocumentModel, bool, error) {
	format := strings.ToLower(strings.TrimSpace(in.Format))
	if format == "" || format == "md" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatText {
		return nil, false, apperr.Validation("format must be markdown or text")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, false, apperr.Validation("content is required")
	}
	if utf8.RuneCountInString(in.Content) > maxContentRunes {
		return nil, false, apperr.Validation("content is too long")
	}

	body, err := ExtractText(format, in.Content)
	if err != nil {
		return nil, false, apperr.Validation("content could not be parsed")
	}
	if fingerprint.Signature(body) == "" {
		return nil, false, apperr.Validation("content has no meaningful text")
	}
	digest := fingerprint.Digest(body)

	row := &models.ReferenceDocumentModel{
		UserID:    userID,
		Digest:    digest,
		Title:     titleOf(in.Title, body),
		Format:    format,
		CharCount: utf8.RuneCountInString(body),
	}
	if s.objects != nil {
		key := s.objectKey(userID, digest)
		if err := s.objects.Put(ctx, key, []byte(body), "text/plain; charset=utf-8"); err != nil {
			s.log.Warn("upload reference failed, keeping text in database", zap.String("digest", digest), zap.Error(err))
			row.Content = body
		} else {
			row.StorageKey = key
		}
	} else {
		row.Content = body
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "digest"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return nil, false, apperr.Internal("save reference failed", res.Error)
	}
	if res.RowsAffected == 0 {
		existing, err := s.Get(ctx, userID, digest)
		return existing, false, err
	}
	return row, true, nil
}

// Get returns the metadata of one of the user's documents.
func (s *Service) Get(ctx context.Context, userID, digest string) (*models.ReferenceDocumentModel, error) {
	var row models.ReferenceDocumentModel
	err := s.db.WithContext(ctx).Where("user_id = ? AND digest = ?", userID, strings.ToLower(digest)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("reference not found")
	}
	if err != nil {
		return nil, apperr.Internal("load reference failed", err)
	}
	return &row, nil
}

func (s *Service) List(ctx context.Context, userID string, q pagination.Query) ([]models.ReferenceDocumentModel, response.Pagination, error) {
	var rows []models.ReferenceDocumentModel
	tx := s.db.WithContext(ctx).Model(&models.ReferenceDocumentModel{}).Where("user_id = ?", userID).Order("created_at DESC")
	pag, err := pagination.Paginate(tx, q, &rows)
	if err != nil {
		return nil, response.Pagination{}, apperr.Internal("list references failed", err)
	}
	return rows, pag, nil
}

// Text returns the extracted text of one of the user's documents.
func (s *Service) Text(ctx context.Context, userID, digest string) (string, error) {
	cacheKey := textCachePrefix + userID + ":" + digest
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			return cached, nil
		} else if err != nil {
			s.log.Warn("reference cache read failed", zap.Error(err))
		}
	}

	row, err := s.Get(ctx, userID, digest)
	if err != nil {
		return "", err
	}

	body := row.Content
	if body == "" && row.StorageKey != "" {
		if s.objects == nil {
			return "", apperr.Internal("reference storage is not configured", nil)
		}
		raw, err := s.objects.Get(ctx, row.StorageKey)
		if err != nil {
			s.log.Error("download reference failed", zap.String("key", row.StorageKey), zap.Error(err))
			return "", apperr.Upstream("reference storage unavailable", err)
		}
		body = string(raw)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, body, textCacheTTL); err != nil {
			s.log.Warn("reference cache write failed", zap.Error(err))
		}
	}
	return body, nil
}

func (s *Service) objectKey(userID, digest string) string {
	return s.prefix + userID + "/" + digest + ".txt"
}

// titleOf falls back to the first line of the extracted text.
func titleOf(title, body string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title, _, _ = strings.Cut(body, "\n")
		title = strings.TrimSpace(title)
	}
	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	return title
}
