package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/pkg/apperr"
	sessionpkg "github.com/interviewlab/core/internal/pkg/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errBadCredentials = apperr.Unauthorized("invalid username or password")

// dummyHash is compared against on unknown usernames so lookups and bad
// passwords take about the same time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("interviewlab-dummy"), bcrypt.DefaultCost)

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	sessionTTL time.Duration
	cost       int
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log, sessionTTL: sessionpkg.DefaultTTL, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) Register(ctx context.Context, dto *RegisterDTO) (*models.UserModel, error) {
	username := normalizeUsername(dto.Username)
	if !usernamePattern.MatchString(username) {
		return nil, apperr.Validation("username must be 3-64 letters, digits, dot, dash or underscore")
	}
	if len(dto.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.UserModel{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Conflict("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.cost)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(dto.Name)
	if name == "" {
		name = username
	}
	u := &models.UserModel{
		Username: username,
		Name:     name,
		Password: string(hash),
		Mail:     strings.TrimSpace(dto.Mail),
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("username", username))
	return u, nil
}

func (s *Service) Login(ctx context.Context, dto *LoginDTO, ip, ua string) (string, *models.UserSession, *models.UserModel, error) {
	var u models.UserModel
	err := s.db.WithContext(ctx).Where("username = ?", normalizeUsername(dto.Username)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(dto.Password))
		return "", nil, nil, errBadCredentials
	}
	if err != nil {
		return "", nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(dto.Password)); err != nil {
		return "", nil, nil, errBadCredentials
	}

	now := time.Now().UTC()
	s.db.WithContext(ctx).Model(&u).Updates(map[string]interface{}{
		"last_login_time": now,
		"last_login_ip":   ip,
	})
	u.LastLoginTime = &now
	u.LastLoginIP = ip

	token, sess, err := sessionpkg.Issue(ctx, s.db, u.ID, ip, ua, s.sessionTTL)
	if err != nil {
		return "", nil, nil, err
	}
	return token, sess, &u, nil
}

func (s *Service) Logout(ctx context.Context, userID, sessionID string) error {
	err := sessionpkg.Revoke(ctx, s.db, userID, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func (s *Service) Me(ctx context.Context, userID string) (*models.UserModel, error) {
	var u models.UserModel
	err := s.db.WithContext(ctx).First(&u, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) Sessions(ctx context.Context, userID string) ([]models.UserSession, error) {
	return sessionpkg.ListActive(ctx, s.db, userID)
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	err := sessionpkg.Revoke(ctx, s.db, userID, sessionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("session not found")
	}
	return err
}

// ChangePassword replaces the password hash and revokes every other session.
func (s *Service) ChangePassword(ctx context.Context, userID, currentSID string, dto *ChangePasswordDTO) error {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(dto.OldPassword)); err != nil {
		return apperr.Validation("current password is incorrect")
	}
	if len(dto.NewPassword) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(dto.NewPassword), s.cost)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(u).Update("password", string(hash)).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		return tx.Model(&models.UserSession{}).
			Where("user_id = ? AND id <> ? AND revoked_at IS NULL", userID, currentSID).
			Update("revoked_at", &now).Error
	})
}
