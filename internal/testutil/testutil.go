// Package testutil provides an in-memory database and seed helpers for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/interviewlab/core/internal/database"
	"github.com/interviewlab/core/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory SQLite database with all models migrated.
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("resolve sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser inserts a user and returns it.
func SeedUser(tb testing.TB, db *gorm.DB, username string) *models.UserModel {
	tb.Helper()
	u := &models.UserModel{Username: username, Name: username, Password: "x"}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedQuestion inserts a question owned by userID.
func SeedQuestion(tb testing.TB, db *gorm.DB, userID, content string) *models.QuestionModel {
	tb.Helper()
	q := &models.QuestionModel{
		UserID:   userID,
		Content:  content,
		Hint:     "think about " + content,
		Category: "general",
	}
	if err := db.Create(q).Error; err != nil {
		tb.Fatalf("seed question: %v", err)
	}
	return q
}

// SeedAnswer inserts an answer to question by userID.
func SeedAnswer(tb testing.TB, db *gorm.DB, userID, questionID, content string) *models.AnswerModel {
	tb.Helper()
	a := &models.AnswerModel{
		UserID:     userID,
		QuestionID: questionID,
		Content:    content,
	}
	if err := db.Create(a).Error; err != nil {
		tb.Fatalf("seed answer: %v", err)
	}
	return a
}

// Clock is a settable time source for services that take a now func.
type Clock struct {
	t atomic.Int64
}

func NewClock(start time.Time) *Clock {
	c := &Clock{}
	c.Set(start)
	return c
}

func (c *Clock) Now() time.Time { return time.Unix(0, c.t.Load()).UTC() }

func (c *Clock) Set(t time.Time) { c.t.Store(t.UnixNano()) }

func (c *Clock) Advance(d time.Duration) { c.t.Add(int64(d)) }
