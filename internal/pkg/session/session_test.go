package session

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtpkg "github.com/interviewlab/core/internal/pkg/jwt"
	"github.com/interviewlab/core/internal/testutil"
	"gorm.io/gorm"
)

func TestIssueAndRevoke(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, db, "alice")

	token, s, err := Issue(ctx, db, u.ID, "127.0.0.1", "go-test", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := jwtpkg.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.SessionID != s.ID || claims.UserID != u.ID {
		t.Fatalf("claims = %+v, session = %s", claims, s.ID)
	}

	active, err := IsActive(ctx, db, u.ID, s.ID)
	if err != nil || !active {
		t.Fatalf("IsActive() = %v, %v", active, err)
	}
	if active, _ := IsActive(ctx, db, "someone-else", s.ID); active {
		t.Fatal("session active for another user")
	}

	if err := Revoke(ctx, db, u.ID, s.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if active, _ := IsActive(ctx, db, u.ID, s.ID); active {
		t.Fatal("session still active after revoke")
	}
	if err := Revoke(ctx, db, u.ID, s.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("second Revoke() error = %v", err)
	}
}

func TestIsActiveRequiresSessionID(t *testing.T) {
	db := testutil.NewDB(t)
	if active, err := IsActive(context.Background(), db, "u", ""); active || err != nil {
		t.Fatalf("IsActive(empty) = %v, %v", active, err)
	}
}
