package reference

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/pkg/apperr"
	"github.com/interviewlab/core/internal/pkg/fingerprint"
	"github.com/interviewlab/core/internal/pkg/pagination"
	"github.com/interviewlab/core/internal/testutil"
	"go.uber.org/zap"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	gets    int
}

func (m *memStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return b, nil
}

type memCache map[string]string

func (m memCache) Get(ctx context.Context, key string) (string, error) { return m[key], nil }

func (m memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m[key] = value.(string)
	return nil
}

const doc = "# Job posting\n\nWe need someone fluent in **Kubernetes operators** and distributed tracing."

func TestCreateIsIdempotentPerUser(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db, zap.NewNop())
	ctx := context.Background()

	first, created, err := svc.Create(ctx, "user-1", CreateInput{Content: doc})
	if err != nil || !created {
		t.Fatalf("Create() = %v, %v", created, err)
	}
	if first.Title != "Job posting" || first.Format != FormatMarkdown || first.Content == "" {
		t.Fatalf("row = %+v", first)
	}
	want := fingerprint.Digest("Job posting\n\nWe need someone fluent in Kubernetes operators and distributed tracing.")
	if first.Digest != want {
		t.Fatalf("digest = %s, want %s", first.Digest, want)
	}

	again, created, err := svc.Create(ctx, "user-1", CreateInput{Content: doc, Title: "renamed"})
	if err != nil || created {
		t.Fatalf("second Create() = %v, %v", created, err)
	}
	if again.ID != first.ID || again.Title != "Job posting" {
		t.Fatalf("second row = %+v", again)
	}

	if _, created, err := svc.Create(ctx, "user-2", CreateInput{Content: doc}); err != nil || !created {
		t.Fatalf("other user Create() = %v, %v", created, err)
	}
	var n int64
	db.Model(&models.ReferenceDocumentModel{}).Count(&n)
	if n != 2 {
		t.Fatalf("rows = %d", n)
	}

	if _, err := svc.Get(ctx, "user-2", "ffffffffffffffffffffffffffffffff"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}
	rows, pag, err := svc.List(ctx, "user-1", pagination.Query{Page: 1, Size: 10})
	if err != nil || len(rows) != 1 || pag.Total != 1 {
		t.Fatalf("List() = %d rows, %+v, %v", len(rows), pag, err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(testutil.NewDB(t), zap.NewNop())
	tests := []CreateInput{
		{Content: "   "},
		{Content: doc, Format: "pdf"},
		{Content: "a b c ok"},
		{Content: strings.Repeat("x", maxContentRunes+1)},
	}
	for _, in := range tests {
		if _, _, err := svc.Create(context.Background(), "user-1", in); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("Create(%.20q) err = %v, want validation", in.Content, err)
		}
	}
}

func TestTextFromObjectStoreWithCache(t *testing.T) {
	db := testutil.NewDB(t)
	store := &memStore{objects: map[string][]byte{}}
	cache := memCache{}
	svc := NewService(db, zap.NewNop()).WithObjectStore(store, "references/").WithCache(cache)
	ctx := context.Background()

	row, _, err := svc.Create(ctx, "user-1", CreateInput{Content: doc})
	if err != nil {
		t.Fatal(err)
	}
	if row.Content != "" || row.StorageKey != "references/user-1/"+row.Digest+".txt" {
		t.Fatalf("row = %+v", row)
	}

	for i := 0; i < 2; i++ {
		text, err := svc.Text(ctx, "user-1", row.Digest)
		if err != nil {
			t.Fatalf("Text() error = %v", err)
		}
		if !strings.Contains(text, "Kubernetes operators") {
			t.Fatalf("text = %q", text)
		}
	}
	if store.gets != 1 {
		t.Fatalf("object gets = %d, want 1", store.gets)
	}
	if _, err := svc.Text(ctx, "user-2", row.Digest); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("other user Text() err = %v", err)
	}
}

func TestUploadFailureFallsBackToDatabase(t *testing.T) {
	db := testutil.NewDB(t)
	store := &memStore{objects: map[string][]byte{}, putErr: errors.New("bucket offline")}
	svc := NewService(db, zap.NewNop()).WithObjectStore(store, "references/")
	ctx := context.Background()

	row, _, err := svc.Create(ctx, "user-1", CreateInput{Content: doc})
	if err != nil {
		t.Fatal(err)
	}
	if row.StorageKey != "" || row.Content == "" {
		t.Fatalf("row = %+v", row)
	}
	text, err := svc.Text(ctx, "user-1", row.Digest)
	if err != nil || text != row.Content {
		t.Fatalf("Text() = %q, %v", text, err)
	}
}

func TestTitleOf(t *testing.T) {
	if got := titleOf("", "First line\nsecond"); got != "First line" {
		t.Fatalf("titleOf = %q", got)
	}
	if got := titleOf(strings.Repeat("가", 300), ""); len([]rune(got)) != maxTitleRunes {
		t.Fatalf("title runes = %d", len([]rune(got)))
	}
}
