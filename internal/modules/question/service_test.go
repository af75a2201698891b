package question

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/interviewlab/core/internal/config"
	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/modules/history"
	"github.com/interviewlab/core/internal/pkg/apperr"
	"github.com/interviewlab/core/internal/pkg/fingerprint"
	"github.com/interviewlab/core/internal/pkg/pagination"
	"github.com/interviewlab/core/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	requests  []GenerationRequest
	questions []GeneratedQuestion
	err       error
	wait      time.Duration
}

func (f *fakeGenerator) GenerateQuestions(ctx context.Context, req GenerationRequest) (*GeneratedQuestions, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.wait):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &GeneratedQuestions{Questions: f.questions, Model: "fake"}, nil
}

type fakeRefs map[string]string

func (f fakeRefs) Text(ctx context.Context, userID, digest string) (string, error) {
	text, ok := f[userID+"/"+digest]
	if !ok {
		return "", apperr.NotFound("reference not found")
	}
	return text, nil
}

type fixture struct {
	db   *gorm.DB
	hist *history.Service
	gen  *fakeGenerator
	svc  *Service
	user string
}

func newFixture(t *testing.T, opts Options, refs ReferenceResolver) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	hist := history.NewService(db, config.HistoryConfig{RetentionDays: 30, RecentLimit: 100, ReferenceLimit: 50}, zap.NewNop())
	gen := &fakeGenerator{}
	user := testutil.SeedUser(t, db, "candidate")
	return &fixture{
		db:   db,
		hist: hist,
		gen:  gen,
		svc:  NewService(db, hist, gen, refs, opts, zap.NewNop()),
		user: user.ID,
	}
}

func TestGenerateRecordsHistoryAndSteersNextPrompt(t *testing.T) {
	f := newFixture(t, Options{FilterDuplicates: true}, nil)
	ctx := context.Background()

	f.gen.questions = []GeneratedQuestion{
		{Content: "How does the Go scheduler multiplex goroutines onto threads?", Hint: "GMP", Category: "runtime"},
		{Content: "When would you choose a buffered channel over an unbuffered one?", Category: "channels"},
	}
	res, err := f.svc.Generate(ctx, f.user, GenerateInput{Topic: "Go concurrency", Count: 2, Difficulty: "Medium"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(res.Questions) != 2 || res.Filtered != 0 {
		t.Fatalf("result = %+v", res)
	}
	if res.Questions[0].Signature != fingerprint.Signature(f.gen.questions[0].Content) {
		t.Fatalf("signature not stored")
	}
	if res.Questions[0].Difficulty != "medium" {
		t.Fatalf("difficulty = %q", res.Questions[0].Difficulty)
	}
	if strings.Contains(f.gen.requests[0].Prompt, "PREVIOUS_QUESTIONS") {
		t.Fatal("first prompt should have no diversity block")
	}

	recent := f.hist.Recent(ctx, f.user, 0)
	if len(recent) != 2 {
		t.Fatalf("history = %v", recent)
	}

	f.gen.questions = []GeneratedQuestion{{Content: "Explain how select chooses among ready channel cases"}}
	if _, err := f.svc.Generate(ctx, f.user, GenerateInput{Topic: "Go concurrency", Count: 1}); err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	second := f.gen.requests[1]
	for _, q := range recent {
		if !strings.Contains(second.Prompt, q) {
			t.Errorf("second prompt missing previous question %q", q)
		}
	}
	if len(second.Exclude) != 2 {
		t.Errorf("Exclude = %v", second.Exclude)
	}
}

func TestGenerateHonoursDiversityItemCap(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.SeedUser(t, db, "capped")
	hist := history.NewService(db, config.HistoryConfig{RetentionDays: 30, DiversityMaxItems: 2}, zap.NewNop())
	gen := &fakeGenerator{questions: []GeneratedQuestion{{Content: "How does a B-tree stay balanced on insert?"}}}
	svc := NewService(db, hist, gen, nil, Options{}, zap.NewNop())
	ctx := context.Background()

	previous := []string{
		"What is a covering index?",
		"When does a query planner pick a hash join?",
		"How does MVCC avoid read locks?",
	}
	for _, q := range previous {
		hist.Record(ctx, user.ID, []string{q}, history.RecordOptions{})
		time.Sleep(2 * time.Millisecond)
	}

	if _, err := svc.Generate(ctx, user.ID, GenerateInput{Topic: "Databases", Count: 1}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	prompt := gen.requests[0].Prompt
	block := prompt[strings.Index(prompt, "<<<PREVIOUS_QUESTIONS"):strings.Index(prompt, "\nPREVIOUS_QUESTIONS")]
	if n := strings.Count(block, "\n"); n != 2 {
		t.Fatalf("diversity block lists %d questions, want 2:\n%s", n, block)
	}
	if got := len(gen.requests[0].Exclude); got != 3 {
		t.Fatalf("Exclude = %d entries, want 3", got)
	}
}

func TestGenerateFiltersDuplicates(t *testing.T) {
	f := newFixture(t, Options{FilterDuplicates: true}, nil)
	ctx := context.Background()

	old := "Explain the difference between a process and a thread in operating systems"
	f.hist.Record(ctx, f.user, []string{old}, history.RecordOptions{})

	f.gen.questions = []GeneratedQuestion{
		{Content: "In operating systems, explain the difference between a thread and a process"},
		{Content: "What does a TLB miss cost and how is it handled?"},
		{Content: "How is a TLB miss handled and what does it cost?"},
	}
	res, err := f.svc.Generate(ctx, f.user, GenerateInput{Topic: "OS", Count: 3})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(res.Questions) != 1 || res.Filtered != 2 {
		t.Fatalf("questions = %d filtered = %d", len(res.Questions), res.Filtered)
	}
	if res.Questions[0].Content != f.gen.questions[1].Content {
		t.Fatalf("kept = %q", res.Questions[0].Content)
	}

	var stored int64
	f.db.Model(&models.QuestionModel{}).Count(&stored)
	if stored != 1 {
		t.Fatalf("stored questions = %d", stored)
	}
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	bad := "not-a-uuid"
	tests := []struct {
		name string
		in   GenerateInput
	}{
		{"no topic or reference", GenerateInput{Count: 1}},
		{"count too large", GenerateInput{Topic: "Go", Count: 11}},
		{"negative count", GenerateInput{Topic: "Go", Count: -1}},
		{"bad difficulty", GenerateInput{Topic: "Go", Difficulty: "insane"}},
		{"bad session id", GenerateInput{Topic: "Go", SessionID: &bad}},
		{"bad digest", GenerateInput{ReferenceDigest: "xyz"}},
		{"topic too long", GenerateInput{Topic: strings.Repeat("a", maxTopicRunes+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Generate(context.Background(), f.user, tt.in)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
	if f.gen.calls != 0 {
		t.Fatalf("generator called %d times", f.gen.calls)
	}
}

func TestGenerateUpstreamFailureWritesNothing(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.gen.err = errors.New("provider exploded")

	_, err := f.svc.Generate(context.Background(), f.user, GenerateInput{Topic: "Go"})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}
	if msg := apperr.PublicMessage(err); strings.Contains(msg, "exploded") {
		t.Fatalf("public message leaks detail: %q", msg)
	}
	if got := f.hist.Recent(context.Background(), f.user, 0); len(got) != 0 {
		t.Fatalf("history = %v", got)
	}
}

func TestGenerateTimeout(t *testing.T) {
	f := newFixture(t, Options{Timeout: 20 * time.Millisecond}, nil)
	f.gen.wait = time.Second
	f.gen.questions = []GeneratedQuestion{{Content: "never returned"}}

	_, err := f.svc.Generate(context.Background(), f.user, GenerateInput{Topic: "Go"})
	if !apperr.Is(err, apperr.KindUpstream) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateWithReference(t *testing.T) {
	refText := "Raft elects a leader with randomized timeouts and replicates a log."
	digest := fingerprint.Digest(refText)

	db := testutil.NewDB(t)
	user := testutil.SeedUser(t, db, "ref-user")
	hist := history.NewService(db, config.HistoryConfig{RetentionDays: 30}, zap.NewNop())
	gen := &fakeGenerator{questions: []GeneratedQuestion{{Content: "Why does Raft randomize election timeouts?"}}}
	svc := NewService(db, hist, gen, fakeRefs{user.ID + "/" + digest: refText}, Options{}, zap.NewNop())
	ctx := context.Background()

	res, err := svc.Generate(ctx, user.ID, GenerateInput{ReferenceDigest: digest, Count: 1})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.ReferenceDigest != digest || res.Questions[0].ReferenceDigest == nil {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(gen.requests[0].Prompt, refText) {
		t.Fatal("prompt missing reference text")
	}
	if got := hist.RecentByReference(ctx, user.ID, digest, 0); len(got) != 1 {
		t.Fatalf("RecentByReference = %v", got)
	}

	if _, err := svc.Generate(ctx, user.ID, GenerateInput{ReferenceDigest: strings.Repeat("0", 32)}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("unknown digest err = %v", err)
	}
	if _, err := svc.Generate(ctx, user.ID, GenerateInput{ReferenceText: refText, ReferenceDigest: strings.Repeat("0", 32)}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("mismatched digest err = %v", err)
	}
}

func TestOwnershipAndAnswers(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	other := testutil.SeedUser(t, f.db, "other")
	q := testutil.SeedQuestion(t, f.db, f.user, "What is a mutex?")

	if _, err := f.svc.Get(ctx, other.ID, q.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("Get by other user err = %v", err)
	}
	if _, err := f.svc.Get(ctx, f.user, "00000000-0000-0000-0000-000000000000"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Get missing err = %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, other.ID, q.ID, "a lock"); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("SubmitAnswer by other user err = %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, f.user, q.ID, "   "); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("blank answer err = %v", err)
	}

	a, err := f.svc.SubmitAnswer(ctx, f.user, q.ID, " A mutual exclusion lock. ")
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if a.Content != "A mutual exclusion lock." {
		t.Fatalf("content = %q", a.Content)
	}
	answers, err := f.svc.Answers(ctx, f.user, q.ID)
	if err != nil || len(answers) != 1 {
		t.Fatalf("Answers() = %v, %v", answers, err)
	}

	rows, pag, err := f.svc.List(ctx, f.user, "", pagination.Query{Page: 1, Size: 10})
	if err != nil || len(rows) != 1 || pag.Total != 1 {
		t.Fatalf("List() = %v, %+v, %v", rows, pag, err)
	}
	rows, _, _ = f.svc.List(ctx, other.ID, "", pagination.Query{Page: 1, Size: 10})
	if len(rows) != 0 {
		t.Fatalf("other user sees %d questions", len(rows))
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("Kubernetes", "hard", "", "")
	if !strings.HasPrefix(p, "## Topic\nKubernetes\nTarget difficulty: hard") {
		t.Fatalf("prompt = %q", p)
	}
	long := strings.Repeat("가", maxReferenceRunes+10)
	p = buildPrompt("", "", long, "## Question diversity requirements")
	if !strings.Contains(p, "reference material below") || !strings.Contains(p, "...\nREFERENCE") {
		t.Fatalf("prompt = %q", p[:80])
	}
	if !strings.HasSuffix(p, "## Question diversity requirements") {
		t.Fatal("diversity block should close the prompt")
	}
}
