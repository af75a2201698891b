package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/interviewlab/core/internal/models"
	"github.com/interviewlab/core/internal/pkg/apperr"
	"github.com/interviewlab/core/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeQuick struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (f *fakeQuick) GenerateQuickFeedback(ctx context.Context, in QuickInput) (*QuickResult, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &QuickResult{
		Keywords:     []string{"scheduler", "preemption"},
		Score:        72,
		Summary:      "Covers the basics of " + in.Question,
		Model:        "quick-model",
		InputTokens:  30,
		OutputTokens: 12,
	}, nil
}

type fakeDetailed struct {
	calls atomic.Int32
	err   error
	last  DetailedInput
}

func (f *fakeDetailed) GenerateDetailedFeedback(ctx context.Context, in DetailedInput) (*DetailedResult, error) {
	f.calls.Add(1)
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return &DetailedResult{
		Feedback: models.DetailedFeedback{
			Overall:           "Solid answer",
			Strengths:         []string{"accurate"},
			Improvements:      []string{"mention work stealing"},
			FollowUpQuestions: []string{"What happens on a blocking syscall?"},
			ModelAnswer:       &models.ModelAnswerBlock{Text: "The runtime uses GMP.", KeyPoints: []string{"M:N"}, CodeExample: "go work()"},
		},
		Model: "detailed-model",
	}, nil
}

type fixture struct {
	db       *gorm.DB
	quick    *fakeQuick
	detailed *fakeDetailed
	svc      *Service
	owner    *models.UserModel
	other    *models.UserModel
	answer   *models.AnswerModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	owner := testutil.SeedUser(t, db, "owner")
	other := testutil.SeedUser(t, db, "other")
	q := testutil.SeedQuestion(t, db, owner.ID, "How does the Go scheduler work?")
	a := testutil.SeedAnswer(t, db, owner.ID, q.ID, "It multiplexes goroutines onto OS threads.")
	quick := &fakeQuick{}
	detailed := &fakeDetailed{}
	return &fixture{
		db:       db,
		quick:    quick,
		detailed: detailed,
		svc:      NewService(db, quick, detailed, Options{Timeout: time.Second}, zap.NewNop()),
		owner:    owner,
		other:    other,
		answer:   a,
	}
}

func (f *fixture) feedbackRows(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.AnswerFeedbackModel{}).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func TestEnsureQuickIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.EnsureQuick(ctx, f.owner.ID, f.answer.ID)
	if err != nil {
		t.Fatalf("first EnsureQuick() error = %v", err)
	}
	second, err := f.svc.EnsureQuick(ctx, f.owner.ID, f.answer.ID)
	if err != nil {
		t.Fatalf("second EnsureQuick() error = %v", err)
	}
	if got := f.quick.calls.Load(); got != 1 {
		t.Fatalf("generator calls = %d, want 1", got)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("results differ:\n%s\n%s", a, b)
	}
	if first.Score != 72 || first.TokensUsed != 42 || first.ModelID != "quick-model" || first.HasDetailed() {
		t.Fatalf("feedback = %+v", first)
	}
	if f.feedbackRows(t) != 1 {
		t.Fatal("expected one feedback row")
	}
}

func TestEnsureQuickCoalescesConcurrentCalls(t *testing.T) {
	f := newFixture(t)
	f.quick.gate = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.EnsureQuick(ctx, f.owner.ID, f.answer.ID)
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.quick.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureQuick() error = %v", err)
		}
	}
	if f.feedbackRows(t) != 1 {
		t.Fatal("concurrent generations must converge on one row")
	}
	if got := f.quick.calls.Load(); got < 1 || got > 4 {
		t.Fatalf("generator calls = %d", got)
	}
}

func TestEnsureQuickSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.quick.gate = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	leader := make(chan error, 1)
	go func() {
		_, err := f.svc.EnsureQuick(ctx, f.owner.ID, f.answer.ID)
		leader <- err
	}()
	deadline := time.Now().Add(time.Second)
	for f.quick.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("generator never started")
		}
		time.Sleep(time.Millisecond)
	}

	follower := make(chan error, 1)
	go func() {
		fb, err := f.svc.EnsureQuick(context.Background(), f.owner.ID, f.answer.ID)
		if err == nil && (fb == nil || fb.QuickGeneratedAt.IsZero()) {
			err = errors.New("follower got no quick feedback")
		}
		follower <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(f.quick.gate)

	if err := <-leader; err != nil {
		t.Fatalf("cancelled caller error = %v", err)
	}
	if err := <-follower; err != nil {
		t.Fatalf("coalesced caller error = %v", err)
	}
	if f.feedbackRows(t) != 1 {
		t.Fatal("generated feedback must be stored after the caller left")
	}
	if _, err := f.svc.EnsureQuick(context.Background(), f.owner.ID, f.answer.ID); err != nil {
		t.Fatal(err)
	}
	if got := f.quick.calls.Load(); got != 1 {
		t.Fatalf("generator calls = %d, want 1", got)
	}
}

func TestEnsureDetailedRequiresQuick(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.EnsureDetailed(context.Background(), f.owner.ID, f.answer.ID)
	if !apperr.Is(err, apperr.KindPrecondition) {
		t.Fatalf("err = %v, want precondition", err)
	}
	if f.quick.calls.Load() != 0 || f.detailed.calls.Load() != 0 {
		t.Fatalf("collaborators called: quick=%d detailed=%d", f.quick.calls.Load(), f.detailed.calls.Load())
	}
	if f.feedbackRows(t) != 0 {
		t.Fatal("no record may be written")
	}
}

func TestEnsureDetailedMergesWithoutClobberingQuick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quick, err := f.svc.EnsureQuick(ctx, f.owner.ID, f.answer.ID)
	if err != nil {
		t.Fatal(err)
	}
	full, err := f.svc.EnsureDetailed(ctx, f.owner.ID, f.answer.ID)
	if err != nil {
		t.Fatalf("EnsureDetailed() error = %v", err)
	}
	if !full.HasDetailed() || full.DetailedModelID != "detailed-model" {
		t.Fatalf("detailed = %+v", full)
	}
	if full.Score != quick.Score || full.Summary != quick.Summary || full.ModelID != quick.ModelID || full.TokensUsed != quick.TokensUsed {
		t.Fatalf("quick group changed: before %+v after %+v", quick, full)
	}
	if full.ModelAnswer == nil || *full.ModelAnswer != "The runtime uses GMP." || full.ModelAnswerCode == nil {
		t.Fatalf("model answer = %v", full.ModelAnswer)
	}
	if len(full.FollowUpQuestions) != 1 || full.DetailedFeedback == nil {
		t.Fatalf("detailed fields = %+v", full)
	}
	if f.detailed.last.Score != 72 || len(f.detailed.last.Keywords) != 2 {
		t.Fatalf("detailed input = %+v", f.detailed.last)
	}

	if _, err := f.svc.EnsureDetailed(ctx, f.owner.ID, f.answer.ID); err != nil {
		t.Fatal(err)
	}
	if f.detailed.calls.Load() != 1 {
		t.Fatalf("detailed calls = %d, want 1", f.detailed.calls.Load())
	}
}

func TestOwnershipChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	checks := map[string]func() error{
		"get": func() error {
			_, err := f.svc.Get(ctx, f.other.ID, f.answer.ID)
			return err
		},
		"quick": func() error {
			_, err := f.svc.EnsureQuick(ctx, f.other.ID, f.answer.ID)
			return err
		},
		"detailed": func() error {
			_, err := f.svc.EnsureDetailed(ctx, f.other.ID, f.answer.ID)
			return err
		},
	}
	for name, call := range checks {
		if err := call(); !apperr.Is(err, apperr.KindForbidden) {
			t.Errorf("%s: err = %v, want forbidden", name, err)
		}
	}
	if f.quick.calls.Load() != 0 || f.feedbackRows(t) != 0 {
		t.Fatal("unauthorized calls must not generate or write")
	}

	if _, err := f.svc.EnsureQuick(ctx, f.owner.ID, "00000000-0000-0000-0000-000000000001"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("missing answer err = %v", err)
	}
	if _, err := f.svc.EnsureQuick(ctx, f.owner.ID, "not-a-uuid"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("bad id err = %v", err)
	}
}

func TestGetReturnsNilWhenAbsent(t *testing.T) {
	f := newFixture(t)
	fb, err := f.svc.Get(context.Background(), f.owner.ID, f.answer.ID)
	if err != nil || fb != nil {
		t.Fatalf("Get() = %v, %v", fb, err)
	}
}

func TestGeneratorFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.quick.err = errors.New("rate limited by provider")

	_, err := f.svc.EnsureQuick(context.Background(), f.owner.ID, f.answer.ID)
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}
	if f.feedbackRows(t) != 0 {
		t.Fatal("failed generation left a partial record")
	}

	f.quick.err = nil
	if _, err := f.svc.EnsureQuick(context.Background(), f.owner.ID, f.answer.ID); err != nil {
		t.Fatal(err)
	}
	f.detailed.err = errors.New("timeout")
	if _, err := f.svc.EnsureDetailed(context.Background(), f.owner.ID, f.answer.ID); !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("detailed err = %v", err)
	}
	fb, _ := f.svc.Get(context.Background(), f.owner.ID, f.answer.ID)
	if fb.HasDetailed() {
		t.Fatal("failed detailed generation must not mark detailed present")
	}
}
