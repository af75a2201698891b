package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/interviewlab/core/internal/pkg/apperr"
	"github.com/interviewlab/core/internal/pkg/taskqueue"
)

// memQueue mirrors the dedup behaviour of the redis queue in memory.
type memQueue struct {
	mu    sync.Mutex
	tasks map[string]*taskqueue.Task
	dedup map[string]string
}

func newMemQueue() *memQueue {
	return &memQueue{tasks: map[string]*taskqueue.Task{}, dedup: map[string]string{}}
}

func (q *memQueue) Enqueue(ctx context.Context, taskType, ownerID string, payload interface{}, dedupKey string) (*taskqueue.Task, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if id, ok := q.dedup[taskType+dedupKey]; ok && !q.tasks[id].Done() {
		cp := *q.tasks[id]
		return &cp, false, nil
	}
	raw, _ := json.Marshal(payload)
	t := &taskqueue.Task{ID: uuid.NewString(), Type: taskType, OwnerID: ownerID, Payload: raw, Status: taskqueue.TaskPending, DedupKey: dedupKey}
	q.tasks[t.ID] = t
	q.dedup[taskType+dedupKey] = t.ID
	cp := *t
	return &cp, true, nil
}

func (q *memQueue) GetByID(ctx context.Context, id string) (*taskqueue.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (q *memQueue) UpdateStatus(ctx context.Context, id string, status taskqueue.TaskStatus, result interface{}, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return taskqueue.ErrTaskNotFound
	}
	t.Status = status
	t.Error = errMsg
	if result != nil {
		t.Result, _ = json.Marshal(result)
	}
	return nil
}

func TestEnqueueDetailedRunsInBackground(t *testing.T) {
	f := newFixture(t)
	queue := newMemQueue()
	f.svc.WithQueue(queue)
	ctx := context.Background()

	if _, err := f.svc.EnqueueDetailed(ctx, f.owner.ID, f.answer.ID); !apperr.Is(err, apperr.KindPrecondition) {
		t.Fatalf("enqueue before quick err = %v", err)
	}
	if len(queue.tasks) != 0 {
		t.Fatal("nothing may be queued before quick feedback exists")
	}

	if _, err := f.svc.EnsureQuick(ctx, f.owner.ID, f.answer.ID); err != nil {
		t.Fatal(err)
	}
	job, err := f.svc.EnqueueDetailed(ctx, f.owner.ID, f.answer.ID)
	if err != nil || job.Task == nil {
		t.Fatalf("EnqueueDetailed() = %+v, %v", job, err)
	}
	f.svc.Wait()

	task, err := f.svc.Task(ctx, f.owner.ID, job.Task.ID)
	if err != nil {
		t.Fatalf("Task() error = %v", err)
	}
	if task.Status != taskqueue.TaskCompleted {
		t.Fatalf("status = %s (%s)", task.Status, task.Error)
	}
	if _, err := f.svc.Task(ctx, f.other.ID, job.Task.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("other user task err = %v", err)
	}

	again, err := f.svc.EnqueueDetailed(ctx, f.owner.ID, f.answer.ID)
	if err != nil || again.Feedback == nil || again.Task != nil {
		t.Fatalf("second enqueue = %+v, %v", again, err)
	}
	if f.detailed.calls.Load() != 1 {
		t.Fatalf("detailed calls = %d", f.detailed.calls.Load())
	}
}

func TestEnqueueDetailedDedupsPendingTask(t *testing.T) {
	f := newFixture(t)
	queue := newMemQueue()
	f.svc.WithQueue(queue)
	ctx := context.Background()
	if _, err := f.svc.EnsureQuick(ctx, f.owner.ID, f.answer.ID); err != nil {
		t.Fatal(err)
	}

	// A pending task for this answer already exists.
	existing, _, _ := queue.Enqueue(ctx, TaskDetailed, f.owner.ID, detailedPayload{AnswerID: f.answer.ID}, f.answer.ID)

	job, err := f.svc.EnqueueDetailed(ctx, f.owner.ID, f.answer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Task.ID != existing.ID {
		t.Fatalf("task = %s, want existing %s", job.Task.ID, existing.ID)
	}
	f.svc.Wait()
	time.Sleep(10 * time.Millisecond)
	if f.detailed.calls.Load() != 0 {
		t.Fatal("deduplicated request must not start another generation")
	}
}

func TestEnqueueDetailedAfterClose(t *testing.T) {
	f := newFixture(t)
	queue := newMemQueue()
	f.svc.WithQueue(queue)
	ctx := context.Background()
	if _, err := f.svc.EnsureQuick(ctx, f.owner.ID, f.answer.ID); err != nil {
		t.Fatal(err)
	}

	f.svc.Close()

	_, err := f.svc.EnqueueDetailed(ctx, f.owner.ID, f.answer.ID)
	if !apperr.Is(err, apperr.KindUpstream) || !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("enqueue after close err = %v", err)
	}
	if len(queue.tasks) != 0 {
		t.Fatal("no task may be queued after close")
	}
	if f.detailed.calls.Load() != 0 {
		t.Fatal("no generation may start after close")
	}
}

func TestTaskWithoutQueue(t *testing.T) {
	f := newFixture(t)
	if f.svc.AsyncEnabled() {
		t.Fatal("AsyncEnabled() = true without queue")
	}
	if _, err := f.svc.Task(context.Background(), f.owner.ID, "x"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v", err)
	}
}
