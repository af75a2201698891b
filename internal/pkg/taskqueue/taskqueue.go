package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisc "github.com/interviewlab/core/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// ErrTaskNotFound is returned when a task id is unknown or expired.
var ErrTaskNotFound = errors.New("task not found")

// Task is a unit of background work stored in Redis.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	OwnerID   string          `json:"-"`
	Payload   json.RawMessage `json:"payload"`
	Status    TaskStatus      `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	DedupKey  string          `json:"dedup_key,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Done reports whether the task reached a terminal state.
func (t *Task) Done() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// storedTask keeps OwnerID in Redis while hiding it from API responses.
type storedTask struct {
	Task
	Owner string `json:"owner_id"`
}

const (
	keyPrefix   = "iv:task:"
	keyIndex    = "iv:tasks:index"  // sorted set: score=created_at, member=task_id
	keyDedupSet = "iv:tasks:dedup:" // hash: dedup_key -> task_id
	taskTTL     = 24 * time.Hour    // tasks expire after a day

	defaultStaleAfter = 10 * time.Minute
	maxClaimAttempts  = 3
)

// ErrClaimContention is returned when a dedup key kept changing hands
// while Enqueue tried to claim it.
var ErrClaimContention = errors.New("task dedup key is contended")

// releaseClaim deletes a dedup field only while it still names the given task.
var releaseClaim = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

// Service manages the Redis-backed task queue.
type Service struct {
	rc         *redisc.Client
	staleAfter time.Duration
	now        func() time.Time
}

func NewService(rc *redisc.Client) *Service {
	return &Service{rc: rc, staleAfter: defaultStaleAfter, now: time.Now}
}

// WithStaleAfter sets how long an unfinished task may go without an update
// before a new Enqueue with the same dedup key replaces it.
func (s *Service) WithStaleAfter(d time.Duration) *Service {
	if d > 0 {
		s.staleAfter = d
	}
	return s
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) taskKey(id string) string { return keyPrefix + id }

// Enqueue creates a new task. A live pending or running task with the same
// dedup key is returned instead of creating another. An unfinished task that
// has not been updated within the stale window is marked failed and replaced.
func (s *Service) Enqueue(ctx context.Context, taskType, ownerID string, payload interface{}, dedupKey string) (*Task, bool, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	task := &Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		OwnerID:   ownerID,
		Payload:   payloadBytes,
		Status:    TaskPending,
		DedupKey:  dedupKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, task); err != nil {
		return nil, false, err
	}
	if dedupKey == "" {
		return task, true, nil
	}

	// The task is stored before it is claimed so a competing caller that
	// loses the claim can always load the winner.
	hashKey := keyDedupSet + taskType
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		claimed, err := s.rc.Raw().HSetNX(ctx, hashKey, dedupKey, task.ID).Result()
		if err != nil {
			s.discard(ctx, task.ID)
			return nil, false, err
		}
		if claimed {
			s.rc.Raw().Expire(ctx, hashKey, taskTTL)
			return task, true, nil
		}

		holderID, err := s.rc.Raw().HGet(ctx, hashKey, dedupKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			s.discard(ctx, task.ID)
			return nil, false, err
		}
		holder, err := s.GetByID(ctx, holderID)
		if err != nil {
			s.discard(ctx, task.ID)
			return nil, false, err
		}
		if holder != nil && !holder.Done() && !s.stale(holder) {
			s.discard(ctx, task.ID)
			return holder, false, nil
		}
		if holder != nil && !holder.Done() {
			if err := s.UpdateStatus(ctx, holder.ID, TaskFailed, nil, "abandoned"); err != nil && !errors.Is(err, ErrTaskNotFound) {
				s.discard(ctx, task.ID)
				return nil, false, err
			}
		}
		if err := s.release(ctx, hashKey, dedupKey, holderID); err != nil {
			s.discard(ctx, task.ID)
			return nil, false, err
		}
	}
	s.discard(ctx, task.ID)
	return nil, false, ErrClaimContention
}

func (s *Service) stale(t *Task) bool {
	return s.now().Sub(t.UpdatedAt) > s.staleAfter
}

func (s *Service) save(ctx context.Context, task *Task) error {
	data, err := json.Marshal(storedTask{Task: *task, Owner: task.OwnerID})
	if err != nil {
		return err
	}
	pipe := s.rc.Raw().TxPipeline()
	pipe.Set(ctx, s.taskKey(task.ID), data, taskTTL)
	pipe.ZAdd(ctx, keyIndex, redis.Z{
		Score:  float64(task.CreatedAt.UnixMilli()),
		Member: task.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// discard removes a task that never won its dedup claim.
func (s *Service) discard(ctx context.Context, id string) {
	pipe := s.rc.Raw().TxPipeline()
	pipe.Del(ctx, s.taskKey(id))
	pipe.ZRem(ctx, keyIndex, id)
	_, _ = pipe.Exec(ctx)
}

func (s *Service) release(ctx context.Context, hashKey, dedupKey, id string) error {
	err := releaseClaim.Run(ctx, s.rc.Raw(), []string{hashKey}, dedupKey, id).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// GetByID retrieves a task by its ID. Returns (nil, nil) when absent.
func (s *Service) GetByID(ctx context.Context, id string) (*Task, error) {
	data, err := s.rc.Raw().Get(ctx, s.taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st storedTask
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	st.Task.OwnerID = st.Owner
	return &st.Task, nil
}

// UpdateStatus sets a task's status and optional result/error.
func (s *Service) UpdateStatus(ctx context.Context, id string, status TaskStatus, result interface{}, errMsg string) error {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	task.Status = status
	task.UpdatedAt = s.now()
	task.Error = errMsg
	if result != nil {
		if task.Result, err = json.Marshal(result); err != nil {
			return err
		}
	}

	data, err := json.Marshal(storedTask{Task: *task, Owner: task.OwnerID})
	if err != nil {
		return err
	}
	if err := s.rc.Raw().Set(ctx, s.taskKey(id), data, taskTTL).Err(); err != nil {
		return err
	}
	if task.Done() && task.DedupKey != "" {
		return s.release(ctx, keyDedupSet+task.Type, task.DedupKey, task.ID)
	}
	return nil
}

// DeleteCompleted removes finished tasks created before beforeMS (0 = all)
// and prunes index entries whose task already expired.
func (s *Service) DeleteCompleted(ctx context.Context, beforeMS int64) (int, error) {
	ids, err := s.rc.Raw().ZRange(ctx, keyIndex, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	removed := 0
	pipe := s.rc.Raw().TxPipeline()
	for _, id := range ids {
		task, err := s.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if task == nil {
			pipe.ZRem(ctx, keyIndex, id)
			continue
		}
		if !task.Done() {
			continue
		}
		if beforeMS > 0 && task.CreatedAt.UnixMilli() >= beforeMS {
			continue
		}
		pipe.Del(ctx, s.taskKey(id))
		pipe.ZRem(ctx, keyIndex, id)
		removed++
		if task.DedupKey != "" {
			if err := s.release(ctx, keyDedupSet+task.Type, task.DedupKey, task.ID); err != nil {
				return 0, err
			}
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return removed, nil
}
