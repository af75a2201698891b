package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunNowRecordsStatus(t *testing.T) {
	s := New(nil)
	var calls atomic.Int32
	s.Register(Job{Name: "ok", Interval: time.Hour, Fn: func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}})
	s.Register(Job{Name: "fails", Interval: time.Hour, Fn: func(ctx context.Context) error {
		return errors.New("boom")
	}})
	s.Register(Job{Name: "panics", Interval: time.Hour, Fn: func(ctx context.Context) error {
		panic("bad")
	}})

	for _, name := range []string{"ok", "fails", "panics"} {
		if err := s.RunNow(context.Background(), name); err != nil {
			t.Fatalf("RunNow(%s) error = %v", name, err)
		}
	}
	if err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Fatal("RunNow(missing) expected error")
	}

	want := map[string]JobStatus{"fails": StatusFailed, "ok": StatusOK, "panics": StatusFailed}
	for _, item := range s.List() {
		if item.Status != want[item.Name] {
			t.Errorf("%s status = %s, want %s", item.Name, item.Status, want[item.Name])
		}
		if item.LastRunAt == nil {
			t.Errorf("%s LastRunAt not set", item.Name)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestTimeoutBoundsRun(t *testing.T) {
	s := New(nil)
	s.Register(Job{Name: "slow", Interval: time.Hour, Timeout: 10 * time.Millisecond, Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	if err := s.RunNow(context.Background(), "slow"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	items := s.List()
	if len(items) != 1 || items[0].Status != StatusFailed {
		t.Fatalf("items = %+v", items)
	}
}

func TestStartRunsOnInterval(t *testing.T) {
	s := New(nil)
	ran := make(chan struct{}, 1)
	s.Register(Job{Name: "tick", Interval: 5 * time.Millisecond, Fn: func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}
