package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/gatherr/gatherr/internal/testutil"
)

func TestRegisterTask(t *testing.T) {
	s, err := New(testutil.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	task := TaskConfig{
		ID:    "refresh",
		Name:  "Refresh",
		Every: time.Hour,
		Func:  func(context.Context) error { return nil },
	}
	if err := s.RegisterTask(task); err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}
	if err := s.RegisterTask(task); err == nil {
		t.Error("duplicate task id should be rejected")
	}
	if err := s.RegisterTask(TaskConfig{ID: "bare", Name: "Bare"}); err == nil {
		t.Error("task without cron or interval should be rejected")
	}

	tasks := s.ListTasks()
	if len(tasks) != 1 || tasks[0].ID != "refresh" {
		t.Errorf("ListTasks = %+v, want the one registered task", tasks)
	}
}

func TestRunNow(t *testing.T) {
	s, err := New(testutil.NopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	ran := make(chan struct{})
	err = s.RegisterTask(TaskConfig{
		ID:    "once",
		Name:  "Once",
		Every: time.Hour,
		Func: func(context.Context) error {
			close(ran)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}

	if err := s.RunNow("missing"); err == nil {
		t.Error("unknown task id should error")
	}
	if err := s.RunNow("once"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
}
