package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestAddIntervalJob_Validation(t *testing.T) {
	svc, err := New(clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer svc.Stop()

	task := func(context.Context) {}
	if _, err := svc.AddIntervalJob("  ", time.Minute, 0, false, task); !errors.Is(err, ErrEmptyJobName) {
		t.Errorf("Expected ErrEmptyJobName, got %v", err)
	}
	if _, err := svc.AddIntervalJob("sweep", 0, 0, false, task); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("Expected ErrInvalidInterval, got %v", err)
	}

	job, err := svc.AddIntervalJob("sweep", 30*time.Minute, time.Minute, false, task)
	if err != nil {
		t.Fatalf("AddIntervalJob failed: %v", err)
	}
	if job.Name() != "sweep" {
		t.Errorf("Expected job name 'sweep', got %q", job.Name())
	}
}

func TestAddIntervalJob_RunsImmediately(t *testing.T) {
	svc, err := New(clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer svc.Stop()

	ran := make(chan struct{}, 1)
	_, err = svc.AddIntervalJob("sweep", time.Hour, time.Second, true, func(ctx context.Context) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("Expected job context to carry the per-run timeout")
		}
		select {
		case ran <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("AddIntervalJob failed: %v", err)
	}
	svc.Start()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected job to run at start")
	}
}

func TestStop_IsIdempotent(t *testing.T) {
	svc, err := New(clockwork.NewRealClock())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	svc.Start()
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("Expected second Stop to return the first result, got %v", err)
	}
}
