package undo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/matchday/go/internal/tracking/notify"
)

func newTestStack() (*Stack, *clockwork.FakeClock, *notify.Recorder) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 9, 7, 10, 0, 0, 0, time.UTC))
	recorder := &notify.Recorder{}
	return NewStack(clock, recorder, DefaultWindow), clock, recorder
}

func noop(context.Context) error { return nil }

func TestStack_ExpiresAtExactlyThirtySeconds(t *testing.T) {
	stack, clock, _ := newTestStack()
	stack.Push(KindEvent, "Goal recorded", noop)

	clock.Advance(29999 * time.Millisecond)
	if stack.Len() != 1 {
		t.Fatalf("Action should still be undoable at 29.999s")
	}
	if got := stack.RemainingSeconds(); got != 1 {
		t.Errorf("Expected 1 second remaining, got %d", got)
	}

	clock.Advance(time.Millisecond)
	if stack.Len() != 0 {
		t.Errorf("Action should be removed at exactly 30s")
	}
	if _, ok := stack.Current(); ok {
		t.Error("Expected no current action after expiry")
	}
	if got := stack.RemainingSeconds(); got != 0 {
		t.Errorf("Expected 0 seconds remaining, got %d", got)
	}
}

func TestStack_RemainingSecondsRoundsUp(t *testing.T) {
	stack, clock, _ := newTestStack()
	stack.Push(KindSubstitution, "Substitution made", noop)

	if got := stack.RemainingSeconds(); got != 30 {
		t.Errorf("Expected 30 seconds remaining, got %d", got)
	}
	clock.Advance(10*time.Second + 200*time.Millisecond)
	if got := stack.RemainingSeconds(); got != 20 {
		t.Errorf("Expected 20 seconds remaining, got %d", got)
	}
}

func TestStack_FailureKeepsActionForRetry(t *testing.T) {
	stack, _, recorder := newTestStack()

	calls := 0
	pushed := stack.Push(KindEvent, "Goal recorded", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("network down")
		}
		return nil
	})

	if stack.Perform(context.Background()) {
		t.Fatal("First undo should report failure")
	}
	current, ok := stack.Current()
	if !ok || current.ID != pushed.ID {
		t.Fatalf("Failed undo must keep the same action current")
	}
	if recorder.Count("Undo failed") != 1 {
		t.Errorf("Expected one failure notification, got %d", recorder.Count("Undo failed"))
	}
	all := recorder.All()
	if all[len(all)-1].Description != "network down" {
		t.Errorf("Expected failure to carry error message, got %q", all[len(all)-1].Description)
	}

	if !stack.Perform(context.Background()) {
		t.Fatal("Retry should undo the same action")
	}
	if calls != 2 {
		t.Errorf("Expected compensating operation to run twice, got %d", calls)
	}
	if stack.Len() != 0 {
		t.Errorf("Expected empty stack after successful retry, got %d", stack.Len())
	}
}

func TestStack_SuccessfulUndoLeavesNoStrayExpiry(t *testing.T) {
	stack, clock, recorder := newTestStack()
	stack.Push(KindEvent, "Goal recorded", noop)

	if !stack.Perform(context.Background()) {
		t.Fatal("Expected undo to succeed")
	}
	if stack.Len() != 0 {
		t.Fatalf("Expected empty stack, got %d", stack.Len())
	}
	if recorder.Count("Undone") != 1 {
		t.Errorf("Expected one success notification")
	}

	seen := recorder.Len()
	clock.Advance(31 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if recorder.Len() != seen {
		t.Errorf("Expected no notifications after the window elapsed, got %d new", recorder.Len()-seen)
	}
	if stack.Perform(context.Background()) {
		t.Error("Perform on an empty stack must be a no-op")
	}
}

func TestStack_OnlyTopIsUndone(t *testing.T) {
	stack, clock, _ := newTestStack()
	var undone []string
	stack.Push(KindEvent, "first", func(context.Context) error { undone = append(undone, "first"); return nil })
	clock.Advance(10 * time.Second)
	stack.Push(KindEvent, "second", func(context.Context) error { undone = append(undone, "second"); return nil })

	current, _ := stack.Current()
	if current.Description != "second" {
		t.Fatalf("Expected top to be second, got %s", current.Description)
	}

	// The first action expires on its own schedule even though a newer push replaced the timer.
	clock.Advance(20 * time.Second)
	if stack.Len() != 1 {
		t.Fatalf("Expected first action expired, got depth %d", stack.Len())
	}

	stack.Perform(context.Background())
	if len(undone) != 1 || undone[0] != "second" {
		t.Errorf("Expected only second undone, got %v", undone)
	}
}

func TestStack_SingleUndoInFlight(t *testing.T) {
	stack, _, _ := newTestStack()
	release := make(chan struct{})
	stack.Push(KindEvent, "Goal recorded", func(context.Context) error {
		<-release
		return nil
	})

	done := make(chan bool, 1)
	go func() { done <- stack.Perform(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !stack.IsUndoing() {
		if time.Now().After(deadline) {
			t.Fatal("undo never started")
		}
		time.Sleep(time.Millisecond)
	}

	if stack.Perform(context.Background()) {
		t.Error("Concurrent perform must be a no-op")
	}
	close(release)
	if !<-done {
		t.Error("In-flight undo should succeed")
	}
}

func TestStack_ClearEmptiesStack(t *testing.T) {
	stack, _, _ := newTestStack()
	stack.Push(KindEvent, "a", noop)
	stack.Push(KindPeriod, "b", noop)
	stack.Clear()
	if stack.Len() != 0 {
		t.Errorf("Expected empty stack after Clear, got %d", stack.Len())
	}
}

func TestStack_PushAnnouncesWindow(t *testing.T) {
	stack, _, recorder := newTestStack()
	stack.Push(KindEvent, "Goal recorded", noop)
	all := recorder.All()
	if len(all) != 1 {
		t.Fatalf("Expected one notification, got %d", len(all))
	}
	if all[0].Title != "Goal recorded" || all[0].Description != "Undo available for 30 seconds" {
		t.Errorf("Unexpected push notification: %+v", all[0])
	}
}
