package optimistic

import "testing"

func TestValue_PredictThenConfirm(t *testing.T) {
	v := New("")

	tok := v.Begin()
	if _, state := v.Get(); state != Reconciling {
		t.Fatalf("Expected reconciling while in flight, got %s", state)
	}
	if !v.Predict(tok, "me") {
		t.Fatal("Expected prediction to apply")
	}
	if got, state := v.Get(); got != "me" || state != Optimistic {
		t.Errorf("Expected optimistic 'me', got %s %q", state, got)
	}

	v.Confirm("other")
	if got, state := v.Get(); got != "other" || state != Confirmed {
		t.Errorf("Expected confirmed 'other', got %s %q", state, got)
	}
}

func TestValue_StalePredictionIsDropped(t *testing.T) {
	v := New("")

	tok := v.Begin()
	v.Confirm("other")

	if v.Predict(tok, "me") {
		t.Error("Expected prediction issued before a confirmation to be dropped")
	}
	if got, state := v.Get(); got != "other" || state != Confirmed {
		t.Errorf("Expected confirmed 'other' to survive, got %s %q", state, got)
	}
}

func TestValue_AbandonKeepsValue(t *testing.T) {
	v := New("holder")

	tok := v.Begin()
	v.Abandon(tok)

	if got, state := v.Get(); got != "holder" || state != Confirmed {
		t.Errorf("Expected unchanged confirmed value, got %s %q", state, got)
	}
}
