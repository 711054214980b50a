package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatherr/gatherr/internal/indexer"
	"github.com/gatherr/gatherr/internal/testutil"
)

func testService(t *testing.T) (*Service, *testutil.TestDB, *time.Time) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	svc := NewService(tdb.Store, DefaultBackoffConfig(), testutil.NopLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })
	return svc, tdb, &now
}

func TestGetStatus_CreatesDefaultRow(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	rec, err := svc.GetStatus(ctx, 1)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if !rec.IsEnabled {
		t.Error("expected new indexer to be enabled")
	}
	if rec.Priority != DefaultPriority {
		t.Errorf("Priority = %d, want %d", rec.Priority, DefaultPriority)
	}
	if rec.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", rec.ConsecutiveFailures)
	}
}

func TestBackoff_StartsAtThreshold(t *testing.T) {
	svc, _, now := testService(t)
	ctx := context.Background()
	cause := errors.New("connection refused")

	for i := 1; i <= 2; i++ {
		if err := svc.RecordFailure(ctx, 1, cause); err != nil {
			t.Fatalf("RecordFailure %d failed: %v", i, err)
		}
		ok, err := svc.CanUse(ctx, 1)
		if err != nil {
			t.Fatalf("CanUse failed: %v", err)
		}
		if !ok {
			t.Errorf("indexer unavailable after %d failures, want available", i)
		}
	}

	// Third failure crosses the threshold.
	if err := svc.RecordFailure(ctx, 1, cause); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	ok, err := svc.CanUse(ctx, 1)
	if err != nil {
		t.Fatalf("CanUse failed: %v", err)
	}
	if ok {
		t.Error("indexer available after 3 failures, want backoff")
	}

	rec, err := svc.GetStatus(ctx, 1)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if rec.BackoffUntil == nil {
		t.Fatal("BackoffUntil not set")
	}
	want := now.Add(5 * time.Minute)
	if !rec.BackoffUntil.Equal(want) {
		t.Errorf("BackoffUntil = %v, want %v", rec.BackoffUntil, want)
	}
}

func TestBackoff_ExpiresWithClock(t *testing.T) {
	svc, _, now := testService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.RecordFailure(ctx, 1, errors.New("timeout")); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if ok, _ := svc.CanUse(ctx, 1); ok {
		t.Fatal("expected backoff")
	}

	*now = now.Add(5*time.Minute + time.Second)
	ok, err := svc.CanUse(ctx, 1)
	if err != nil {
		t.Fatalf("CanUse failed: %v", err)
	}
	if !ok {
		t.Error("indexer still unavailable after backoff window elapsed")
	}
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	svc, _, now := testService(t)
	ctx := context.Background()

	wants := []time.Duration{
		5 * time.Minute,  // failure 3
		10 * time.Minute, // failure 4
		20 * time.Minute,
		40 * time.Minute,
		80 * time.Minute,
		160 * time.Minute,
		3 * time.Hour, // capped
		3 * time.Hour,
	}

	for i := 0; i < 2; i++ {
		if err := svc.RecordFailure(ctx, 1, errors.New("boom")); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	for i, want := range wants {
		if err := svc.RecordFailure(ctx, 1, errors.New("boom")); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		rec, err := svc.GetStatus(ctx, 1)
		if err != nil {
			t.Fatalf("GetStatus failed: %v", err)
		}
		if rec.BackoffUntil == nil {
			t.Fatalf("failure %d: BackoffUntil not set", i+3)
		}
		got := rec.BackoffUntil.Sub(*now)
		if got != want {
			t.Errorf("failure %d: backoff = %v, want %v", i+3, got, want)
		}
	}
}

func TestRecordSuccess_ResetsFailureState(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := svc.RecordFailure(ctx, 1, errors.New("boom")); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if err := svc.RecordSuccess(ctx, 1); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}

	rec, err := svc.GetStatus(ctx, 1)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if rec.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", rec.ConsecutiveFailures)
	}
	if rec.BackoffUntil != nil {
		t.Errorf("BackoffUntil = %v, want nil", rec.BackoffUntil)
	}
	if rec.LastSuccessAt == nil {
		t.Error("LastSuccessAt not set")
	}
	if ok, _ := svc.CanUse(ctx, 1); !ok {
		t.Error("indexer unavailable after success")
	}
}

func TestStatus_SurvivesRestart(t *testing.T) {
	svc, tdb, _ := testService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.RecordFailure(ctx, 1, errors.New("boom")); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	// A fresh service over the same store sees the same backoff.
	restarted := NewService(tdb.Store, DefaultBackoffConfig(), testutil.NopLogger())
	restarted.SetClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	ok, err := restarted.CanUse(ctx, 1)
	if err != nil {
		t.Fatalf("CanUse failed: %v", err)
	}
	if ok {
		t.Error("backoff lost across service restart")
	}
	rec, err := restarted.GetStatus(ctx, 1)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if rec.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", rec.ConsecutiveFailures)
	}
}

func TestSetEnabled(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if err := svc.SetEnabled(ctx, 1, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if ok, _ := svc.CanUse(ctx, 1); ok {
		t.Error("disabled indexer reported usable")
	}
	if err := svc.SetEnabled(ctx, 1, true); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if ok, _ := svc.CanUse(ctx, 1); !ok {
		t.Error("re-enabled indexer reported unusable")
	}
}

func TestSetPriority(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if err := svc.SetPriority(ctx, 1, 5); err != nil {
		t.Fatalf("SetPriority failed: %v", err)
	}
	rec, err := svc.GetStatus(ctx, 1)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if rec.Priority != 5 {
		t.Errorf("Priority = %d, want 5", rec.Priority)
	}
}

func TestClearBackoff(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.RecordFailure(ctx, 1, errors.New("boom")); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if err := svc.ClearBackoff(ctx, 1); err != nil {
		t.Fatalf("ClearBackoff failed: %v", err)
	}
	if ok, _ := svc.CanUse(ctx, 1); !ok {
		t.Error("indexer unavailable after manual backoff clear")
	}
}

type recordingBroadcaster struct {
	events []recordedEvent
}

type recordedEvent struct {
	eventType string
	payload   any
}

func (r *recordingBroadcaster) Broadcast(eventType string, payload any) {
	r.events = append(r.events, recordedEvent{eventType, payload})
}

func (r *recordingBroadcaster) statuses() []indexer.IndexerStatusPayload {
	var out []indexer.IndexerStatusPayload
	for _, ev := range r.events {
		if ev.eventType == indexer.EventIndexerStatus {
			out = append(out, ev.payload.(indexer.IndexerStatusPayload))
		}
	}
	return out
}

func TestStatusEvents_BackoffAndRecovery(t *testing.T) {
	svc, _, _ := testService(t)
	bc := &recordingBroadcaster{}
	svc.SetBroadcaster(bc)
	ctx := context.Background()

	// Failures below the threshold stay quiet.
	for i := 0; i < 2; i++ {
		if err := svc.RecordFailure(ctx, 1, errors.New("boom")); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if got := bc.statuses(); len(got) != 0 {
		t.Fatalf("status events before threshold = %v, want none", got)
	}

	// Third failure enters backoff.
	if err := svc.RecordFailure(ctx, 1, errors.New("boom")); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	got := bc.statuses()
	if len(got) != 1 {
		t.Fatalf("status events after threshold = %d, want 1", len(got))
	}
	if got[0].IndexerID != 1 || got[0].Status != "warning" {
		t.Errorf("backoff event = %+v, want warning for indexer 1", got[0])
	}

	// Success after failures announces recovery.
	if err := svc.RecordSuccess(ctx, 1); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	got = bc.statuses()
	if len(got) != 2 {
		t.Fatalf("status events after recovery = %d, want 2", len(got))
	}
	if got[1].Status != "healthy" {
		t.Errorf("recovery event = %+v, want healthy", got[1])
	}

	// A success on an already healthy indexer stays quiet.
	if err := svc.RecordSuccess(ctx, 1); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	if got := bc.statuses(); len(got) != 2 {
		t.Fatalf("status events after repeat success = %d, want 2", len(got))
	}
}

func TestStatusEvents_EnableToggle(t *testing.T) {
	svc, _, _ := testService(t)
	bc := &recordingBroadcaster{}
	svc.SetBroadcaster(bc)
	ctx := context.Background()

	if err := svc.SetEnabled(ctx, 1, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if err := svc.SetEnabled(ctx, 1, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if err := svc.SetEnabled(ctx, 1, true); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}

	got := bc.statuses()
	if len(got) != 2 {
		t.Fatalf("status events = %d, want one per transition", len(got))
	}
	if got[0].Status != "disabled" || got[1].Status != "healthy" {
		t.Errorf("transitions = %q, %q, want disabled then healthy", got[0].Status, got[1].Status)
	}
}
