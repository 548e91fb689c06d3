package imagebroker

import (
	"log/slog"
	"testing"
)

func TestProgressScopeReportsUpdates(t *testing.T) {
	rec := &progressRecorder{}
	scope := newProgressScope(slog.Default(), rec, "test_op", "starting", nil)

	scope.Update(50, "halfway")
	scope.Update(100, "done")
	scope.End()

	updates := rec.Updates()
	if len(updates) != 3 {
		t.Fatalf("expected 3 updates (including the initial one), got %d", len(updates))
	}
	if updates[0].Percent != 0 || updates[0].Message != "starting" {
		t.Errorf("unexpected initial update: %+v", updates[0])
	}
	if updates[2].Percent != 100 {
		t.Errorf("unexpected final update: %+v", updates[2])
	}
	for _, u := range updates {
		if u.Operation != "test_op" {
			t.Errorf("unexpected operation %q", u.Operation)
		}
	}
}

func TestProgressScopeIgnoresUpdatesAfterEnd(t *testing.T) {
	rec := &progressRecorder{}
	scope := newProgressScope(slog.Default(), rec, "test_op", "starting", nil)

	scope.End()
	scope.End() // second End is a no-op
	scope.Update(50, "late")

	updates := rec.Updates()
	if len(updates) != 1 {
		t.Fatalf("expected only the initial update, got %d", len(updates))
	}
}

func TestProgressScopeNilSink(t *testing.T) {
	scope := newProgressScope(slog.Default(), nil, "test_op", "starting", map[string]any{"k": "v"})
	scope.Update(10, "ok")
	scope.End()
	// No sink configured: updates must not panic.
}
