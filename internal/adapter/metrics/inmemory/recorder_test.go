package inmemory

import "testing"

func TestRecorderSnapshot(t *testing.T) {
	r := NewRecorder()
	r.RecordLoad(10)
	r.RecordLoad(5)
	r.RecordLoadFailure()
	r.RecordStep("next")
	r.RecordStep("next")
	r.RecordStep("prev")
	r.RecordAnomalies(2)
	r.RecordAnomalies(-1)

	s := r.Snapshot()
	if s.LoadTotal != 3 {
		t.Fatalf("expected total 3, got %d", s.LoadTotal)
	}
	if s.LoadSuccess != 2 || s.LoadFailure != 1 {
		t.Fatalf("expected 2 success and 1 failure, got %d/%d", s.LoadSuccess, s.LoadFailure)
	}
	if s.EventsLoaded != 15 || s.LastLoadedLen != 5 {
		t.Fatalf("expected 15 events and last 5, got %d/%d", s.EventsLoaded, s.LastLoadedLen)
	}
	if s.StepTotal != 3 || s.StepsByDir["next"] != 2 || s.StepsByDir["prev"] != 1 {
		t.Fatalf("unexpected steps: total=%d by=%v", s.StepTotal, s.StepsByDir)
	}
	if s.AnomalyTotal != 2 {
		t.Fatalf("expected 2 anomalies, got %d", s.AnomalyTotal)
	}
}

func TestRecorderSnapshotIsACopy(t *testing.T) {
	r := NewRecorder()
	r.RecordStep("next")
	s := r.Snapshot()
	s.StepsByDir["next"] = 99

	if got := r.Snapshot().StepsByDir["next"]; got != 1 {
		t.Fatalf("snapshot mutation leaked into recorder, got %d", got)
	}
}
