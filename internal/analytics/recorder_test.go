package analytics

import (
	"testing"
	"time"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder(10)

	r.ObserveLatency("m1", 100*time.Millisecond)
	r.RecordSuccess("m1")
	r.ObserveLatency("m1", 300*time.Millisecond)
	r.RecordFailure("m1")
	r.RecordFailover()

	snap := r.Snapshot()
	if snap.TotalRequests != 2 {
		t.Errorf("total = %d, want 2", snap.TotalRequests)
	}
	if snap.SuccessfulRequests != 1 {
		t.Errorf("successful = %d, want 1", snap.SuccessfulRequests)
	}
	if snap.FailoverEvents != 1 {
		t.Errorf("failovers = %d, want 1", snap.FailoverEvents)
	}

	stats := snap.PerModel["m1"]
	if stats.Success != 1 || stats.Fail != 1 {
		t.Errorf("m1 stats = %+v", stats)
	}
	if stats.TotalLatency != 400*time.Millisecond {
		t.Errorf("total latency = %v, want 400ms", stats.TotalLatency)
	}
	if stats.AvgLatency() != 200*time.Millisecond {
		t.Errorf("avg latency = %v, want 200ms", stats.AvgLatency())
	}
}

func TestRecorder_IncidentCap(t *testing.T) {
	r := NewRecorder(3)
	for i := 0; i < 5; i++ {
		r.AddIncident("m", "transient", string(rune('a'+i)), SeverityWarning)
	}

	snap := r.Snapshot()
	if len(snap.Incidents) != 3 {
		t.Fatalf("incidents = %d, want 3", len(snap.Incidents))
	}
	// Oldest entries dropped first.
	if snap.Incidents[0].Detail != "c" || snap.Incidents[2].Detail != "e" {
		t.Errorf("unexpected retained incidents: %+v", snap.Incidents)
	}
}

func TestRecorder_SnapshotIsCopy(t *testing.T) {
	r := NewRecorder(10)
	r.RecordSuccess("m1")
	snap := r.Snapshot()

	snap.PerModel["m1"] = ModelStats{Success: 99}
	if r.Snapshot().PerModel["m1"].Success != 1 {
		t.Error("snapshot mutation leaked into the recorder")
	}
}

func TestRecorder_Reset(t *testing.T) {
	r := NewRecorder(10)
	r.RecordSuccess("m1")
	r.RecordFailover()
	r.AddIncident("m", "quota", "x", SeverityWarning)

	r.Reset()
	snap := r.Snapshot()
	if snap.TotalRequests != 0 || snap.FailoverEvents != 0 || len(snap.Incidents) != 0 || len(snap.PerModel) != 0 {
		t.Errorf("reset left state behind: %+v", snap)
	}
}

func TestModelStats_AvgLatencyNoAttempts(t *testing.T) {
	var stats ModelStats
	if stats.AvgLatency() != 0 {
		t.Error("expected zero average with no attempts")
	}
}
