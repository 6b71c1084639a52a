// Package analytics accumulates per-model dispatch statistics and a bounded
// log of recent incidents. It is operability visibility only; nothing here
// affects pipeline correctness.
package analytics

import (
	"sync"
	"time"
)

// Severity grades an incident.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Incident is one append-only log entry about a failed attempt or a failover
// transition.
type Incident struct {
	Time     time.Time
	Model    string
	Category string
	Detail   string
	Severity Severity
}

// ModelStats are additive per-model counters.
type ModelStats struct {
	Success      int
	Fail         int
	TotalLatency time.Duration
}

// AvgLatency returns the mean attempt latency for the model, or zero when no
// attempts were recorded.
func (s ModelStats) AvgLatency() time.Duration {
	n := s.Success + s.Fail
	if n == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(n)
}

// Snapshot is a point-in-time copy of all counters and the incident log.
type Snapshot struct {
	TotalRequests      int
	SuccessfulRequests int
	FailoverEvents     int
	PerModel           map[string]ModelStats
	Incidents          []Incident
}

// Recorder accumulates statistics for one loaded source. The pipeline is the
// single writer; a UI thread may read via Snapshot. Counters only ever grow
// until Reset.
type Recorder struct {
	mu sync.Mutex

	totalRequests      int
	successfulRequests int
	failoverEvents     int
	perModel           map[string]*ModelStats
	pendingLatency     map[string]time.Duration

	incidents    []Incident
	maxIncidents int

	now func() time.Time
}

// NewRecorder creates a Recorder keeping at most maxIncidents log entries.
func NewRecorder(maxIncidents int) *Recorder {
	return &Recorder{
		perModel:       make(map[string]*ModelStats),
		pendingLatency: make(map[string]time.Duration),
		maxIncidents:   maxIncidents,
		now:            time.Now,
	}
}

// ObserveLatency records the wall-clock latency of one attempt against a
// model, before its outcome is known. The next RecordSuccess/RecordFailure
// for the model folds it into the totals.
func (r *Recorder) ObserveLatency(modelID string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingLatency[modelID] += latency
}

// RecordSuccess counts one successful attempt for the model.
func (r *Recorder) RecordSuccess(modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests++
	r.successfulRequests++
	stats := r.statsLocked(modelID)
	stats.Success++
	r.foldLatencyLocked(modelID, stats)
}

// RecordFailure counts one failed attempt for the model.
func (r *Recorder) RecordFailure(modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests++
	stats := r.statsLocked(modelID)
	stats.Fail++
	r.foldLatencyLocked(modelID, stats)
}

// RecordFailover counts one ladder escalation.
func (r *Recorder) RecordFailover() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failoverEvents++
}

// AddIncident appends to the bounded incident log, dropping the oldest entry
// once the cap is reached.
func (r *Recorder) AddIncident(modelLabel, category, detail string, severity Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = append(r.incidents, Incident{
		Time:     r.now(),
		Model:    modelLabel,
		Category: category,
		Detail:   detail,
		Severity: severity,
	})
	if r.maxIncidents > 0 && len(r.incidents) > r.maxIncidents {
		r.incidents = r.incidents[len(r.incidents)-r.maxIncidents:]
	}
}

// Snapshot returns a copy of the current counters and incident log.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	perModel := make(map[string]ModelStats, len(r.perModel))
	for id, stats := range r.perModel {
		perModel[id] = *stats
	}
	incidents := make([]Incident, len(r.incidents))
	copy(incidents, r.incidents)

	return Snapshot{
		TotalRequests:      r.totalRequests,
		SuccessfulRequests: r.successfulRequests,
		FailoverEvents:     r.failoverEvents,
		PerModel:           perModel,
		Incidents:          incidents,
	}
}

// Reset clears all counters and incidents for a newly loaded source.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests = 0
	r.successfulRequests = 0
	r.failoverEvents = 0
	r.perModel = make(map[string]*ModelStats)
	r.pendingLatency = make(map[string]time.Duration)
	r.incidents = nil
}

func (r *Recorder) statsLocked(modelID string) *ModelStats {
	stats, ok := r.perModel[modelID]
	if !ok {
		stats = &ModelStats{}
		r.perModel[modelID] = stats
	}
	return stats
}

func (r *Recorder) foldLatencyLocked(modelID string, stats *ModelStats) {
	stats.TotalLatency += r.pendingLatency[modelID]
	delete(r.pendingLatency, modelID)
}
