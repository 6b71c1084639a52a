// Package pipeline drives the whole run: plan chunks, dispatch each one in
// strict order through the retry/failover state machine, assemble the caption
// track, and pace requests against the service's aggregate rate ceiling.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"batchscribe/internal/analytics"
	"batchscribe/internal/audio"
	"batchscribe/internal/config"
	"batchscribe/internal/dispatch"
	"batchscribe/internal/model"
	"batchscribe/internal/plan"
	"batchscribe/internal/track"
	"batchscribe/internal/transcribe"
)

// Status is the pipeline lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusStreaming  Status = "streaming"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Transcriber sends one chunk payload to one model profile.
type Transcriber interface {
	Transcribe(ctx context.Context, payload *audio.Payload, profile model.Profile) ([]transcribe.Segment, error)
}

// Pipeline owns the caption track and progress for one source. The run loop
// is the single writer; Status, Progress, and Track take snapshots for
// concurrent readers.
type Pipeline struct {
	cfg      *config.Config
	client   Transcriber
	ladder   model.Ladder
	recorder *analytics.Recorder

	// Decode and Prepare are the external media boundaries, replaceable in
	// tests. Preflight is the connectivity check run before each dispatch
	// attempt; nil skips it.
	Decode    func(ctx context.Context, path string) (*audio.Source, error)
	Prepare   func(src *audio.Source, window plan.TimeWindow, targetRate int) (*audio.Payload, error)
	Preflight func(ctx context.Context) error

	pacer *rate.Limiter

	mu              sync.Mutex
	status          Status
	completedChunks int
	totalChunks     int
	track           []track.Segment
}

// New creates a Pipeline in the idle status.
func New(cfg *config.Config, client Transcriber, ladder model.Ladder, recorder *analytics.Recorder) *Pipeline {
	pacer := rate.NewLimiter(rate.Every(cfg.InterRequestGap()), 1)
	// Drain the initial burst token so the first paced wait really waits.
	pacer.Allow()

	return &Pipeline{
		cfg:      cfg,
		client:   client,
		ladder:   ladder,
		recorder: recorder,
		Decode:   audio.Decode,
		Prepare:  audio.Prepare,
		pacer:    pacer,
		status:   StatusIdle,
	}
}

// Status returns the current lifecycle state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Progress returns completed and total chunk counts.
func (p *Pipeline) Progress() (completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completedChunks, p.totalChunks
}

// Track returns a copy of the caption track assembled so far. On a failed
// run this still holds every segment merged before the failing chunk.
func (p *Pipeline) Track() []track.Segment {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]track.Segment, len(p.track))
	copy(out, p.track)
	return out
}

// Run processes the source at path end to end and returns the final caption
// track. Chunks are dispatched strictly in order; the first unrecoverable
// chunk failure aborts the run. The context is honoured before every
// suspension point.
func (p *Pipeline) Run(ctx context.Context, path string) ([]track.Segment, error) {
	p.setStatus(StatusConnecting)
	p.recorder.Reset()

	source, err := p.Decode(ctx, path)
	if err != nil {
		p.setStatus(StatusError)
		return nil, fmt.Errorf("decode source: %w", err)
	}

	windows, err := plan.Plan(source.Duration(), p.cfg.ChunkDurationSec)
	if err != nil {
		p.setStatus(StatusError)
		return nil, fmt.Errorf("plan chunks: %w", err)
	}

	p.mu.Lock()
	p.totalChunks = len(windows)
	p.completedChunks = 0
	p.track = nil
	p.mu.Unlock()

	p.setStatus(StatusStreaming)
	slog.Info("starting dispatch",
		"chunks", len(windows),
		"chunk_sec", p.cfg.ChunkDurationSec,
		"mode", p.cfg.Mode)

	dispatcher := dispatch.New(dispatch.Policy{
		RetryDelay:    p.cfg.RetryDelay(),
		QuotaCooldown: p.cfg.QuotaCooldown(),
	}, p.ladder)
	dispatcher.OnFailure = p.noteFailure

	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			p.setStatus(StatusError)
			return p.Track(), err
		}

		// Preparation runs once per chunk; retries of the same chunk reuse
		// the payload instead of re-deriving audio.
		payload, err := p.Prepare(source, window, p.cfg.TargetSampleRate)
		if err != nil {
			p.setStatus(StatusError)
			return p.Track(), fmt.Errorf("prepare chunk %d/%d: %w", i+1, len(windows), err)
		}

		slog.Info("dispatching chunk",
			"chunk", fmt.Sprintf("%d/%d", i+1, len(windows)),
			"window", fmt.Sprintf("[%.0f,%.0f)", window.Start, window.End))

		segments, profile, err := dispatcher.Dispatch(ctx, func(ctx context.Context, profile model.Profile) ([]transcribe.Segment, error) {
			if p.Preflight != nil {
				if err := p.Preflight(ctx); err != nil {
					return nil, &transcribe.RequestError{
						Category: transcribe.CategoryTransient,
						Err:      fmt.Errorf("connectivity check: %w", err),
					}
				}
			}
			return p.client.Transcribe(ctx, payload, profile)
		})
		if err != nil {
			p.setStatus(StatusError)
			p.recorder.AddIncident("pipeline", "chunk_exhausted",
				fmt.Sprintf("chunk %d/%d abandoned: %v", i+1, len(windows), err),
				analytics.SeverityError)
			return p.Track(), fmt.Errorf("chunk %d/%d: %w", i+1, len(windows), err)
		}

		p.recorder.RecordSuccess(profile.ID)

		p.mu.Lock()
		p.track = track.Merge(p.track, segments, window)
		p.completedChunks++
		p.mu.Unlock()

		slog.Info("chunk completed",
			"chunk", fmt.Sprintf("%d/%d", i+1, len(windows)),
			"model", profile.ID,
			"segments", len(segments))

		// Mandatory inter-request pacing between chunks. Time already spent
		// in the dispatch counts toward the gap.
		if i < len(windows)-1 {
			if err := p.pacer.Wait(ctx); err != nil {
				p.setStatus(StatusError)
				return p.Track(), err
			}
		}
	}

	p.setStatus(StatusCompleted)
	return p.Track(), nil
}

// noteFailure records analytics and the incident for one failed attempt,
// before any recovery sleep.
func (p *Pipeline) noteFailure(profile model.Profile, category transcribe.Category, err error, escalating bool) {
	p.recorder.RecordFailure(profile.ID)
	if escalating {
		p.recorder.RecordFailover()
	}
	p.recorder.AddIncident(profile.Label, string(category), err.Error(), analytics.SeverityWarning)
}

func (p *Pipeline) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// ConnectivityCheck returns a Preflight function that verifies the service
// endpoint is reachable. Any HTTP response counts as online; only transport
// failures count as offline.
func ConnectivityCheck(baseURL string) func(ctx context.Context) error {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("endpoint unreachable: %w", err)
		}
		resp.Body.Close()
		return nil
	}
}
