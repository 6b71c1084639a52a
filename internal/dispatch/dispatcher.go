package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"batchscribe/internal/model"
	"batchscribe/internal/transcribe"
)

// ExhaustedError is the terminal failure of one chunk: every ladder rung was
// tried per policy and none produced a usable response.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failover ladder exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// AttemptFunc performs one transcription attempt against a single profile.
type AttemptFunc func(ctx context.Context, profile model.Profile) ([]transcribe.Segment, error)

// FailureFunc is notified of every failed attempt before any recovery sleep,
// so the incident log survives even if the chunk later succeeds.
type FailureFunc func(profile model.Profile, category transcribe.Category, err error, escalating bool)

// Dispatcher drives one chunk's dispatch-with-recovery procedure over a
// failover ladder.
type Dispatcher struct {
	Policy Policy
	Ladder model.Ladder
	// OnFailure may be nil.
	OnFailure FailureFunc
	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Dispatcher for one ladder.
func New(policy Policy, ladder model.Ladder) *Dispatcher {
	return &Dispatcher{
		Policy: policy,
		Ladder: ladder,
		sleep:  sleepCtx,
	}
}

// Dispatch runs attempt against ladder rungs per policy until one succeeds
// or the ladder is exhausted. Attempt state always starts at rung 0: ladder
// order is mode-defined and does not carry over between chunks. The context
// is checked before every attempt and every recovery sleep so cancellation
// does not wait out a cooldown.
func (d *Dispatcher) Dispatch(ctx context.Context, attempt AttemptFunc) ([]transcribe.Segment, model.Profile, error) {
	if len(d.Ladder) == 0 {
		return nil, model.Profile{}, fmt.Errorf("empty failover ladder")
	}

	index, retry := 0, 0
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, model.Profile{}, err
		}

		profile := d.Ladder[index]
		segments, err := attempt(ctx, profile)
		attempts++
		if err == nil {
			return segments, profile, nil
		}
		if ctx.Err() != nil {
			return nil, model.Profile{}, ctx.Err()
		}

		category := transcribe.ClassifyError(err)
		decision := d.Policy.Next(len(d.Ladder), index, retry, category)

		if d.OnFailure != nil {
			d.OnFailure(profile, category, err, decision.Action == ActionEscalate)
		}

		switch decision.Action {
		case ActionAbort:
			return nil, model.Profile{}, &ExhaustedError{Attempts: attempts, LastErr: err}
		case ActionRetry:
			slog.Warn("attempt failed, retrying same model",
				"model", profile.ID,
				"category", string(category),
				"delay", decision.Delay,
				"err", err)
		case ActionEscalate:
			next := d.Ladder[decision.NextIndex]
			slog.Warn("attempt failed, escalating to next model",
				"model", profile.ID,
				"next_model", next.ID,
				"category", string(category),
				"cooldown", decision.Delay,
				"err", err)
		}

		if decision.Delay > 0 {
			if err := d.sleep(ctx, decision.Delay); err != nil {
				return nil, model.Profile{}, err
			}
		}
		index, retry = decision.NextIndex, decision.NextRetry
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
