// Package dispatch implements the per-chunk retry/failover state machine:
// a bounded loop over (ladderIndex, retryCount) that decides, for every
// failed attempt, whether to retry the same ladder rung or escalate to the
// next one.
package dispatch

import (
	"time"

	"batchscribe/internal/transcribe"
)

// Action is the decision for one failed attempt.
type Action int

const (
	// ActionRetry re-attempts the same ladder rung after Decision.Delay.
	ActionRetry Action = iota
	// ActionEscalate moves to the next rung after Decision.Delay.
	ActionEscalate
	// ActionAbort ends the chunk in terminal failure.
	ActionAbort
)

// Decision is the policy outcome for one failure: what to do next, the
// attempt state to carry forward, how long to sleep first, and whether the
// transition counts as a failover event.
type Decision struct {
	Action    Action
	NextIndex int
	NextRetry int
	Delay     time.Duration
	Failover  bool
}

// Policy holds the delay constants of the recovery rules. All values come
// from configuration.
type Policy struct {
	// RetryDelay is the short pause before the single same-rung retry
	// granted to a transient failure.
	RetryDelay time.Duration
	// QuotaCooldown is the long pause after a quota-driven escalation,
	// sized to let the remote rate window clear.
	QuotaCooldown time.Duration
}

// Next evaluates the recovery rules for a failure with the given category at
// (index, retry) on a ladder of ladderLen rungs.
//
// Quota failures escalate unconditionally: the same model is certain to keep
// rejecting inside its rate window. Transient and malformed failures get
// exactly one same-rung retry before escalating. Either way, once the last
// rung has no move left the chunk is abandoned.
func (p Policy) Next(ladderLen, index, retry int, category transcribe.Category) Decision {
	lastRung := index >= ladderLen-1

	if category == transcribe.CategoryQuota {
		if lastRung {
			return Decision{Action: ActionAbort}
		}
		return Decision{
			Action:    ActionEscalate,
			NextIndex: index + 1,
			NextRetry: 0,
			Delay:     p.QuotaCooldown,
			Failover:  true,
		}
	}

	// Transient and malformed failures.
	if retry == 0 {
		return Decision{
			Action:    ActionRetry,
			NextIndex: index,
			NextRetry: retry + 1,
			Delay:     p.RetryDelay,
		}
	}
	if lastRung {
		return Decision{Action: ActionAbort}
	}
	return Decision{
		Action:    ActionEscalate,
		NextIndex: index + 1,
		NextRetry: 0,
		Failover:  true,
	}
}
