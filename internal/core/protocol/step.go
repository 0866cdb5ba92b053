package protocol

import (
	"context"
	"time"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

// OutcomeKind is the tag of a step outcome.
type OutcomeKind int

const (
	// OutcomeCompleted advances the sequence to the next step.
	OutcomeCompleted OutcomeKind = iota
	// OutcomeFailed aborts the remaining sequence and surfaces the failure.
	OutcomeFailed
	// OutcomeSuspended halts the sequence until the awaited message type
	// arrives or the timeout expires.
	OutcomeSuspended
)

// Outcome is the tagged result reported by a protocol step.
type Outcome struct {
	Kind     OutcomeKind
	Err      error
	Awaiting string
	Timeout  time.Duration
}

// Completed reports a successful step.
func Completed() Outcome {
	return Outcome{Kind: OutcomeCompleted}
}

// Failed reports a step failure with its causing error.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// Suspended reports that the step issued a request to the counterparty and
// the sequence must halt until a message of the given type arrives. A zero
// timeout suspends without bound.
func Suspended(awaiting string, timeout time.Duration) Outcome {
	return Outcome{Kind: OutcomeSuspended, Awaiting: awaiting, Timeout: timeout}
}

// Step is the unit of protocol work: one cryptographic or bookkeeping
// action plus its failure path.
type Step interface {
	// Name identifies the step in logs and failures.
	Name() string
	// Run executes the step against the trade runtime.
	Run(ctx context.Context, rt *Runtime) Outcome
}

// Resumer is implemented by suspending steps. Resume is invoked with the
// awaited message and must re-validate its preconditions: the counterparty
// may have sent unexpected content, and the world may have changed while
// the sequence was halted.
type Resumer interface {
	Resume(ctx context.Context, rt *Runtime, msg ports.TradeMessage) Outcome
}

// TimeoutHandler lets a suspending step decide its escalation policy when
// the awaited reply never arrives. Steps without one fail with a peer
// timeout by default.
type TimeoutHandler interface {
	OnTimeout(ctx context.Context, rt *Runtime) Outcome
}

// Hook is the only supported extension point of the sequencer, installed
// for testing and fault injection. It runs before the step's own logic and
// may short-circuit the step by returning handled=true. It must not alter
// step ordering.
type Hook func(step Step, rt *Runtime) (outcome Outcome, handled bool)
