package protocol

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

type suspension struct {
	stepIndex int
	awaiting  string
	timeout   time.Duration
}

// Sequencer executes an ordered list of protocol steps for one trade, one
// at a time, in declaration order, with no reordering or skipping. It is
// not safe for concurrent use: callers must serialize Run, HandleMessage
// and HandleTimeout per trade, which also enforces the single-writer
// discipline over the trade state.
type Sequencer struct {
	rt    *Runtime
	steps []Step

	pos     int
	susp    *suspension
	failure error
}

// NewSequencer returns a sequencer positioned at the first step.
func NewSequencer(rt *Runtime, steps []Step) *Sequencer {
	return NewSequencerAt(rt, steps, 0)
}

// NewSequencerAt returns a sequencer positioned at the given step index,
// used to resume a reloaded trade after a restart.
func NewSequencerAt(rt *Runtime, steps []Step, pos int) *Sequencer {
	if pos < 0 {
		pos = 0
	}
	return &Sequencer{rt: rt, steps: steps, pos: pos}
}

// Run executes steps left to right until the sequence completes, a step
// suspends awaiting a counterparty message, or a step fails. A failure
// marks the trade's failure phase and stops; effects of prior completed
// steps are not rolled back.
func (s *Sequencer) Run(ctx context.Context) error {
	if s.failure != nil {
		return s.failure
	}
	if s.susp != nil {
		return nil
	}

	for s.pos < len(s.steps) {
		step := s.steps[s.pos]
		outcome := s.execute(ctx, step)
		if done := s.apply(step, outcome); done {
			return s.failure
		}
	}
	return nil
}

// HandleMessage resumes a suspended sequence with a counterparty message.
// A message of an unexpected type fails the trade with a peer protocol
// failure instead of proceeding.
func (s *Sequencer) HandleMessage(ctx context.Context, msg ports.TradeMessage) error {
	if s.failure != nil || s.Completed() {
		log.WithFields(log.Fields{
			"trade": s.rt.Trade.Id,
			"type":  msg.Type(),
		}).Debug("ignoring message for settled sequence")
		return nil
	}
	if s.susp == nil {
		err := domain.PeerProtocolFailure(
			"received %s message while no step was awaiting one", msg.Type(),
		)
		s.fail(s.currentStep(), err)
		return err
	}
	if msg.Type() != s.susp.awaiting {
		err := domain.PeerProtocolFailure(
			"awaiting %s message, got %s", s.susp.awaiting, msg.Type(),
		)
		s.fail(s.steps[s.susp.stepIndex], err)
		return err
	}

	step := s.steps[s.susp.stepIndex]
	resumer, ok := step.(Resumer)
	if !ok {
		err := domain.InvariantViolation(
			"step %s suspended but cannot be resumed", step.Name(),
		)
		s.fail(step, err)
		return err
	}

	s.susp = nil
	outcome := resumer.Resume(ctx, s.rt, msg)
	if done := s.apply(step, outcome); done {
		return s.failure
	}
	return s.Run(ctx)
}

// HandleTimeout applies the suspended step's timeout policy. Steps decide
// whether a missing reply aborts the trade or escalates to the arbitrator;
// the sequencer only surfaces the decision.
func (s *Sequencer) HandleTimeout(ctx context.Context) error {
	if s.susp == nil {
		return nil
	}

	step := s.steps[s.susp.stepIndex]
	awaiting := s.susp.awaiting
	s.susp = nil

	var outcome Outcome
	if handler, ok := step.(TimeoutHandler); ok {
		outcome = handler.OnTimeout(ctx, s.rt)
	} else {
		outcome = Failed(domain.PeerTimeoutFailure(
			"no %s reply for step %s within bound", awaiting, step.Name(),
		))
	}
	if done := s.apply(step, outcome); done {
		return s.failure
	}
	return s.Run(ctx)
}

// Completed returns whether every step of the sequence has completed.
func (s *Sequencer) Completed() bool {
	return s.failure == nil && s.susp == nil && s.pos >= len(s.steps)
}

// Suspended returns whether the sequence is halted awaiting a message.
func (s *Sequencer) Suspended() bool {
	return s.susp != nil
}

// Awaiting returns the message type and timeout of the current suspension.
func (s *Sequencer) Awaiting() (string, time.Duration) {
	if s.susp == nil {
		return "", 0
	}
	return s.susp.awaiting, s.susp.timeout
}

// Position returns the index of the next step to execute.
func (s *Sequencer) Position() int {
	return s.pos
}

// Failure returns the error the sequence halted with, if any.
func (s *Sequencer) Failure() error {
	return s.failure
}

func (s *Sequencer) execute(ctx context.Context, step Step) Outcome {
	if s.rt.Hook != nil {
		if outcome, handled := s.rt.Hook(step, s.rt); handled {
			return outcome
		}
	}
	return step.Run(ctx, s.rt)
}

// apply folds a step outcome into the sequencer state and reports whether
// the sequence halted.
func (s *Sequencer) apply(step Step, outcome Outcome) bool {
	switch outcome.Kind {
	case OutcomeCompleted:
		log.WithFields(log.Fields{
			"trade": s.rt.Trade.Id,
			"step":  step.Name(),
		}).Debug("step completed")
		s.pos++
		return false
	case OutcomeSuspended:
		s.susp = &suspension{
			stepIndex: s.pos,
			awaiting:  outcome.Awaiting,
			timeout:   outcome.Timeout,
		}
		log.WithFields(log.Fields{
			"trade":    s.rt.Trade.Id,
			"step":     step.Name(),
			"awaiting": outcome.Awaiting,
		}).Debug("step suspended")
		return true
	default:
		s.fail(step, outcome.Err)
		return true
	}
}

func (s *Sequencer) fail(step Step, err error) {
	if step != nil {
		log.WithError(err).WithFields(log.Fields{
			"trade": s.rt.Trade.Id,
			"step":  step.Name(),
		}).Warn("step failed")
	}
	s.failure = err
	s.susp = nil
	s.rt.FailTrade(err)
}

func (s *Sequencer) currentStep() Step {
	if s.pos < len(s.steps) {
		return s.steps[s.pos]
	}
	return nil
}
