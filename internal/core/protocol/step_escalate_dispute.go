package protocol

import (
	"context"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
)

// EscalateDisputeStep hands the trade over to the arbitrator. It is not
// part of the happy-path sequences: the caller injects it when a trade with
// funds committed on-ledger must be aborted, since silent cancellation is
// no longer safe at that point.
type EscalateDisputeStep struct {
	Reason string
}

func (EscalateDisputeStep) Name() string { return "EscalateDispute" }

func (s EscalateDisputeStep) Run(_ context.Context, rt *Runtime) Outcome {
	if rt.Trade.IsTerminal() {
		return Failed(domain.InvariantViolation(
			"trade %s is terminal and cannot be disputed", rt.Trade.Id,
		))
	}

	oldPhase := rt.Trade.Phase
	if err := rt.Trade.EscalateDispute(s.Reason); err != nil {
		return Failed(err)
	}
	if rt.OnPhaseChange != nil && oldPhase != rt.Trade.Phase {
		rt.OnPhaseChange(oldPhase, rt.Trade.Phase)
	}
	return Completed()
}
