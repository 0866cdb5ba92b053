package protocol

import (
	"context"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

// AwaitDepositPublishedStep suspends the buyer's sequence until the seller
// announces the broadcast fund-lock transaction.
type AwaitDepositPublishedStep struct{}

func (AwaitDepositPublishedStep) Name() string { return "AwaitDepositPublished" }

func (AwaitDepositPublishedStep) Run(_ context.Context, rt *Runtime) Outcome {
	if rt.Context().HasDepositTx() {
		// Already observed, e.g. on a resumed trade.
		if err := rt.TransitionTo(domain.PhaseDepositPublished); err != nil {
			return Failed(err)
		}
		return Completed()
	}
	return Suspended(MsgTypeDepositPublished, rt.peerTimeout())
}

func (AwaitDepositPublishedStep) Resume(
	_ context.Context, rt *Runtime, msg ports.TradeMessage,
) Outcome {
	published, ok := msg.(*DepositPublishedMessage)
	if !ok {
		return Failed(domain.PeerProtocolFailure(
			"malformed %s message from peer", msg.Type(),
		))
	}
	if len(published.TxId) == 0 || len(published.TxHex) == 0 {
		return Failed(domain.PeerProtocolFailure(
			"peer announced a deposit tx without id or raw transaction",
		))
	}

	if err := rt.Context().SetDepositTx(published.TxId, published.TxHex); err != nil {
		return Failed(err)
	}
	if err := rt.TransitionTo(domain.PhaseDepositPublished); err != nil {
		return Failed(err)
	}
	return Completed()
}

func (AwaitDepositPublishedStep) OnTimeout(_ context.Context, rt *Runtime) Outcome {
	return Failed(domain.PeerTimeoutFailure(
		"peer %s never announced the deposit tx", rt.Trade.PeerId,
	))
}

// AwaitDepositConfirmationStep suspends the sequence until the fund-lock
// transaction is irreversibly recorded on the ledger. The confirmation
// event is synthesized locally from ledger observation and injected as a
// message; both parties run this step.
type AwaitDepositConfirmationStep struct{}

func (AwaitDepositConfirmationStep) Name() string { return "AwaitDepositConfirmation" }

func (AwaitDepositConfirmationStep) Run(_ context.Context, rt *Runtime) Outcome {
	tradeCtx := rt.Context()
	if !tradeCtx.HasDepositTx() {
		return Failed(domain.InvariantViolation(
			"deposit tx must be recorded before awaiting its confirmation",
		))
	}

	confirmations, err := rt.Svc.Ledger.GetTxConfirmations(tradeCtx.DepositTxId)
	if err == nil && confirmations >= rt.confirmationThreshold() {
		if err := rt.TransitionTo(domain.PhaseDepositConfirmed); err != nil {
			return Failed(err)
		}
		return Completed()
	}
	// Confirmation timing is a ledger property, not a peer obligation:
	// suspend without bound and let the ledger watcher resume the trade.
	return Suspended(MsgTypeDepositConfirmed, 0)
}

func (AwaitDepositConfirmationStep) Resume(
	_ context.Context, rt *Runtime, msg ports.TradeMessage,
) Outcome {
	confirmed, ok := msg.(*DepositConfirmedMessage)
	if !ok {
		return Failed(domain.PeerProtocolFailure(
			"malformed %s message", msg.Type(),
		))
	}
	if confirmed.TxId != rt.Context().DepositTxId {
		return Failed(domain.InvariantViolation(
			"confirmation event for tx %s does not match deposit tx %s",
			confirmed.TxId, rt.Context().DepositTxId,
		))
	}

	// The message is only a wake-up call. Confirmation is re-checked against
	// our own ledger view, a claim alone never advances the trade.
	confirmations, err := rt.Svc.Ledger.GetTxConfirmations(confirmed.TxId)
	if err != nil || confirmations < rt.confirmationThreshold() {
		return Suspended(MsgTypeDepositConfirmed, 0)
	}

	if err := rt.TransitionTo(domain.PhaseDepositConfirmed); err != nil {
		return Failed(err)
	}
	return Completed()
}
