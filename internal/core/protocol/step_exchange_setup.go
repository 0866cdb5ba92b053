package protocol

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

// ExchangeEscrowSetupStep sends this party's committed multisig public key
// and payout address to the counterparty and suspends until the
// counterparty's setup message arrives.
type ExchangeEscrowSetupStep struct{}

func (ExchangeEscrowSetupStep) Name() string { return "ExchangeEscrowSetup" }

func (ExchangeEscrowSetupStep) Run(ctx context.Context, rt *Runtime) Outcome {
	tradeCtx := rt.Context()
	if len(tradeCtx.OwnMultiSigPubKey) == 0 || len(tradeCtx.OwnPayoutAddress) == 0 {
		return Failed(domain.InvariantViolation(
			"own multisig pubkey and payout address must be set before the escrow setup exchange",
		))
	}

	msg := NewEscrowSetupMessage(
		rt.Trade.Id, tradeCtx.OwnMultiSigPubKey, tradeCtx.OwnPayoutAddress,
	)
	if err := rt.Svc.Messenger.SendMessage(ctx, rt.Trade.PeerId, msg); err != nil {
		return Failed(err)
	}

	if len(tradeCtx.PeerMultiSigPubKey) > 0 && len(tradeCtx.PeerPayoutAddress) > 0 {
		// Already exchanged on a previous run of a resumed trade.
		return Completed()
	}
	return Suspended(MsgTypeEscrowSetup, rt.peerTimeout())
}

func (ExchangeEscrowSetupStep) Resume(
	_ context.Context, rt *Runtime, msg ports.TradeMessage,
) Outcome {
	setup, ok := msg.(*EscrowSetupMessage)
	if !ok {
		return Failed(domain.PeerProtocolFailure(
			"malformed %s message from peer", msg.Type(),
		))
	}
	if _, err := btcec.ParsePubKey(setup.MultiSigPubKey); err != nil {
		return Failed(domain.PeerProtocolFailure(
			"peer multisig pubkey is not a valid public key: %s", err,
		))
	}
	if len(setup.PayoutAddress) == 0 {
		return Failed(domain.PeerProtocolFailure("peer payout address must not be null"))
	}

	if err := rt.Context().SetPeerMultiSigPubKey(setup.MultiSigPubKey); err != nil {
		return Failed(err)
	}
	if err := rt.Context().SetPeerPayoutAddress(setup.PayoutAddress); err != nil {
		return Failed(err)
	}
	return Completed()
}

func (ExchangeEscrowSetupStep) OnTimeout(_ context.Context, rt *Runtime) Outcome {
	// No funds are committed yet, so a silent counterparty aborts the
	// trade instead of raising a dispute.
	return Failed(domain.PeerTimeoutFailure(
		"no escrow setup from peer %s within bound", rt.Trade.PeerId,
	))
}
