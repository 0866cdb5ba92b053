package protocol

import (
	"context"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
	"github.com/p2pdex-network/escrow-daemon/pkg/mathutil"
)

// ExchangePayoutSignatureStep hands this party's payout signature to the
// counterparty and suspends until the counterparty's signature arrives. The
// received signature is verified against the peer's committed multisig
// public key over the deterministically rebuilt payout transaction before
// it is accepted.
type ExchangePayoutSignatureStep struct{}

func (ExchangePayoutSignatureStep) Name() string { return "ExchangePayoutSignature" }

func (ExchangePayoutSignatureStep) Run(ctx context.Context, rt *Runtime) Outcome {
	tradeCtx := rt.Context()
	if len(tradeCtx.OwnPayoutSignature) == 0 {
		return Failed(domain.InvariantViolation(
			"own payout signature must be produced before the signature exchange",
		))
	}

	msg := NewPayoutSignatureMessage(rt.Trade.Id, tradeCtx.OwnPayoutSignature)
	if err := rt.Svc.Messenger.SendMessage(ctx, rt.Trade.PeerId, msg); err != nil {
		return Failed(err)
	}

	if len(tradeCtx.PeerPayoutSignature) > 0 {
		return Completed()
	}
	return Suspended(MsgTypePayoutSignature, rt.peerTimeout())
}

func (ExchangePayoutSignatureStep) Resume(
	_ context.Context, rt *Runtime, msg ports.TradeMessage,
) Outcome {
	sigMsg, ok := msg.(*PayoutSignatureMessage)
	if !ok {
		return Failed(domain.PeerProtocolFailure(
			"malformed %s message from peer", msg.Type(),
		))
	}
	if len(sigMsg.Signature) == 0 {
		return Failed(domain.PeerProtocolFailure(
			"peer payout signature must not be null",
		))
	}

	buyerPayout, sellerPayout := mathutil.PayoutSplit(
		rt.Trade.TradeAmount,
		rt.Trade.BuyerSecurityDeposit,
		rt.Trade.SellerSecurityDeposit,
	)
	if err := rt.Svc.TradeWallet.VerifyPayoutSignature(
		rt.payoutDescriptor(buyerPayout, sellerPayout),
		sigMsg.Signature,
		rt.Context().PeerMultiSigPubKey,
	); err != nil {
		return Failed(domain.SecurityFailure(
			"peer payout signature rejected for trade %s: %s", rt.Trade.Id, err,
		))
	}

	rt.Context().SetPeerPayoutSignature(sigMsg.Signature)
	return Completed()
}

func (ExchangePayoutSignatureStep) OnTimeout(_ context.Context, rt *Runtime) Outcome {
	// Funds are committed on-ledger at this point: a silent counterparty
	// must be escalated to the arbitrator instead of aborting silently.
	return Failed(domain.PeerTimeoutFailure(
		"no payout signature from peer %s within bound", rt.Trade.PeerId,
	))
}
