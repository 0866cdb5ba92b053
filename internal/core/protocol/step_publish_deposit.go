package protocol

import (
	"context"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
)

// PublishDepositTxStep builds and broadcasts the fund-lock transaction
// committing the total escrow amount into the trade's 2-of-3 multisig
// output, then notifies the counterparty. Run by the seller, who funds the
// escrow.
type PublishDepositTxStep struct{}

func (PublishDepositTxStep) Name() string { return "PublishDepositTx" }

func (PublishDepositTxStep) Run(ctx context.Context, rt *Runtime) Outcome {
	tradeCtx := rt.Context()
	if len(tradeCtx.OwnMultiSigPubKey) == 0 || len(tradeCtx.PeerMultiSigPubKey) == 0 ||
		len(tradeCtx.ArbitratorPubKey) == 0 {
		return Failed(domain.InvariantViolation(
			"multisig key set must be complete before building the deposit tx",
		))
	}
	if tradeCtx.HasDepositTx() {
		// Resumed trade, the deposit was already built: only re-announce.
		return announceDeposit(ctx, rt)
	}

	totalAmount := rt.Trade.TotalEscrowAmount()
	fundingTxId, fundingVout, err := rt.Svc.Wallet.SelectFundingOutpoint(
		rt.Trade.Id, totalAmount,
	)
	if err != nil {
		return Failed(err)
	}

	txId, txHex, err := rt.Svc.TradeWallet.BuildDepositTx(
		fundingTxId, fundingVout, totalAmount,
		rt.buyerPubKey(), rt.sellerPubKey(), tradeCtx.ArbitratorPubKey,
	)
	if err != nil {
		return Failed(domain.TxConstructionFailure(err))
	}

	if _, err := rt.Svc.Ledger.BroadcastTransaction(txHex); err != nil {
		return Failed(err)
	}
	if err := tradeCtx.SetDepositTx(txId, txHex); err != nil {
		return Failed(err)
	}
	if err := rt.TransitionTo(domain.PhaseDepositPublished); err != nil {
		return Failed(err)
	}
	return announceDeposit(ctx, rt)
}

func announceDeposit(ctx context.Context, rt *Runtime) Outcome {
	msg := NewDepositPublishedMessage(
		rt.Trade.Id, rt.Context().DepositTxId, rt.Context().DepositTxHex,
	)
	if err := rt.Svc.Messenger.SendMessage(ctx, rt.Trade.PeerId, msg); err != nil {
		return Failed(err)
	}
	return Completed()
}
