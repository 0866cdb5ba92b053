package protocol

import (
	"context"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/pkg/mathutil"
)

// BroadcastPayoutTxStep assembles the fully-signed payout transaction from
// both parties' signatures and broadcasts it, completing the trade. Both
// parties run it; re-broadcasting an already published transaction is not
// an error.
type BroadcastPayoutTxStep struct{}

func (BroadcastPayoutTxStep) Name() string { return "BroadcastPayoutTx" }

func (BroadcastPayoutTxStep) Run(_ context.Context, rt *Runtime) Outcome {
	tradeCtx := rt.Context()
	if len(tradeCtx.OwnPayoutSignature) == 0 || len(tradeCtx.PeerPayoutSignature) == 0 {
		return Failed(domain.InvariantViolation(
			"both payout signatures must be exchanged before broadcasting the payout",
		))
	}

	buyerPayout, sellerPayout := mathutil.PayoutSplit(
		rt.Trade.TradeAmount,
		rt.Trade.BuyerSecurityDeposit,
		rt.Trade.SellerSecurityDeposit,
	)
	txId, txHex, err := rt.Svc.TradeWallet.AssemblePayoutTx(
		rt.payoutDescriptor(buyerPayout, sellerPayout),
		rt.buyerPayoutSignature(),
		rt.sellerPayoutSignature(),
	)
	if err != nil {
		return Failed(domain.TxConstructionFailure(err))
	}

	if _, err := rt.Svc.Ledger.BroadcastTransaction(txHex); err != nil {
		return Failed(err)
	}

	tradeCtx.SetPayoutTx(txId, txHex)
	if err := rt.TransitionTo(domain.PhasePayoutPublished); err != nil {
		return Failed(err)
	}
	if err := rt.TransitionTo(domain.PhaseCompleted); err != nil {
		return Failed(err)
	}
	return Completed()
}
