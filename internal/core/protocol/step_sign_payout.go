package protocol

import (
	"bytes"
	"context"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
	"github.com/p2pdex-network/escrow-daemon/pkg/mathutil"
)

// SignPayoutTxStep builds and signs the transaction releasing the escrowed
// funds to buyer and seller once the fund-lock transaction is confirmed.
// The seller's security deposit alone returns to the seller; the buyer
// receives their deposit back plus the full purchased amount.
//
// Before signing, this party's multisig public key is independently
// re-derived from the wallet and compared byte for byte with the key
// committed and exchanged at trade setup. A mismatch means a stale or
// substituted key would be used to sign, which would let an attacker
// misdirect the payout, so the step aborts with a fatal integrity failure.
//
// Signing is local: nothing is broadcast here, the signature is only
// recorded in the trade context for the exchange step that follows.
type SignPayoutTxStep struct{}

func (SignPayoutTxStep) Name() string { return "SignPayoutTx" }

func (SignPayoutTxStep) Run(_ context.Context, rt *Runtime) Outcome {
	trade := rt.Trade
	tradeCtx := rt.Context()

	// Absence of any required input means the steps were invoked out of
	// order, a programming invariant violation rather than a user-facing
	// error. Nothing below may mutate the context before all checks pass.
	if !tradeCtx.HasDepositTx() {
		return Failed(domain.InvariantViolation(
			"deposit tx must not be null when signing the payout for trade %s", trade.Id,
		))
	}
	if trade.TradeAmount == 0 {
		return Failed(domain.InvariantViolation(
			"trade amount must not be null when signing the payout for trade %s", trade.Id,
		))
	}
	if len(tradeCtx.OwnMultiSigPubKey) == 0 || len(tradeCtx.PeerMultiSigPubKey) == 0 {
		return Failed(domain.InvariantViolation(
			"both multisig pubkeys must be exchanged before signing the payout for trade %s", trade.Id,
		))
	}
	if len(tradeCtx.ArbitratorPubKey) == 0 {
		return Failed(domain.InvariantViolation(
			"arbitrator pubkey must not be null when signing the payout for trade %s", trade.Id,
		))
	}
	if len(tradeCtx.OwnPayoutAddress) == 0 || len(tradeCtx.PeerPayoutAddress) == 0 {
		return Failed(domain.InvariantViolation(
			"both payout addresses must be exchanged before signing the payout for trade %s", trade.Id,
		))
	}

	buyerPayout, sellerPayout := mathutil.PayoutSplit(
		trade.TradeAmount, trade.BuyerSecurityDeposit, trade.SellerSecurityDeposit,
	)

	walletEntry, err := rt.Svc.Wallet.GetOrCreateAddressEntry(
		trade.Id, ports.PurposeMultiSig,
	)
	if err != nil {
		return Failed(err)
	}
	if !bytes.Equal(walletEntry.PubKey, tradeCtx.OwnMultiSigPubKey) {
		return Failed(domain.SecurityFailure(
			"own multisig pubkey from wallet must match the one committed for trade %s", trade.Id,
		))
	}

	multiSigKeyPair, err := rt.Svc.Wallet.GetMultiSigKeyPair(
		trade.Id, tradeCtx.OwnMultiSigPubKey,
	)
	if err != nil {
		return Failed(domain.SecurityFailure(
			"multisig key pair lookup failed for trade %s: %s", trade.Id, err,
		))
	}

	signature, err := rt.Svc.TradeWallet.SignPayout(
		rt.payoutDescriptor(buyerPayout, sellerPayout), multiSigKeyPair,
	)
	if err != nil {
		return Failed(domain.TxConstructionFailure(err))
	}

	tradeCtx.SetOwnPayoutSignature(signature)
	if err := rt.TransitionTo(domain.PhasePayoutSigned); err != nil {
		return Failed(err)
	}
	return Completed()
}
