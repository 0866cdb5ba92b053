package protocol

import (
	"context"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

// SetupEscrowKeysStep allocates this party's multisig key and payout
// address for the trade and records them in the trade context. Wallet
// allocation is idempotent per (trade, purpose), so re-running the step on
// a resumed trade yields the same key material.
type SetupEscrowKeysStep struct{}

func (SetupEscrowKeysStep) Name() string { return "SetupEscrowKeys" }

func (SetupEscrowKeysStep) Run(_ context.Context, rt *Runtime) Outcome {
	multiSigEntry, err := rt.Svc.Wallet.GetOrCreateAddressEntry(
		rt.Trade.Id, ports.PurposeMultiSig,
	)
	if err != nil {
		return Failed(err)
	}
	payoutEntry, err := rt.Svc.Wallet.GetOrCreateAddressEntry(
		rt.Trade.Id, ports.PurposeTradePayout,
	)
	if err != nil {
		return Failed(err)
	}

	if err := rt.Context().SetOwnMultiSigPubKey(multiSigEntry.PubKey); err != nil {
		return Failed(err)
	}
	if err := rt.Context().SetOwnPayoutAddress(payoutEntry.Address); err != nil {
		return Failed(err)
	}
	return Completed()
}
