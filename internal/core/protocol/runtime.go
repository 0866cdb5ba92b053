package protocol

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

// DefaultPeerTimeout bounds how long a suspended step waits for the
// counterparty's reply before its timeout policy kicks in.
const DefaultPeerTimeout = 2 * time.Minute

// Services bundles the external collaborators every step may need.
type Services struct {
	Wallet      ports.WalletService
	TradeWallet ports.TradeWallet
	Ledger      ports.LedgerService
	Messenger   ports.PeerMessenger
}

// Runtime is the per-trade execution environment threaded through every
// step call: the trade aggregate (owning the shared trade context), the
// collaborator services and the sequencer extension points. One runtime is
// never shared between trades.
type Runtime struct {
	Trade *domain.Trade
	Svc   Services

	// Hook, when set, intercepts every step run. Tests only.
	Hook Hook
	// OnPhaseChange is invoked after every successful phase transition.
	OnPhaseChange func(oldPhase, newPhase domain.Phase)
	// PeerTimeout overrides DefaultPeerTimeout when positive.
	PeerTimeout time.Duration
	// ConfirmationThreshold is the number of ledger confirmations after
	// which the fund-lock transaction counts as irreversible.
	ConfirmationThreshold int
}

// Context returns the shared trade context owned by the runtime's trade.
func (rt *Runtime) Context() *domain.TradeContext {
	return &rt.Trade.Context
}

func (rt *Runtime) peerTimeout() time.Duration {
	if rt.PeerTimeout > 0 {
		return rt.PeerTimeout
	}
	return DefaultPeerTimeout
}

func (rt *Runtime) confirmationThreshold() int {
	if rt.ConfirmationThreshold > 0 {
		return rt.ConfirmationThreshold
	}
	return 1
}

// TransitionTo moves the trade to the given phase and notifies observers.
func (rt *Runtime) TransitionTo(phase domain.Phase) error {
	oldPhase := rt.Trade.Phase
	if err := rt.Trade.TransitionTo(phase); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"trade": rt.Trade.Id,
		"from":  oldPhase.String(),
		"to":    phase.String(),
	}).Debug("trade phase transition")

	if rt.OnPhaseChange != nil && oldPhase != rt.Trade.Phase {
		rt.OnPhaseChange(oldPhase, rt.Trade.Phase)
	}
	return nil
}

// FailTrade records the failure on the trade and notifies observers of the
// resulting phase.
func (rt *Runtime) FailTrade(err error) {
	oldPhase := rt.Trade.Phase
	rt.Trade.Fail(err)
	log.WithError(err).WithFields(log.Fields{
		"trade": rt.Trade.Id,
		"phase": rt.Trade.Phase.String(),
	}).Warn("trade failed")

	if rt.OnPhaseChange != nil && oldPhase != rt.Trade.Phase {
		rt.OnPhaseChange(oldPhase, rt.Trade.Phase)
	}
}

// buyerPubKey maps the exchanged multisig keys onto the buyer role.
func (rt *Runtime) buyerPubKey() []byte {
	if rt.Trade.Role == domain.RoleBuyer {
		return rt.Trade.Context.OwnMultiSigPubKey
	}
	return rt.Trade.Context.PeerMultiSigPubKey
}

func (rt *Runtime) sellerPubKey() []byte {
	if rt.Trade.Role == domain.RoleSeller {
		return rt.Trade.Context.OwnMultiSigPubKey
	}
	return rt.Trade.Context.PeerMultiSigPubKey
}

func (rt *Runtime) buyerPayoutAddress() string {
	if rt.Trade.Role == domain.RoleBuyer {
		return rt.Trade.Context.OwnPayoutAddress
	}
	return rt.Trade.Context.PeerPayoutAddress
}

func (rt *Runtime) sellerPayoutAddress() string {
	if rt.Trade.Role == domain.RoleSeller {
		return rt.Trade.Context.OwnPayoutAddress
	}
	return rt.Trade.Context.PeerPayoutAddress
}

func (rt *Runtime) buyerPayoutSignature() []byte {
	if rt.Trade.Role == domain.RoleBuyer {
		return rt.Trade.Context.OwnPayoutSignature
	}
	return rt.Trade.Context.PeerPayoutSignature
}

func (rt *Runtime) sellerPayoutSignature() []byte {
	if rt.Trade.Role == domain.RoleSeller {
		return rt.Trade.Context.OwnPayoutSignature
	}
	return rt.Trade.Context.PeerPayoutSignature
}

// payoutDescriptor rebuilds the deterministic payout descriptor both
// parties must agree on.
func (rt *Runtime) payoutDescriptor(buyerAmount, sellerAmount uint64) ports.PayoutDescriptor {
	return ports.PayoutDescriptor{
		DepositTxHex:     rt.Trade.Context.DepositTxHex,
		BuyerAmount:      buyerAmount,
		SellerAmount:     sellerAmount,
		BuyerAddress:     rt.buyerPayoutAddress(),
		SellerAddress:    rt.sellerPayoutAddress(),
		BuyerPubKey:      rt.buyerPubKey(),
		SellerPubKey:     rt.sellerPubKey(),
		ArbitratorPubKey: rt.Trade.Context.ArbitratorPubKey,
	}
}
