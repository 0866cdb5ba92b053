package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trade is the long-lived record of one negotiated deal between two
// counterparties. It owns its TradeContext for its whole lifetime and is
// mutated exclusively by protocol steps executing under the step sequencer.
type Trade struct {
	Id      uuid.UUID
	OfferId string
	Role    Role
	PeerId  string

	TradeAmount           uint64
	BuyerSecurityDeposit  uint64
	SellerSecurityDeposit uint64

	Phase         Phase
	Canceled      bool
	FailureKind   ErrorKind
	FailureReason string

	CreationTime   int64
	CompletionTime int64

	Context TradeContext
}

// NewTrade returns a trade in the Negotiated phase for the given accepted
// offer. The trade id is derived from the offer id so that both parties
// agree on it without coordination.
func NewTrade(offer Offer, role Role, peerId string) (*Trade, error) {
	if offer.TradeAmount == 0 {
		return nil, fmt.Errorf("offer trade amount must not be zero")
	}
	if len(offer.ArbitratorPubKey) == 0 {
		return nil, fmt.Errorf("offer arbitrator pubkey must not be null")
	}

	trade := &Trade{
		Id:                    TradeIdFromOffer(offer.Id),
		OfferId:               offer.Id,
		Role:                  role,
		PeerId:                peerId,
		TradeAmount:           offer.TradeAmount,
		BuyerSecurityDeposit:  offer.BuyerSecurityDeposit,
		SellerSecurityDeposit: offer.SellerSecurityDeposit,
		Phase:                 PhaseNegotiated,
		CreationTime:          time.Now().Unix(),
	}
	if err := trade.Context.SetArbitratorPubKey(offer.ArbitratorPubKey); err != nil {
		return nil, err
	}
	return trade, nil
}

// reachablePhases declares the trade phase state machine. PhaseError and
// PhaseDisputed are handled separately in TransitionTo since they are
// reachable from many phases.
var reachablePhases = map[Phase][]Phase{
	PhaseNegotiated:       {PhaseDepositPublished},
	PhaseDepositPublished: {PhaseDepositConfirmed},
	PhaseDepositConfirmed: {PhasePayoutSigned},
	PhasePayoutSigned:     {PhasePayoutPublished},
	PhasePayoutPublished:  {PhaseCompleted},
	PhaseDisputed:         {PhasePayoutPublished, PhaseCompleted},
}

// TransitionTo moves the trade to newPhase, enforcing the phase state
// machine. It fails with ErrInvalidTransition if newPhase is not reachable
// from the current phase.
func (t *Trade) TransitionTo(newPhase Phase) error {
	if newPhase == t.Phase {
		return nil
	}

	switch newPhase {
	case PhaseError:
		if t.IsTerminal() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Phase, newPhase)
		}
	case PhaseDisputed:
		if t.Phase == PhaseCompleted || t.Phase == PhaseError {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Phase, newPhase)
		}
	default:
		if !phaseReachable(t.Phase, newPhase) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Phase, newPhase)
		}
	}

	t.Phase = newPhase
	if newPhase == PhaseCompleted {
		t.CompletionTime = time.Now().Unix()
	}
	return nil
}

// Fail records the causing error and moves the trade to its failure phase.
// Counterparty misbehavior and timeouts observed after funds are committed
// on-ledger escalate to the arbitrator, any other failure is terminal.
func (t *Trade) Fail(err error) {
	if t.IsTerminal() {
		return
	}

	t.FailureKind = KindOf(err)
	t.FailureReason = err.Error()

	if t.fundsCommitted() &&
		(t.FailureKind == KindPeerProtocol || t.FailureKind == KindPeerTimeout) {
		if errTr := t.TransitionTo(PhaseDisputed); errTr == nil {
			return
		}
	}
	// Error is reachable from every non-terminal phase.
	_ = t.TransitionTo(PhaseError)
}

// CanCancel returns whether the trade may still be canceled without going
// through dispute escalation, ie. before the fund-lock transaction is
// broadcast.
func (t *Trade) CanCancel() bool {
	return t.Phase == PhaseNegotiated
}

// Cancel aborts a trade whose funds are not yet committed on-ledger. After
// the deposit is published cancellation must go through EscalateDispute.
func (t *Trade) Cancel() error {
	if !t.CanCancel() {
		return ErrTradeNotCancelable
	}
	t.Canceled = true
	t.FailureReason = "trade canceled before deposit was published"
	return t.TransitionTo(PhaseError)
}

// EscalateDispute hands the trade over to the arbitrator.
func (t *Trade) EscalateDispute(reason string) error {
	if err := t.TransitionTo(PhaseDisputed); err != nil {
		return err
	}
	t.FailureReason = reason
	return nil
}

// TotalEscrowAmount returns the total amount committed into the 2-of-3
// escrow: the traded principal plus both security deposits.
func (t *Trade) TotalEscrowAmount() uint64 {
	return t.TradeAmount + t.BuyerSecurityDeposit + t.SellerSecurityDeposit
}

// TermsFrozen returns whether the monetary terms of the trade are immutable,
// which is the case as soon as the fund-lock transaction is broadcast.
func (t *Trade) TermsFrozen() bool {
	return t.Phase != PhaseNegotiated
}

// SetAmounts updates the monetary terms of the trade, which is only allowed
// while the deposit has not been published.
func (t *Trade) SetAmounts(tradeAmount, buyerDeposit, sellerDeposit uint64) error {
	if t.TermsFrozen() {
		return ErrTermsFrozen
	}
	t.TradeAmount = tradeAmount
	t.BuyerSecurityDeposit = buyerDeposit
	t.SellerSecurityDeposit = sellerDeposit
	return nil
}

// IsTerminal returns whether no further phase transition is possible.
func (t *Trade) IsTerminal() bool {
	return t.Phase == PhaseCompleted || t.Phase == PhaseError
}

// IsCompleted returns whether the trade reached the happy-path terminal
// phase.
func (t *Trade) IsCompleted() bool {
	return t.Phase == PhaseCompleted
}

// IsDisputed returns whether the trade has been escalated to the arbitrator.
func (t *Trade) IsDisputed() bool {
	return t.Phase == PhaseDisputed
}

// IsFailed returns whether the trade halted with a recorded failure.
func (t *Trade) IsFailed() bool {
	return t.Phase == PhaseError
}

func (t *Trade) fundsCommitted() bool {
	return t.Phase >= PhaseDepositPublished && t.Phase < PhaseCompleted
}

func phaseReachable(from, to Phase) bool {
	for _, p := range reachablePhases[from] {
		if p == to {
			return true
		}
	}
	return false
}
