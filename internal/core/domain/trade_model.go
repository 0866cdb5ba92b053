package domain

import (
	"github.com/google/uuid"
)

// Phase represents the lifecycle stage of a trade.
type Phase int

const (
	// PhaseNegotiated is the initial phase of a trade created from an
	// accepted offer.
	PhaseNegotiated Phase = iota
	// PhaseDepositPublished means the fund-lock transaction has been
	// broadcast to the ledger.
	PhaseDepositPublished
	// PhaseDepositConfirmed means the fund-lock transaction is irreversibly
	// recorded on the ledger.
	PhaseDepositConfirmed
	// PhasePayoutSigned means this party has produced its payout signature.
	PhasePayoutSigned
	// PhasePayoutPublished means the fully-signed payout transaction has
	// been broadcast.
	PhasePayoutPublished
	// PhaseCompleted is the happy-path terminal phase.
	PhaseCompleted
	// PhaseDisputed means the trade has been escalated to the arbitrator.
	PhaseDisputed
	// PhaseError is the terminal failure phase.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseNegotiated:
		return "NEGOTIATED"
	case PhaseDepositPublished:
		return "DEPOSIT_PUBLISHED"
	case PhaseDepositConfirmed:
		return "DEPOSIT_CONFIRMED"
	case PhasePayoutSigned:
		return "PAYOUT_SIGNED"
	case PhasePayoutPublished:
		return "PAYOUT_PUBLISHED"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseDisputed:
		return "DISPUTED"
	case PhaseError:
		return "ERROR"
	default:
		return "UNDEFINED"
	}
}

// Role identifies which side of the escrow this daemon plays for a trade.
type Role int

const (
	RoleBuyer Role = iota
	RoleSeller
)

func (r Role) String() string {
	if r == RoleSeller {
		return "seller"
	}
	return "buyer"
}

// Offer holds the negotiated monetary terms a trade is created from.
// All amounts are expressed in satoshis.
type Offer struct {
	Id                    string
	TradeAmount           uint64
	BuyerSecurityDeposit  uint64
	SellerSecurityDeposit uint64
	ArbitratorPubKey      []byte
}

// tradeIdNamespace makes trade ids deterministic per offer, so that both
// parties derive the same id independently.
var tradeIdNamespace = uuid.MustParse("8e038f9f-33a4-42b5-9d7e-64f1c5f369a8")

// TradeIdFromOffer derives the unique trade id from the accepted offer id.
func TradeIdFromOffer(offerId string) uuid.UUID {
	return uuid.NewSHA1(tradeIdNamespace, []byte(offerId))
}
