package protocol

import (
	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
)

// The counterparty-role dispatch is modeled as role-specific step sequences
// assembled from a shared step library and chosen at trade start, instead
// of subclass hierarchies overriding control flow.

// SellerSequence returns the ordered steps of the escrow-funding side.
func SellerSequence() []Step {
	return []Step{
		SetupEscrowKeysStep{},
		ExchangeEscrowSetupStep{},
		PublishDepositTxStep{},
		AwaitDepositConfirmationStep{},
		SignPayoutTxStep{},
		ExchangePayoutSignatureStep{},
		BroadcastPayoutTxStep{},
	}
}

// BuyerSequence returns the ordered steps of the side awaiting the escrow
// funding.
func BuyerSequence() []Step {
	return []Step{
		SetupEscrowKeysStep{},
		ExchangeEscrowSetupStep{},
		AwaitDepositPublishedStep{},
		AwaitDepositConfirmationStep{},
		SignPayoutTxStep{},
		ExchangePayoutSignatureStep{},
		BroadcastPayoutTxStep{},
	}
}

// SequenceForRole returns the step sequence of the given trade role.
func SequenceForRole(role domain.Role) []Step {
	if role == domain.RoleSeller {
		return SellerSequence()
	}
	return BuyerSequence()
}

// ResumeIndex maps a reloaded trade's phase onto the position its sequence
// should be re-entered at after a restart. Both role sequences share the
// same phase-to-position layout. Steps positioned before an exchanged
// artifact are idempotent, so re-entering one step early is always safe.
func ResumeIndex(role domain.Role, phase domain.Phase) int {
	switch phase {
	case domain.PhaseNegotiated:
		return 0
	case domain.PhaseDepositPublished:
		return 3
	case domain.PhaseDepositConfirmed:
		return 4
	case domain.PhasePayoutSigned:
		return 5
	case domain.PhasePayoutPublished:
		return 6
	default:
		return len(SequenceForRole(role))
	}
}
