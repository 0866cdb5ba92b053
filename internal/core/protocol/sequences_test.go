package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/protocol"
)

func TestSequenceForRole(t *testing.T) {
	t.Parallel()

	sellerSteps := stepNames(protocol.SequenceForRole(domain.RoleSeller))
	buyerSteps := stepNames(protocol.SequenceForRole(domain.RoleBuyer))

	require.Equal(t, []string{
		"SetupEscrowKeys",
		"ExchangeEscrowSetup",
		"PublishDepositTx",
		"AwaitDepositConfirmation",
		"SignPayoutTx",
		"ExchangePayoutSignature",
		"BroadcastPayoutTx",
	}, sellerSteps)

	require.Equal(t, []string{
		"SetupEscrowKeys",
		"ExchangeEscrowSetup",
		"AwaitDepositPublished",
		"AwaitDepositConfirmation",
		"SignPayoutTx",
		"ExchangePayoutSignature",
		"BroadcastPayoutTx",
	}, buyerSteps)
}

func TestResumeIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phase    domain.Phase
		expected int
	}{
		{domain.PhaseNegotiated, 0},
		{domain.PhaseDepositPublished, 3},
		{domain.PhaseDepositConfirmed, 4},
		{domain.PhasePayoutSigned, 5},
		{domain.PhasePayoutPublished, 6},
		{domain.PhaseCompleted, 7},
		{domain.PhaseError, 7},
	}

	for _, tt := range tests {
		for _, role := range []domain.Role{domain.RoleBuyer, domain.RoleSeller} {
			require.Equal(
				t, tt.expected, protocol.ResumeIndex(role, tt.phase),
				"phase %s role %s", tt.phase, role,
			)
		}
	}
}

func stepNames(steps []protocol.Step) []string {
	names := make([]string, 0, len(steps))
	for _, step := range steps {
		names = append(names, step.Name())
	}
	return names
}
