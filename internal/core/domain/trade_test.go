package domain_test

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
)

func TestNewTrade(t *testing.T) {
	t.Parallel()

	offer := newTestOffer()
	trade, err := domain.NewTrade(offer, domain.RoleBuyer, "peer-1")
	require.NoError(t, err)
	require.Equal(t, domain.PhaseNegotiated, trade.Phase)
	require.Equal(t, offer.TradeAmount, trade.TradeAmount)
	require.Equal(t, offer.ArbitratorPubKey, trade.Context.ArbitratorPubKey)
	require.False(t, trade.IsTerminal())

	// both parties derive the same trade id from the offer.
	other, err := domain.NewTrade(offer, domain.RoleSeller, "peer-2")
	require.NoError(t, err)
	require.Equal(t, trade.Id, other.Id)
}

func TestFailingNewTrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		offer domain.Offer
	}{
		{
			name: "with_zero_trade_amount",
			offer: domain.Offer{
				Id:               "offer-1",
				ArbitratorPubKey: randomPubKey(t),
			},
		},
		{
			name: "with_null_arbitrator_pubkey",
			offer: domain.Offer{
				Id:          "offer-1",
				TradeAmount: 100000,
			},
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			trade, err := domain.NewTrade(tt.offer, domain.RoleBuyer, "peer-1")
			require.Error(t, err)
			require.Nil(t, trade)
		})
	}
}

func TestTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		from        domain.Phase
		to          domain.Phase
		expectedErr error
	}{
		{
			name: "negotiated_to_deposit_published",
			from: domain.PhaseNegotiated,
			to:   domain.PhaseDepositPublished,
		},
		{
			name: "deposit_published_to_deposit_confirmed",
			from: domain.PhaseDepositPublished,
			to:   domain.PhaseDepositConfirmed,
		},
		{
			name: "deposit_confirmed_to_payout_signed",
			from: domain.PhaseDepositConfirmed,
			to:   domain.PhasePayoutSigned,
		},
		{
			name: "payout_signed_to_payout_published",
			from: domain.PhasePayoutSigned,
			to:   domain.PhasePayoutPublished,
		},
		{
			name: "payout_published_to_completed",
			from: domain.PhasePayoutPublished,
			to:   domain.PhaseCompleted,
		},
		{
			name: "disputed_to_payout_published",
			from: domain.PhaseDisputed,
			to:   domain.PhasePayoutPublished,
		},
		{
			name: "any_to_error",
			from: domain.PhaseDepositConfirmed,
			to:   domain.PhaseError,
		},
		{
			name: "any_to_disputed",
			from: domain.PhaseDepositPublished,
			to:   domain.PhaseDisputed,
		},
		{
			name:        "negotiated_to_completed",
			from:        domain.PhaseNegotiated,
			to:          domain.PhaseCompleted,
			expectedErr: domain.ErrInvalidTransition,
		},
		{
			name:        "skipping_deposit_confirmed",
			from:        domain.PhaseDepositPublished,
			to:          domain.PhasePayoutSigned,
			expectedErr: domain.ErrInvalidTransition,
		},
		{
			name:        "backwards_transition",
			from:        domain.PhasePayoutSigned,
			to:          domain.PhaseDepositPublished,
			expectedErr: domain.ErrInvalidTransition,
		},
		{
			name:        "completed_to_disputed",
			from:        domain.PhaseCompleted,
			to:          domain.PhaseDisputed,
			expectedErr: domain.ErrInvalidTransition,
		},
		{
			name:        "completed_to_error",
			from:        domain.PhaseCompleted,
			to:          domain.PhaseError,
			expectedErr: domain.ErrInvalidTransition,
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			trade := newTestTrade(t)
			trade.Phase = tt.from

			err := trade.TransitionTo(tt.to)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				require.Equal(t, tt.from, trade.Phase)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.to, trade.Phase)
		})
	}
}

func TestFailRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		phase         domain.Phase
		err           error
		expectedPhase domain.Phase
	}{
		{
			name:          "peer_timeout_before_deposit",
			phase:         domain.PhaseNegotiated,
			err:           domain.PeerTimeoutFailure("no reply"),
			expectedPhase: domain.PhaseError,
		},
		{
			name:          "peer_timeout_after_deposit",
			phase:         domain.PhaseDepositConfirmed,
			err:           domain.PeerTimeoutFailure("no reply"),
			expectedPhase: domain.PhaseDisputed,
		},
		{
			name:          "peer_protocol_after_deposit",
			phase:         domain.PhasePayoutSigned,
			err:           domain.PeerProtocolFailure("unexpected message"),
			expectedPhase: domain.PhaseDisputed,
		},
		{
			name:          "security_failure_after_deposit",
			phase:         domain.PhaseDepositConfirmed,
			err:           domain.SecurityFailure("pubkey mismatch"),
			expectedPhase: domain.PhaseError,
		},
		{
			name:          "invariant_violation",
			phase:         domain.PhaseNegotiated,
			err:           domain.InvariantViolation("missing deposit tx"),
			expectedPhase: domain.PhaseError,
		},
		{
			name:          "plain_error",
			phase:         domain.PhaseDepositPublished,
			err:           errors.New("something broke"),
			expectedPhase: domain.PhaseError,
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			trade := newTestTrade(t)
			trade.Phase = tt.phase

			trade.Fail(tt.err)
			require.Equal(t, tt.expectedPhase, trade.Phase)
			require.Equal(t, domain.KindOf(tt.err), trade.FailureKind)
			require.NotEmpty(t, trade.FailureReason)
		})
	}
}

func TestFailOnTerminalTradeIsNoOp(t *testing.T) {
	t.Parallel()

	trade := newTestTrade(t)
	trade.Phase = domain.PhaseCompleted

	trade.Fail(domain.PeerProtocolFailure("late failure"))
	require.Equal(t, domain.PhaseCompleted, trade.Phase)
	require.Empty(t, trade.FailureReason)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	trade := newTestTrade(t)
	require.True(t, trade.CanCancel())
	require.NoError(t, trade.Cancel())
	require.True(t, trade.Canceled)
	require.Equal(t, domain.PhaseError, trade.Phase)
}

func TestFailingCancelAfterDepositPublished(t *testing.T) {
	t.Parallel()

	trade := newTestTrade(t)
	trade.Phase = domain.PhaseDepositPublished

	require.False(t, trade.CanCancel())
	require.ErrorIs(t, trade.Cancel(), domain.ErrTradeNotCancelable)
	require.Equal(t, domain.PhaseDepositPublished, trade.Phase)
	require.False(t, trade.Canceled)
}

func TestSetAmounts(t *testing.T) {
	t.Parallel()

	trade := newTestTrade(t)
	require.False(t, trade.TermsFrozen())
	require.NoError(t, trade.SetAmounts(200000, 30000, 30000))
	require.Equal(t, uint64(260000), trade.TotalEscrowAmount())

	require.NoError(t, trade.TransitionTo(domain.PhaseDepositPublished))
	require.True(t, trade.TermsFrozen())
	require.ErrorIs(
		t, trade.SetAmounts(1, 1, 1), domain.ErrTermsFrozen,
	)
}

func TestEscalateDispute(t *testing.T) {
	t.Parallel()

	trade := newTestTrade(t)
	trade.Phase = domain.PhaseDepositConfirmed

	require.NoError(t, trade.EscalateDispute("payment never arrived"))
	require.True(t, trade.IsDisputed())
	require.Equal(t, "payment never arrived", trade.FailureReason)

	// the arbitrator resolution path stays open.
	require.NoError(t, trade.TransitionTo(domain.PhasePayoutPublished))
	require.NoError(t, trade.TransitionTo(domain.PhaseCompleted))
}

func newTestOffer() domain.Offer {
	arbKey, _ := btcec.NewPrivateKey()
	return domain.Offer{
		Id:                    "offer-1",
		TradeAmount:           100000,
		BuyerSecurityDeposit:  15000,
		SellerSecurityDeposit: 15000,
		ArbitratorPubKey:      arbKey.PubKey().SerializeCompressed(),
	}
}

func newTestTrade(t *testing.T) *domain.Trade {
	t.Helper()
	trade, err := domain.NewTrade(newTestOffer(), domain.RoleBuyer, "peer-1")
	require.NoError(t, err)
	return trade
}

func randomPubKey(t *testing.T) []byte {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key.PubKey().SerializeCompressed()
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return buf
}
