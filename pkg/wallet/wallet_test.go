package wallet_test

import (
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
	"github.com/p2pdex-network/escrow-daemon/pkg/wallet"
)

func TestNewWallet(t *testing.T) {
	t.Parallel()

	w, err := wallet.NewWallet(wallet.NewWalletOpts{
		Seed: randomSeed(t),
		Net:  &chaincfg.RegressionNetParams,
	})
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestFailingNewWallet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts wallet.NewWalletOpts
		err  error
	}{
		{
			name: "with_null_seed",
			opts: wallet.NewWalletOpts{Net: &chaincfg.RegressionNetParams},
			err:  wallet.ErrNullSeed,
		},
		{
			name: "with_short_seed",
			opts: wallet.NewWalletOpts{
				Seed: []byte{0x01, 0x02},
				Net:  &chaincfg.RegressionNetParams,
			},
			err: wallet.ErrNullSeed,
		},
		{
			name: "with_null_network",
			opts: wallet.NewWalletOpts{Seed: make([]byte, 32)},
			err:  wallet.ErrNullNetwork,
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, err := wallet.NewWallet(tt.opts)
			require.ErrorIs(t, err, tt.err)
			require.Nil(t, w)
		})
	}
}

func TestGetOrCreateAddressEntryIsIdempotent(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t)
	tradeId := uuid.New()

	entry, err := w.GetOrCreateAddressEntry(tradeId, ports.PurposeMultiSig)
	require.NoError(t, err)
	require.Equal(t, tradeId, entry.TradeId)
	require.Len(t, entry.PubKey, 33)
	require.NotEmpty(t, entry.Address)

	again, err := w.GetOrCreateAddressEntry(tradeId, ports.PurposeMultiSig)
	require.NoError(t, err)
	require.Equal(t, entry, again)

	// different purposes and trades get distinct key material.
	payoutEntry, err := w.GetOrCreateAddressEntry(tradeId, ports.PurposeTradePayout)
	require.NoError(t, err)
	require.NotEqual(t, entry.PubKey, payoutEntry.PubKey)

	otherEntry, err := w.GetOrCreateAddressEntry(uuid.New(), ports.PurposeMultiSig)
	require.NoError(t, err)
	require.NotEqual(t, entry.PubKey, otherEntry.PubKey)
}

func TestGetMultiSigKeyPair(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t)
	tradeId := uuid.New()

	entry, err := w.GetOrCreateAddressEntry(tradeId, ports.PurposeMultiSig)
	require.NoError(t, err)

	key, err := w.GetMultiSigKeyPair(tradeId, entry.PubKey)
	require.NoError(t, err)
	require.Equal(t, entry.PubKey, key.PubKey().SerializeCompressed())
}

func TestFailingGetMultiSigKeyPair(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t)
	tradeId := uuid.New()

	_, err := w.GetMultiSigKeyPair(tradeId, []byte{0x02})
	require.ErrorIs(t, err, wallet.ErrAddressEntryNotFound)

	entry, err := w.GetOrCreateAddressEntry(tradeId, ports.PurposeMultiSig)
	require.NoError(t, err)

	foreign, err := newTestWallet(t).GetOrCreateAddressEntry(
		tradeId, ports.PurposeMultiSig,
	)
	require.NoError(t, err)
	require.NotEqual(t, entry.PubKey, foreign.PubKey)

	_, err = w.GetMultiSigKeyPair(tradeId, foreign.PubKey)
	require.ErrorIs(t, err, wallet.ErrKeyPairMismatch)
}

func TestSelectFundingOutpoint(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t)
	tradeId := uuid.New()

	txId, vout, err := w.SelectFundingOutpoint(tradeId, 130000)
	require.NoError(t, err)
	require.Len(t, txId, 64)
	require.Zero(t, vout)

	// retries reserve the same outpoint.
	sameTxId, _, err := w.SelectFundingOutpoint(tradeId, 130000)
	require.NoError(t, err)
	require.Equal(t, txId, sameTxId)

	_, _, err = w.SelectFundingOutpoint(tradeId, 0)
	require.ErrorIs(t, err, wallet.ErrNullAmount)
}

func newTestWallet(t *testing.T) *wallet.Wallet {
	t.Helper()

	w, err := wallet.NewWallet(wallet.NewWalletOpts{
		Seed: randomSeed(t),
		Net:  &chaincfg.RegressionNetParams,
	})
	require.NoError(t, err)
	return w
}

func randomSeed(t *testing.T) []byte {
	t.Helper()

	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	return seed
}
