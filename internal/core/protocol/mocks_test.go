package protocol_test

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

/*
 * WalletService
 */
type mockWalletService struct {
	mock.Mock
}

func (m *mockWalletService) GetOrCreateAddressEntry(
	tradeId uuid.UUID, purpose ports.Purpose,
) (ports.AddressEntry, error) {
	args := m.Called(tradeId, purpose)

	var entry ports.AddressEntry
	if a := args.Get(0); a != nil {
		entry = a.(ports.AddressEntry)
	}
	return entry, args.Error(1)
}

func (m *mockWalletService) GetMultiSigKeyPair(
	tradeId uuid.UUID, ownPubKey []byte,
) (*btcec.PrivateKey, error) {
	args := m.Called(tradeId, ownPubKey)

	var key *btcec.PrivateKey
	if a := args.Get(0); a != nil {
		key = a.(*btcec.PrivateKey)
	}
	return key, args.Error(1)
}

func (m *mockWalletService) SelectFundingOutpoint(
	tradeId uuid.UUID, amount uint64,
) (string, uint32, error) {
	args := m.Called(tradeId, amount)

	var txId string
	if a := args.Get(0); a != nil {
		txId = a.(string)
	}
	var vout uint32
	if a := args.Get(1); a != nil {
		vout = a.(uint32)
	}
	return txId, vout, args.Error(2)
}

/*
 * TradeWallet
 */
type mockTradeWallet struct {
	mock.Mock
}

func (m *mockTradeWallet) BuildDepositTx(
	fundingTxId string, fundingVout uint32, amount uint64,
	buyerPubKey, sellerPubKey, arbitratorPubKey []byte,
) (string, string, error) {
	args := m.Called(
		fundingTxId, fundingVout, amount,
		buyerPubKey, sellerPubKey, arbitratorPubKey,
	)

	var txId string
	if a := args.Get(0); a != nil {
		txId = a.(string)
	}
	var txHex string
	if a := args.Get(1); a != nil {
		txHex = a.(string)
	}
	return txId, txHex, args.Error(2)
}

func (m *mockTradeWallet) SignPayout(
	desc ports.PayoutDescriptor, key *btcec.PrivateKey,
) ([]byte, error) {
	args := m.Called(desc, key)

	var sig []byte
	if a := args.Get(0); a != nil {
		sig = a.([]byte)
	}
	return sig, args.Error(1)
}

func (m *mockTradeWallet) VerifyPayoutSignature(
	desc ports.PayoutDescriptor, sig, signerPubKey []byte,
) error {
	args := m.Called(desc, sig, signerPubKey)
	return args.Error(0)
}

func (m *mockTradeWallet) AssemblePayoutTx(
	desc ports.PayoutDescriptor, buyerSig, sellerSig []byte,
) (string, string, error) {
	args := m.Called(desc, buyerSig, sellerSig)

	var txId string
	if a := args.Get(0); a != nil {
		txId = a.(string)
	}
	var txHex string
	if a := args.Get(1); a != nil {
		txHex = a.(string)
	}
	return txId, txHex, args.Error(2)
}

/*
 * LedgerService
 */
type mockLedgerService struct {
	mock.Mock
}

func (m *mockLedgerService) BroadcastTransaction(txHex string) (string, error) {
	args := m.Called(txHex)

	var txId string
	if a := args.Get(0); a != nil {
		txId = a.(string)
	}
	return txId, args.Error(1)
}

func (m *mockLedgerService) GetTxConfirmations(txId string) (int, error) {
	args := m.Called(txId)

	var confirmations int
	if a := args.Get(0); a != nil {
		confirmations = a.(int)
	}
	return confirmations, args.Error(1)
}

/*
 * PeerMessenger
 */
type mockPeerMessenger struct {
	mock.Mock
}

func (m *mockPeerMessenger) SendMessage(
	ctx context.Context, peerId string, msg ports.TradeMessage,
) error {
	args := m.Called(ctx, peerId, msg)
	return args.Error(0)
}

func (m *mockPeerMessenger) RegisterHandler(
	tradeId uuid.UUID, handler ports.MessageHandler,
) {
	m.Called(tradeId, handler)
}

func (m *mockPeerMessenger) DeregisterHandler(tradeId uuid.UUID) {
	m.Called(tradeId)
}
