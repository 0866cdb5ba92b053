package ports

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
)

// Purpose tags a wallet-allocated address entry with the reason it was
// created for.
type Purpose string

const (
	// PurposeMultiSig tags the key entry reserved for the trade's 2-of-3
	// escrow.
	PurposeMultiSig Purpose = "multisig"
	// PurposeTradePayout tags the address the trade payout is sent to.
	PurposeTradePayout Purpose = "trade_payout"
)

// AddressEntry is a wallet-allocated address tagged by purpose. Entries are
// looked up by trade id and purpose tag, never freely reconstructed.
type AddressEntry struct {
	TradeId uuid.UUID
	Purpose Purpose
	Address string
	PubKey  []byte
}

// WalletService is the key-storage collaborator of the trade protocol.
// Implementations must be safe for concurrent use by multiple trades and
// idempotent per (tradeId, purpose).
type WalletService interface {
	// GetOrCreateAddressEntry returns the address entry reserved for the
	// given trade and purpose, allocating it on first use.
	GetOrCreateAddressEntry(tradeId uuid.UUID, purpose Purpose) (AddressEntry, error)
	// GetMultiSigKeyPair returns the private key matching the multisig
	// public key this party committed to for the trade.
	GetMultiSigKeyPair(tradeId uuid.UUID, ownPubKey []byte) (*btcec.PrivateKey, error)
	// SelectFundingOutpoint reserves an outpoint able to fund the escrow
	// with the given amount. Coin selection itself is a wallet concern.
	SelectFundingOutpoint(tradeId uuid.UUID, amount uint64) (txId string, vout uint32, err error)
}
