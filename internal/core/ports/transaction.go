package ports

import (
	"github.com/btcsuite/btcd/btcec/v2"
)

// PayoutDescriptor carries everything needed to rebuild the payout
// transaction deterministically on both sides of the trade: the fund-lock
// transaction being spent, the computed payout split and the full multisig
// key set. Both parties must derive a bit-identical transaction from the
// same descriptor, otherwise the exchanged signatures would not match.
type PayoutDescriptor struct {
	DepositTxHex     string
	BuyerAmount      uint64
	SellerAmount     uint64
	BuyerAddress     string
	SellerAddress    string
	BuyerPubKey      []byte
	SellerPubKey     []byte
	ArbitratorPubKey []byte
}

// TradeWallet is the transaction-construction and signing collaborator of
// the trade protocol. It never broadcasts; broadcasting goes through the
// LedgerService.
type TradeWallet interface {
	// BuildDepositTx builds the fund-lock transaction committing amount
	// satoshis from the given funding outpoint into the 2-of-3 escrow of
	// the provided key set.
	BuildDepositTx(
		fundingTxId string, fundingVout uint32, amount uint64,
		buyerPubKey, sellerPubKey, arbitratorPubKey []byte,
	) (txId, txHex string, err error)
	// SignPayout produces this party's signature over the payout
	// transaction described by desc. Signing is local and does not mutate
	// the ledger. It fails with a format error on malformed inputs.
	SignPayout(desc PayoutDescriptor, key *btcec.PrivateKey) ([]byte, error)
	// VerifyPayoutSignature checks a counterparty signature over the payout
	// transaction described by desc against the signer's declared pubkey.
	VerifyPayoutSignature(desc PayoutDescriptor, sig, signerPubKey []byte) error
	// AssemblePayoutTx combines both parties' signatures into the final
	// payout transaction, ready for broadcast.
	AssemblePayoutTx(desc PayoutDescriptor, buyerSig, sellerSig []byte) (txId, txHex string, err error)
}

// LedgerService is the boundary towards the public ledger.
type LedgerService interface {
	// BroadcastTransaction publishes a raw transaction and returns its id.
	// Re-broadcasting an already known transaction is not an error.
	BroadcastTransaction(txHex string) (string, error)
	// GetTxConfirmations returns the number of confirmations of a
	// transaction, zero if it is still in the mempool.
	GetTxConfirmations(txId string) (int, error)
}
