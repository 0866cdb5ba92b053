package payout

import "errors"

var (
	// ErrNullDepositTx ...
	ErrNullDepositTx = errors.New("deposit transaction must not be null")
	// ErrNullPubKey ...
	ErrNullPubKey = errors.New("all three multisig public keys must not be null")
	// ErrNullAddress ...
	ErrNullAddress = errors.New("buyer and seller payout addresses must not be null")
	// ErrNullAmounts ...
	ErrNullAmounts = errors.New("payout amounts must not be zero")
	// ErrNullSignature ...
	ErrNullSignature = errors.New("signature must not be null")
	// ErrNullFundingOutpoint ...
	ErrNullFundingOutpoint = errors.New("funding outpoint must not be null")
	// ErrEscrowOutputNotFound is thrown when the deposit transaction does
	// not pay the escrow script derived from the trade's multisig key set.
	ErrEscrowOutputNotFound = errors.New("deposit tx does not pay the expected escrow script")
	// ErrPayoutAmountMismatch is thrown when the payout outputs do not
	// consume the escrowed amount exactly.
	ErrPayoutAmountMismatch = errors.New("payout amounts do not match the escrowed amount")
	// ErrInvalidSignature is thrown when a counterparty signature does not
	// verify against its declared public key.
	ErrInvalidSignature = errors.New("signature does not verify against the declared public key")
)
