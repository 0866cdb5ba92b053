package domain

import "bytes"

// TradeContext is the scratch state shared by every protocol step of a
// trade: exchanged multisig public keys, payout addresses and transaction
// artifacts. It is exclusively owned by its Trade and mutated only from the
// step sequencer's call frame.
//
// Multisig keys and payout addresses are write-once: re-deriving or
// substituting them after they have been exchanged with the counterparty is
// exactly the class of bug the payout signing step guards against. Setters
// of those fields reject any overwrite with a different value, while setting
// the same value again is a no-op so that resumed steps stay idempotent.
type TradeContext struct {
	OwnMultiSigPubKey   []byte
	OwnPayoutAddress    string
	PeerMultiSigPubKey  []byte
	PeerPayoutAddress   string
	ArbitratorPubKey    []byte
	DepositTxId         string
	DepositTxHex        string
	OwnPayoutSignature  []byte
	PeerPayoutSignature []byte
	PayoutTxId          string
	PayoutTxHex         string
}

func (c *TradeContext) SetOwnMultiSigPubKey(pubKey []byte) error {
	return setOnceBytes(&c.OwnMultiSigPubKey, pubKey)
}

func (c *TradeContext) SetPeerMultiSigPubKey(pubKey []byte) error {
	return setOnceBytes(&c.PeerMultiSigPubKey, pubKey)
}

func (c *TradeContext) SetArbitratorPubKey(pubKey []byte) error {
	return setOnceBytes(&c.ArbitratorPubKey, pubKey)
}

func (c *TradeContext) SetOwnPayoutAddress(addr string) error {
	return setOnceString(&c.OwnPayoutAddress, addr)
}

func (c *TradeContext) SetPeerPayoutAddress(addr string) error {
	return setOnceString(&c.PeerPayoutAddress, addr)
}

// SetDepositTx records the observed fund-lock transaction.
func (c *TradeContext) SetDepositTx(txId, txHex string) error {
	if err := setOnceString(&c.DepositTxId, txId); err != nil {
		return err
	}
	return setOnceString(&c.DepositTxHex, txHex)
}

// HasDepositTx returns whether the fund-lock transaction has been recorded.
func (c *TradeContext) HasDepositTx() bool {
	return len(c.DepositTxHex) > 0
}

func (c *TradeContext) SetOwnPayoutSignature(sig []byte) {
	c.OwnPayoutSignature = sig
}

func (c *TradeContext) SetPeerPayoutSignature(sig []byte) {
	c.PeerPayoutSignature = sig
}

func (c *TradeContext) SetPayoutTx(txId, txHex string) {
	c.PayoutTxId = txId
	c.PayoutTxHex = txHex
}

func setOnceBytes(field *[]byte, value []byte) error {
	if len(*field) > 0 {
		if !bytes.Equal(*field, value) {
			return SecurityFailure("%w", ErrContextFieldReassigned)
		}
		return nil
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	*field = buf
	return nil
}

func setOnceString(field *string, value string) error {
	if len(*field) > 0 {
		if *field != value {
			return SecurityFailure("%w", ErrContextFieldReassigned)
		}
		return nil
	}
	*field = value
	return nil
}
