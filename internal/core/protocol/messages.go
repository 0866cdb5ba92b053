package protocol

import (
	"github.com/google/uuid"
	"github.com/thanhpk/randstr"
)

// Protocol message type tags. MsgTypeDepositConfirmed is never sent over
// the wire: it is synthesized locally from ledger observation and injected
// into the sequencer like any peer message.
const (
	MsgTypeEscrowSetup      = "ESCROW_SETUP"
	MsgTypeDepositPublished = "DEPOSIT_PUBLISHED"
	MsgTypeDepositConfirmed = "DEPOSIT_CONFIRMED"
	MsgTypePayoutSignature  = "PAYOUT_SIGNATURE"
)

// EscrowSetupMessage carries the multisig public key and payout address a
// party commits to for the trade.
type EscrowSetupMessage struct {
	Id             string
	Trade          uuid.UUID
	MultiSigPubKey []byte
	PayoutAddress  string
}

func NewEscrowSetupMessage(
	tradeId uuid.UUID, multiSigPubKey []byte, payoutAddress string,
) *EscrowSetupMessage {
	return &EscrowSetupMessage{
		Id:             randstr.Hex(8),
		Trade:          tradeId,
		MultiSigPubKey: multiSigPubKey,
		PayoutAddress:  payoutAddress,
	}
}

func (m *EscrowSetupMessage) Type() string       { return MsgTypeEscrowSetup }
func (m *EscrowSetupMessage) TradeId() uuid.UUID { return m.Trade }
func (m *EscrowSetupMessage) MessageId() string  { return m.Id }

// DepositPublishedMessage notifies the counterparty that the fund-lock
// transaction has been broadcast.
type DepositPublishedMessage struct {
	Id    string
	Trade uuid.UUID
	TxId  string
	TxHex string
}

func NewDepositPublishedMessage(
	tradeId uuid.UUID, txId, txHex string,
) *DepositPublishedMessage {
	return &DepositPublishedMessage{
		Id:    randstr.Hex(8),
		Trade: tradeId,
		TxId:  txId,
		TxHex: txHex,
	}
}

func (m *DepositPublishedMessage) Type() string       { return MsgTypeDepositPublished }
func (m *DepositPublishedMessage) TradeId() uuid.UUID { return m.Trade }
func (m *DepositPublishedMessage) MessageId() string  { return m.Id }

// DepositConfirmedMessage resumes a trade once its fund-lock transaction is
// irreversibly recorded on the ledger. Local only, see MsgTypeDepositConfirmed.
type DepositConfirmedMessage struct {
	Id            string
	Trade         uuid.UUID
	TxId          string
	Confirmations int
}

func NewDepositConfirmedMessage(
	tradeId uuid.UUID, txId string, confirmations int,
) *DepositConfirmedMessage {
	return &DepositConfirmedMessage{
		Id:            randstr.Hex(8),
		Trade:         tradeId,
		TxId:          txId,
		Confirmations: confirmations,
	}
}

func (m *DepositConfirmedMessage) Type() string       { return MsgTypeDepositConfirmed }
func (m *DepositConfirmedMessage) TradeId() uuid.UUID { return m.Trade }
func (m *DepositConfirmedMessage) MessageId() string  { return m.Id }

// PayoutSignatureMessage carries a party's signature over the payout
// transaction.
type PayoutSignatureMessage struct {
	Id        string
	Trade     uuid.UUID
	Signature []byte
}

func NewPayoutSignatureMessage(
	tradeId uuid.UUID, signature []byte,
) *PayoutSignatureMessage {
	return &PayoutSignatureMessage{
		Id:        randstr.Hex(8),
		Trade:     tradeId,
		Signature: signature,
	}
}

func (m *PayoutSignatureMessage) Type() string       { return MsgTypePayoutSignature }
func (m *PayoutSignatureMessage) TradeId() uuid.UUID { return m.Trade }
func (m *PayoutSignatureMessage) MessageId() string  { return m.Id }
